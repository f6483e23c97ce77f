package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultStaleAfter is the age after which a quote is flagged stale for display.
	DefaultStaleAfter = 60 * time.Second
	// DefaultPriceTTL is how long a fetched spot price may be reused.
	DefaultPriceTTL = 30 * time.Second
)

// Quote is an external USD price for one token together with the time the
// upstream source reported it.
type Quote struct {
	Symbol      string
	USD         decimal.Decimal
	LastUpdated time.Time
	Source      string
}

// NewQuote builds a quote from a decimal string such as "1.0002".
func NewQuote(symbol, usd string, updated time.Time, source string) (Quote, error) {
	price, err := decimal.NewFromString(usd)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Symbol: symbol, USD: price, LastUpdated: updated, Source: source}, nil
}

// Available reports whether the quote carries a usable positive price.
func (q Quote) Available() bool {
	return !q.LastUpdated.IsZero() && q.USD.IsPositive()
}

// Age returns how old the quote is at now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.LastUpdated)
}

// IsStale reports whether the quote is older than threshold at now. A zero
// threshold uses DefaultStaleAfter.
func (q Quote) IsStale(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultStaleAfter
	}
	return q.Age(now) > threshold
}

// Cache is a single cached value with its expiry. It is a plain value owned by
// the caller; nothing in this module keeps one globally.
type Cache[T any] struct {
	value     T
	expiresAt time.Time
	set       bool
}

// NewCache stores value until now+ttl. A zero ttl uses DefaultPriceTTL.
func NewCache[T any](value T, now time.Time, ttl time.Duration) Cache[T] {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return Cache[T]{value: value, expiresAt: now.Add(ttl), set: true}
}

// Get returns the value while it has not expired.
func (c Cache[T]) Get(now time.Time) (T, bool) {
	if !c.set || !now.Before(c.expiresAt) {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c Cache[T]) ExpiresAt() time.Time {
	return c.expiresAt
}
