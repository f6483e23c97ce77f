package history

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
)

// Ledger is one user's running totals over the vault's event history. It is
// JSON-serializable so a checkpoint can resume it.
type Ledger struct {
	User            string   `json:"user"`
	DepositedX      *big.Int `json:"deposited_x"`
	DepositedY      *big.Int `json:"deposited_y"`
	SharesMinted    *big.Int `json:"shares_minted"`
	SharesQueued    *big.Int `json:"shares_queued"`
	SharesCancelled *big.Int `json:"shares_cancelled"`
	SharesRedeemed  *big.Int `json:"shares_redeemed"`
	RedeemedX       *big.Int `json:"redeemed_x"`
	RedeemedY       *big.Int `json:"redeemed_y"`
	Events          uint64   `json:"events"`
	FirstBlock      uint64   `json:"first_block"`
	LastBlock       uint64   `json:"last_block"`
}

// NewLedger starts an empty ledger for user. A zero user tracks every event.
func NewLedger(user common.Address) *Ledger {
	l := &Ledger{}
	if user != (common.Address{}) {
		l.User = user.Hex()
	}
	l.init()
	return l
}

func (l *Ledger) init() {
	for _, p := range []**big.Int{
		&l.DepositedX, &l.DepositedY, &l.SharesMinted, &l.SharesQueued,
		&l.SharesCancelled, &l.SharesRedeemed, &l.RedeemedX, &l.RedeemedY,
	} {
		if *p == nil {
			*p = new(big.Int)
		}
	}
}

// Involves reports whether ev concerns the ledger's user.
func (l *Ledger) Involves(ev model.VaultEvent) bool {
	if l.User == "" {
		return true
	}
	switch data := ev.Decoded.(type) {
	case model.DepositedEventData:
		return sameAddress(data.User, l.User)
	case model.WithdrawalQueuedEventData:
		return sameAddress(data.User, l.User)
	case model.WithdrawalCancelledEventData:
		return sameAddress(data.Recipient, l.User) || sameAddress(data.Sender, l.User)
	case model.WithdrawalRedeemedEventData:
		return sameAddress(data.Recipient, l.User) || sameAddress(data.Sender, l.User)
	default:
		return false
	}
}

// Apply adds ev to the totals when it involves the user. It reports whether
// the event was counted.
func (l *Ledger) Apply(ev model.VaultEvent) (bool, error) {
	l.init()
	if !l.Involves(ev) {
		return false, nil
	}
	switch data := ev.Decoded.(type) {
	case model.DepositedEventData:
		if err := addAll(ev, []addend{
			{l.DepositedX, data.AmountX},
			{l.DepositedY, data.AmountY},
			{l.SharesMinted, data.Shares},
		}); err != nil {
			return false, err
		}
	case model.WithdrawalQueuedEventData:
		if err := addAll(ev, []addend{{l.SharesQueued, data.Shares}}); err != nil {
			return false, err
		}
	case model.WithdrawalCancelledEventData:
		if err := addAll(ev, []addend{{l.SharesCancelled, data.Shares}}); err != nil {
			return false, err
		}
	case model.WithdrawalRedeemedEventData:
		if err := addAll(ev, []addend{
			{l.SharesRedeemed, data.Shares},
			{l.RedeemedX, data.AmountX},
			{l.RedeemedY, data.AmountY},
		}); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unsupported decoded payload %T for %s", ev.Decoded, ev.Key())
	}

	l.Events++
	if l.FirstBlock == 0 || ev.BlockNumber < l.FirstBlock {
		l.FirstBlock = ev.BlockNumber
	}
	if ev.BlockNumber > l.LastBlock {
		l.LastBlock = ev.BlockNumber
	}
	return true, nil
}

// PendingShares is queued minus cancelled minus redeemed.
func (l *Ledger) PendingShares() *big.Int {
	l.init()
	out := new(big.Int).Sub(l.SharesQueued, l.SharesCancelled)
	return out.Sub(out, l.SharesRedeemed)
}

// TotalDeposited returns the deposited amounts in token units.
func (l *Ledger) TotalDeposited(metaX, metaY model.TokenMeta) (amount.TokenAmount, amount.TokenAmount, error) {
	l.init()
	x, err := amount.FromMeta(l.DepositedX, metaX)
	if err != nil {
		return amount.TokenAmount{}, amount.TokenAmount{}, err
	}
	y, err := amount.FromMeta(l.DepositedY, metaY)
	if err != nil {
		return amount.TokenAmount{}, amount.TokenAmount{}, err
	}
	return x, y, nil
}

// TotalDepositedUSD values the deposited amounts at the given prices.
func (l *Ledger) TotalDepositedUSD(metaX, metaY model.TokenMeta, priceX, priceY decimal.Decimal) (decimal.Decimal, error) {
	x, y, err := l.TotalDeposited(metaX, metaY)
	if err != nil {
		return decimal.Zero, err
	}
	return x.ToUSD(priceX).Add(y.ToUSD(priceY)), nil
}

// TotalRedeemed returns the redeemed amounts in token units.
func (l *Ledger) TotalRedeemed(metaX, metaY model.TokenMeta) (amount.TokenAmount, amount.TokenAmount, error) {
	l.init()
	x, err := amount.FromMeta(l.RedeemedX, metaX)
	if err != nil {
		return amount.TokenAmount{}, amount.TokenAmount{}, err
	}
	y, err := amount.FromMeta(l.RedeemedY, metaY)
	if err != nil {
		return amount.TokenAmount{}, amount.TokenAmount{}, err
	}
	return x, y, nil
}

// NetDepositedUSD is the deposit basis still in the vault: deposits minus
// redemptions, both valued at the given prices. It goes negative once a user
// has taken out more than they put in, so userValue - basis stays the total
// profit including what was already redeemed.
func (l *Ledger) NetDepositedUSD(metaX, metaY model.TokenMeta, priceX, priceY decimal.Decimal) (decimal.Decimal, error) {
	deposited, err := l.TotalDepositedUSD(metaX, metaY, priceX, priceY)
	if err != nil {
		return decimal.Zero, err
	}
	x, y, err := l.TotalRedeemed(metaX, metaY)
	if err != nil {
		return decimal.Zero, err
	}
	return deposited.Sub(x.ToUSD(priceX)).Sub(y.ToUSD(priceY)), nil
}

type addend struct {
	total *big.Int
	value string
}

// addAll parses every value before touching any total, so a bad event leaves
// the ledger unchanged.
func addAll(ev model.VaultEvent, addends []addend) error {
	parsed := make([]*big.Int, len(addends))
	for i, a := range addends {
		v, ok := new(big.Int).SetString(a.value, 10)
		if !ok || v.Sign() < 0 {
			return fmt.Errorf("%s %s: invalid amount %q", ev.EventName, ev.Key(), a.value)
		}
		parsed[i] = v
	}
	for i, a := range addends {
		a.total.Add(a.total, parsed[i])
	}
	return nil
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
