package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

// ContractAddresses parses the configured contract addresses. Only the vault
// is required.
func (c Common) ContractAddresses() (contracts.Addresses, error) {
	var (
		out contracts.Addresses
		err error
	)
	if out.Vault, err = ParseAddress("vault", c.Vault); err != nil {
		return contracts.Addresses{}, err
	}
	if out.Vault == (common.Address{}) {
		return contracts.Addresses{}, fmt.Errorf("vault address is required")
	}
	for _, field := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"strategy", c.Strategy, &out.Strategy},
		{"queue", c.Queue, &out.Queue},
		{"oracle", c.Oracle, &out.Oracle},
		{"pool", c.Pool, &out.Pool},
	} {
		if *field.dst, err = ParseAddress(field.name, field.value); err != nil {
			return contracts.Addresses{}, err
		}
	}
	return out, nil
}

// UserAddress parses the configured user. Empty yields the zero address.
func (c Common) UserAddress() (common.Address, error) {
	return ParseAddress("user", c.User)
}

// MarketKind validates the configured market kind.
func (c Common) MarketKind() (model.MarketKind, error) {
	kind, ok := model.ParseMarketKind(c.Market)
	if !ok {
		return "", fmt.Errorf("unsupported market %q (want tick or bin)", c.Market)
	}
	return kind, nil
}

// Quotes builds the configured USD quotes. An empty price yields an
// unavailable quote so it can be derived from the oracle.
func (v Valuation) Quotes(symbolX, symbolY string, now time.Time) (pricing.Quote, pricing.Quote, error) {
	updated := now
	if v.PriceUpdated != "" {
		ts, err := ParseTimestamp(v.PriceUpdated)
		if err != nil {
			return pricing.Quote{}, pricing.Quote{}, fmt.Errorf("invalid price-updated %q: %w", v.PriceUpdated, err)
		}
		updated = time.Unix(int64(ts), 0)
	}
	x, err := quote(symbolX, v.PriceX, updated)
	if err != nil {
		return pricing.Quote{}, pricing.Quote{}, fmt.Errorf("invalid price-x: %w", err)
	}
	y, err := quote(symbolY, v.PriceY, updated)
	if err != nil {
		return pricing.Quote{}, pricing.Quote{}, fmt.Errorf("invalid price-y: %w", err)
	}
	return x, y, nil
}

// DepositBasis parses TotalDeposited. ok is false when it is unset.
func (v Valuation) DepositBasis() (decimal.Decimal, bool, error) {
	if strings.TrimSpace(v.TotalDeposited) == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.TotalDeposited))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid total-deposited %q: %w", v.TotalDeposited, err)
	}
	if d.IsNegative() {
		return decimal.Zero, false, fmt.Errorf("total-deposited must not be negative")
	}
	return d, true, nil
}

// OptionalPrice parses a USD price flag. Empty yields zero.
func OptionalPrice(value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(value))
}

func quote(symbol, value string, updated time.Time) (pricing.Quote, error) {
	if strings.TrimSpace(value) == "" {
		return pricing.Quote{Symbol: symbol}, nil
	}
	q, err := pricing.NewQuote(symbol, strings.TrimSpace(value), updated, "config")
	if err != nil {
		return pricing.Quote{}, err
	}
	if !q.USD.IsPositive() {
		return pricing.Quote{}, fmt.Errorf("price must be positive, got %s", value)
	}
	return q, nil
}

// ParseAddress converts a hex address. Empty yields the zero address.
func ParseAddress(field, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", field, input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(field string, inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		addr, err := ParseAddress(field, input)
		if err != nil {
			return nil, err
		}
		if addr == (common.Address{}) {
			continue
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
