// Package rebalance proposes liquidity ranges, token ratios, weight
// distributions and deposit plans for the vault's strategy.
package rebalance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

const (
	// MaxBinID is the largest bin id a liquidity-book pair accepts.
	MaxBinID = 1<<24 - 1

	DefaultWidthPercent = 10
	DefaultBinCount     = 10
)

var tickBase = math.Log(1.0001)

// Range is an inclusive [Lower, Upper] span of ticks or bin ids.
type Range struct {
	Lower   int32 `json:"lower"`
	Upper   int32 `json:"upper"`
	// Spacing is the distance between usable points. Zero or one means every
	// point in the span can hold liquidity.
	Spacing int32 `json:"spacing,omitempty"`
}

// Validate fails with ErrRangeInvalid unless Lower < Upper and, with a
// spacing, both edges sit on it.
func (r Range) Validate() error {
	if r.Lower >= r.Upper {
		return fmt.Errorf("%w: lower %d >= upper %d", model.ErrRangeInvalid, r.Lower, r.Upper)
	}
	if r.Spacing < 0 {
		return fmt.Errorf("%w: spacing %d", model.ErrRangeInvalid, r.Spacing)
	}
	if step := r.step(); r.Lower%step != 0 || r.Upper%step != 0 {
		return fmt.Errorf("%w: [%d, %d] not aligned to spacing %d", model.ErrRangeInvalid, r.Lower, r.Upper, step)
	}
	return nil
}

func (r Range) step() int32 {
	if r.Spacing > 1 {
		return r.Spacing
	}
	return 1
}

// Steps is the number of usable points in the range.
func (r Range) Steps() int {
	return (int(r.Upper)-int(r.Lower))/int(r.step()) + 1
}

// Point returns the i-th usable point, counting from Lower.
func (r Range) Point(i int) int32 {
	return r.Lower + int32(i)*r.step()
}

// StepOf returns the index of the step whose span holds point. point must lie
// inside the range.
func (r Range) StepOf(point int32) int {
	return (int(point) - int(r.Lower)) / int(r.step())
}

// Contains reports whether point lies inside the range.
func (r Range) Contains(point int32) bool {
	return point >= r.Lower && point <= r.Upper
}

// RangeParams describes the market and requested width for DefaultRange.
type RangeParams struct {
	Kind   model.MarketKind
	Active int32
	// Spacing is the tick spacing for tick markets. Bin markets ignore it.
	Spacing int32
	// WidthPercent is the price distance from active to each edge for tick markets.
	WidthPercent decimal.Decimal
	// BinCount is the total number of bins for bin markets. The range stays
	// centred on the active bin, so an even count loses one bin and anything
	// below three still spans three.
	BinCount uint32
}

// DefaultRange returns a range centred on the active point. Tick ranges cover
// ±WidthPercent in price and are widened outward to the tick spacing; bin
// ranges cover (BinCount-1)/2 bins on each side and are not snapped.
func DefaultRange(p RangeParams) (Range, error) {
	switch p.Kind {
	case model.MarketTick:
		return tickRange(p.Active, p.Spacing, p.WidthPercent)
	case model.MarketBin:
		return binRange(p.Active, p.BinCount)
	default:
		return Range{}, fmt.Errorf("%w: unknown market kind %q", model.ErrRangeInvalid, p.Kind)
	}
}

func tickRange(active, spacing int32, width decimal.Decimal) (Range, error) {
	if spacing <= 0 {
		return Range{}, fmt.Errorf("%w: tick spacing %d", model.ErrRangeInvalid, spacing)
	}
	if !width.IsPositive() {
		return Range{}, fmt.Errorf("%w: width %s%%", model.ErrRangeInvalid, width)
	}
	ratio := 1 + width.InexactFloat64()/100
	offset := int32(math.Ceil(math.Log(ratio) / tickBase))
	if offset < 1 {
		offset = 1
	}

	minTick := ceilTo(pricing.MinTick, spacing)
	maxTick := floorTo(pricing.MaxTick, spacing)
	r := Range{
		Lower:   floorTo(clamp(active-offset, pricing.MinTick, pricing.MaxTick), spacing),
		Upper:   ceilTo(clamp(active+offset, pricing.MinTick, pricing.MaxTick), spacing),
		Spacing: spacing,
	}
	if r.Lower < minTick {
		r.Lower = minTick
	}
	if r.Upper > maxTick {
		r.Upper = maxTick
	}
	if r.Lower == r.Upper {
		r.Upper += spacing
	}
	return r, r.Validate()
}

func binRange(active int32, count uint32) (Range, error) {
	if active < 0 || active > MaxBinID {
		return Range{}, fmt.Errorf("%w: active bin %d", model.ErrRangeInvalid, active)
	}
	var half int32
	if count > 1 {
		half = int32((count - 1) / 2)
	}
	if half < 1 {
		half = 1
	}
	r := Range{Lower: active - half, Upper: active + half}
	if r.Lower < 0 || r.Upper > MaxBinID {
		return Range{}, fmt.Errorf("%w: bins [%d, %d] outside pair bounds", model.ErrRangeInvalid, r.Lower, r.Upper)
	}
	return r, nil
}

func floorTo(v, spacing int32) int32 {
	q := v / spacing
	if v%spacing != 0 && v < 0 {
		q--
	}
	return q * spacing
}

func ceilTo(v, spacing int32) int32 {
	q := v / spacing
	if v%spacing != 0 && v > 0 {
		q++
	}
	return q * spacing
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
