package rebalance

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"vaultScope/internal/model"
)

// TotalWeight is the basis-point total each side of a distribution sums to.
const TotalWeight = 10_000

// Weight is the share of each token placed on one step, in basis points.
type Weight struct {
	X uint64 `json:"x"`
	Y uint64 `json:"y"`
}

// UniformDistribution spreads both tokens evenly over every point of
// [lower, upper]. Each step gets floor(10000/steps) and the last step takes
// the remainder.
func UniformDistribution(lower, upper int32) ([]Weight, error) {
	return UniformWeights(Range{Lower: lower, Upper: upper})
}

// UniformWeights is UniformDistribution over the usable steps of r, one entry
// per spacing step.
func UniformWeights(r Range) ([]Weight, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	steps := r.Steps()
	each, last := split(steps)
	out := make([]Weight, steps)
	for i := range out {
		out[i] = Weight{X: each, Y: each}
	}
	out[steps-1] = Weight{X: last, Y: last}
	return out, nil
}

// SplitDistribution places X only on steps at or above active and Y only on
// steps at or below it, each side spread evenly with the remainder on its
// last step. active must lie inside the range.
func SplitDistribution(lower, upper, active int32) ([]Weight, error) {
	return SplitWeights(Range{Lower: lower, Upper: upper}, active)
}

// SplitWeights is SplitDistribution over the usable steps of r. The step
// holding active gets both tokens.
func SplitWeights(r Range, active int32) ([]Weight, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !r.Contains(active) {
		return nil, fmt.Errorf("%w: active %d outside [%d, %d]", model.ErrRangeInvalid, active, r.Lower, r.Upper)
	}
	steps := r.Steps()
	at := r.StepOf(active)
	eachX, lastX := split(steps - at)
	eachY, lastY := split(at + 1)

	out := make([]Weight, steps)
	for i := range out {
		if i >= at {
			out[i].X = eachX
		}
		if i <= at {
			out[i].Y = eachY
		}
	}
	out[steps-1].X = lastX
	out[at].Y = lastY
	return out, nil
}

// ValidateDistribution fails with ErrRangeInvalid unless both sides sum to
// exactly TotalWeight.
func ValidateDistribution(weights []Weight) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: empty distribution", model.ErrRangeInvalid)
	}
	var sumX, sumY uint64
	for _, w := range weights {
		sumX += w.X
		sumY += w.Y
	}
	if sumX != TotalWeight || sumY != TotalWeight {
		return fmt.Errorf("%w: distribution sums x=%d y=%d, want %d", model.ErrRangeInvalid, sumX, sumY, TotalWeight)
	}
	return nil
}

var distributionArgs = func() abi.Arguments {
	weights, err := abi.NewType("uint256[]", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "distributionX", Type: weights}, {Name: "distributionY", Type: weights}}
}()

// EncodeDistribution ABI-encodes the weights as (uint256[] x, uint256[] y),
// the layout the strategy's rebalance call expects.
func EncodeDistribution(weights []Weight) ([]byte, error) {
	if err := ValidateDistribution(weights); err != nil {
		return nil, err
	}
	xs := make([]*big.Int, len(weights))
	ys := make([]*big.Int, len(weights))
	for i, w := range weights {
		xs[i] = new(big.Int).SetUint64(w.X)
		ys[i] = new(big.Int).SetUint64(w.Y)
	}
	data, err := distributionArgs.Pack(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("encode distribution: %w", err)
	}
	return data, nil
}

// DecodeDistribution is the inverse of EncodeDistribution.
func DecodeDistribution(data []byte) ([]Weight, error) {
	values, err := distributionArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decode distribution: %w", err)
	}
	xs, okX := values[0].([]*big.Int)
	ys, okY := values[1].([]*big.Int)
	if !okX || !okY || len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: malformed distribution", model.ErrRangeInvalid)
	}
	out := make([]Weight, len(xs))
	for i := range xs {
		out[i] = Weight{X: xs[i].Uint64(), Y: ys[i].Uint64()}
	}
	return out, nil
}

func split(steps int) (each, last uint64) {
	each = TotalWeight / uint64(steps)
	last = TotalWeight - each*uint64(steps-1)
	return each, last
}
