package rebalance

import (
	"fmt"

	"vaultScope/internal/model"
)

// RangeProposal is an operator-reviewed rebalance: the new range, the active
// point the operator expects, how far it may drift and the weights per step.
type RangeProposal struct {
	Lower         int32    `json:"lower"`
	Upper         int32    `json:"upper"`
	DesiredActive int32    `json:"desiredActive"`
	Slippage      uint32   `json:"slippage"`
	Spacing       int32    `json:"spacing,omitempty"`
	Distribution  []Weight `json:"distribution"`
}

// NewRangeProposal checks that the distribution has one entry per usable step
// of r and sums to TotalWeight on both sides.
func NewRangeProposal(r Range, desiredActive int32, slippage uint32, distribution []Weight) (RangeProposal, error) {
	if err := r.Validate(); err != nil {
		return RangeProposal{}, err
	}
	if len(distribution) != r.Steps() {
		return RangeProposal{}, fmt.Errorf("%w: %d weights for %d steps", model.ErrRangeInvalid, len(distribution), r.Steps())
	}
	if err := ValidateDistribution(distribution); err != nil {
		return RangeProposal{}, err
	}
	weights := make([]Weight, len(distribution))
	copy(weights, distribution)
	return RangeProposal{
		Lower:         r.Lower,
		Upper:         r.Upper,
		DesiredActive: desiredActive,
		Slippage:      slippage,
		Spacing:       r.Spacing,
		Distribution:  weights,
	}, nil
}

// Range returns the proposal's [Lower, Upper].
func (p RangeProposal) Range() Range {
	return Range{Lower: p.Lower, Upper: p.Upper, Spacing: p.Spacing}
}

// EncodedDistribution returns the ABI bytes passed to the strategy.
func (p RangeProposal) EncodedDistribution() ([]byte, error) {
	return EncodeDistribution(p.Distribution)
}
