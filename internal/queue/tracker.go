package queue

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
)

// RoundSet holds rounds 0..Current read from the same block. Rounds[i].Index
// is always i and the last round is the current, open one.
type RoundSet struct {
	Current uint64
	Rounds  []Round
}

// NewRoundSet validates rounds and wraps them. rounds must be ordered by index
// starting at zero and end with the current round.
func NewRoundSet(current uint64, rounds []Round) (RoundSet, error) {
	set := RoundSet{Current: current, Rounds: rounds}
	if err := set.Validate(); err != nil {
		return RoundSet{}, err
	}
	return set, nil
}

// Validate checks round ordering and that each round's per-user sum matches
// its total.
func (s RoundSet) Validate() error {
	if uint64(len(s.Rounds)) != s.Current+1 {
		return fmt.Errorf("%w: have %d rounds for current round %d", model.ErrInconsistentState, len(s.Rounds), s.Current)
	}
	for i, r := range s.Rounds {
		if r.Index != uint64(i) {
			return fmt.Errorf("%w: round at position %d has index %d", model.ErrInconsistentState, i, r.Index)
		}
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the observable state of a round. Processing happens on-chain
// in one transaction, so a client only ever sees open or closed.
func (s RoundSet) Status(index uint64) (RoundStatus, error) {
	switch {
	case index > s.Current:
		return "", fmt.Errorf("%w: round %d is after current round %d", model.ErrRangeInvalid, index, s.Current)
	case index == s.Current:
		return RoundOpen, nil
	default:
		return RoundClosed, nil
	}
}

// Round returns a copy of round index.
func (s RoundSet) Round(index uint64) (Round, error) {
	if index >= uint64(len(s.Rounds)) {
		return Round{}, fmt.Errorf("%w: round %d not loaded", model.ErrRangeInvalid, index)
	}
	return s.Rounds[index].clone(), nil
}

// Queued returns the user's queued shares summed over every round.
func (s RoundSet) Queued(user common.Address) *big.Int {
	sum := new(big.Int)
	for _, r := range s.Rounds {
		sum.Add(sum, r.QueuedBy(user))
	}
	return sum
}

// Queue returns a new set with shares added to the user's entry in the
// current round. shares must not exceed the user's available shares.
func (s RoundSet) Queue(user common.Address, shares, totalShares *big.Int) (RoundSet, error) {
	if shares == nil || shares.Sign() <= 0 {
		return RoundSet{}, model.NewAmountError(model.ErrNonPositiveAmount, "queued shares", shares, nil)
	}
	if err := s.currentLoaded(); err != nil {
		return RoundSet{}, err
	}
	available, err := AvailableShares(totalShares, s.Rounds, user)
	if err != nil {
		return RoundSet{}, err
	}
	if shares.Cmp(available) > 0 {
		return RoundSet{}, model.NewAmountError(model.ErrExceedsAvailable, "queued shares", shares, available)
	}

	out := s.withCurrentCloned()
	cur := &out.Rounds[out.Current]
	cur.PerUser[user] = new(big.Int).Add(cur.QueuedBy(user), shares)
	cur.TotalQueuedShares = new(big.Int).Add(cur.TotalQueuedShares, shares)
	return out, nil
}

// Cancel returns a new set with shares removed from the user's entry in the
// current round. The round total drops by exactly shares.
func (s RoundSet) Cancel(user common.Address, shares *big.Int) (RoundSet, error) {
	if shares == nil || shares.Sign() <= 0 {
		return RoundSet{}, model.NewAmountError(model.ErrNonPositiveAmount, "cancelled shares", shares, nil)
	}
	if err := s.currentLoaded(); err != nil {
		return RoundSet{}, err
	}
	queued := s.Rounds[s.Current].QueuedBy(user)
	if shares.Cmp(queued) > 0 {
		return RoundSet{}, model.NewAmountError(model.ErrExceedsQueued, "cancelled shares", shares, queued)
	}

	out := s.withCurrentCloned()
	cur := &out.Rounds[out.Current]
	cur.PerUser[user] = queued.Sub(queued, shares)
	cur.TotalQueuedShares = new(big.Int).Sub(cur.TotalQueuedShares, shares)
	if cur.TotalQueuedShares.Sign() < 0 {
		return RoundSet{}, fmt.Errorf("%w: round %d total queued below zero", model.ErrInconsistentState, cur.Index)
	}
	return out, nil
}

func (s RoundSet) currentLoaded() error {
	if uint64(len(s.Rounds)) <= s.Current {
		return fmt.Errorf("%w: current round %d not loaded", model.ErrInconsistentState, s.Current)
	}
	return nil
}

// withCurrentCloned copies the round slice and deep-copies the current round
// so earlier sets are never mutated.
func (s RoundSet) withCurrentCloned() RoundSet {
	rounds := make([]Round, len(s.Rounds))
	copy(rounds, s.Rounds)
	rounds[s.Current] = s.Rounds[s.Current].clone()
	if rounds[s.Current].TotalQueuedShares == nil {
		rounds[s.Current].TotalQueuedShares = new(big.Int)
	}
	return RoundSet{Current: s.Current, Rounds: rounds}
}

// AvailableShares returns totalShares minus everything user has queued across
// rounds. A negative result means the reads came from different blocks and
// fails with ErrInconsistentState.
func AvailableShares(totalShares *big.Int, rounds []Round, user common.Address) (*big.Int, error) {
	if totalShares == nil {
		totalShares = new(big.Int)
	}
	queued := new(big.Int)
	for _, r := range rounds {
		queued.Add(queued, r.QueuedBy(user))
	}
	out := new(big.Int).Sub(totalShares, queued)
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: user %s queued %s of %s shares", model.ErrInconsistentState, user.Hex(), queued, totalShares)
	}
	return out, nil
}

// Redeemable previews what user can redeem from round index. Open rounds and
// rounds not yet processed yield zero amounts. Otherwise each side is
// floor(userQueued * released / totalQueued). The vault's own figure stays
// authoritative.
func (s RoundSet) Redeemable(index uint64, user common.Address, metaX, metaY model.TokenMeta) (RedemptionEntry, error) {
	entry := RedemptionEntry{Round: index, AmountX: amount.Zero(metaX), AmountY: amount.Zero(metaY)}
	status, err := s.Status(index)
	if err != nil {
		return RedemptionEntry{}, err
	}
	if status != RoundClosed || index >= uint64(len(s.Rounds)) {
		return entry, nil
	}
	r := s.Rounds[index]
	if !r.Processed() || r.TotalQueuedShares == nil || r.TotalQueuedShares.Sign() == 0 {
		return entry, nil
	}

	userShares := r.QueuedBy(user)
	x := new(big.Int).Mul(userShares, r.ReleasedX)
	x.Quo(x, r.TotalQueuedShares)
	y := new(big.Int).Mul(userShares, r.ReleasedY)
	y.Quo(y, r.TotalQueuedShares)

	if entry.AmountX, err = amount.FromMeta(x, metaX); err != nil {
		return RedemptionEntry{}, err
	}
	if entry.AmountY, err = amount.FromMeta(y, metaY); err != nil {
		return RedemptionEntry{}, err
	}
	return entry, nil
}

// RedeemableAll previews every closed round with a non-zero entry for user.
func (s RoundSet) RedeemableAll(user common.Address, metaX, metaY model.TokenMeta) ([]RedemptionEntry, error) {
	var out []RedemptionEntry
	for i := uint64(0); i < s.Current && i < uint64(len(s.Rounds)); i++ {
		entry, err := s.Redeemable(i, user, metaX, metaY)
		if err != nil {
			return nil, err
		}
		if !entry.IsZero() {
			out = append(out, entry)
		}
	}
	return out, nil
}
