// Package queue reconstructs a vault's round-indexed withdrawal queue from
// per-round reads. It mirrors on-chain settlement for preview only and never
// drives state transitions itself.
package queue

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
)

// RoundStatus is the observable state of a withdrawal round.
type RoundStatus string

const (
	RoundOpen       RoundStatus = "open"
	RoundProcessing RoundStatus = "processing"
	RoundClosed     RoundStatus = "closed"
)

// Round is one withdrawal epoch as read from the vault.
type Round struct {
	Index             uint64
	TotalQueuedShares *big.Int
	PerUser           map[common.Address]*big.Int
	// ReleasedX and ReleasedY are the tokens set aside when the round was
	// processed. Nil means the round has not been processed.
	ReleasedX *big.Int
	ReleasedY *big.Int
	// Partial marks a round where only some users' queued shares were read,
	// so the per-user sum may be below the total.
	Partial bool
}

// QueuedBy returns the shares user queued in this round.
func (r Round) QueuedBy(user common.Address) *big.Int {
	if v, ok := r.PerUser[user]; ok && v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Processed reports whether the vault has released tokens for the round.
func (r Round) Processed() bool {
	return r.ReleasedX != nil && r.ReleasedY != nil
}

func (r Round) validate() error {
	if r.TotalQueuedShares == nil || r.TotalQueuedShares.Sign() < 0 {
		return fmt.Errorf("%w: round %d total queued %v", model.ErrInconsistentState, r.Index, r.TotalQueuedShares)
	}
	sum := new(big.Int)
	for user, shares := range r.PerUser {
		if shares == nil || shares.Sign() < 0 {
			return fmt.Errorf("%w: round %d user %s queued %v", model.ErrInconsistentState, r.Index, user.Hex(), shares)
		}
		sum.Add(sum, shares)
	}
	cmp := sum.Cmp(r.TotalQueuedShares)
	if cmp > 0 || (cmp < 0 && !r.Partial) {
		return fmt.Errorf("%w: round %d per-user sum %s != total %s", model.ErrInconsistentState, r.Index, sum, r.TotalQueuedShares)
	}
	return nil
}

func (r Round) clone() Round {
	out := r
	out.TotalQueuedShares = copyInt(r.TotalQueuedShares)
	out.ReleasedX = copyInt(r.ReleasedX)
	out.ReleasedY = copyInt(r.ReleasedY)
	out.PerUser = make(map[common.Address]*big.Int, len(r.PerUser))
	for user, shares := range r.PerUser {
		out.PerUser[user] = copyInt(shares)
	}
	return out
}

// RedemptionEntry is what a user can redeem for one closed round.
type RedemptionEntry struct {
	Round   uint64             `json:"round"`
	AmountX amount.TokenAmount `json:"amountX"`
	AmountY amount.TokenAmount `json:"amountY"`
}

// IsZero reports whether nothing is redeemable.
func (e RedemptionEntry) IsZero() bool {
	return e.AmountX.IsZero() && e.AmountY.IsZero()
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
