package ops

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/amount"
	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/queue"
)

// RoundView is one round as shown to the user.
type RoundView struct {
	Index       uint64            `json:"index"`
	Status      queue.RoundStatus `json:"status"`
	TotalQueued string            `json:"totalQueued"`
	UserQueued  string            `json:"userQueued"`
	Processed   bool              `json:"processed"`
}

// QueueReport summarises a user's withdrawal queue position.
type QueueReport struct {
	User         string      `json:"user"`
	BlockNumber  uint64      `json:"blockNumber"`
	CurrentRound uint64      `json:"currentRound"`
	Shares       string      `json:"shares"`
	Queued       string      `json:"queued"`
	Available    string      `json:"available"`
	Rounds       []RoundView `json:"rounds"`
	// Redeemable is the queue contract's figure; Preview is the local
	// pro-rata estimate for the same rounds.
	Redeemable []queue.RedemptionEntry `json:"redeemable"`
	Preview    []queue.RedemptionEntry `json:"preview"`
}

// SharePlan is a validated share amount with the calldata that spends it.
type SharePlan struct {
	Shares  *big.Int       `json:"shares"`
	Display string         `json:"display"`
	Round   uint64         `json:"round"`
	Call    contracts.Call `json:"call"`
}

// RedeemPlan is a redeem call with the amounts it is expected to release.
type RedeemPlan struct {
	Entry queue.RedemptionEntry `json:"entry"`
	// Estimated is true when the queue contract reported nothing and Entry
	// is the local preview.
	Estimated bool           `json:"estimated"`
	Call      contracts.Call `json:"call"`
}

// QueueStatus reports available shares, per-round queued shares and what is
// redeemable. It fails with ErrInconsistentState when the queued total
// exceeds the user's shares.
func QueueStatus(state contracts.VaultState) (QueueReport, error) {
	us, err := requireUser(state)
	if err != nil {
		return QueueReport{}, err
	}
	available, err := queue.AvailableShares(us.Shares, us.Rounds.Rounds, us.Address)
	if err != nil {
		return QueueReport{}, err
	}
	preview, err := us.Rounds.RedeemableAll(us.Address, state.TokenX, state.TokenY)
	if err != nil {
		return QueueReport{}, err
	}

	report := QueueReport{
		User:         us.Address.Hex(),
		BlockNumber:  state.BlockNumber,
		CurrentRound: us.Rounds.Current,
		Shares:       formatShares(us.Shares, state),
		Queued:       formatShares(us.Rounds.Queued(us.Address), state),
		Available:    formatShares(available, state),
		Redeemable:   us.Redeemable,
		Preview:      preview,
	}
	for _, r := range us.Rounds.Rounds {
		status, err := us.Rounds.Status(r.Index)
		if err != nil {
			return QueueReport{}, err
		}
		report.Rounds = append(report.Rounds, RoundView{
			Index:       r.Index,
			Status:      status,
			TotalQueued: formatShares(r.TotalQueuedShares, state),
			UserQueued:  formatShares(r.QueuedBy(us.Address), state),
			Processed:   r.Processed(),
		})
	}
	return report, nil
}

// PlanWithdrawal parses input against the user's available shares and builds
// the queueWithdrawal call. A zero recipient means the user.
func PlanWithdrawal(vault common.Address, state contracts.VaultState, input string, recipient common.Address) (SharePlan, error) {
	us, err := requireUser(state)
	if err != nil {
		return SharePlan{}, err
	}
	available, err := queue.AvailableShares(us.Shares, us.Rounds.Rounds, us.Address)
	if err != nil {
		return SharePlan{}, err
	}
	shares, err := amount.ParseAmountWithOptions(input, state.Snapshot.ShareDecimals, available, amount.ParseOptions{Field: "shares"})
	if err != nil {
		return SharePlan{}, err
	}
	if _, err := us.Rounds.Queue(us.Address, shares, us.Shares); err != nil {
		return SharePlan{}, err
	}
	if recipient == (common.Address{}) {
		recipient = us.Address
	}
	call, err := contracts.PackQueueWithdrawal(vault, shares, recipient)
	if err != nil {
		return SharePlan{}, err
	}
	return SharePlan{Shares: shares, Display: formatShares(shares, state), Round: us.Rounds.Current, Call: call}, nil
}

// PlanCancel parses input against the shares queued in the current round.
// Asking for more than is queued fails with ErrExceedsQueued.
func PlanCancel(vault common.Address, state contracts.VaultState, input string) (SharePlan, error) {
	us, err := requireUser(state)
	if err != nil {
		return SharePlan{}, err
	}
	current, err := us.Rounds.Round(us.Rounds.Current)
	if err != nil {
		return SharePlan{}, err
	}
	queued := current.QueuedBy(us.Address)
	shares, err := amount.ParseAmountWithOptions(input, state.Snapshot.ShareDecimals, queued, amount.ParseOptions{Field: "cancel shares"})
	if err != nil {
		var amountErr *model.AmountError
		if errors.As(err, &amountErr) && errors.Is(err, model.ErrExceedsAvailable) {
			return SharePlan{}, model.NewAmountError(model.ErrExceedsQueued, amountErr.Field, amountErr.Amount, amountErr.Bound)
		}
		return SharePlan{}, err
	}
	if _, err := us.Rounds.Cancel(us.Address, shares); err != nil {
		return SharePlan{}, err
	}
	call, err := contracts.PackCancelQueuedWithdrawal(vault, shares)
	if err != nil {
		return SharePlan{}, err
	}
	return SharePlan{Shares: shares, Display: formatShares(shares, state), Round: us.Rounds.Current, Call: call}, nil
}

// PlanRedeem builds a redeem for a closed round. It prefers the queue
// contract's figure and falls back to the local preview; a round with nothing
// to redeem fails with ErrNonPositiveAmount.
func PlanRedeem(vault common.Address, state contracts.VaultState, round uint64, recipient common.Address) (RedeemPlan, error) {
	us, err := requireUser(state)
	if err != nil {
		return RedeemPlan{}, err
	}
	status, err := us.Rounds.Status(round)
	if err != nil {
		return RedeemPlan{}, err
	}
	if status != queue.RoundClosed {
		return RedeemPlan{}, fmt.Errorf("%w: round %d is still open", model.ErrRangeInvalid, round)
	}

	plan := RedeemPlan{}
	found := false
	for _, entry := range us.Redeemable {
		if entry.Round == round {
			plan.Entry = entry
			found = true
			break
		}
	}
	if !found {
		entry, err := us.Rounds.Redeemable(round, us.Address, state.TokenX, state.TokenY)
		if err != nil {
			return RedeemPlan{}, err
		}
		plan.Entry = entry
		plan.Estimated = true
	}
	if plan.Entry.IsZero() {
		return RedeemPlan{}, &model.AmountError{Err: model.ErrNonPositiveAmount, Field: fmt.Sprintf("round %d redeemable", round)}
	}

	if recipient == (common.Address{}) {
		recipient = us.Address
	}
	if plan.Call, err = contracts.PackRedeem(vault, round, recipient); err != nil {
		return RedeemPlan{}, err
	}
	return plan, nil
}

func requireUser(state contracts.VaultState) (*contracts.UserState, error) {
	if state.User == nil {
		return nil, fmt.Errorf("user address is required")
	}
	return state.User, nil
}

func formatShares(shares *big.Int, state contracts.VaultState) string {
	if shares == nil {
		shares = new(big.Int)
	}
	return amount.TrimDecimalString(amount.ToDecimalString(shares, state.Snapshot.ShareDecimals))
}
