package ops

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/amount"
	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/rebalance"
)

// DefaultDepositSlippageBps floors the previewed shares by 0.5%.
const DefaultDepositSlippageBps = 50

// SharePreviewer asks the vault how many shares a deposit mints.
// *contracts.Reader satisfies it.
type SharePreviewer interface {
	PreviewShares(ctx context.Context, block uint64, amountX, amountY *big.Int) (*big.Int, error)
}

// DepositRequest is a user deposit as typed: amounts in any ParseAmount form.
type DepositRequest struct {
	AmountX     string
	AmountY     string
	SlippageBps uint32
}

// DepositReport is a checked user deposit and its calldata.
type DepositReport struct {
	Plan           rebalance.DepositPlan `json:"plan"`
	ExpectedShares string                `json:"expectedShares"`
	Call           contracts.Call        `json:"call"`
}

// PlanDeposit validates the amounts against the user's wallet and allowance,
// previews the minted shares at the same block and floors them by
// SlippageBps for minShares.
func PlanDeposit(ctx context.Context, previewer SharePreviewer, vault common.Address, state contracts.VaultState, req DepositRequest) (DepositReport, error) {
	us, err := requireUser(state)
	if err != nil {
		return DepositReport{}, err
	}
	x, err := parseSide(req.AmountX, us.WalletX, "amount x")
	if err != nil {
		return DepositReport{}, err
	}
	y, err := parseSide(req.AmountY, us.WalletY, "amount y")
	if err != nil {
		return DepositReport{}, err
	}
	if x.Sign() == 0 && y.Sign() == 0 {
		return DepositReport{}, &model.AmountError{Err: model.ErrNonPositiveAmount, Field: "deposit", Input: req.AmountX + "/" + req.AmountY}
	}
	if err := amount.CheckAllowance(state.TokenX.Label(), x, us.AllowanceX); err != nil {
		return DepositReport{}, err
	}
	if err := amount.CheckAllowance(state.TokenY.Label(), y, us.AllowanceY); err != nil {
		return DepositReport{}, err
	}

	plan := rebalance.DepositPlan{MinShares: new(big.Int)}
	if plan.AmountX, err = us.WalletX.WithRaw(x); err != nil {
		return DepositReport{}, err
	}
	if plan.AmountY, err = us.WalletY.WithRaw(y); err != nil {
		return DepositReport{}, err
	}
	if plan.ReserveX, err = us.WalletX.Sub(plan.AmountX); err != nil {
		return DepositReport{}, err
	}
	if plan.ReserveY, err = us.WalletY.Sub(plan.AmountY); err != nil {
		return DepositReport{}, err
	}

	expected, err := previewer.PreviewShares(ctx, state.BlockNumber, x, y)
	if err != nil {
		return DepositReport{}, err
	}
	if plan, err = plan.WithMinShares(expected, req.SlippageBps); err != nil {
		return DepositReport{}, err
	}
	call, err := contracts.PackDeposit(vault, plan)
	if err != nil {
		return DepositReport{}, err
	}
	return DepositReport{Plan: plan, ExpectedShares: formatShares(expected, state), Call: call}, nil
}

// parseSide treats an empty input as zero so one-sided deposits need no flag.
func parseSide(input string, wallet amount.TokenAmount, field string) (*big.Int, error) {
	if input == "" {
		return new(big.Int), nil
	}
	return amount.ParseAmountWithOptions(input, wallet.Decimals(), wallet.Raw(), amount.ParseOptions{Field: field, AllowZero: true})
}
