package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultScope/internal/model"
	"vaultScope/internal/rebalance"
)

// Call is unsigned calldata for an external signer to submit.
type Call struct {
	To     common.Address `json:"to"`
	Method string         `json:"method"`
	Data   hexutil.Bytes  `json:"data"`
}

// PackDeposit builds vault.deposit from a plan.
func PackDeposit(vault common.Address, plan rebalance.DepositPlan) (Call, error) {
	if plan.AmountX.IsZero() && plan.AmountY.IsZero() {
		return Call{}, model.NewAmountError(model.ErrNonPositiveAmount, "deposit", new(big.Int), nil)
	}
	minShares := plan.MinShares
	if minShares == nil {
		minShares = new(big.Int)
	}
	return pack(vaultABI, vault, "deposit", plan.AmountX.Raw(), plan.AmountY.Raw(), minShares)
}

// PackQueueWithdrawal builds vault.queueWithdrawal.
func PackQueueWithdrawal(vault common.Address, shares *big.Int, recipient common.Address) (Call, error) {
	if shares == nil || shares.Sign() <= 0 {
		return Call{}, model.NewAmountError(model.ErrNonPositiveAmount, "shares", shares, nil)
	}
	return pack(vaultABI, vault, "queueWithdrawal", shares, recipient)
}

// PackCancelQueuedWithdrawal builds vault.cancelQueuedWithdrawal for the current round.
func PackCancelQueuedWithdrawal(vault common.Address, shares *big.Int) (Call, error) {
	if shares == nil || shares.Sign() <= 0 {
		return Call{}, model.NewAmountError(model.ErrNonPositiveAmount, "shares", shares, nil)
	}
	return pack(vaultABI, vault, "cancelQueuedWithdrawal", shares)
}

// PackRedeem builds vault.redeemQueuedWithdrawal for a closed round.
func PackRedeem(vault common.Address, round uint64, recipient common.Address) (Call, error) {
	return pack(vaultABI, vault, "redeemQueuedWithdrawal", new(big.Int).SetUint64(round), recipient)
}

// PackRebalance builds strategy.rebalance from an accepted proposal and the
// amounts to deploy.
func PackRebalance(strategy common.Address, proposal rebalance.RangeProposal, amountX, amountY *big.Int) (Call, error) {
	dist, err := proposal.EncodedDistribution()
	if err != nil {
		return Call{}, err
	}
	if amountX == nil {
		amountX = new(big.Int)
	}
	if amountY == nil {
		amountY = new(big.Int)
	}
	return pack(strategyABI, strategy, "rebalance",
		big.NewInt(int64(proposal.Lower)),
		big.NewInt(int64(proposal.Upper)),
		big.NewInt(int64(proposal.DesiredActive)),
		new(big.Int).SetUint64(uint64(proposal.Slippage)),
		amountX,
		amountY,
		dist,
	)
}

func pack(l *lazyABI, to common.Address, method string, args ...interface{}) (Call, error) {
	parsed, err := l.get()
	if err != nil {
		return Call{}, fmt.Errorf("parse abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Call{To: to, Method: method, Data: data}, nil
}
