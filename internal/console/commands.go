package console

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/config"
	"vaultScope/internal/ops"
)

func runSnapshot(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	if c.opts.Quotes == nil {
		return fmt.Errorf("no price source configured")
	}
	now := c.opts.Now()
	in, err := c.opts.Quotes(ctx, state, now)
	if err != nil {
		return err
	}
	in.Now = now
	v, err := ops.Valuate(c.opts.Vault, state, in)
	if err != nil {
		return err
	}
	WriteValuation(c.out, state, v)
	return c.record("snapshot", v)
}

func runQueueStatus(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	report, err := ops.QueueStatus(state)
	if err != nil {
		return err
	}
	WriteQueue(c.out, report)
	return c.record("queue", report)
}

func runQueueWithdrawal(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	input, err := c.ask("Shares to queue (amount, %, max)")
	if err != nil {
		return err
	}
	recipient, err := c.ask("Recipient (empty for self)")
	if err != nil {
		return err
	}
	to, err := config.ParseAddress("recipient", recipient)
	if err != nil {
		return err
	}
	plan, err := ops.PlanWithdrawal(c.opts.Vault, state, input, to)
	if err != nil {
		return err
	}
	WriteSharePlan(c.out, "Queue withdrawal", plan)
	return c.record("withdraw", plan)
}

func runCancel(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	input, err := c.ask("Shares to cancel (amount, %, max)")
	if err != nil {
		return err
	}
	plan, err := ops.PlanCancel(c.opts.Vault, state, input)
	if err != nil {
		return err
	}
	WriteSharePlan(c.out, "Cancel queued withdrawal", plan)
	return c.record("cancel", plan)
}

func runRedeem(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	round, err := c.askUint("Round")
	if err != nil {
		return err
	}
	plan, err := ops.PlanRedeem(c.opts.Vault, state, round, common.Address{})
	if err != nil {
		return err
	}
	WriteRedeem(c.out, plan)
	return c.record("redeem", plan)
}

func runDeposit(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	x, err := c.ask(fmt.Sprintf("Amount %s (amount, %%, max, empty for none)", state.TokenX.Label()))
	if err != nil {
		return err
	}
	y, err := c.ask(fmt.Sprintf("Amount %s (amount, %%, max, empty for none)", state.TokenY.Label()))
	if err != nil {
		return err
	}
	report, err := ops.PlanDeposit(ctx, c.backend, c.opts.Vault, state, ops.DepositRequest{
		AmountX:     x,
		AmountY:     y,
		SlippageBps: ops.DefaultDepositSlippageBps,
	})
	if err != nil {
		return err
	}
	WriteDeposit(c.out, report)
	return c.record("deposit", report)
}

func runRebalance(ctx context.Context, c *Console) error {
	state, err := c.backend.LoadState(ctx)
	if err != nil {
		return err
	}
	report, err := ops.PlanRebalance(state, c.opts.Rebalance)
	if err != nil {
		return err
	}
	WriteRebalance(c.out, report)
	return c.record("rebalance", report)
}
