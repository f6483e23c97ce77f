package console

import (
	"fmt"
	"io"
	"strings"

	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
	"vaultScope/internal/pricing"
)

// WriteValuation prints a snapshot valuation.
func WriteValuation(w io.Writer, state contracts.VaultState, v ops.Valuation) {
	m := v.Metrics
	fmt.Fprintf(w, "Vault %s @ block %d\n", v.Vault, v.BlockNumber)
	fmt.Fprintf(w, "  balances:        %s, %s\n", state.Snapshot.BalanceX, state.Snapshot.BalanceY)
	fmt.Fprintf(w, "  price per share: %s %s, %s %s\n",
		m.PricePerShareX.String(), state.TokenX.Label(), m.PricePerShareY.String(), state.TokenY.Label())
	writeQuote(w, v.PriceX, m.PriceXStale)
	writeQuote(w, v.PriceY, m.PriceYStale)
	fmt.Fprintf(w, "  TVL:             $%s ($%s + $%s)\n", m.TotalTVLUSD.StringFixed(2), m.TVLXUSD.StringFixed(2), m.TVLYUSD.StringFixed(2))
	fmt.Fprintf(w, "  AUM fee / day:   $%s\n", v.AUMFeeDailyUSD.StringFixed(2))
	if v.OraclePrice != "" {
		fmt.Fprintf(w, "  oracle price:    %s %s per %s\n", v.OraclePrice, state.TokenY.Label(), state.TokenX.Label())
	}
	if v.Oracle != nil {
		if v.Oracle.Healthy() {
			fmt.Fprintln(w, "  oracle:          healthy")
		} else {
			fmt.Fprintf(w, "  oracle:          %s\n", strings.Join(v.Oracle.Problems(), "; "))
		}
	}
	if v.User != "" {
		fmt.Fprintf(w, "User %s\n", v.User)
		fmt.Fprintf(w, "  value:           $%s\n", m.UserValueUSD.StringFixed(2))
		fmt.Fprintf(w, "  earnings:        $%s\n", m.EarningsUSD.StringFixed(2))
		fmt.Fprintf(w, "  ROI:             %s%%\n", m.ROI.StringFixed(2))
	}
}

func writeQuote(w io.Writer, q pricing.Quote, stale bool) {
	flag := ""
	if stale {
		flag = " (stale)"
	}
	fmt.Fprintf(w, "  %-16s $%s via %s%s\n", q.Symbol+":", q.USD.String(), q.Source, flag)
}

// WriteQueue prints a withdrawal queue report.
func WriteQueue(w io.Writer, r ops.QueueReport) {
	fmt.Fprintf(w, "User %s @ block %d\n", r.User, r.BlockNumber)
	fmt.Fprintf(w, "  shares:    %s\n", r.Shares)
	fmt.Fprintf(w, "  queued:    %s\n", r.Queued)
	fmt.Fprintf(w, "  available: %s\n", r.Available)
	fmt.Fprintf(w, "  current round: %d\n", r.CurrentRound)
	for _, round := range r.Rounds {
		if round.UserQueued == "0" {
			continue
		}
		fmt.Fprintf(w, "  round %d [%s]: %s queued\n", round.Index, round.Status, round.UserQueued)
	}
	for _, entry := range r.Redeemable {
		fmt.Fprintf(w, "  redeemable round %d: %s, %s\n", entry.Round, entry.AmountX, entry.AmountY)
	}
	for _, entry := range r.Preview {
		fmt.Fprintf(w, "  preview round %d:    %s, %s\n", entry.Round, entry.AmountX, entry.AmountY)
	}
}

// WriteSharePlan prints a queue or cancel plan.
func WriteSharePlan(w io.Writer, title string, p ops.SharePlan) {
	fmt.Fprintf(w, "%s: %s shares in round %d\n", title, p.Display, p.Round)
	writeCall(w, p.Call)
}

// WriteRedeem prints a redeem plan.
func WriteRedeem(w io.Writer, p ops.RedeemPlan) {
	note := ""
	if p.Estimated {
		note = " (local estimate)"
	}
	fmt.Fprintf(w, "Redeem round %d: %s, %s%s\n", p.Entry.Round, p.Entry.AmountX, p.Entry.AmountY, note)
	writeCall(w, p.Call)
}

// WriteDeposit prints a deposit plan.
func WriteDeposit(w io.Writer, r ops.DepositReport) {
	fmt.Fprintf(w, "Deposit %s, %s\n", r.Plan.AmountX, r.Plan.AmountY)
	fmt.Fprintf(w, "  left in wallet:  %s, %s\n", r.Plan.ReserveX, r.Plan.ReserveY)
	fmt.Fprintf(w, "  expected shares: %s\n", r.ExpectedShares)
	fmt.Fprintf(w, "  min shares:      %s\n", r.Plan.MinShares)
	writeCall(w, r.Call)
}

// WriteRebalance prints a rebalance proposal.
func WriteRebalance(w io.Writer, r ops.RebalanceReport) {
	fmt.Fprintf(w, "%s market @ block %d, active %d\n", r.Market.Kind, r.BlockNumber, r.Market.ActivePoint)
	if r.CurrentRange != nil {
		fmt.Fprintf(w, "  current range:  [%d, %d]\n", r.CurrentRange.Lower, r.CurrentRange.Upper)
	}
	fmt.Fprintf(w, "  proposed range: [%d, %d] (%d steps)\n", r.Range.Lower, r.Range.Upper, r.Range.Steps())
	fmt.Fprintf(w, "  prices:         %s / %s / %s\n", r.Prices.Lower.String(), r.Prices.Active.String(), r.Prices.Upper.String())
	if r.Ratio != nil {
		fmt.Fprintf(w, "  value ratio:    %s\n", r.Ratio)
	} else if r.RatioError != "" {
		fmt.Fprintf(w, "  value ratio:    unavailable (%s)\n", r.RatioError)
	}
	fmt.Fprintf(w, "  deploy:         %s, %s\n", r.Plan.AmountX, r.Plan.AmountY)
	fmt.Fprintf(w, "  keep idle:      %s, %s\n", r.Plan.ReserveX, r.Plan.ReserveY)
	fmt.Fprintf(w, "  desired active: %d, slippage %d\n", r.Proposal.DesiredActive, r.Proposal.Slippage)
	writeCall(w, r.Call)
}

func writeCall(w io.Writer, call contracts.Call) {
	fmt.Fprintf(w, "  call %s on %s\n  data %s\n", call.Method, call.To.Hex(), call.Data.String())
}
