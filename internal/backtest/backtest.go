// Package backtest replays a chronological signal sequence against
// historical closes on a synthetic single-ticker ledger. Its output is
// illustrative reporting only and must never feed the reflection loop,
// which scores decisions against realized future prices instead.
package backtest

import (
	"agentfolio/internal/models"
)

// Signal is one replayed decision step.
type Signal struct {
	Date     string        `json:"date"`
	Action   models.Action `json:"action"`
	Quantity int           `json:"quantity"`
}

// Step is one row of the replay trace.
type Step struct {
	Date          string        `json:"date"`
	Action        models.Action `json:"action"`
	Quantity      int           `json:"quantity"`
	Price         float64       `json:"price"`
	PriceMissing  bool          `json:"price_missing,omitempty"`
	Executed      bool          `json:"executed"`
	Cash          float64       `json:"cash"`
	Shares        int           `json:"position"`
	AvgCost       float64       `json:"avg_cost"`
	TotalValue    float64       `json:"total_value"`
	RealizedPnL   float64       `json:"realized_pnl"`
	UnrealizedPnL float64       `json:"unrealized_pnl"`
	TotalPnL      float64       `json:"total_pnl"`
}

// Summary aggregates the whole replay. TotalTrades counts only executed
// BUY/SELL steps; skipped signals appear in the trace with Executed false.
type Summary struct {
	FinalValue         float64 `json:"final_value"`
	TotalReturn        float64 `json:"total_return"`
	TotalRealizedPnL   float64 `json:"total_realized_pnl"`
	FinalUnrealizedPnL float64 `json:"final_unrealized_pnl"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
}

// Run replays signals in the order given against the date->close series.
//
// A missing price carries the previous total-value snapshot forward with
// zero P&L for that row. An unaffordable BUY is skipped without mutation. A
// SELL larger than the held position is treated as a stale signal and
// skipped entirely rather than partially filled. Every step marks the open
// position to the current close.
func Run(signals []Signal, prices map[string]float64, initialCash float64) ([]Step, Summary) {
	if len(signals) == 0 {
		return nil, Summary{FinalValue: initialCash}
	}

	cash := initialCash
	shares := 0
	avgCost := 0.0
	lastValue := initialCash

	trace := make([]Step, 0, len(signals))
	curve := make([]float64, 0, len(signals))
	summary := Summary{}

	for _, sig := range signals {
		step := Step{Date: sig.Date, Action: sig.Action, Quantity: sig.Quantity}

		price, ok := prices[sig.Date]
		if !ok || price <= 0 {
			step.PriceMissing = true
			step.Cash = cash
			step.Shares = shares
			step.AvgCost = avgCost
			step.TotalValue = lastValue
			summary.FinalUnrealizedPnL = 0
			trace = append(trace, step)
			curve = append(curve, lastValue)
			continue
		}

		switch {
		case sig.Action == models.ActionBuy && sig.Quantity > 0:
			cost := price * float64(sig.Quantity)
			if cash >= cost {
				avgCost = (avgCost*float64(shares) + cost) / float64(shares+sig.Quantity)
				cash -= cost
				shares += sig.Quantity
				step.Executed = true
			}
		case sig.Action == models.ActionSell && sig.Quantity > 0:
			if shares >= sig.Quantity {
				step.RealizedPnL = (price - avgCost) * float64(sig.Quantity)
				cash += price * float64(sig.Quantity)
				shares -= sig.Quantity
				if shares == 0 {
					avgCost = 0
				}
				step.Executed = true
			}
		}

		if shares > 0 {
			step.UnrealizedPnL = (price - avgCost) * float64(shares)
		}

		step.Price = price
		step.Cash = cash
		step.Shares = shares
		step.AvgCost = avgCost
		step.TotalValue = cash + float64(shares)*price
		step.TotalPnL = step.RealizedPnL + step.UnrealizedPnL
		lastValue = step.TotalValue

		if step.Executed {
			summary.TotalTrades++
		}
		summary.TotalRealizedPnL += step.RealizedPnL
		if step.RealizedPnL > 0 {
			summary.WinningTrades++
		} else if step.RealizedPnL < 0 {
			summary.LosingTrades++
		}
		summary.FinalUnrealizedPnL = step.UnrealizedPnL

		trace = append(trace, step)
		curve = append(curve, step.TotalValue)
	}

	summary.FinalValue = curve[len(curve)-1]
	if initialCash > 0 {
		summary.TotalReturn = (summary.FinalValue - initialCash) / initialCash
	}
	summary.MaxDrawdown = MaxDrawdown(curve)

	return trace, summary
}

// MaxDrawdown reports the largest peak-to-trough decline of the value
// curve as a fraction of the running peak; 0 for an empty curve.
func MaxDrawdown(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0]
	maxDD := 0.0
	for _, value := range curve {
		if value > peak {
			peak = value
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - value) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
