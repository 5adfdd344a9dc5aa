package reflection

import (
	"fmt"
	"sort"

	"agentfolio/internal/models"
)

// PricePoint is one realized close from the lookforward window.
type PricePoint struct {
	Date  string
	Close float64
}

// scoreSignals evaluates each trade signal against realized future prices,
// using the cost basis frozen in the account snapshot at decision time.
// This is not a backtest: the window holds prices that actually happened
// after the decision.
func scoreSignals(signals []models.TradeSignal, window []PricePoint, snapshot models.AccountState) []models.SignalOutcome {
	if len(signals) == 0 || len(window) == 0 {
		return nil
	}

	sorted := make([]PricePoint, len(window))
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	outcomes := make([]models.SignalOutcome, 0, len(signals))
	for _, sig := range signals {
		matching := pointsFrom(sorted, sig.Date)
		if len(matching) == 0 {
			continue
		}

		decisionPrice := sig.ReferencePrice
		if decisionPrice <= 0 {
			decisionPrice = matching[0].Close
		}
		// With a single row there is no forward data yet; the future price
		// collapses onto the decision price.
		futurePrice := decisionPrice
		if len(matching) > 1 {
			futurePrice = matching[len(matching)-1].Close
		}

		pos := snapshot.Position(sig.Ticker)
		avgCost := decisionPrice
		if pos.Shares > 0 {
			avgCost = pos.AvgCost
		}

		outcome := models.SignalOutcome{
			Date:          sig.Date,
			Action:        sig.Action,
			DecisionPrice: decisionPrice,
			FuturePrice:   futurePrice,
			AvgCost:       avgCost,
			Quantity:      sig.Quantity,
		}

		switch sig.Action {
		case models.ActionBuy:
			outcome.AvgCost = decisionPrice
			outcome.PnL = (futurePrice - decisionPrice) * float64(sig.Quantity)
			if decisionPrice > 0 {
				outcome.PnLPct = (futurePrice - decisionPrice) / decisionPrice
			}
			outcome.PnLType = unrealizedLabel(outcome.PnL)

		case models.ActionSell:
			// Primary metric: standard realized P&L against the snapshot
			// cost basis. The timing score is a secondary signal: positive
			// when the price fell after the sale, negative when it rallied.
			outcome.RealizedPnL = (decisionPrice - avgCost) * float64(sig.Quantity)
			outcome.OpportunityCost = (futurePrice - decisionPrice) * float64(sig.Quantity)
			outcome.SellTimingScore = -outcome.OpportunityCost
			outcome.PnL = outcome.RealizedPnL
			if avgCost > 0 {
				outcome.PnLPct = (decisionPrice - avgCost) / avgCost
			}
			if outcome.PnL > 0 {
				outcome.PnLType = models.PnLRealizedGain
			} else {
				outcome.PnLType = models.PnLRealizedLoss
			}

		default: // HOLD
			if pos.Shares > 0 {
				outcome.Quantity = pos.Shares
				outcome.PnL = (futurePrice - avgCost) * float64(pos.Shares)
				if avgCost > 0 {
					outcome.PnLPct = (futurePrice - avgCost) / avgCost
				}
				outcome.PnLType = unrealizedLabel(outcome.PnL)
			} else {
				outcome.PnLType = models.PnLNoPosition
			}
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func pointsFrom(sorted []PricePoint, date string) []PricePoint {
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Date >= date })
	return sorted[idx:]
}

func unrealizedLabel(pnl float64) string {
	if pnl > 0 {
		return models.PnLUnrealizedGain
	}
	return models.PnLUnrealizedLoss
}

// actualReturn condenses a set of outcomes into one return figure: the mean
// of the per-signal percentage returns. The reference implementation divided
// summed P&L by a hard-coded account size; the mean keeps the figure
// scale-free.
func actualReturn(outcomes []models.SignalOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	total := 0.0
	for _, o := range outcomes {
		total += o.PnLPct
	}
	return total / float64(len(outcomes))
}

// lessonFor maps a realized return onto a qualitative label using the
// configured thresholds.
func lessonFor(ret, successThreshold, failureThreshold float64) string {
	switch {
	case ret > successThreshold:
		return fmt.Sprintf("decision succeeded: %.2f%% return", ret*100)
	case ret < failureThreshold:
		return fmt.Sprintf("decision failed: %.2f%% loss", -ret*100)
	default:
		return fmt.Sprintf("decision was mediocre: %.2f%% return", ret*100)
	}
}
