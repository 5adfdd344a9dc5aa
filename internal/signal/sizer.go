package signal

import (
	"math"

	"agentfolio/internal/models"
)

// Recommendation is a bounded, affordable trade quantity together with the
// budget figures that produced it.
type Recommendation struct {
	Action           models.Action
	Quantity         int
	ReferencePrice   float64
	TradeValue       float64
	UsableCash       float64
	AllocationBudget float64
}

// Size derives a ledger-safe quantity for the proposed action.
//
// The allocation budget is the cash above the minimum reserve scaled by the
// account's allocation cap. BUY sizes to the largest affordable share count
// within that budget (with a one-share guarantee when the budget covers the
// price but floor division rounds to zero); SELL defaults to full
// liquidation. A quantity hint from the decision text overrides the
// computed value but is clamped to the same bounds. The result is never
// negative and never raises: an unknown price simply yields a zero BUY.
func Size(state models.AccountState, ticker string, action models.Action, price float64, hint *int) Recommendation {
	allocationPct := clamp01(state.MaxAllocationPct)
	usableCash := math.Max(state.CashBalance-state.MinCashReserve, 0)
	budget := usableCash * allocationPct
	held := state.Position(ticker).Shares

	affordable := 0
	if price > 0 {
		affordable = int(budget / price)
	}

	var quantity int
	switch action {
	case models.ActionBuy:
		quantity = affordable
		if quantity == 0 && price > 0 && budget >= price {
			quantity = 1
		}
	case models.ActionSell:
		quantity = held
	default:
		quantity = 0
	}

	if hint != nil && *hint >= 0 {
		quantity = *hint
		switch action {
		case models.ActionBuy:
			if price > 0 && quantity > affordable {
				quantity = affordable
			}
			if price <= 0 {
				quantity = 0
			}
		case models.ActionSell:
			if quantity > held {
				quantity = held
			}
		default:
			quantity = 0
		}
	}

	if quantity < 0 {
		quantity = 0
	}

	rec := Recommendation{
		Action:           action,
		Quantity:         quantity,
		ReferencePrice:   price,
		UsableCash:       usableCash,
		AllocationBudget: budget,
	}
	if price > 0 {
		rec.TradeValue = float64(quantity) * price
	}
	return rec
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
