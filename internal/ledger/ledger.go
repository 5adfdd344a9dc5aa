// Package ledger applies executed trades to an account snapshot with
// weighted cost-basis accounting. It is pure: every call returns a new
// AccountState and never mutates its input.
package ledger

import (
	"errors"

	"agentfolio/internal/models"
)

// ErrInsufficientCash is returned when a BUY would overdraw the account.
// The position sizer should have prevented this; the ledger skips the trade
// and leaves the returned state identical to the input.
var ErrInsufficientCash = errors.New("insufficient cash for buy")

// ApplyTrade returns a new account state with the trade applied.
//
// BUY debits cash and recomputes the volume-weighted average cost. SELL
// credits cash and reduces shares, clamping the quantity to the current
// holding so the account can never go short; the average cost of the
// remaining shares is unchanged by a sale. HOLD, zero quantity, or a
// non-positive price are no-ops that still return a fresh copy.
//
// After any call cash and every position's shares are >= 0, and
// avg_cost == 0 exactly when shares == 0 (zero-share positions are removed
// from the map entirely).
func ApplyTrade(state models.AccountState, ticker string, action models.Action, quantity int, price float64) (models.AccountState, error) {
	next := state.Clone()

	if !action.IsTrade() || quantity <= 0 || price <= 0 {
		return next, nil
	}

	pos := next.Position(ticker)

	switch action {
	case models.ActionBuy:
		cost := float64(quantity) * price
		if next.CashBalance < cost {
			return next, ErrInsufficientCash
		}
		next.CashBalance -= cost
		newShares := pos.Shares + quantity
		newAvgCost := (float64(pos.Shares)*pos.AvgCost + cost) / float64(newShares)
		next.Positions[ticker] = models.Position{Shares: newShares, AvgCost: newAvgCost}

	case models.ActionSell:
		if quantity > pos.Shares {
			quantity = pos.Shares
		}
		if quantity == 0 {
			return next, nil
		}
		next.CashBalance += float64(quantity) * price
		remaining := pos.Shares - quantity
		if remaining > 0 {
			next.Positions[ticker] = models.Position{Shares: remaining, AvgCost: pos.AvgCost}
		} else {
			delete(next.Positions, ticker)
		}
	}

	return next, nil
}
