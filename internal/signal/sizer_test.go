package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"agentfolio/internal/models"
)

func newAccount() models.AccountState {
	state := models.NewAccountState(10000, 0.5, 1000)
	return state
}

func TestSizeBuyBudget(t *testing.T) {
	rec := Size(newAccount(), "AAPL", models.ActionBuy, 50, nil)

	assert.InDelta(t, 9000.0, rec.UsableCash, 1e-9)
	assert.InDelta(t, 4500.0, rec.AllocationBudget, 1e-9)
	assert.Equal(t, 90, rec.Quantity)
	assert.InDelta(t, 4500.0, rec.TradeValue, 1e-9)
}

func TestSizeBuyUnknownPrice(t *testing.T) {
	rec := Size(newAccount(), "AAPL", models.ActionBuy, 0, nil)
	assert.Equal(t, 0, rec.Quantity)

	hint := 40
	rec = Size(newAccount(), "AAPL", models.ActionBuy, 0, &hint)
	assert.Equal(t, 0, rec.Quantity, "a hint cannot make an unpriced buy sizable")
}

func TestSizeBuyHintClamped(t *testing.T) {
	hint := 500
	rec := Size(newAccount(), "AAPL", models.ActionBuy, 50, &hint)
	assert.Equal(t, 90, rec.Quantity)

	hint = 10
	rec = Size(newAccount(), "AAPL", models.ActionBuy, 50, &hint)
	assert.Equal(t, 10, rec.Quantity)
}

func TestSizeSellDefaultsToFullLiquidation(t *testing.T) {
	state := newAccount()
	state.Positions["AAPL"] = models.Position{Shares: 30, AvgCost: 45}

	rec := Size(state, "AAPL", models.ActionSell, 50, nil)
	assert.Equal(t, 30, rec.Quantity)

	hint := 100
	rec = Size(state, "AAPL", models.ActionSell, 50, &hint)
	assert.Equal(t, 30, rec.Quantity, "sell hint clamps to held shares")

	hint = 12
	rec = Size(state, "AAPL", models.ActionSell, 50, &hint)
	assert.Equal(t, 12, rec.Quantity)
}

func TestSizeHoldAlwaysZero(t *testing.T) {
	hint := 7
	rec := Size(newAccount(), "AAPL", models.ActionHold, 50, &hint)
	assert.Equal(t, 0, rec.Quantity)
}

func TestSizeNegativeHintIgnored(t *testing.T) {
	hint := -5
	rec := Size(newAccount(), "AAPL", models.ActionBuy, 50, &hint)
	assert.Equal(t, 90, rec.Quantity, "negative hints fall back to the computed quantity")
}

func TestSizeAllocationPctClamped(t *testing.T) {
	state := newAccount()
	state.MaxAllocationPct = 2.5

	rec := Size(state, "AAPL", models.ActionBuy, 50, nil)
	assert.InDelta(t, 9000.0, rec.AllocationBudget, 1e-9, "allocation pct clamps to [0,1]")
	assert.Equal(t, 180, rec.Quantity)
}

func TestSizeReserveExceedsCash(t *testing.T) {
	state := models.NewAccountState(500, 0.5, 1000)

	rec := Size(state, "AAPL", models.ActionBuy, 50, nil)
	assert.InDelta(t, 0.0, rec.UsableCash, 1e-9)
	assert.Equal(t, 0, rec.Quantity)
}
