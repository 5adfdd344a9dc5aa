package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfolio/internal/models"
)

func TestRunEmptySignals(t *testing.T) {
	trace, summary := Run(nil, nil, 100000)
	assert.Empty(t, trace)
	assert.InDelta(t, 100000.0, summary.FinalValue, 1e-9)
	assert.InDelta(t, 0.0, summary.TotalReturn, 1e-9)
	assert.InDelta(t, 0.0, summary.MaxDrawdown, 1e-9)
}

func TestRunBuyThenSellRealizesPnL(t *testing.T) {
	signals := []Signal{
		{Date: "2024-01-02", Action: models.ActionBuy, Quantity: 10},
		{Date: "2024-01-03", Action: models.ActionHold},
		{Date: "2024-01-04", Action: models.ActionSell, Quantity: 4},
	}
	prices := map[string]float64{
		"2024-01-02": 100,
		"2024-01-03": 110,
		"2024-01-04": 120,
	}

	trace, summary := Run(signals, prices, 10000)
	require.Len(t, trace, 3)

	assert.True(t, trace[0].Executed)
	assert.InDelta(t, 100.0, trace[0].AvgCost, 1e-9)

	// Holding 10 @ 100 marked at 110.
	assert.InDelta(t, 100.0, trace[1].UnrealizedPnL, 1e-9)

	// Partial sell keeps the cost basis at 100.
	assert.InDelta(t, 80.0, trace[2].RealizedPnL, 1e-9)
	assert.Equal(t, 6, trace[2].Shares)
	assert.InDelta(t, 100.0, trace[2].AvgCost, 1e-9)

	assert.Equal(t, 2, summary.TotalTrades)
	assert.Equal(t, 1, summary.WinningTrades)
	assert.Equal(t, 0, summary.LosingTrades)
	assert.InDelta(t, 80.0, summary.TotalRealizedPnL, 1e-9)
	assert.InDelta(t, 120.0, summary.FinalUnrealizedPnL, 1e-9)
}

func TestRunUnaffordableBuySkipped(t *testing.T) {
	signals := []Signal{{Date: "2024-01-02", Action: models.ActionBuy, Quantity: 1000}}
	prices := map[string]float64{"2024-01-02": 500}

	trace, summary := Run(signals, prices, 1000)
	require.Len(t, trace, 1)
	assert.False(t, trace[0].Executed)
	assert.Equal(t, 0, trace[0].Shares)
	assert.InDelta(t, 1000.0, trace[0].Cash, 1e-9)
	assert.Equal(t, 0, summary.TotalTrades)
}

func TestRunOversizedSellSkippedEntirely(t *testing.T) {
	signals := []Signal{
		{Date: "2024-01-02", Action: models.ActionBuy, Quantity: 5},
		{Date: "2024-01-03", Action: models.ActionSell, Quantity: 50},
	}
	prices := map[string]float64{"2024-01-02": 10, "2024-01-03": 12}

	trace, summary := Run(signals, prices, 1000)
	require.Len(t, trace, 2)
	assert.False(t, trace[1].Executed, "stale sells are skipped, not partially filled")
	assert.Equal(t, 5, trace[1].Shares)
	assert.GreaterOrEqual(t, trace[1].Cash, 0.0)
	assert.Equal(t, 1, summary.TotalTrades)
}

func TestRunMissingPriceCarriesValueForward(t *testing.T) {
	signals := []Signal{
		{Date: "2024-01-02", Action: models.ActionBuy, Quantity: 10},
		{Date: "2024-01-03", Action: models.ActionHold},
		{Date: "2024-01-04", Action: models.ActionHold},
	}
	prices := map[string]float64{"2024-01-02": 100, "2024-01-04": 105}

	trace, _ := Run(signals, prices, 10000)
	require.Len(t, trace, 3)

	assert.True(t, trace[1].PriceMissing)
	assert.InDelta(t, trace[0].TotalValue, trace[1].TotalValue, 1e-9)
	assert.InDelta(t, 0.0, trace[1].RealizedPnL, 1e-9)
	assert.InDelta(t, 0.0, trace[1].UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10000+10*(105-100), trace[2].TotalValue, 1e-9)
}

func TestMaxDrawdown(t *testing.T) {
	curve := []float64{10000, 12000, 11000, 13000, 9000, 10000}
	assert.InDelta(t, 4000.0/13000.0, MaxDrawdown(curve), 1e-6)

	assert.InDelta(t, 0.0, MaxDrawdown(nil), 1e-9)
	assert.InDelta(t, 0.0, MaxDrawdown([]float64{0, 0}), 1e-9)
	assert.InDelta(t, 0.0, MaxDrawdown([]float64{5, 6, 7}), 1e-9)
}
