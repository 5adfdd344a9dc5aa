package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentfolio/internal/models"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "trades.csv"))
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	j := testJournal(t)

	entry, err := j.Append(Entry{
		Ticker:         "AAPL",
		Date:           "2024-01-02",
		Action:         models.ActionBuy,
		Quantity:       10,
		ReferencePrice: 100,
		TradeValue:     1000,
		Executed:       true,
		CashBefore:     10000,
		CashAfter:      9000,
		SharesAfter:    10,
		AvgCostAfter:   100,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	j := testJournal(t)

	_, err := j.Append(Entry{Ticker: "AAPL", Date: "2024-01-02", Action: models.ActionBuy, Quantity: 5, Executed: true})
	require.NoError(t, err)
	_, err = j.Append(Entry{Ticker: "AAPL", Date: "2024-01-03", Action: models.ActionSell, Quantity: 5, Executed: true})
	require.NoError(t, err)

	data, err := os.ReadFile(j.path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "entry_id"))

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestReadAllRoundTrip(t *testing.T) {
	j := testJournal(t)

	ts := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	_, err := j.Append(Entry{
		ID:             "entry-1",
		Timestamp:      ts,
		Ticker:         "MSFT",
		Date:           "2024-01-02",
		Action:         models.ActionSell,
		Quantity:       4,
		ReferencePrice: 250.5,
		TradeValue:     1002,
		Executed:       true,
		CashBefore:     500,
		CashAfter:      1502,
		SharesBefore:   10,
		SharesAfter:    6,
		AvgCostBefore:  200,
		AvgCostAfter:   200,
		Notes:          "partial exit, basis unchanged",
	})
	require.NoError(t, err)

	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "entry-1", got.ID)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.Equal(t, models.ActionSell, got.Action)
	assert.Equal(t, 4, got.Quantity)
	assert.InDelta(t, 250.5, got.ReferencePrice, 1e-9)
	assert.Equal(t, 10, got.SharesBefore)
	assert.Equal(t, 6, got.SharesAfter)
	assert.InDelta(t, 200.0, got.AvgCostAfter, 1e-9)
	assert.Equal(t, "partial exit, basis unchanged", got.Notes)
}

func TestReadAllMissingFile(t *testing.T) {
	entries, err := testJournal(t).ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendRecordsSkippedTrades(t *testing.T) {
	j := testJournal(t)

	_, err := j.Append(Entry{
		Ticker:         "AAPL",
		Date:           "2024-01-02",
		Action:         models.ActionBuy,
		Quantity:       100,
		ReferencePrice: 500,
		Executed:       false,
		CashBefore:     1000,
		CashAfter:      1000,
		Notes:          "insufficient cash",
	})
	require.NoError(t, err)

	entries, err := j.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Executed)
	assert.InDelta(t, entries[0].CashBefore, entries[0].CashAfter, 1e-9)
}
