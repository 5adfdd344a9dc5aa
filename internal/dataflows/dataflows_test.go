package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	bars []PriceBar
	err  error
}

func (s *stubProvider) HistoricalWindow(_ context.Context, _ string, _, _ time.Time) ([]PriceBar, error) {
	return s.bars, s.err
}

func day(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return d
}

func TestClosesByDate(t *testing.T) {
	bars := []PriceBar{
		{Date: day(t, "2024-01-02"), Close: decimal.NewFromFloat(101.5)},
		{Date: day(t, "2024-01-03"), Close: decimal.NewFromFloat(99.25)},
	}

	closes := ClosesByDate(bars)
	require.Len(t, closes, 2)
	assert.InDelta(t, 101.5, closes["2024-01-02"], 1e-9)
	assert.InDelta(t, 99.25, closes["2024-01-03"], 1e-9)

	assert.Empty(t, ClosesByDate(nil))
}

func TestLatestCloseSkipsFutureBars(t *testing.T) {
	p := &stubProvider{bars: []PriceBar{
		{Date: day(t, "2024-01-02"), Close: decimal.NewFromFloat(100)},
		{Date: day(t, "2024-01-05"), Close: decimal.NewFromFloat(105)},
		{Date: day(t, "2024-01-08"), Close: decimal.NewFromFloat(110)},
	}}

	// The Friday close serves a Saturday as-of date.
	price, err := LatestClose(context.Background(), p, "AAPL", day(t, "2024-01-06"))
	require.NoError(t, err)
	assert.InDelta(t, 105.0, price, 1e-9)
}

func TestLatestCloseNoData(t *testing.T) {
	price, err := LatestClose(context.Background(), &stubProvider{}, "AAPL", day(t, "2024-01-06"))
	require.NoError(t, err)
	assert.Zero(t, price)

	_, err = LatestClose(context.Background(), &stubProvider{err: errors.New("offline")}, "AAPL", day(t, "2024-01-06"))
	assert.Error(t, err)
}

func TestFallbackProviderTriesNext(t *testing.T) {
	good := &stubProvider{bars: []PriceBar{{Date: day(t, "2024-01-02"), Close: decimal.NewFromFloat(50)}}}
	fp := FallbackProvider{&stubProvider{err: errors.New("down")}, good}

	bars, err := fp.HistoricalWindow(context.Background(), "AAPL", day(t, "2024-01-01"), day(t, "2024-01-05"))
	require.NoError(t, err)
	require.Len(t, bars, 1)

	// All providers failing surfaces the last error.
	fp = FallbackProvider{&stubProvider{err: errors.New("down")}}
	_, err = fp.HistoricalWindow(context.Background(), "AAPL", day(t, "2024-01-01"), day(t, "2024-01-05"))
	assert.Error(t, err)
}

func TestParseStooqCSV(t *testing.T) {
	body := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-02,184.35,185.88,183.43,185.64,82488700\n" +
		"2024-01-03,184.22,185.86,183.92,184.25,58414500\n"

	bars, err := parseStooqCSV("AAPL", body)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.True(t, bars[0].Close.Equal(decimal.NewFromFloat(185.64)))
	assert.Equal(t, int64(82488700), bars[0].Volume)
}

func TestParseStooqCSVNoData(t *testing.T) {
	bars, err := parseStooqCSV("AAPL", "No data")
	require.NoError(t, err)
	assert.Empty(t, bars)

	bars, err = parseStooqCSV("AAPL", "Date,Open,High,Low,Close,Volume\n")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestParseStooqCSVSkipsMalformedRows(t *testing.T) {
	body := "Date,Open,High,Low,Close,Volume\n" +
		"not-a-date,1,2,3,4,5\n" +
		"2024-01-03,184.22,185.86,183.92,184.25,58414500\n"

	bars, err := parseStooqCSV("AAPL", body)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-01-03", bars[0].Date.Format("2006-01-02"))
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	calls := 0
	err := WithRetry(cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhausted(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	sentinel := errors.New("hard down")
	err := WithRetry(cfg, func() error { return sentinel })
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, ValidateSymbol("aapl"))
	assert.Error(t, ValidateSymbol(""))
	assert.Error(t, ValidateSymbol("WAYTOOLONGSYM"))
	assert.Equal(t, "AAPL", NormalizeSymbol(" aapl "))
}
