package dataflows

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"agentfolio/internal/models"
)

// PriceBar represents one daily OHLCV row from a market data vendor.
type PriceBar struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Provider fetches historical daily bars for a symbol over a date range,
// inclusive on both ends. An empty result is not an error: it means the
// vendor has no rows for the range yet.
type Provider interface {
	HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error)
}

// ClosesByDate flattens bars into the date-to-close map the accounting
// engine consumes.
func ClosesByDate(bars []PriceBar) map[string]float64 {
	closes := make(map[string]float64, len(bars))
	for _, bar := range bars {
		closes[bar.Date.Format(models.DateLayout)] = bar.Close.InexactFloat64()
	}
	return closes
}

// LatestClose returns the most recent close at or before asOf, looking back
// up to ten calendar days to cover weekends and market holidays. A zero
// return with nil error means no price is available.
func LatestClose(ctx context.Context, p Provider, symbol string, asOf time.Time) (float64, error) {
	bars, err := p.HistoricalWindow(ctx, symbol, asOf.AddDate(0, 0, -10), asOf)
	if err != nil {
		return 0, err
	}

	latest := 0.0
	var latestDate time.Time
	for _, bar := range bars {
		if bar.Date.After(asOf) {
			continue
		}
		if latestDate.IsZero() || bar.Date.After(latestDate) {
			latestDate = bar.Date
			latest = bar.Close.InexactFloat64()
		}
	}
	return latest, nil
}

// Quoter is implemented by vendors that can serve a live market quote.
type Quoter interface {
	Quote(symbol string) (PriceBar, error)
}

// FallbackProvider tries each provider in order until one returns data.
type FallbackProvider []Provider

func (fp FallbackProvider) HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	var lastErr error
	for _, p := range fp {
		bars, err := p.HistoricalWindow(ctx, symbol, start, end)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}
	return nil, lastErr
}
