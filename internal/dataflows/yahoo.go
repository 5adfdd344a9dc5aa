package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooClient fetches daily bars and quotes from Yahoo Finance.
type YahooClient struct {
	cache *CacheManager
}

// NewYahooClient creates a Yahoo Finance client with a 24 hour cache.
func NewYahooClient(cacheDir string, cacheEnabled bool) *YahooClient {
	return &YahooClient{
		cache: NewCacheManager(cacheDir, 24*time.Hour, cacheEnabled),
	}
}

// HistoricalWindow implements Provider.
func (yc *YahooClient) HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached []PriceBar
	if yc.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}

	var result []PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, PriceBar{
				Symbol: symbol,
				Date:   time.Unix(int64(bar.Timestamp), 0),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	yc.cache.Set("yahoo", "historical", cacheKey, result)

	return result, nil
}

// Quote gets the current market price for a symbol.
func (yc *YahooClient) Quote(symbol string) (PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return PriceBar{}, err
	}

	symbol = NormalizeSymbol(symbol)

	var result PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}

		result = PriceBar{
			Symbol: symbol,
			Date:   time.Now(),
			Open:   decimal.NewFromFloat(q.RegularMarketOpen),
			High:   decimal.NewFromFloat(q.RegularMarketDayHigh),
			Low:    decimal.NewFromFloat(q.RegularMarketDayLow),
			Close:  decimal.NewFromFloat(q.RegularMarketPrice),
			Volume: int64(q.RegularMarketVolume),
		}
		return nil
	})
	if err != nil {
		return PriceBar{}, err
	}

	return result, nil
}
