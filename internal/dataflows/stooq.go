package dataflows

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"agentfolio/internal/models"
)

// StooqClient fetches daily bars from the Stooq CSV endpoint. It serves as
// the fallback vendor when Yahoo is unavailable and needs no API key.
type StooqClient struct {
	client *resty.Client
	cache  *CacheManager
	suffix string
}

// NewStooqClient creates a new Stooq client. US listings on Stooq carry a
// ".us" suffix, appended automatically.
func NewStooqClient(cacheDir string, cacheEnabled bool) *StooqClient {
	client := resty.New()
	client.SetBaseURL("https://stooq.com")
	client.SetTimeout(30 * time.Second)

	return &StooqClient{
		client: client,
		cache:  NewCacheManager(cacheDir, 24*time.Hour, cacheEnabled),
		suffix: ".us",
	}
}

// HistoricalWindow implements Provider.
func (sc *StooqClient) HistoricalWindow(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached []PriceBar
	if sc.cache.Get("stooq", "historical", cacheKey, &cached) {
		return cached, nil
	}

	var result []PriceBar
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := sc.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"s":  strings.ToLower(symbol) + sc.suffix,
				"d1": start.Format("20060102"),
				"d2": end.Format("20060102"),
				"i":  "d",
			}).
			Get("/q/d/l/")

		if err != nil {
			return fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("API error %d: %s", resp.StatusCode(), resp.String())
		}

		result, err = parseStooqCSV(symbol, resp.String())
		if err != nil {
			return fmt.Errorf("failed to parse bars for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sc.cache.Set("stooq", "historical", cacheKey, result)

	return result, nil
}

// parseStooqCSV decodes Stooq's Date,Open,High,Low,Close,Volume CSV. A body
// with no data rows ("No data" or header only) yields an empty slice.
func parseStooqCSV(symbol, body string) ([]PriceBar, error) {
	body = strings.TrimSpace(body)
	if body == "" || strings.HasPrefix(body, "No data") {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}

	bars := make([]PriceBar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}

		date, err := time.Parse(models.DateLayout, rec[0])
		if err != nil {
			continue
		}

		open, err1 := decimal.NewFromString(rec[1])
		high, err2 := decimal.NewFromString(rec[2])
		low, err3 := decimal.NewFromString(rec[3])
		closePx, err4 := decimal.NewFromString(rec[4])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}

		volume, _ := strconv.ParseInt(rec[5], 10, 64)

		bars = append(bars, PriceBar{
			Symbol: symbol,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}

	return bars, nil
}
