// Package journal keeps the append-only CSV audit log of executed and
// attempted trades, with the account state captured before and after each
// one.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"agentfolio/internal/models"
)

var header = []string{
	"entry_id", "timestamp", "ticker", "date", "action", "quantity",
	"reference_price", "trade_value", "executed",
	"cash_before", "cash_after",
	"shares_before", "shares_after",
	"avg_cost_before", "avg_cost_after",
	"notes",
}

// Entry is one audit row: a decision, whether it executed, and the account
// deltas around it.
type Entry struct {
	ID             string        `json:"entry_id"`
	Timestamp      time.Time     `json:"timestamp"`
	Ticker         string        `json:"ticker"`
	Date           string        `json:"date"`
	Action         models.Action `json:"action"`
	Quantity       int           `json:"quantity"`
	ReferencePrice float64       `json:"reference_price"`
	TradeValue     float64       `json:"trade_value"`
	Executed       bool          `json:"executed"`
	CashBefore     float64       `json:"cash_before"`
	CashAfter      float64       `json:"cash_after"`
	SharesBefore   int           `json:"shares_before"`
	SharesAfter    int           `json:"shares_after"`
	AvgCostBefore  float64       `json:"avg_cost_before"`
	AvgCostAfter   float64       `json:"avg_cost_after"`
	Notes          string        `json:"notes"`
}

// Journal appends entries to a CSV file, writing the header when the file
// is new. Rows are never rewritten.
type Journal struct {
	path string
}

// New creates a journal over the given CSV path.
func New(path string) *Journal {
	return &Journal{path: path}
}

// Append writes one entry, assigning an ID and timestamp when absent.
func (j *Journal) Append(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = newEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("create journal dir: %w", err)
	}

	info, err := os.Stat(j.path)
	fresh := err != nil || info.Size() == 0

	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if fresh {
		if err := w.Write(header); err != nil {
			return Entry{}, fmt.Errorf("write journal header: %w", err)
		}
	}

	if err := w.Write(entry.record()); err != nil {
		return Entry{}, fmt.Errorf("write journal entry: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return Entry{}, fmt.Errorf("flush journal: %w", err)
	}
	return entry, nil
}

// ReadAll returns every entry in append order. A missing file yields an
// empty slice.
func (j *Journal) ReadAll() ([]Entry, error) {
	file, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)

	// Header row.
	if _, err := r.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read journal header: %w", err)
	}

	var entries []Entry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read journal entry: %w", err)
		}

		entry, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("parse journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e Entry) record() []string {
	return []string{
		e.ID,
		e.Timestamp.Format(time.RFC3339),
		e.Ticker,
		e.Date,
		string(e.Action),
		strconv.Itoa(e.Quantity),
		f(e.ReferencePrice),
		f(e.TradeValue),
		strconv.FormatBool(e.Executed),
		f(e.CashBefore),
		f(e.CashAfter),
		strconv.Itoa(e.SharesBefore),
		strconv.Itoa(e.SharesAfter),
		f(e.AvgCostBefore),
		f(e.AvgCostAfter),
		e.Notes,
	}
}

func parseRecord(rec []string) (Entry, error) {
	ts, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return Entry{}, err
	}

	quantity, err := strconv.Atoi(rec[5])
	if err != nil {
		return Entry{}, err
	}
	executed, err := strconv.ParseBool(rec[8])
	if err != nil {
		return Entry{}, err
	}
	sharesBefore, err := strconv.Atoi(rec[11])
	if err != nil {
		return Entry{}, err
	}
	sharesAfter, err := strconv.Atoi(rec[12])
	if err != nil {
		return Entry{}, err
	}

	floats := make([]float64, 0, 6)
	for _, idx := range []int{6, 7, 9, 10, 13, 14} {
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return Entry{}, err
		}
		floats = append(floats, v)
	}

	return Entry{
		ID:             rec[0],
		Timestamp:      ts,
		Ticker:         rec[2],
		Date:           rec[3],
		Action:         models.Action(rec[4]),
		Quantity:       quantity,
		ReferencePrice: floats[0],
		TradeValue:     floats[1],
		Executed:       executed,
		CashBefore:     floats[2],
		CashAfter:      floats[3],
		SharesBefore:   sharesBefore,
		SharesAfter:    sharesAfter,
		AvgCostBefore:  floats[4],
		AvgCostAfter:   floats[5],
		Notes:          rec[15],
	}, nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func newEntryID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
