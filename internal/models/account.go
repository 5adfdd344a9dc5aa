package models

// DateLayout is the wire format for all trading dates.
const DateLayout = "2006-01-02"

// Position holds the share count and volume-weighted average purchase price
// for a single ticker. A position with zero shares is removed from the
// account map rather than stored with zeroed fields.
type Position struct {
	Shares  int     `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// AccountState is the full paper-trading account snapshot. It is passed by
// value between pipeline steps and persisted as a single JSON document after
// each iteration.
type AccountState struct {
	CashBalance      float64             `json:"cash_balance"`
	Positions        map[string]Position `json:"positions"`
	MaxAllocationPct float64             `json:"max_allocation_pct"`
	MinCashReserve   float64             `json:"min_cash_reserve"`
}

// NewAccountState creates an empty account with the given cash and limits.
func NewAccountState(initialCash, maxAllocationPct, minCashReserve float64) AccountState {
	return AccountState{
		CashBalance:      initialCash,
		Positions:        map[string]Position{},
		MaxAllocationPct: maxAllocationPct,
		MinCashReserve:   minCashReserve,
	}
}

// Clone returns a deep copy so callers can mutate the result without
// touching the original snapshot.
func (s AccountState) Clone() AccountState {
	out := s
	out.Positions = make(map[string]Position, len(s.Positions))
	for ticker, pos := range s.Positions {
		out.Positions[ticker] = pos
	}
	return out
}

// Position returns the held position for ticker, or a zero position if the
// ticker is not in the account.
func (s AccountState) Position(ticker string) Position {
	if s.Positions == nil {
		return Position{}
	}
	return s.Positions[ticker]
}

// TotalValue marks the account to the given per-ticker prices. Tickers with
// no price entry are valued at their average cost.
func (s AccountState) TotalValue(prices map[string]float64) float64 {
	total := s.CashBalance
	for ticker, pos := range s.Positions {
		price, ok := prices[ticker]
		if !ok {
			price = pos.AvgCost
		}
		total += float64(pos.Shares) * price
	}
	return total
}
