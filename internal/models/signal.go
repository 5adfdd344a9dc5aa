package models

import "strings"

// Action is a trading decision verb.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes a free-form action string. Unknown values map to
// HOLD, matching the decision-parser fallback.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy
	case "SELL":
		return ActionSell
	default:
		return ActionHold
	}
}

// IsTrade reports whether the action moves shares.
func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeSignal is one immutable decision record. It is created once per
// (ticker, date) iteration and appended to the audit log; TradeValue is
// derived as Quantity * ReferencePrice.
type TradeSignal struct {
	Ticker         string  `json:"ticker"`
	Date           string  `json:"date"`
	Action         Action  `json:"action"`
	Quantity       int     `json:"quantity"`
	ReferencePrice float64 `json:"reference_price,omitempty"`
	TradeValue     float64 `json:"trade_value,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// NewTradeSignal builds a signal with the derived trade value filled in.
func NewTradeSignal(ticker, date string, action Action, quantity int, referencePrice float64, notes string) TradeSignal {
	return TradeSignal{
		Ticker:         ticker,
		Date:           date,
		Action:         action,
		Quantity:       quantity,
		ReferencePrice: referencePrice,
		TradeValue:     float64(quantity) * referencePrice,
		Notes:          notes,
	}
}
