package models

import "time"

// ReflectionStatus is the lifecycle state of a queued reflection.
// Transitions: pending -> completed, pending -> error. Items marked error
// stay eligible for bounded retries; see the reflection package.
type ReflectionStatus string

const (
	ReflectionPending   ReflectionStatus = "pending"
	ReflectionCompleted ReflectionStatus = "completed"
	ReflectionError     ReflectionStatus = "error"
)

// DecisionContext is the frozen slice of pipeline output captured when a
// decision was made, kept so the learning collaborator can reflect on the
// reasoning once the outcome is known.
type DecisionContext struct {
	MarketReport       string `json:"market_report,omitempty"`
	SentimentReport    string `json:"sentiment_report,omitempty"`
	NewsReport         string `json:"news_report,omitempty"`
	FundamentalsReport string `json:"fundamentals_report,omitempty"`
	InvestmentPlan     string `json:"investment_plan,omitempty"`
	FinalTradeDecision string `json:"final_trade_decision,omitempty"`
}

// PnL classification labels used in reflection outcomes.
const (
	PnLUnrealizedGain = "unrealized_gain"
	PnLUnrealizedLoss = "unrealized_loss"
	PnLRealizedGain   = "realized_gain"
	PnLRealizedLoss   = "realized_loss"
	PnLNoPosition     = "no_position"
)

// SignalOutcome is the evaluation of one trade signal against realized
// future prices. SELL outcomes carry the secondary timing metrics; the
// fields stay zero for other actions.
type SignalOutcome struct {
	Date            string  `json:"date"`
	Action          Action  `json:"action"`
	DecisionPrice   float64 `json:"decision_price"`
	FuturePrice     float64 `json:"future_price"`
	AvgCost         float64 `json:"avg_cost"`
	Quantity        int     `json:"quantity"`
	PnL             float64 `json:"pnl"`
	PnLPct          float64 `json:"pnl_pct"`
	PnLType         string  `json:"pnl_type"`
	RealizedPnL     float64 `json:"realized_pnl,omitempty"`
	OpportunityCost float64 `json:"opportunity_cost,omitempty"`
	SellTimingScore float64 `json:"sell_timing_score,omitempty"`
}

// ReflectionResult is the outcome summary stored on a completed item.
type ReflectionResult struct {
	Outcomes        []SignalOutcome `json:"outcomes"`
	LookforwardDays int             `json:"lookforward_days"`
	ActualReturn    float64         `json:"actual_return"`
	Lesson          string          `json:"lesson"`
}

// PendingReflection is one entry in the delayed-reflection queue. Created on
// every decision (HOLD included), mutated only by queue processing, removed
// only by explicit retention pruning of completed items.
type PendingReflection struct {
	ID              string            `json:"id"`
	Ticker          string            `json:"ticker"`
	DecisionDate    string            `json:"decision_date"`
	CreatedAt       time.Time         `json:"created_at"`
	Context         DecisionContext   `json:"decision_context"`
	TradeSignals    []TradeSignal     `json:"trade_signals"`
	AccountSnapshot AccountState      `json:"account_state_snapshot"`
	Status          ReflectionStatus  `json:"status"`
	ReflectedAt     *time.Time        `json:"reflected_at,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	RetryCount      int               `json:"retry_count,omitempty"`
	Result          *ReflectionResult `json:"reflection_results,omitempty"`
}
