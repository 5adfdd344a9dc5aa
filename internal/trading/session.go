// Package trading drives the accounting pipeline for one decision: parse
// the decision text, size the order, apply it to the ledger, journal the
// result, and queue the decision for delayed reflection.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"agentfolio/internal/dataflows"
	"agentfolio/internal/journal"
	"agentfolio/internal/ledger"
	"agentfolio/internal/message"
	"agentfolio/internal/models"
	"agentfolio/internal/reflection"
	"agentfolio/internal/signal"
	"agentfolio/internal/storage"
)

// Session wires the pipeline's collaborators for one or more runs.
type Session struct {
	store   *storage.AccountStore
	journal *journal.Journal
	queue   *reflection.Queue
	prices  dataflows.Provider
	log     zerolog.Logger

	defaults models.AccountState
}

// Result is the full outcome of one pipeline run.
type Result struct {
	Ticker         string                `json:"ticker"`
	Date           string                `json:"date"`
	Parsed         signal.ParseResult    `json:"parsed"`
	Recommendation signal.Recommendation `json:"recommendation"`
	Executed       bool                  `json:"executed"`
	SkipReason     string                `json:"skip_reason,omitempty"`
	StateBefore    models.AccountState   `json:"state_before"`
	StateAfter     models.AccountState   `json:"state_after"`
	JournalEntry   journal.Entry         `json:"journal_entry"`
	ReflectionID   string                `json:"reflection_id"`
}

// NewSession builds a session over its collaborators. defaults seeds the
// account on first run.
func NewSession(store *storage.AccountStore, jrnl *journal.Journal, queue *reflection.Queue, prices dataflows.Provider, defaults models.AccountState, logger zerolog.Logger) *Session {
	return &Session{
		store:    store,
		journal:  jrnl,
		queue:    queue,
		prices:   prices,
		log:      logger.With().Str("component", "trading").Logger(),
		defaults: defaults,
	}
}

// Run executes the pipeline for one decision. The decision context carries
// the upstream analysis reports plus the final decision text to parse. A
// trade that cannot execute (insufficient cash) is not an error: it is
// journaled as skipped and the run continues.
func (s *Session) Run(ctx context.Context, ticker, date string, decisionCtx models.DecisionContext, buf *message.Buffer) (*Result, error) {
	ticker = dataflows.NormalizeSymbol(ticker)
	if err := dataflows.ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	asOf, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if buf == nil {
		buf = message.NewBuffer(100)
	}

	result := &Result{Ticker: ticker, Date: date}

	// Parse the decision text. Unparsable text degrades to HOLD rather
	// than failing the run.
	buf.SetStage(message.StageParse, message.StateInProgress)
	result.Parsed = signal.ParseDecision(decisionCtx.FinalTradeDecision)
	buf.SetStage(message.StageParse, message.StateCompleted)
	if !result.Parsed.Parsed {
		buf.AddMessage("warn", "decision text not structured, using token scan")
	}
	s.log.Debug().Str("ticker", ticker).Str("action", string(result.Parsed.Action)).Bool("parsed", result.Parsed.Parsed).Msg("decision parsed")

	state, err := s.store.Load(s.defaults)
	if err != nil {
		return nil, err
	}
	result.StateBefore = state.Clone()

	buf.SetStage(message.StagePrice, message.StateInProgress)
	price, err := dataflows.LatestClose(ctx, s.prices, ticker, asOf)
	if err != nil {
		buf.SetStage(message.StagePrice, message.StateError)
		return nil, fmt.Errorf("fetch reference price: %w", err)
	}
	buf.SetStage(message.StagePrice, message.StateCompleted)
	if price <= 0 {
		buf.AddMessage("warn", fmt.Sprintf("no price for %s as of %s", ticker, date))
	}

	buf.SetStage(message.StageSize, message.StateInProgress)
	result.Recommendation = signal.Size(state, ticker, result.Parsed.Action, price, result.Parsed.Quantity)
	buf.SetStage(message.StageSize, message.StateCompleted)

	rec := result.Recommendation
	after, applyErr := ledger.ApplyTrade(state, ticker, rec.Action, rec.Quantity, rec.ReferencePrice)
	switch {
	case applyErr == nil:
		result.Executed = rec.Action.IsTrade() && rec.Quantity > 0
		buf.SetStage(message.StageExecute, message.StateCompleted)
	case errors.Is(applyErr, ledger.ErrInsufficientCash):
		result.SkipReason = applyErr.Error()
		buf.SetStage(message.StageExecute, message.StateError)
		buf.AddMessage("warn", result.SkipReason)
		s.log.Warn().Str("ticker", ticker).Err(applyErr).Msg("trade skipped")
	default:
		buf.SetStage(message.StageExecute, message.StateError)
		return nil, applyErr
	}
	result.StateAfter = after

	buf.SetStage(message.StageJournal, message.StateInProgress)
	entry, err := s.journal.Append(journalEntry(result))
	if err != nil {
		buf.SetStage(message.StageJournal, message.StateError)
		return nil, err
	}
	result.JournalEntry = entry
	buf.SetStage(message.StageJournal, message.StateCompleted)

	if err := s.store.Save(after); err != nil {
		return nil, err
	}

	// Archive for delayed reflection with the pre-trade snapshot, so sells
	// score against the cost basis they actually closed out.
	buf.SetStage(message.StageQueue, message.StateInProgress)
	var signals []models.TradeSignal
	if result.Executed {
		signals = append(signals, models.NewTradeSignal(ticker, date, rec.Action, rec.Quantity, rec.ReferencePrice, result.Parsed.Notes))
	} else {
		signals = append(signals, models.NewTradeSignal(ticker, date, models.ActionHold, 0, rec.ReferencePrice, result.SkipReason))
	}
	reflectionID, err := s.queue.SavePending(ticker, date, decisionCtx, signals, result.StateBefore)
	if err != nil {
		buf.SetStage(message.StageQueue, message.StateError)
		return nil, err
	}
	result.ReflectionID = reflectionID
	buf.SetStage(message.StageQueue, message.StateCompleted)

	s.log.Info().
		Str("ticker", ticker).
		Str("action", string(rec.Action)).
		Int("quantity", rec.Quantity).
		Bool("executed", result.Executed).
		Float64("cash_after", after.CashBalance).
		Msg("pipeline run complete")

	return result, nil
}

// ProcessReflections matures the queue as of currentDate.
func (s *Session) ProcessReflections(ctx context.Context, currentDate string) (*reflection.Report, error) {
	return s.queue.Process(ctx, currentDate)
}

// Account returns the current account state.
func (s *Session) Account() (models.AccountState, error) {
	return s.store.Load(s.defaults)
}

func journalEntry(r *Result) journal.Entry {
	rec := r.Recommendation
	posBefore := r.StateBefore.Position(r.Ticker)
	posAfter := r.StateAfter.Position(r.Ticker)

	notes := r.Parsed.Notes
	if r.SkipReason != "" {
		notes = strings.TrimSpace(notes + " " + r.SkipReason)
	}

	return journal.Entry{
		Ticker:         r.Ticker,
		Date:           r.Date,
		Action:         rec.Action,
		Quantity:       rec.Quantity,
		ReferencePrice: rec.ReferencePrice,
		TradeValue:     rec.TradeValue,
		Executed:       r.Executed,
		CashBefore:     r.StateBefore.CashBalance,
		CashAfter:      r.StateAfter.CashBalance,
		SharesBefore:   posBefore.Shares,
		SharesAfter:    posAfter.Shares,
		AvgCostBefore:  posBefore.AvgCost,
		AvgCostAfter:   posAfter.AvgCost,
		Notes:          notes,
	}
}
