// Package reflection maintains the delayed-outcome evaluation queue: every
// decision is archived at decision time and scored later, once enough real
// future price data exists, so the learning collaborator reflects on what
// actually happened rather than same-day speculation.
package reflection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"agentfolio/internal/models"
)

// ErrDataUnavailable marks an empty lookforward window; the item stays
// pending and is retried on a later call.
var ErrDataUnavailable = errors.New("no price data available for window")

// PriceSource fetches realized closes for a ticker over a date range.
type PriceSource interface {
	Window(ctx context.Context, ticker, startDate, endDate string) ([]PricePoint, error)
}

// Lesson is the outcome record handed to the learning collaborator.
type Lesson struct {
	Ticker       string
	DecisionDate string
	Action       models.Action
	ActualReturn float64
	Summary      string
	Context      models.DecisionContext
}

// LearningHook receives lessons for persistence and later retrieval.
type LearningHook interface {
	RecordLesson(ctx context.Context, lesson Lesson) error
}

// LearningHookFunc adapts a function to the LearningHook interface.
type LearningHookFunc func(ctx context.Context, lesson Lesson) error

func (f LearningHookFunc) RecordLesson(ctx context.Context, lesson Lesson) error {
	return f(ctx, lesson)
}

// Config carries the queue's tunables. Thresholds are fractions: a +5%
// success threshold is 0.05.
type Config struct {
	Path             string
	LookforwardDays  int
	MinAgeDays       int
	MaxRetries       int
	RetentionDays    int
	SuccessThreshold float64
	FailureThreshold float64
}

// ItemOutcome is the per-item detail returned from one processing call.
type ItemOutcome struct {
	ID           string        `json:"id"`
	Ticker       string        `json:"ticker"`
	Date         string        `json:"date"`
	Action       models.Action `json:"action"`
	ActualReturn float64       `json:"actual_return"`
	Lesson       string        `json:"lesson"`
}

// Report summarizes one Process call. All aggregates, including AvgReturn,
// cover only this call's batch; use CombineAverages to fold batches into a
// running figure.
type Report struct {
	Processed           int           `json:"processed"`
	Skipped             int           `json:"skipped"`
	Failed              int           `json:"failed"`
	Total               int           `json:"total"`
	Outcomes            []ItemOutcome `json:"reflections"`
	SuccessfulDecisions int           `json:"successful_decisions"`
	FailedDecisions     int           `json:"failed_decisions"`
	AvgReturn           float64       `json:"avg_return"`
}

// StatusCounts is the queue breakdown by lifecycle state.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Error     int `json:"error"`
	Total     int `json:"total"`
}

// Queue persists pending reflections as a single JSON document and matures
// them against realized prices. The document is read-modify-written in full
// on every call, which assumes a single-process, single-writer deployment;
// concurrent writers need external coordination.
type Queue struct {
	cfg    Config
	prices PriceSource
	hook   LearningHook
	log    zerolog.Logger
	now    func() time.Time
}

// NewQueue wires a queue against its collaborators.
func NewQueue(cfg Config, prices PriceSource, hook LearningHook, logger zerolog.Logger) *Queue {
	return &Queue{
		cfg:    cfg,
		prices: prices,
		hook:   hook,
		log:    logger.With().Str("component", "reflection").Logger(),
		now:    time.Now,
	}
}

// SavePending archives a decision for later evaluation. Every decision is
// queued, HOLD included; the queue is append-only and never overwrites.
func (q *Queue) SavePending(ticker, decisionDate string, decisionCtx models.DecisionContext, signals []models.TradeSignal, snapshot models.AccountState) (string, error) {
	queue, err := q.load()
	if err != nil {
		return "", err
	}

	now := q.now()
	item := models.PendingReflection{
		ID:              fmt.Sprintf("%s_%s_%s", ticker, decisionDate, now.Format("150405")),
		Ticker:          ticker,
		DecisionDate:    decisionDate,
		CreatedAt:       now,
		Context:         decisionCtx,
		TradeSignals:    append([]models.TradeSignal(nil), signals...),
		AccountSnapshot: snapshot.Clone(),
		Status:          models.ReflectionPending,
	}

	queue = append(queue, item)
	if err := q.save(queue); err != nil {
		return "", err
	}

	q.log.Debug().Str("id", item.ID).Str("ticker", ticker).Msg("queued reflection")
	return item.ID, nil
}

// Process matures eligible items against realized prices as of currentDate.
//
// An item is eligible when it is pending (or errored with retries left) and
// at least MinAgeDays old. An empty price window leaves the item pending
// and counts it skipped. Collaborator failures mark only the failing item
// error and never abort the batch. Calling Process again with no newly
// eligible items processes nothing and leaves completed items untouched.
func (q *Queue) Process(ctx context.Context, currentDate string) (*Report, error) {
	current, err := time.Parse(models.DateLayout, currentDate)
	if err != nil {
		return nil, fmt.Errorf("parse current date: %w", err)
	}

	queue, err := q.load()
	if err != nil {
		return nil, err
	}

	report := &Report{Total: len(queue)}

	for i := range queue {
		item := &queue[i]
		if !q.eligible(item) {
			continue
		}

		decision, err := time.Parse(models.DateLayout, item.DecisionDate)
		if err != nil {
			q.fail(item, report, fmt.Errorf("parse decision date: %w", err))
			continue
		}

		ageDays := int(current.Sub(decision).Hours() / 24)
		if ageDays < q.cfg.MinAgeDays {
			report.Skipped++
			continue
		}

		endDate := decision.AddDate(0, 0, q.cfg.LookforwardDays).Format(models.DateLayout)
		window, err := q.prices.Window(ctx, item.Ticker, item.DecisionDate, endDate)
		if errors.Is(err, ErrDataUnavailable) {
			err, window = nil, nil
		}
		if err != nil {
			q.fail(item, report, fmt.Errorf("fetch price window: %w", err))
			continue
		}
		if len(window) == 0 {
			// Not enough future data yet; leave the item for a later call.
			q.log.Debug().Str("id", item.ID).Msg("price window empty, skipping")
			report.Skipped++
			continue
		}

		outcomes := scoreSignals(item.TradeSignals, window, item.AccountSnapshot)
		ret := actualReturn(outcomes)
		lesson := lessonFor(ret, q.cfg.SuccessThreshold, q.cfg.FailureThreshold)

		action := models.ActionHold
		if len(item.TradeSignals) > 0 {
			action = item.TradeSignals[0].Action
		}

		if err := q.hook.RecordLesson(ctx, Lesson{
			Ticker:       item.Ticker,
			DecisionDate: item.DecisionDate,
			Action:       action,
			ActualReturn: ret,
			Summary:      lesson,
			Context:      item.Context,
		}); err != nil {
			q.fail(item, report, fmt.Errorf("learning hook: %w", err))
			continue
		}

		reflectedAt := q.now()
		item.Status = models.ReflectionCompleted
		item.ReflectedAt = &reflectedAt
		item.ErrorMessage = ""
		item.Result = &models.ReflectionResult{
			Outcomes:        outcomes,
			LookforwardDays: q.cfg.LookforwardDays,
			ActualReturn:    ret,
			Lesson:          lesson,
		}

		report.Processed++
		report.Outcomes = append(report.Outcomes, ItemOutcome{
			ID:           item.ID,
			Ticker:       item.Ticker,
			Date:         item.DecisionDate,
			Action:       action,
			ActualReturn: ret,
			Lesson:       lesson,
		})
		q.log.Info().Str("id", item.ID).Float64("actual_return", ret).Msg("reflection completed")
	}

	if err := q.save(queue); err != nil {
		return nil, err
	}

	for _, o := range report.Outcomes {
		if o.ActualReturn > 0 {
			report.SuccessfulDecisions++
		} else if o.ActualReturn < 0 {
			report.FailedDecisions++
		}
		report.AvgReturn += o.ActualReturn
	}
	if len(report.Outcomes) > 0 {
		report.AvgReturn /= float64(len(report.Outcomes))
	}

	return report, nil
}

// eligible reports whether the item may be evaluated on this call. Errored
// items get bounded retries instead of the reference behavior of staying
// stuck forever; once retries are exhausted they remain error permanently.
func (q *Queue) eligible(item *models.PendingReflection) bool {
	switch item.Status {
	case models.ReflectionPending:
		return true
	case models.ReflectionError:
		return item.RetryCount < q.cfg.MaxRetries
	default:
		return false
	}
}

func (q *Queue) fail(item *models.PendingReflection, report *Report, err error) {
	if item.Status == models.ReflectionError {
		item.RetryCount++
	}
	item.Status = models.ReflectionError
	item.ErrorMessage = err.Error()
	report.Failed++
	q.log.Warn().Str("id", item.ID).Err(err).Msg("reflection failed")
}

// Status returns queue counts by lifecycle state for monitoring.
func (q *Queue) Status() (StatusCounts, error) {
	queue, err := q.load()
	if err != nil {
		return StatusCounts{}, err
	}

	counts := StatusCounts{Total: len(queue)}
	for _, item := range queue {
		switch item.Status {
		case models.ReflectionCompleted:
			counts.Completed++
		case models.ReflectionError:
			counts.Error++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

// PruneCompleted removes completed items reflected before the retention
// window and returns how many were dropped. Pending and error items are
// never pruned.
func (q *Queue) PruneCompleted() (int, error) {
	queue, err := q.load()
	if err != nil {
		return 0, err
	}

	cutoff := q.now().AddDate(0, 0, -q.cfg.RetentionDays)
	kept := queue[:0]
	for _, item := range queue {
		if item.Status == models.ReflectionCompleted && item.ReflectedAt != nil && item.ReflectedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}

	pruned := len(queue) - len(kept)
	if pruned == 0 {
		return 0, nil
	}
	if err := q.save(kept); err != nil {
		return 0, err
	}
	return pruned, nil
}

func (q *Queue) load() ([]models.PendingReflection, error) {
	data, err := os.ReadFile(q.cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reflection queue: %w", err)
	}

	var queue []models.PendingReflection
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil, fmt.Errorf("decode reflection queue: %w", err)
	}
	return queue, nil
}

func (q *Queue) save(queue []models.PendingReflection) error {
	if queue == nil {
		queue = []models.PendingReflection{}
	}
	data, err := json.MarshalIndent(queue, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reflection queue: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(q.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	if err := os.WriteFile(q.cfg.Path, data, 0o644); err != nil {
		return fmt.Errorf("write reflection queue: %w", err)
	}
	return nil
}

// CombineAverages folds a batch average into a running one with count
// weighting. Overwriting a cumulative average with the latest batch's
// figure is the bug this helper exists to prevent.
func CombineAverages(oldCount int, oldAvg float64, newCount int, newAvg float64) (int, float64) {
	total := oldCount + newCount
	if total == 0 {
		return 0, 0
	}
	combined := (float64(oldCount)*oldAvg + float64(newCount)*newAvg) / float64(total)
	return total, combined
}
