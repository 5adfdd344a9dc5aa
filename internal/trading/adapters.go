package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentfolio/internal/dataflows"
	"agentfolio/internal/memory"
	"agentfolio/internal/models"
	"agentfolio/internal/reflection"
)

// WindowSource adapts a bar provider to the reflection queue's string-dated
// price source.
type WindowSource struct {
	Provider dataflows.Provider
}

func (w WindowSource) Window(ctx context.Context, ticker, startDate, endDate string) ([]reflection.PricePoint, error) {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse window start: %w", err)
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("parse window end: %w", err)
	}

	bars, err := w.Provider.HistoricalWindow(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]reflection.PricePoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, reflection.PricePoint{
			Date:  bar.Date.Format(models.DateLayout),
			Close: bar.Close.InexactFloat64(),
		})
	}
	return points, nil
}

// LessonRecorder adapts the memory store to the reflection queue's learning
// hook, flattening the decision context into a searchable situation string.
func LessonRecorder(store *memory.Store) reflection.LearningHookFunc {
	return func(ctx context.Context, lesson reflection.Lesson) error {
		_, err := store.RecordLesson(ctx, memory.LessonRecord{
			Ticker:       lesson.Ticker,
			DecisionDate: lesson.DecisionDate,
			Action:       string(lesson.Action),
			ActualReturn: lesson.ActualReturn,
			Summary:      lesson.Summary,
			Situation:    situationText(lesson.Context),
		})
		return err
	}
}

func situationText(ctx models.DecisionContext) string {
	sections := []string{
		ctx.MarketReport,
		ctx.SentimentReport,
		ctx.NewsReport,
		ctx.FundamentalsReport,
		ctx.InvestmentPlan,
	}
	nonEmpty := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(s))
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
