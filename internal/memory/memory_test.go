package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "lessons.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecallLessons(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.RecordLesson(ctx, LessonRecord{
		Ticker:       "AAPL",
		DecisionDate: "2024-01-02",
		Action:       "BUY",
		ActualReturn: 0.08,
		Summary:      "decision succeeded: 8.00% return",
		Situation:    "strong earnings, bullish sentiment",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = store.RecordLesson(ctx, LessonRecord{
		Ticker:       "AAPL",
		DecisionDate: "2024-01-09",
		Action:       "SELL",
		ActualReturn: -0.02,
	})
	require.NoError(t, err)

	lessons, err := store.RecentLessons(ctx, "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "SELL", lessons[0].Action, "most recent first")
	assert.InDelta(t, 0.08, lessons[1].ActualReturn, 1e-9)
	assert.NotEmpty(t, lessons[0].CreatedAt)
}

func TestRecentLessonsLimitAndScope(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.RecordLesson(ctx, LessonRecord{Ticker: "MSFT", DecisionDate: "2024-01-02", Action: "HOLD"})
		require.NoError(t, err)
	}
	_, err := store.RecordLesson(ctx, LessonRecord{Ticker: "NVDA", DecisionDate: "2024-01-02", Action: "BUY"})
	require.NoError(t, err)

	lessons, err := store.RecentLessons(ctx, "MSFT", 2)
	require.NoError(t, err)
	assert.Len(t, lessons, 2)

	lessons, err = store.RecentLessons(ctx, "GOOG", 5)
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestRecordLessonRequiresTicker(t *testing.T) {
	store := openTestStore(t)

	_, err := store.RecordLesson(context.Background(), LessonRecord{Action: "BUY"})
	assert.Error(t, err)
}

func TestRecordLessonIdempotentByID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := LessonRecord{ID: "fixed-id", Ticker: "AAPL", DecisionDate: "2024-01-02", Action: "BUY", ActualReturn: 0.05}
	_, err := store.RecordLesson(ctx, rec)
	require.NoError(t, err)

	rec.ActualReturn = 0.99
	_, err = store.RecordLesson(ctx, rec)
	require.NoError(t, err)

	lessons, err := store.RecentLessons(ctx, "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.InDelta(t, 0.05, lessons[0].ActualReturn, 1e-9, "replays do not overwrite")
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.RecordLesson(ctx, LessonRecord{Ticker: "AAPL", ActualReturn: 0.10, Action: "BUY", DecisionDate: "2024-01-02"})
	require.NoError(t, err)
	_, err = store.RecordLesson(ctx, LessonRecord{Ticker: "AAPL", ActualReturn: -0.02, Action: "SELL", DecisionDate: "2024-01-09"})
	require.NoError(t, err)
	_, err = store.RecordLesson(ctx, LessonRecord{Ticker: "MSFT", ActualReturn: 0.03, Action: "HOLD", DecisionDate: "2024-01-02"})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "AAPL", stats[0].Ticker)
	assert.Equal(t, 2, stats[0].Lessons)
	assert.InDelta(t, 0.04, stats[0].AvgReturn, 1e-9)
	assert.Equal(t, "MSFT", stats[1].Ticker)
}
