package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddMessageEvictsOldest(t *testing.T) {
	b := NewBuffer(2)
	b.AddMessage("info", "first")
	b.AddMessage("info", "second")
	b.AddMessage("info", "third")

	msgs := b.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Content)
	assert.Equal(t, "third", msgs[1].Content)
}

func TestStageTransitions(t *testing.T) {
	b := NewBuffer(10)
	assert.Equal(t, StatePending, b.StageStatus()[StageParse])

	b.SetStage(StageParse, StateCompleted)
	b.SetStage("unknown_stage", StateError)

	status := b.StageStatus()
	assert.Equal(t, StateCompleted, status[StageParse])
	assert.NotContains(t, status, "unknown_stage")
}

func TestSectionsKeepCanonicalOrder(t *testing.T) {
	b := NewBuffer(10)
	b.SetSection("final_trade_decision", "BUY 10")
	b.SetSection("market_report", "trending up")
	b.SetSection("news_report", "")

	sections := b.Sections()
	assert.Equal(t, []string{"trending up", "BUY 10"}, sections)
}
