// Package message holds the per-run progress buffer. Each pipeline run owns
// its own buffer; nothing here is shared between runs.
package message

import (
	"container/list"
	"time"
)

// Pipeline stages tracked during one run.
const (
	StageParse   = "parse_decision"
	StagePrice   = "fetch_price"
	StageSize    = "size_position"
	StageExecute = "execute_trade"
	StageJournal = "write_journal"
	StageQueue   = "queue_reflection"
)

// Stage states.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
	StateError      = "error"
)

type Message struct {
	Timestamp string
	Type      string
	Content   string
}

// Buffer collects messages, stage statuses and report sections for one run.
type Buffer struct {
	messages     *list.List
	maxLength    int
	stageStatus  map[string]string
	sections     map[string]string
	sectionOrder []string
}

// NewBuffer creates a buffer keeping at most maxLength messages.
func NewBuffer(maxLength int) *Buffer {
	stageStatus := map[string]string{
		StageParse:   StatePending,
		StagePrice:   StatePending,
		StageSize:    StatePending,
		StageExecute: StatePending,
		StageJournal: StatePending,
		StageQueue:   StatePending,
	}
	sectionOrder := []string{
		"market_report",
		"sentiment_report",
		"news_report",
		"fundamentals_report",
		"investment_plan",
		"final_trade_decision",
	}
	return &Buffer{
		messages:     list.New(),
		maxLength:    maxLength,
		stageStatus:  stageStatus,
		sections:     make(map[string]string),
		sectionOrder: sectionOrder,
	}
}

// AddMessage appends a message, evicting the oldest past maxLength.
func (b *Buffer) AddMessage(msgType, content string) {
	b.messages.PushBack(Message{
		Timestamp: time.Now().Format("15:04:05"),
		Type:      msgType,
		Content:   content,
	})
	for b.maxLength > 0 && b.messages.Len() > b.maxLength {
		b.messages.Remove(b.messages.Front())
	}
}

// Messages returns the buffered messages in order.
func (b *Buffer) Messages() []Message {
	out := make([]Message, 0, b.messages.Len())
	for e := b.messages.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Message))
	}
	return out
}

// SetStage updates one stage's state.
func (b *Buffer) SetStage(stage, state string) {
	if _, ok := b.stageStatus[stage]; ok {
		b.stageStatus[stage] = state
	}
}

// StageStatus returns a copy of the stage state map.
func (b *Buffer) StageStatus() map[string]string {
	out := make(map[string]string, len(b.stageStatus))
	for k, v := range b.stageStatus {
		out[k] = v
	}
	return out
}

// SetSection records one report section of the decision context.
func (b *Buffer) SetSection(name, content string) {
	b.sections[name] = content
}

// Sections returns the populated report sections in canonical order.
func (b *Buffer) Sections() []string {
	out := make([]string, 0, len(b.sections))
	for _, name := range b.sectionOrder {
		if content, ok := b.sections[name]; ok && content != "" {
			out = append(out, content)
		}
	}
	return out
}
