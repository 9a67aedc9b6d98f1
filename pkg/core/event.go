package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the coordinator.
type EventType string

const (
	EventRoundStarted   EventType = "round.started"
	EventRoundCompleted EventType = "round.completed"
	EventTurnStarted    EventType = "turn.started"
	EventTurnCompleted  EventType = "turn.completed"
	EventTurnFailed     EventType = "turn.failed"
	EventBudgetDenied   EventType = "budget.denied"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Agent     string
	Round     int
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent string, round int, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		Round:     round,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
