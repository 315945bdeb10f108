package telemetry

import "time"

type EventType string

const (
	EventTurnProcessed  EventType = "turn_processed"
	EventEventFired     EventType = "event_fired"
	EventCascadeFired   EventType = "cascade_fired"
	EventCascadeTrimmed EventType = "cascade_trimmed"
	EventPatternFired   EventType = "pattern_fired"
	EventEffectSkipped  EventType = "effect_skipped"
	EventChoiceMade     EventType = "choice_made"
	EventRetryAttempt   EventType = "retry_attempt"
)

type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}

// Recorder is the write side of a Repository.
type Recorder interface {
	RecordEvent(eventType EventType, metadata EventMetadata) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) RecordEvent(EventType, EventMetadata) error { return nil }
