package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period         string            `json:"period"`
	EventCounts    map[EventType]int `json:"event_counts"`
	Turns          int               `json:"turns"`
	EventsPerTurn  float64           `json:"events_per_turn"`
	FiresByEvent   map[string]int    `json:"fires_by_event"`
	PatternHits    map[string]int    `json:"pattern_hits"`
	CascadeFires   int               `json:"cascade_fires"`
	CascadeTrimmed int               `json:"cascade_trimmed"`
	EffectsSkipped int               `json:"effects_skipped"`
	RetryAttempts  int               `json:"retry_attempts"`
}

// CalculateStats computes balance stats from events
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:       since.Format("2006-01-02"),
		EventCounts:  make(map[EventType]int),
		FiresByEvent: make(map[string]int),
		PatternHits:  make(map[string]int),
	}

	fires := 0
	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTurnProcessed:
			stats.Turns++
		case EventEventFired:
			fires++
			if id, ok := metadata["event_id"].(string); ok {
				stats.FiresByEvent[id]++
			}
		case EventCascadeFired:
			fires++
			stats.CascadeFires++
			if id, ok := metadata["event_id"].(string); ok {
				stats.FiresByEvent[id]++
			}
		case EventCascadeTrimmed:
			if n, ok := metadata["count"].(float64); ok {
				stats.CascadeTrimmed += int(n)
			}
		case EventPatternFired:
			if id, ok := metadata["pattern_id"].(string); ok {
				stats.PatternHits[id]++
			}
		case EventEffectSkipped:
			stats.EffectsSkipped++
		case EventRetryAttempt:
			stats.RetryAttempts++
		}
	}

	if stats.Turns > 0 {
		stats.EventsPerTurn = float64(fires) / float64(stats.Turns)
	}

	return stats, nil
}
