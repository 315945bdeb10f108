package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_RecordAndFilter(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	repo := NewMemoryRepository().WithClock(func() time.Time { return now })

	require.NoError(t, repo.RecordEvent(EventTurnProcessed, EventMetadata{"day": 1}))
	now = base.Add(time.Hour)
	require.NoError(t, repo.RecordEvent(EventEventFired, EventMetadata{"event_id": "lunch_rush"}))

	all, err := repo.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEqual(t, all[0].ID, all[1].ID)
	assert.Len(t, all[0].ID, 36)

	later, err := repo.GetEvents(base.Add(time.Minute), nil)
	require.NoError(t, err)
	assert.Len(t, later, 1)

	fired, err := repo.GetEvents(time.Time{}, []EventType{EventEventFired})
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.JSONEq(t, `{"event_id":"lunch_rush"}`, fired[0].Metadata)

	require.NoError(t, repo.Clear())
	all, err = repo.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCalculateStats(t *testing.T) {
	repo := NewMemoryRepository()
	rec := func(et EventType, md EventMetadata) { require.NoError(t, repo.RecordEvent(et, md)) }

	rec(EventTurnProcessed, EventMetadata{"day": 1})
	rec(EventEventFired, EventMetadata{"event_id": "a"})
	rec(EventCascadeFired, EventMetadata{"event_id": "b", "depth": 1})
	rec(EventTurnProcessed, EventMetadata{"day": 2})
	rec(EventEventFired, EventMetadata{"event_id": "a"})
	rec(EventCascadeTrimmed, EventMetadata{"count": 2})
	rec(EventPatternFired, EventMetadata{"pattern_id": "booming_sales"})
	rec(EventEffectSkipped, EventMetadata{"formula": "value * 2"})
	rec(EventRetryAttempt, EventMetadata{"attempt": 1})

	events, err := repo.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	stats, err := CalculateStats(events, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Turns)
	assert.Equal(t, 1.5, stats.EventsPerTurn)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, stats.FiresByEvent)
	assert.Equal(t, 1, stats.CascadeFires)
	assert.Equal(t, 2, stats.CascadeTrimmed)
	assert.Equal(t, map[string]int{"booming_sales": 1}, stats.PatternHits)
	assert.Equal(t, 1, stats.EffectsSkipped)
	assert.Equal(t, 1, stats.RetryAttempts)
	assert.Equal(t, 2, stats.EventCounts[EventTurnProcessed])
}
