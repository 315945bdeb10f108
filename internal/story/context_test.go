package story

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chickmaster/internal/config"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
)

// contextWith builds a context whose history holds one snapshot per value
// pair of money and reputation.
func contextWith(t *testing.T, b config.Balance, money, rep []float64) Context {
	t.Helper()
	require.Equal(t, len(money), len(rep))
	s := startState(t)
	var c Context
	for i := range money {
		var err error
		s, err = s.Set(metric.Money, money[i])
		require.NoError(t, err)
		s, err = s.Set(metric.Reputation, rep[i])
		require.NoError(t, err)
		if i == 0 {
			c = NewContext(b, s)
			continue
		}
		s, err = s.AdvanceDay()
		require.NoError(t, err)
		c = c.Record(s.Snapshot(nil, ""), nil, "")
	}
	return c
}

func TestContext_InsufficientData(t *testing.T) {
	c := NewContext(config.Default(), startState(t))

	assert.Len(t, c.Trend(metric.Money, 7), 1)
	assert.Equal(t, 0.0, c.Change(metric.Money, 7))
	assert.Equal(t, 0.0, c.Volatility(metric.Money, 7))
	assert.Equal(t, 0.0, c.Correlation(metric.Money, metric.Reputation, 7))
	assert.Empty(t, c.Trend(metric.Money, 0))
}

func TestContext_TrendChangeVolatility(t *testing.T) {
	c := contextWith(t, config.Default(),
		[]float64{100, 200, 150, 300, 250, 400, 350, 500},
		[]float64{10, 20, 30, 40, 50, 60, 70, 80})

	assert.Equal(t, []float64{200, 150, 300, 250, 400, 350, 500}, c.Trend(metric.Money, 7))
	assert.Equal(t, 300.0, c.Change(metric.Money, 7))
	assert.InDelta(t, 100.0, c.Volatility(metric.Money, 7), 1e-9)
	assert.Equal(t, 70.0, c.Change(metric.Reputation, 100))
}

func TestContext_Correlation(t *testing.T) {
	c := contextWith(t, config.Default(), []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	assert.InDelta(t, 1.0, c.Correlation(metric.Money, metric.Reputation, 4), 1e-9)

	c = contextWith(t, config.Default(), []float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	assert.InDelta(t, -1.0, c.Correlation(metric.Money, metric.Reputation, 4), 1e-9)
}

func TestContext_CorrelationZeroStdDev(t *testing.T) {
	c := contextWith(t, config.Default(), []float64{5, 5, 5, 5}, []float64{1, 2, 3, 4})
	r := c.Correlation(metric.Money, metric.Reputation, 4)
	assert.False(t, math.IsNaN(r))
	assert.Equal(t, 0.0, r)
}

func TestPearson_UnequalLength(t *testing.T) {
	assert.Equal(t, 0.0, pearson([]float64{1, 2, 3}, []float64{1, 2}, 2))
}

func TestContext_Stage(t *testing.T) {
	b := config.Default()
	for day, want := range map[int]string{1: "early", 244: "early", 245: "mid", 487: "mid", 488: "late", 730: "late"} {
		s, err := game.NewState(game.StateSpec{CurrentDay: day})
		require.NoError(t, err)
		c := NewContext(b, s)
		assert.Equal(t, want, c.Stage(), day)
	}
	s, err := game.NewState(game.StateSpec{CurrentDay: 365})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, NewContext(b, s).Progress(), 1e-9)
}

func TestContext_RecordIsImmutable(t *testing.T) {
	s := startState(t)
	c := NewContext(config.Default(), s)
	next, err := s.AdvanceDay()
	require.NoError(t, err)

	c2 := c.Record(next.Snapshot([]string{"e1"}, ""), []GameEvent{{EventID: "e1"}}, "rich")

	assert.Len(t, c.History(), 1)
	assert.Empty(t, c.RecentEvents(5))
	assert.Empty(t, c.Patterns())
	assert.Equal(t, 1, c.CurrentDay())

	assert.Len(t, c2.History(), 2)
	assert.Len(t, c2.RecentEvents(5), 1)
	assert.Equal(t, []string{"rich"}, c2.Patterns())
	assert.Equal(t, 2, c2.CurrentDay())
}

func TestContext_HistoryWindow(t *testing.T) {
	b := config.Default()
	b.HistoryWindow = 3
	c := contextWith(t, b, []float64{1, 2, 3, 4, 5}, []float64{1, 1, 1, 1, 1})

	assert.Equal(t, []float64{3, 4, 5}, c.Trend(metric.Money, 10))
}

func TestContext_RecentEventsNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := startState(t)
	c := NewContext(config.Default(), s)
	var evs []GameEvent
	for i := 0; i < 7; i++ {
		evs = append(evs, GameEvent{EventID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}
	c = c.Record(s.Snapshot(nil, ""), evs, "")

	got := c.RecentEvents(5)
	require.Len(t, got, 5)
	assert.Equal(t, "g", got[0].EventID)
	assert.Equal(t, "c", got[4].EventID)
}

func TestContext_Summary(t *testing.T) {
	c := contextWith(t, config.Default(), []float64{100, 300}, []float64{50, 40})
	sum := c.Summary()

	assert.Equal(t, 2, sum.Day)
	assert.Equal(t, "early", sum.Stage)
	assert.Equal(t, 200.0, sum.Changes[metric.Money])
	assert.Equal(t, -10.0, sum.Changes[metric.Reputation])
	assert.Equal(t, 0.0, sum.Changes[metric.Facility])
}
