package story

import (
	"math"
	"sort"
	"time"

	"chickmaster/internal/config"
	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
)

// GameEvent is an occurrence remembered by the context.
type GameEvent struct {
	EventID         string          `json:"event_id"`
	Description     event.Text      `json:"description"`
	Day             int             `json:"day"`
	Timestamp       time.Time       `json:"timestamp"`
	Severity        float64         `json:"severity"`
	AffectedMetrics []metric.Metric `json:"affected_metrics,omitempty"`
}

// recentLimit bounds how many events the context remembers.
const recentLimit = 64

// Context is an immutable analytic view over a run's history.
type Context struct {
	balance      config.Balance
	currentDay   int
	totalDays    int
	current      map[metric.Metric]float64
	history      []game.MetricSnapshot
	recentEvents []GameEvent
	patterns     []string
}

// NewContext starts a context at s with s as its first snapshot.
func NewContext(b config.Balance, s game.State) Context {
	return Context{
		balance:    b,
		currentDay: s.CurrentDay(),
		totalDays:  s.TotalDays(),
		current:    s.Metrics(),
		history:    []game.MetricSnapshot{s.Snapshot(nil, "")},
	}
}

// Record returns a new context advanced to snap. patternID may be empty.
func (c Context) Record(snap game.MetricSnapshot, events []GameEvent, patternID string) Context {
	next := c
	next.currentDay = snap.Day
	next.current = make(map[metric.Metric]float64, len(snap.Metrics))
	for m, v := range snap.Metrics {
		next.current[m] = v
	}

	next.history = appendCapped(c.history, snap, c.balance.HistoryWindow)
	next.recentEvents = make([]GameEvent, 0, len(c.recentEvents)+len(events))
	next.recentEvents = append(next.recentEvents, c.recentEvents...)
	next.recentEvents = append(next.recentEvents, events...)
	if over := len(next.recentEvents) - recentLimit; over > 0 {
		next.recentEvents = next.recentEvents[over:]
	}

	next.patterns = append([]string(nil), c.patterns...)
	if patternID != "" {
		next.patterns = append(next.patterns, patternID)
		if over := len(next.patterns) - c.balance.TrendWindowDays; over > 0 {
			next.patterns = next.patterns[over:]
		}
	}
	return next
}

func appendCapped(in []game.MetricSnapshot, snap game.MetricSnapshot, limit int) []game.MetricSnapshot {
	out := make([]game.MetricSnapshot, 0, len(in)+1)
	out = append(out, in...)
	out = append(out, snap)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (c Context) CurrentDay() int { return c.currentDay }
func (c Context) TotalDays() int  { return c.totalDays }

func (c Context) CurrentMetrics() map[metric.Metric]float64 {
	out := make(map[metric.Metric]float64, len(c.current))
	for m, v := range c.current {
		out[m] = v
	}
	return out
}

func (c Context) History() []game.MetricSnapshot {
	return append([]game.MetricSnapshot(nil), c.history...)
}

// Patterns lists the pattern ids that fired within the trend window.
func (c Context) Patterns() []string {
	return append([]string(nil), c.patterns...)
}

func (c Context) Progress() float64 {
	if c.totalDays == 0 {
		return 0
	}
	return float64(c.currentDay) / float64(c.totalDays)
}

func (c Context) Stage() string { return c.balance.Stage(c.currentDay) }

// RecentEvents returns up to count events, newest first.
func (c Context) RecentEvents(count int) []GameEvent {
	evs := append([]GameEvent(nil), c.recentEvents...)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp.After(evs[j].Timestamp) })
	if count >= 0 && len(evs) > count {
		evs = evs[:count]
	}
	return evs
}

// Trend returns the last days values of m, oldest first.
func (c Context) Trend(m metric.Metric, days int) []float64 {
	if days <= 0 {
		return nil
	}
	start := len(c.history) - days
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, len(c.history)-start)
	for _, snap := range c.history[start:] {
		out = append(out, snap.Metrics[m])
	}
	return out
}

func (c Context) enough(values []float64) bool {
	minPoints := c.balance.MinimumTrendPoints
	if minPoints < 2 {
		minPoints = 2
	}
	return len(values) >= minPoints
}

// Change is last minus first over the window.
func (c Context) Change(m metric.Metric, days int) float64 {
	t := c.Trend(m, days)
	if !c.enough(t) {
		return 0
	}
	return t[len(t)-1] - t[0]
}

// Volatility is the mean absolute day-to-day difference over the window.
func (c Context) Volatility(m metric.Metric, days int) float64 {
	t := c.Trend(m, days)
	if !c.enough(t) {
		return 0
	}
	var sum float64
	for i := 1; i < len(t); i++ {
		sum += math.Abs(t[i] - t[i-1])
	}
	return sum / float64(len(t)-1)
}

// Correlation is the Pearson coefficient of two metrics over the window.
func (c Context) Correlation(m1, m2 metric.Metric, days int) float64 {
	return pearson(c.Trend(m1, days), c.Trend(m2, days), c.balance.MinimumTrendPoints)
}

func pearson(xs, ys []float64, minPoints int) float64 {
	if minPoints < 2 {
		minPoints = 2
	}
	n := len(xs)
	if n != len(ys) || n < minPoints {
		return 0
	}
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	r := cov / math.Sqrt(vx*vy)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Summary is a compact view for logs and UIs.
type Summary struct {
	Day        int                       `json:"day"`
	Stage      string                    `json:"stage"`
	Progress   float64                   `json:"progress"`
	Changes    map[metric.Metric]float64 `json:"changes"`
	Volatility map[metric.Metric]float64 `json:"volatility"`
	Patterns   []string                  `json:"patterns,omitempty"`
}

func (c Context) Summary() Summary {
	days := c.balance.TrendWindowDays
	s := Summary{
		Day:        c.currentDay,
		Stage:      c.Stage(),
		Progress:   c.Progress(),
		Changes:    make(map[metric.Metric]float64, metric.Count),
		Volatility: make(map[metric.Metric]float64, metric.Count),
		Patterns:   c.Patterns(),
	}
	for _, m := range metric.All() {
		s.Changes[m] = c.Change(m, days)
		s.Volatility[m] = c.Volatility(m, days)
	}
	return s
}
