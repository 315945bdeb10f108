package game

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"chickmaster/internal/metric"
)

// ErrRunComplete is returned when a run is asked to move past its last day.
var ErrRunComplete = errors.New("run already at final day")

// ErrInvalidDay marks a current day outside [1, total days].
var ErrInvalidDay = errors.New("invalid day")

// State is an immutable snapshot of the shop. Every mutator returns a new
// value and leaves the receiver untouched.
type State struct {
	values      [metric.Count]float64
	caps        metric.Caps
	currentDay  int
	totalDays   int
	history     []string
	lastUpdated time.Time
}

// StateSpec describes a snapshot to build with NewState. Zero Caps select
// the default caps and zero TotalDays selects 730.
type StateSpec struct {
	Values      map[metric.Metric]float64
	Caps        metric.Caps
	CurrentDay  int
	TotalDays   int
	History     []string
	LastUpdated time.Time
}

func NewState(spec StateSpec) (State, error) {
	s := State{
		caps:        spec.Caps,
		currentDay:  spec.CurrentDay,
		totalDays:   spec.TotalDays,
		lastUpdated: spec.LastUpdated,
	}
	if s.caps == (metric.Caps{}) {
		s.caps = metric.DefaultCaps()
	}
	if s.totalDays == 0 {
		s.totalDays = 730
	}
	if s.currentDay == 0 {
		s.currentDay = 1
	}
	if s.currentDay < 1 || s.currentDay > s.totalDays {
		return State{}, fmt.Errorf("%w: %d outside [1, %d]", ErrInvalidDay, s.currentDay, s.totalDays)
	}
	for m, v := range spec.Values {
		i := metric.Index(m)
		if i < 0 {
			return State{}, fmt.Errorf("%w: %q", metric.ErrInvalidMetric, m)
		}
		s.values[i] = s.caps.Clamp(m, v)
	}
	if len(spec.History) > 0 {
		s.history = append([]string(nil), spec.History...)
	}
	return s, nil
}

// Value returns the current value of m, or 0 for an unknown metric.
func (s State) Value(m metric.Metric) float64 {
	v, _ := s.Lookup(m)
	return v
}

func (s State) Lookup(m metric.Metric) (float64, bool) {
	i := metric.Index(m)
	if i < 0 {
		return 0, false
	}
	return s.values[i], true
}

// Metrics returns a copy of every metric value.
func (s State) Metrics() map[metric.Metric]float64 {
	out := make(map[metric.Metric]float64, metric.Count)
	for _, m := range metric.All() {
		out[m] = s.values[metric.Index(m)]
	}
	return out
}

func (s State) CurrentDay() int        { return s.currentDay }
func (s State) TotalDays() int         { return s.totalDays }
func (s State) LastUpdated() time.Time { return s.lastUpdated }
func (s State) Caps() metric.Caps      { return s.caps }
func (s State) Final() bool            { return s.currentDay >= s.totalDays }
func (s State) Progress() float64      { return float64(s.currentDay) / float64(s.totalDays) }
func (s State) HistoryLen() int        { return len(s.history) }
func (s State) InWarningZone(m metric.Metric) bool {
	return metric.InWarningZone(m, s.Value(m))
}

// History returns the fired event ids in order.
func (s State) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Warnings lists metrics currently in their warning zone, in canonical order.
func (s State) Warnings() []metric.Metric {
	var out []metric.Metric
	for _, m := range metric.All() {
		if s.InWarningZone(m) {
			out = append(out, m)
		}
	}
	return out
}

// ApplyEffects adds each delta and clamps the result. Unknown metrics fail
// the whole call and the receiver stays authoritative.
func (s State) ApplyEffects(deltas map[metric.Metric]float64) (State, error) {
	keys := make([]metric.Metric, 0, len(deltas))
	for m := range deltas {
		if !m.Valid() {
			return s, fmt.Errorf("%w: %q", metric.ErrInvalidMetric, m)
		}
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return metric.Index(keys[i]) < metric.Index(keys[j]) })

	next := s
	for _, m := range keys {
		i := metric.Index(m)
		next.values[i] = s.caps.Clamp(m, next.values[i]+deltas[m])
	}
	return next, nil
}

// Set replaces the value of m, clamped to its cap.
func (s State) Set(m metric.Metric, v float64) (State, error) {
	i := metric.Index(m)
	if i < 0 {
		return s, fmt.Errorf("%w: %q", metric.ErrInvalidMetric, m)
	}
	next := s
	next.values[i] = s.caps.Clamp(m, v)
	return next, nil
}

// AddEventToHistory appends id to a fresh copy of the history.
func (s State) AddEventToHistory(id string) State {
	next := s
	next.history = make([]string, len(s.history), len(s.history)+1)
	copy(next.history, s.history)
	next.history = append(next.history, id)
	return next
}

// AdvanceDay moves to the next day.
func (s State) AdvanceDay() (State, error) {
	if s.Final() {
		return s, ErrRunComplete
	}
	next := s
	next.currentDay++
	return next, nil
}

// Touch stamps the snapshot with t.
func (s State) Touch(t time.Time) State {
	next := s
	next.lastUpdated = t
	return next
}

// Fact resolves a trigger subject against the snapshot. Metric tags map to
// their value and DAY to the current day.
func (s State) Fact(name string) (any, bool) {
	if name == "DAY" {
		return float64(s.currentDay), true
	}
	m, err := metric.Parse(name)
	if err != nil {
		return nil, false
	}
	return s.Value(m), true
}

// MetricSnapshot records one day of a run.
type MetricSnapshot struct {
	Day       int                       `json:"day"`
	Timestamp time.Time                 `json:"timestamp"`
	Metrics   map[metric.Metric]float64 `json:"metrics"`
	Events    []string                  `json:"events"`
	Modifier  string                    `json:"modifier,omitempty"`
}

// Snapshot captures the state with the events fired on its day.
func (s State) Snapshot(events []string, modifier string) MetricSnapshot {
	return MetricSnapshot{
		Day:       s.currentDay,
		Timestamp: s.lastUpdated,
		Metrics:   s.Metrics(),
		Events:    append([]string{}, events...),
		Modifier:  modifier,
	}
}
