package config

import (
	"errors"
	"fmt"

	"chickmaster/internal/metric"
)

// ErrConfig marks invalid settings or out-of-range configuration values.
var ErrConfig = errors.New("invalid configuration")

// Starting holds the metric values and day a fresh run begins with.
type Starting struct {
	Money        float64 `json:"money" yaml:"money"`
	Reputation   float64 `json:"reputation" yaml:"reputation"`
	Happiness    float64 `json:"happiness" yaml:"happiness"`
	Suffering    float64 `json:"suffering" yaml:"suffering"`
	Inventory    float64 `json:"inventory" yaml:"inventory"`
	StaffFatigue float64 `json:"staff_fatigue" yaml:"staff_fatigue"`
	Facility     float64 `json:"facility" yaml:"facility"`
	Demand       float64 `json:"demand" yaml:"demand"`
	Day          int     `json:"current_day" yaml:"current_day"`
}

// Values returns the starting metrics keyed by tag.
func (s Starting) Values() map[metric.Metric]float64 {
	return map[metric.Metric]float64{
		metric.Money:        s.Money,
		metric.Reputation:   s.Reputation,
		metric.Happiness:    s.Happiness,
		metric.Suffering:    s.Suffering,
		metric.Inventory:    s.Inventory,
		metric.StaffFatigue: s.StaffFatigue,
		metric.Facility:     s.Facility,
		metric.Demand:       s.Demand,
	}
}

// Balance holds the simulation constants.
type Balance struct {
	// Run length and stages
	TotalGameDays      int `json:"total_game_days" yaml:"total_game_days"`
	EarlyGameThreshold int `json:"early_game_threshold" yaml:"early_game_threshold"`
	MidGameThreshold   int `json:"mid_game_threshold" yaml:"mid_game_threshold"`

	// Analytics
	MinimumTrendPoints int `json:"minimum_trend_points" yaml:"minimum_trend_points"`
	TrendWindowDays    int `json:"trend_window_days" yaml:"trend_window_days"`
	RecentEventsCount  int `json:"recent_events_count" yaml:"recent_events_count"`
	// HistoryWindow caps retained snapshots; 0 keeps all of them.
	HistoryWindow int `json:"history_window" yaml:"history_window"`

	// Severity classification
	ProbabilityHighThreshold   float64 `json:"probability_high_threshold" yaml:"probability_high_threshold"`
	ProbabilityMediumThreshold float64 `json:"probability_medium_threshold" yaml:"probability_medium_threshold"`

	// Events
	EventCooldownDays int `json:"event_cooldown_days" yaml:"event_cooldown_days"`
	MaxCascadeDepth   int `json:"max_cascade_depth" yaml:"max_cascade_depth"`

	// Tracker retry
	MaxRetryAttempts int     `json:"max_retry_attempts" yaml:"max_retry_attempts"`
	TimeoutSeconds   float64 `json:"timeout_seconds" yaml:"timeout_seconds"`

	// Caps overrides keyed by metric field name; missing entries use the defaults.
	Caps     map[string]float64 `json:"caps,omitempty" yaml:"caps,omitempty"`
	Starting Starting           `json:"starting" yaml:"starting"`
}

// Default returns the default balance configuration
func Default() Balance {
	return Balance{
		TotalGameDays:              730,
		EarlyGameThreshold:         244,
		MidGameThreshold:           487,
		MinimumTrendPoints:         2,
		TrendWindowDays:            7,
		RecentEventsCount:          5,
		HistoryWindow:              0,
		ProbabilityHighThreshold:   0.7,
		ProbabilityMediumThreshold: 0.4,
		EventCooldownDays:          7,
		MaxCascadeDepth:            3,
		MaxRetryAttempts:           3,
		TimeoutSeconds:             1.0,
		Starting: Starting{
			Money:        10000,
			Reputation:   50,
			Happiness:    50,
			Suffering:    20,
			Inventory:    100,
			StaffFatigue: 30,
			Facility:     80,
			Demand:       50,
			Day:          1,
		},
	}
}

// Casual returns a gentler run with more cash and slower event repeats
func Casual() Balance {
	cfg := Default()
	cfg.Starting.Money = 15000
	cfg.Starting.Reputation = 60
	cfg.Starting.StaffFatigue = 20
	cfg.EventCooldownDays = 10
	cfg.MaxCascadeDepth = 2
	return cfg
}

// Hard returns a tighter run for experienced players
func Hard() Balance {
	cfg := Default()
	cfg.Starting.Money = 5000
	cfg.Starting.Reputation = 40
	cfg.Starting.StaffFatigue = 45
	cfg.Starting.Facility = 60
	cfg.EventCooldownDays = 5
	cfg.MaxCascadeDepth = 4
	return cfg
}

// MetricCaps resolves Caps overrides on top of the default caps.
func (b Balance) MetricCaps() metric.Caps {
	caps := metric.DefaultCaps()
	for key, v := range b.Caps {
		m, err := metric.Parse(key)
		if err != nil {
			continue
		}
		caps[metric.Index(m)] = v
	}
	return caps
}

// Stage classifies a day into early, mid or late.
func (b Balance) Stage(day int) string {
	switch {
	case day <= b.EarlyGameThreshold:
		return "early"
	case day <= b.MidGameThreshold:
		return "mid"
	default:
		return "late"
	}
}

// SeverityLevel maps a [0,1] severity onto high, medium or low.
func (b Balance) SeverityLevel(severity float64) string {
	switch {
	case severity >= b.ProbabilityHighThreshold:
		return "high"
	case severity >= b.ProbabilityMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

func (b Balance) Validate() error {
	if b.TotalGameDays <= 0 {
		return fmt.Errorf("%w: total_game_days must be positive, got %d", ErrConfig, b.TotalGameDays)
	}
	if b.EarlyGameThreshold <= 0 || b.EarlyGameThreshold >= b.MidGameThreshold || b.MidGameThreshold >= b.TotalGameDays {
		return fmt.Errorf("%w: stage thresholds must satisfy 0 < early < mid < total (%d, %d, %d)",
			ErrConfig, b.EarlyGameThreshold, b.MidGameThreshold, b.TotalGameDays)
	}
	if b.MinimumTrendPoints < 2 {
		return fmt.Errorf("%w: minimum_trend_points must be at least 2", ErrConfig)
	}
	if b.TrendWindowDays < 1 || b.RecentEventsCount < 1 || b.HistoryWindow < 0 {
		return fmt.Errorf("%w: analytics windows must be positive", ErrConfig)
	}
	if b.ProbabilityMediumThreshold < 0 || b.ProbabilityMediumThreshold > b.ProbabilityHighThreshold || b.ProbabilityHighThreshold > 1 {
		return fmt.Errorf("%w: severity thresholds must satisfy 0 <= medium <= high <= 1", ErrConfig)
	}
	if b.EventCooldownDays < 0 || b.MaxCascadeDepth < 0 {
		return fmt.Errorf("%w: cooldown and cascade depth must not be negative", ErrConfig)
	}
	if b.MaxRetryAttempts < 1 || b.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: retry attempts must be >= 1 and timeout >= 0", ErrConfig)
	}
	for key, v := range b.Caps {
		if _, err := metric.Parse(key); err != nil {
			return fmt.Errorf("%w: caps: %v", ErrConfig, err)
		}
		if v <= 0 {
			return fmt.Errorf("%w: cap for %s must be positive", ErrConfig, key)
		}
	}
	return b.checkStarting(b.Starting)
}

func (b Balance) checkStarting(s Starting) error {
	caps := b.MetricCaps()
	for m, v := range s.Values() {
		if v < 0 || v > caps.Of(m) {
			return fmt.Errorf("%w: starting %s=%v outside [0, %v]", ErrConfig, m.Key(), v, caps.Of(m))
		}
	}
	if s.Day < 1 || s.Day > b.TotalGameDays {
		return fmt.Errorf("%w: starting day %d outside [1, %d]", ErrConfig, s.Day, b.TotalGameDays)
	}
	return nil
}
