package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"chickmaster/internal/metric"
)

// Settings overrides individual starting values. Nil fields keep the
// balance default.
type Settings struct {
	Money        *float64 `json:"money,omitempty" yaml:"money"`
	Reputation   *float64 `json:"reputation,omitempty" yaml:"reputation"`
	Happiness    *float64 `json:"happiness,omitempty" yaml:"happiness"`
	Suffering    *float64 `json:"suffering,omitempty" yaml:"suffering"`
	Inventory    *float64 `json:"inventory,omitempty" yaml:"inventory"`
	StaffFatigue *float64 `json:"staff_fatigue,omitempty" yaml:"staff_fatigue"`
	Facility     *float64 `json:"facility,omitempty" yaml:"facility"`
	Demand       *float64 `json:"demand,omitempty" yaml:"demand"`
	CurrentDay   *int     `json:"current_day,omitempty" yaml:"current_day"`
}

func (s *Settings) field(m metric.Metric) **float64 {
	switch m {
	case metric.Money:
		return &s.Money
	case metric.Reputation:
		return &s.Reputation
	case metric.Happiness:
		return &s.Happiness
	case metric.Suffering:
		return &s.Suffering
	case metric.Inventory:
		return &s.Inventory
	case metric.StaffFatigue:
		return &s.StaffFatigue
	case metric.Facility:
		return &s.Facility
	case metric.Demand:
		return &s.Demand
	}
	return nil
}

// Lookup returns the override for m, if any.
func (s Settings) Lookup(m metric.Metric) (float64, bool) {
	p := s.field(m)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// Resolve layers the overrides over base.
func (s Settings) Resolve(base Starting) Starting {
	out := base
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&out.Money, s.Money)
	set(&out.Reputation, s.Reputation)
	set(&out.Happiness, s.Happiness)
	set(&out.Suffering, s.Suffering)
	set(&out.Inventory, s.Inventory)
	set(&out.StaffFatigue, s.StaffFatigue)
	set(&out.Facility, s.Facility)
	set(&out.Demand, s.Demand)
	if s.CurrentDay != nil {
		out.Day = *s.CurrentDay
	}
	return out
}

// Check validates the overrides against the balance caps and run length.
func (s Settings) Check(b Balance) error {
	return b.checkStarting(s.Resolve(b.Starting))
}

// SettingsFromMap builds Settings from loosely typed options as callers
// outside the core pass them. Unknown keys and non-numeric values fail.
func SettingsFromMap(opts map[string]any) (Settings, error) {
	var s Settings
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v, ok := toFloat(opts[key])
		if !ok {
			return Settings{}, fmt.Errorf("%w: %s must be numeric, got %T", ErrConfig, key, opts[key])
		}
		if strings.EqualFold(key, "current_day") {
			if v != math.Trunc(v) {
				return Settings{}, fmt.Errorf("%w: current_day must be a whole number", ErrConfig)
			}
			day := int(v)
			s.CurrentDay = &day
			continue
		}
		m, err := metric.Parse(key)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: unknown setting %q", ErrConfig, key)
		}
		val := v
		*s.field(m) = &val
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
