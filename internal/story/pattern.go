package story

import (
	"errors"
	"fmt"

	"chickmaster/internal/config"
	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
)

type Category string

const (
	CategoryGrowth     Category = "GROWTH"
	CategoryDecline    Category = "DECLINE"
	CategoryCrisis     Category = "CRISIS"
	CategoryRecovery   Category = "RECOVERY"
	CategoryStagnation Category = "STAGNATION"
	CategoryTradeoff   Category = "TRADEOFF"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryGrowth, CategoryDecline, CategoryCrisis, CategoryRecovery, CategoryStagnation, CategoryTradeoff:
		return true
	}
	return false
}

type Comparison string

const (
	Above   Comparison = "above"
	Below   Comparison = "below"
	Between Comparison = "between"
)

type PatternTrigger struct {
	Metric     metric.Metric `json:"metric" yaml:"metric"`
	Comparison Comparison    `json:"comparison" yaml:"comparison"`
	Threshold  float64       `json:"threshold" yaml:"threshold"`
	Secondary  *float64      `json:"secondary_value,omitempty" yaml:"secondary_value"`
}

// IsTriggered: above and below are strict, between is inclusive.
func (t PatternTrigger) IsTriggered(x float64) bool {
	switch t.Comparison {
	case Above:
		return x > t.Threshold
	case Below:
		return x < t.Threshold
	case Between:
		if t.Secondary == nil {
			return false
		}
		return t.Threshold <= x && x <= *t.Secondary
	}
	return false
}

func (t PatternTrigger) Validate() error {
	if !t.Metric.Valid() {
		return fmt.Errorf("trigger: %w: %q", metric.ErrInvalidMetric, t.Metric)
	}
	switch t.Comparison {
	case Above, Below:
	case Between:
		if t.Secondary == nil {
			return fmt.Errorf("trigger %s: between requires secondary_value", t.Metric)
		}
		if *t.Secondary < t.Threshold {
			return fmt.Errorf("trigger %s: secondary_value below threshold", t.Metric)
		}
	default:
		return fmt.Errorf("trigger %s: unknown comparison %q", t.Metric, t.Comparison)
	}
	return nil
}

type PatternEffect struct {
	Metric       metric.Metric `json:"metric" yaml:"metric"`
	Value        float64       `json:"value,omitempty" yaml:"value"`
	IsMultiplier bool          `json:"is_multiplier,omitempty" yaml:"is_multiplier"`
	Formula      string        `json:"formula,omitempty" yaml:"formula"`
}

func (e PatternEffect) Effect() event.Effect {
	return event.Effect{Metric: e.Metric, Value: e.Value, IsMultiplier: e.IsMultiplier, Formula: e.Formula}
}

// Pattern classifies the shop's situation and nudges its metrics.
type Pattern struct {
	ID             string          `json:"id" yaml:"id"`
	Name           event.Text      `json:"names" yaml:"names"`
	Description    event.Text      `json:"descriptions" yaml:"descriptions"`
	Category       Category        `json:"category" yaml:"category"`
	Severity       float64         `json:"severity" yaml:"severity"`
	Trigger        PatternTrigger  `json:"trigger" yaml:"trigger"`
	Effects        []PatternEffect `json:"effects,omitempty" yaml:"effects"`
	RelatedMetrics []metric.Metric `json:"related_metrics,omitempty" yaml:"related_metrics"`
	Tags           []string        `json:"tags,omitempty" yaml:"tags"`
	CooldownDays   int             `json:"cooldown_days" yaml:"cooldown_days"`
	Probability    float64         `json:"probability" yaml:"probability"`
}

func (p Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern: missing id")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("pattern %s: unknown category %q", p.ID, p.Category)
	}
	if p.Severity < 0 || p.Severity > 1 {
		return fmt.Errorf("pattern %s: severity %v outside [0, 1]", p.ID, p.Severity)
	}
	if p.Probability < 0 || p.Probability > 1 {
		return fmt.Errorf("pattern %s: probability %v outside [0, 1]", p.ID, p.Probability)
	}
	if p.CooldownDays < 0 {
		return fmt.Errorf("pattern %s: negative cooldown_days", p.ID)
	}
	if err := p.Trigger.Validate(); err != nil {
		return fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	for _, e := range p.Effects {
		if !e.Metric.Valid() {
			return fmt.Errorf("pattern %s: effect: %w: %q", p.ID, metric.ErrInvalidMetric, e.Metric)
		}
	}
	for _, m := range p.RelatedMetrics {
		if !m.Valid() {
			return fmt.Errorf("pattern %s: related: %w: %q", p.ID, metric.ErrInvalidMetric, m)
		}
	}
	return nil
}

func (p Pattern) SeverityLevel(b config.Balance) string {
	return b.SeverityLevel(p.Severity)
}

// Apply runs every effect against s. Effects with unsupported formulas are
// skipped and reported in skipped.
func (p Pattern) Apply(s game.State) (next game.State, skipped []PatternEffect, err error) {
	next = s
	for _, pe := range p.Effects {
		n, err := pe.Effect().Apply(next)
		if err != nil {
			if errors.Is(err, event.ErrFormulaUnsupported) {
				skipped = append(skipped, pe)
				continue
			}
			return s, nil, err
		}
		next = n
	}
	return next, skipped, nil
}
