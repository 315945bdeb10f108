package event

import (
	"fmt"
)

// Choice is a player decision offered by an event.
type Choice struct {
	ID            string   `json:"id"`
	Text          Text     `json:"text"`
	Effects       []Effect `json:"effects,omitempty"`
	CascadeEvents []Event  `json:"cascade_events,omitempty"`
}

// Event is a catalog template. Per-run cooldown lives in the engine, keyed
// by ID.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Name          Text      `json:"names"`
	Description   Text      `json:"descriptions"`
	Severity      Severity  `json:"severity"`
	Probability   float64   `json:"probability"`
	Triggers      []Trigger `json:"triggers,omitempty"`
	Threshold     *Trigger  `json:"trigger,omitempty"`
	Effects       []Effect  `json:"effects,omitempty"`
	Choices       []Choice  `json:"choices,omitempty"`
	CascadeEvents []Event   `json:"cascade_events,omitempty"`
	CooldownDays  int       `json:"cooldown_days"`
	Tags          []string  `json:"tags,omitempty"`
}

// Choice returns the choice with the given id.
func (e Event) Choice(id string) (Choice, bool) {
	for _, c := range e.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event: missing id")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("event %s: unknown type %q", e.ID, e.Type)
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("event %s: unknown severity %q", e.ID, e.Severity)
	}
	if e.Probability < 0 || e.Probability > 1 {
		return fmt.Errorf("event %s: probability %v outside [0, 1]", e.ID, e.Probability)
	}
	if e.CooldownDays < 0 {
		return fmt.Errorf("event %s: negative cooldown_days", e.ID)
	}
	for _, t := range e.Triggers {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	if e.Threshold != nil {
		if err := e.Threshold.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	if err := validateEffects(e.ID, e.Effects); err != nil {
		return err
	}

	seen := make(map[string]bool, len(e.Choices))
	for _, c := range e.Choices {
		if c.ID == "" {
			return fmt.Errorf("event %s: choice missing id", e.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("event %s: duplicate choice %s", e.ID, c.ID)
		}
		seen[c.ID] = true
		if err := validateEffects(e.ID+"/"+c.ID, c.Effects); err != nil {
			return err
		}
		for _, child := range c.CascadeEvents {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("event %s/%s: %w", e.ID, c.ID, err)
			}
		}
	}
	for _, child := range e.CascadeEvents {
		if err := child.Validate(); err != nil {
			return fmt.Errorf("event %s: cascade: %w", e.ID, err)
		}
	}
	return nil
}

func validateEffects(owner string, effects []Effect) error {
	for _, eff := range effects {
		if err := eff.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", owner, err)
		}
	}
	return nil
}
