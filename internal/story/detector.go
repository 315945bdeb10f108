package story

import (
	"log/slog"
	"sort"

	"chickmaster/internal/game"
)

// Rand is the uniform [0,1) source used for probability rolls.
type Rand interface {
	Float64() float64
}

// Hit is a pattern that fired on a turn.
type Hit struct {
	Pattern Pattern `json:"pattern"`
	// Observed is the trigger metric's value when the pattern fired.
	Observed float64 `json:"observed"`
	Level    string  `json:"level"`
}

// Detector evaluates patterns once per turn and owns their cooldowns.
type Detector struct {
	patterns  []Pattern
	cooldowns map[string]int
	rng       Rand
	levels    func(float64) string
}

// NewDetector sorts patterns by id. levels classifies pattern severity.
func NewDetector(patterns []Pattern, rng Rand, levels func(float64) string) *Detector {
	ps := append([]Pattern(nil), patterns...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	return &Detector{patterns: ps, cooldowns: make(map[string]int, len(ps)), rng: rng, levels: levels}
}

func (d *Detector) Patterns() []Pattern {
	return append([]Pattern(nil), d.patterns...)
}

func (d *Detector) Cooldown(id string) int { return d.cooldowns[id] }

// Clone copies the cooldown map; rng replaces the random source.
func (d *Detector) Clone(rng Rand) *Detector {
	c := &Detector{patterns: d.patterns, cooldowns: make(map[string]int, len(d.cooldowns)), rng: rng, levels: d.levels}
	for k, v := range d.cooldowns {
		c.cooldowns[k] = v
	}
	return c
}

// Detect ticks every cooldown down by one, then fires at most one pattern:
// the first by id whose trigger holds and whose roll passes.
func (d *Detector) Detect(s game.State) (*Hit, game.State) {
	for id, cd := range d.cooldowns {
		if cd > 0 {
			d.cooldowns[id] = cd - 1
		}
	}

	for _, p := range d.patterns {
		if d.cooldowns[p.ID] > 0 {
			continue
		}
		x := s.Value(p.Trigger.Metric)
		if !p.Trigger.IsTriggered(x) {
			continue
		}
		if d.rng.Float64() >= p.Probability {
			continue
		}

		next, skipped, err := p.Apply(s)
		if err != nil {
			slog.Error("pattern effects failed", "pattern", p.ID, "error", err)
			continue
		}
		for _, pe := range skipped {
			slog.Warn("pattern effect skipped", "pattern", p.ID, "metric", pe.Metric, "formula", pe.Formula)
		}
		d.cooldowns[p.ID] = p.CooldownDays

		level := ""
		if d.levels != nil {
			level = d.levels(p.Severity)
		}
		return &Hit{Pattern: p, Observed: x, Level: level}, next
	}
	return nil, s
}
