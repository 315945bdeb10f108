package game

import (
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"chickmaster/internal/metric"
)

// Modifier is a named rule consulted once at the end of every turn. It sees
// the snapshot the turn started from and the one it produced.
type Modifier interface {
	Name() string
	Apply(before, after State) State
}

// Seesaw keeps happiness and suffering summing to 100. Whichever side moved
// during the turn drives the other; happiness wins when both moved.
type Seesaw struct{}

func (Seesaw) Name() string { return "seesaw" }

func (Seesaw) Apply(before, after State) State {
	h, s := after.Value(metric.Happiness), after.Value(metric.Suffering)
	switch {
	case h != before.Value(metric.Happiness):
		next, _ := after.Set(metric.Suffering, 100-h)
		return next
	case s != before.Value(metric.Suffering):
		next, _ := after.Set(metric.Happiness, 100-s)
		return next
	}
	return after
}

// Tradeoff couples a gain in Source to a rise in Target by Ratio, e.g.
// reputation gained through a price cut tires the staff.
type Tradeoff struct {
	Source metric.Metric
	Target metric.Metric
	Ratio  float64
}

// PriceFatigue is the reputation → staff fatigue tradeoff.
func PriceFatigue() Tradeoff {
	return Tradeoff{Source: metric.Reputation, Target: metric.StaffFatigue, Ratio: 0.5}
}

func (t Tradeoff) Name() string {
	return "tradeoff:" + t.Source.Key() + ">" + t.Target.Key()
}

func (t Tradeoff) Apply(before, after State) State {
	gain := after.Value(t.Source) - before.Value(t.Source)
	if gain <= 0 {
		return after
	}
	next, err := after.ApplyEffects(map[metric.Metric]float64{t.Target: gain * t.Ratio})
	if err != nil {
		return after
	}
	return next
}

// Fluctuation perturbs every metric outside the happiness/suffering pair by
// up to ±Intensity of its value. The noise is smooth across days and fixed
// by the seed, so a replayed run fluctuates identically.
type Fluctuation struct {
	Intensity float64
	noise     opensimplex.Noise
}

func NewFluctuation(seed int64, intensity float64) *Fluctuation {
	return &Fluctuation{Intensity: intensity, noise: opensimplex.NewNormalized(seed)}
}

func (f *Fluctuation) Name() string { return "fluctuation" }

func (f *Fluctuation) Apply(_, after State) State {
	if f.Intensity == 0 {
		return after
	}
	day := float64(after.CurrentDay()) * 0.15
	next := after
	for i, m := range metric.All() {
		if m == metric.Happiness || m == metric.Suffering {
			continue
		}
		// Eval2 is normalised to [0,1]; recentre to [-1,1].
		n := f.noise.Eval2(day, float64(i)*3.7)*2 - 1
		v := next.Value(m)
		next, _ = next.Set(m, v*(1+n*f.Intensity))
	}
	return next
}

// Chain applies modifiers in order.
type Chain []Modifier

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, m := range c {
		names = append(names, m.Name())
	}
	return strings.Join(names, "+")
}

func (c Chain) Apply(before, after State) State {
	for _, m := range c {
		after = m.Apply(before, after)
	}
	return after
}
