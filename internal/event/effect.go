package event

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"chickmaster/internal/game"
	"chickmaster/internal/metric"
)

// ErrFormulaUnsupported marks a formula outside "value + k" / "value - k".
var ErrFormulaUnsupported = errors.New("unsupported formula")

var formulaRe = regexp.MustCompile(`^\s*value\s*([+-])\s*(\d+(?:\.\d+)?)\s*$`)

// ParseFormula returns the signed k of a "value ± k" formula.
func ParseFormula(f string) (float64, error) {
	m := formulaRe.FindStringSubmatch(f)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrFormulaUnsupported, f)
	}
	k, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormulaUnsupported, f)
	}
	if m[1] == "-" {
		k = -k
	}
	return k, nil
}

// FormulaFor builds the canonical formula for a signed delta.
func FormulaFor(delta float64) string {
	if delta >= 0 {
		return "value + " + strconv.FormatFloat(delta, 'f', -1, 64)
	}
	return "value - " + strconv.FormatFloat(math.Abs(delta), 'f', -1, 64)
}

// Effect changes one metric. A non-empty Formula takes precedence; otherwise
// Value is added, or with IsMultiplier applied as new = old * (1 + Value).
type Effect struct {
	Metric       metric.Metric `json:"metric"`
	Value        float64       `json:"value,omitempty"`
	IsMultiplier bool          `json:"is_multiplier,omitempty"`
	Formula      string        `json:"formula,omitempty"`
	Message      Text          `json:"message,omitempty"`
}

func (e Effect) Validate() error {
	if !e.Metric.Valid() {
		return fmt.Errorf("effect: %w: %q", metric.ErrInvalidMetric, e.Metric)
	}
	return nil
}

// Change reports the effect as a delta or multiplier factor.
func (e Effect) Change() (value float64, multiplier bool, err error) {
	if e.Formula != "" {
		k, err := ParseFormula(e.Formula)
		return k, false, err
	}
	return e.Value, e.IsMultiplier, nil
}

// Apply returns s with the effect applied and clamped. An unsupported
// formula returns s unchanged with ErrFormulaUnsupported.
func (e Effect) Apply(s game.State) (game.State, error) {
	v, mult, err := e.Change()
	if err != nil {
		return s, err
	}
	if mult {
		return s.Set(e.Metric, s.Value(e.Metric)*(1+v))
	}
	return s.ApplyEffects(map[metric.Metric]float64{e.Metric: v})
}
