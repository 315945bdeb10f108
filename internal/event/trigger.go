package event

import (
	"fmt"
	"math"
	"strings"
)

type Operator string

const (
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpEqual              Operator = "equal"
	OpNotEqual           Operator = "not_equal"
)

func (o Operator) Valid() bool {
	switch o {
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual, OpEqual, OpNotEqual:
		return true
	}
	return false
}

const epsilon = 1e-9

// Facts resolves trigger subjects (metric tags, DAY, flags) to values.
type Facts interface {
	Fact(name string) (any, bool)
}

// MapFacts is a static fact set keyed by upper-case name.
type MapFacts map[string]any

func (m MapFacts) Fact(name string) (any, bool) {
	v, ok := m[strings.ToUpper(name)]
	return v, ok
}

// Layered consults each fact set in order and returns the first hit.
type Layered []Facts

func (l Layered) Fact(name string) (any, bool) {
	for _, f := range l {
		if f == nil {
			continue
		}
		if v, ok := f.Fact(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Trigger is one conjunct of an event's firing condition. Value is a
// float64, bool or string.
type Trigger struct {
	Metric   string   `json:"metric"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s %s %v", t.Metric, t.Operator, t.Value)
}

func (t Trigger) Validate() error {
	if t.Metric == "" {
		return fmt.Errorf("trigger: missing metric")
	}
	if !t.Operator.Valid() {
		return fmt.Errorf("trigger %s: unknown operator %q", t.Metric, t.Operator)
	}
	switch t.Value.(type) {
	case float64, bool, string:
	default:
		if _, ok := toNumber(t.Value); !ok {
			return fmt.Errorf("trigger %s: unsupported value %T", t.Metric, t.Value)
		}
	}
	return nil
}

// Holds evaluates the trigger. Unknown subjects never hold.
func (t Trigger) Holds(f Facts) bool {
	if f == nil {
		return false
	}
	actual, ok := f.Fact(t.Metric)
	if !ok {
		return false
	}
	return compare(actual, t.Operator, t.Value)
}

// AllHold reports whether every trigger holds; an empty list holds.
func AllHold(ts []Trigger, f Facts) bool {
	for _, t := range ts {
		if !t.Holds(f) {
			return false
		}
	}
	return true
}

func compare(actual any, op Operator, want any) bool {
	if w, ok := want.(bool); ok {
		a, ok := truthy(actual)
		if !ok {
			return op == OpNotEqual
		}
		switch op {
		case OpEqual:
			return a == w
		case OpNotEqual:
			return a != w
		}
		return false
	}

	an, aok := toNumber(actual)
	wn, wok := toNumber(want)
	if aok && wok {
		switch op {
		case OpLessThan:
			return an < wn
		case OpLessThanOrEqual:
			return an <= wn
		case OpGreaterThan:
			return an > wn
		case OpGreaterThanOrEqual:
			return an >= wn
		case OpEqual:
			return math.Abs(an-wn) <= epsilon
		case OpNotEqual:
			return math.Abs(an-wn) > epsilon
		}
		return false
	}

	switch op {
	case OpEqual:
		return actual == want
	case OpNotEqual:
		return actual != want
	}
	return false
}

func truthy(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		return x != "", true
	}
	if n, ok := toNumber(v); ok {
		return math.Abs(n) > epsilon, true
	}
	return false, false
}

func toNumber(v any) (float64, bool) {
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
