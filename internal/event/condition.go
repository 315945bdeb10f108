package event

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// ErrParse marks a condition string none of the condition shapes match.
var ErrParse = errors.New("unparseable condition")

type ParseError struct {
	Condition string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Condition, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Condition shapes, tried in order.
var (
	numericCond  = regexp.MustCompile(`^(\w+)\s*([<>=!≤≥]+)\s*(-?\d+(?:\.\d+)?)$`)
	boolCond     = regexp.MustCompile(`(?i)^(\w+)\s*([=!]+)\s*(true|false)$`)
	stringCond   = regexp.MustCompile(`^(\w+)\s*([=!]+)\s*['"](.+)['"]$`)
	bareCond     = regexp.MustCompile(`^(\w+)$`)
	negationCond = regexp.MustCompile(`^!(\w+)$`)
)

var operatorTokens = map[string]Operator{
	"<":  OpLessThan,
	"<=": OpLessThanOrEqual,
	"≤":  OpLessThanOrEqual,
	">":  OpGreaterThan,
	">=": OpGreaterThanOrEqual,
	"≥":  OpGreaterThanOrEqual,
	"=":  OpEqual,
	"==": OpEqual,
	"!=": OpNotEqual,
	"!":  OpNotEqual,
}

func subject(s string) string { return strings.ToUpper(s) }

// ParseCondition turns an authored condition string into a trigger.
func ParseCondition(cond string) (Trigger, error) {
	c := strings.TrimSpace(cond)

	if m := numericCond.FindStringSubmatch(c); m != nil {
		op, ok := operatorTokens[m[2]]
		if !ok {
			return Trigger{}, &ParseError{Condition: cond, Reason: "unknown operator " + m[2]}
		}
		v, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return Trigger{}, &ParseError{Condition: cond, Reason: err.Error()}
		}
		return Trigger{Metric: subject(m[1]), Operator: op, Value: v}, nil
	}
	if m := boolCond.FindStringSubmatch(c); m != nil {
		op, ok := operatorTokens[m[2]]
		if !ok || (op != OpEqual && op != OpNotEqual) {
			return Trigger{}, &ParseError{Condition: cond, Reason: "unknown operator " + m[2]}
		}
		return Trigger{Metric: subject(m[1]), Operator: op, Value: strings.EqualFold(m[3], "true")}, nil
	}
	if m := stringCond.FindStringSubmatch(c); m != nil {
		op, ok := operatorTokens[m[2]]
		if !ok || (op != OpEqual && op != OpNotEqual) {
			return Trigger{}, &ParseError{Condition: cond, Reason: "unknown operator " + m[2]}
		}
		return Trigger{Metric: subject(m[1]), Operator: op, Value: m[3]}, nil
	}
	if m := bareCond.FindStringSubmatch(c); m != nil {
		return Trigger{Metric: subject(m[1]), Operator: OpEqual, Value: true}, nil
	}
	if m := negationCond.FindStringSubmatch(c); m != nil {
		return Trigger{Metric: subject(m[1]), Operator: OpNotEqual, Value: true}, nil
	}
	return Trigger{}, &ParseError{Condition: cond, Reason: "no matching shape"}
}

// FallbackTrigger is used for conditions that cannot be parsed: the event
// only fires once a fact named after it is set.
func FallbackTrigger(eventID string) Trigger {
	return Trigger{Metric: subject(eventID), Operator: OpEqual, Value: true}
}

// TriggerFor parses cond and falls back to FallbackTrigger on failure.
func TriggerFor(cond, eventID string) Trigger {
	t, err := ParseCondition(cond)
	if err != nil {
		slog.Warn("condition fallback", "event", eventID, "condition", cond, "error", err)
		return FallbackTrigger(eventID)
	}
	return t
}
