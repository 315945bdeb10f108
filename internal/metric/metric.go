package metric

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMetric is returned when a metric tag is outside the closed set.
var ErrInvalidMetric = errors.New("invalid metric")

type Metric string

const (
	Money        Metric = "MONEY"
	Reputation   Metric = "REPUTATION"
	Happiness    Metric = "HAPPINESS"
	Suffering    Metric = "SUFFERING"
	Inventory    Metric = "INVENTORY"
	StaffFatigue Metric = "STAFF_FATIGUE"
	Facility     Metric = "FACILITY"
	Demand       Metric = "DEMAND"
)

// Count is the size of the metric set.
const Count = 8

var all = [Count]Metric{Money, Reputation, Happiness, Suffering, Inventory, StaffFatigue, Facility, Demand}

// All returns the metrics in their canonical order.
func All() []Metric {
	out := make([]Metric, Count)
	copy(out, all[:])
	return out
}

// Index returns the position of m in the canonical order, or -1.
func Index(m Metric) int {
	for i, x := range all {
		if x == m {
			return i
		}
	}
	return -1
}

func (m Metric) Valid() bool { return Index(m) >= 0 }

// Key is the lower-case field name used in save blobs and settings.
func (m Metric) Key() string { return strings.ToLower(string(m)) }

// Parse accepts either the tag or the field name, in any case.
func Parse(s string) (Metric, error) {
	m := Metric(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMetric, s)
	}
	return m, nil
}

// Caps holds the upper bound of every metric, indexed by Index.
type Caps [Count]float64

func DefaultCaps() Caps {
	var c Caps
	for i, m := range all {
		switch m {
		case Money:
			c[i] = 1_000_000
		case Inventory:
			c[i] = 1_000
		default:
			c[i] = 100
		}
	}
	return c
}

func (c Caps) Of(m Metric) float64 {
	i := Index(m)
	if i < 0 {
		return 0
	}
	return c[i]
}

// Clamp bounds v to [0, cap(m)].
func (c Caps) Clamp(m Metric, v float64) float64 {
	if v < 0 {
		return 0
	}
	if hi := c.Of(m); v > hi {
		return hi
	}
	return v
}
