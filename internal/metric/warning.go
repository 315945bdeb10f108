package metric

// Warning describes the zone in which a metric needs attention.
// Above selects "value > Threshold", otherwise "value < Threshold".
type Warning struct {
	Threshold float64
	Above     bool
}

var warnings = map[Metric]Warning{
	Money:        {Threshold: 1000},
	Reputation:   {Threshold: 20},
	StaffFatigue: {Threshold: 80, Above: true},
	Facility:     {Threshold: 30},
}

// WarningFor reports the warning rule for m. Metrics without one never warn.
func WarningFor(m Metric) (Warning, bool) {
	w, ok := warnings[m]
	return w, ok
}

// InWarningZone is strict on both sides.
func InWarningZone(m Metric, v float64) bool {
	w, ok := warnings[m]
	if !ok {
		return false
	}
	if w.Above {
		return v > w.Threshold
	}
	return v < w.Threshold
}
