package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chickmaster/internal/config"
	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
	"chickmaster/internal/story"
	"chickmaster/internal/telemetry"
)

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Balance.TotalGameDays == 0 {
		opts.Balance = config.Default()
	}
	if opts.Rand == nil {
		opts.Rand = fixedRand(0)
	}
	if opts.Clock == nil {
		opts.Clock = game.NewFakeClock(epoch)
	}
	return New(opts)
}

func startState(t *testing.T) game.State {
	t.Helper()
	s, err := game.NewInitializer(config.Default(), game.NewFakeClock(epoch)).Initialize()
	require.NoError(t, err)
	return s
}

func simple(id string) event.Event {
	return event.Event{ID: id, Type: event.TypeDailyRoutine, Severity: event.SeverityNormal, Probability: 1}
}

func moneyOver(v float64) []event.Trigger {
	return []event.Trigger{{Metric: "MONEY", Operator: event.OpGreaterThan, Value: v}}
}

// chain nests n cascade levels under root: root -> c1 -> ... -> cn.
func chain(root event.Event, n int) event.Event {
	if n == 0 {
		return root
	}
	var child event.Event
	for i := n; i >= 1; i-- {
		c := simple("c" + string(rune('0'+i)))
		if i < n {
			c.CascadeEvents = []event.Event{child}
		}
		child = c
	}
	root.CascadeEvents = []event.Event{child}
	return root
}

func turn(t *testing.T, e *Engine, s game.State, c story.Context) TurnResult {
	t.Helper()
	res, err := e.ProcessTurn(s, c)
	require.NoError(t, err)
	return res
}

func TestRegister_ResetsCooldown(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.CooldownDays = 3
	require.NoError(t, e.Register(ev))

	s := startState(t)
	turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 3, e.Cooldown("E1"))

	require.NoError(t, e.Register(ev))
	assert.Equal(t, 0, e.Cooldown("E1"))
}

func TestRegister_RejectsInvalid(t *testing.T) {
	e := newEngine(t, Options{})
	bad := simple("bad")
	bad.Severity = "LOUD"
	require.Error(t, e.Register(bad))
	assert.Empty(t, e.Events())
}

func TestProcessTurn_Cooldown(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.CooldownDays = 3
	ev.Triggers = moneyOver(5000)
	require.NoError(t, e.Register(ev))

	s := startState(t)
	c := story.NewContext(config.Default(), s)

	var fired [][]string
	for i := 0; i < 4; i++ {
		res := turn(t, e, s, c)
		fired = append(fired, res.Fired)
		s, c = res.State, res.Context
	}
	assert.Equal(t, [][]string{{"E1"}, {}, {}, {"E1"}}, fired)
}

func TestProcessTurn_CooldownTicksOncePerTurn(t *testing.T) {
	e := newEngine(t, Options{})
	a := simple("a")
	a.CooldownDays = 3
	b := simple("b")
	b.CooldownDays = 5
	never := simple("never")
	never.Probability = 0
	require.NoError(t, e.RegisterAll([]event.Event{a, b, never}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, map[string]int{"a": 3, "b": 5, "never": 0}, e.Cooldowns())

	turn(t, e, res.State, res.Context)
	assert.Equal(t, map[string]int{"a": 2, "b": 4, "never": 0}, e.Cooldowns())
}

func TestProcessTurn_FiresInIDOrder(t *testing.T) {
	e := newEngine(t, Options{})
	require.NoError(t, e.RegisterAll([]event.Event{simple("b"), simple("a"), simple("c")}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"a", "b", "c"}, res.Fired)
	assert.Equal(t, []string{"a", "b", "c"}, res.State.History())
}

func TestProcessTurn_RollGate(t *testing.T) {
	e := newEngine(t, Options{Rand: fixedRand(0.5)})
	even := simple("even")
	even.Probability = 0.5
	likely := simple("likely")
	likely.Probability = 0.6
	require.NoError(t, e.RegisterAll([]event.Event{even, likely}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"likely"}, res.Fired)
}

func TestProcessTurn_Cascade(t *testing.T) {
	e := newEngine(t, Options{})
	child := simple("E2")
	child.Probability = 0
	root := simple("E1")
	root.CascadeEvents = []event.Event{child}
	require.NoError(t, e.Register(root))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"E1", "E2"}, res.State.History())
	assert.Equal(t, []string{"E1", "E2"}, res.Fired)
	assert.Equal(t, 0, res.Trimmed)
}

func TestProcessTurn_CascadeChildTriggersChecked(t *testing.T) {
	e := newEngine(t, Options{})
	root := simple("E1")
	root.Effects = []event.Effect{{Metric: metric.Money, Value: -9000}}
	child := simple("E2")
	child.Triggers = moneyOver(5000)
	root.CascadeEvents = []event.Event{child}
	require.NoError(t, e.Register(root))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"E1"}, res.Fired)
	assert.Equal(t, 1000.0, res.State.Value(metric.Money))
}

func TestProcessTurn_CascadeBreadthFirst(t *testing.T) {
	e := newEngine(t, Options{})
	x := simple("x")
	x.CascadeEvents = []event.Event{simple("x1")}
	y := simple("y")
	root := simple("root")
	root.CascadeEvents = []event.Event{x, y}
	require.NoError(t, e.Register(root))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"root", "x", "y", "x1"}, res.Fired)
}

func TestProcessTurn_CascadeDepthBound(t *testing.T) {
	for _, tc := range []struct {
		name    string
		max     int
		fired   []string
		trimmed int
	}{
		{name: "default", max: 3, fired: []string{"E1", "c1", "c2", "c3"}, trimmed: 1},
		{name: "none", max: 0, fired: []string{"E1"}, trimmed: 1},
		{name: "roomy", max: 10, fired: []string{"E1", "c1", "c2", "c3", "c4", "c5"}, trimmed: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := config.Default()
			b.MaxCascadeDepth = tc.max
			rec := telemetry.NewMemoryRepository()
			e := newEngine(t, Options{Balance: b, Telemetry: rec})
			require.NoError(t, e.Register(chain(simple("E1"), 5)))

			s := startState(t)
			res := turn(t, e, s, story.NewContext(b, s))
			assert.Equal(t, tc.fired, res.Fired)
			assert.Equal(t, tc.trimmed, res.Trimmed)
			assert.Equal(t, tc.trimmed, e.CascadeTrimmed())

			trims, err := rec.GetEvents(time.Time{}, []telemetry.EventType{telemetry.EventCascadeTrimmed})
			require.NoError(t, err)
			assert.Len(t, trims, tc.trimmed)
		})
	}
}

func TestProcessTurn_CascadeChildGetsCooldown(t *testing.T) {
	e := newEngine(t, Options{})
	child := simple("E2")
	child.CooldownDays = 4
	root := simple("E1")
	root.CascadeEvents = []event.Event{child}
	require.NoError(t, e.Register(root))

	s := startState(t)
	turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 4, e.Cooldown("E2"))
}

func TestProcessTurn_AdvancesDay(t *testing.T) {
	clock := game.NewFakeClock(epoch)
	e := newEngine(t, Options{Clock: clock})
	s := startState(t)
	clock.Advance(time.Hour)

	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 1, s.CurrentDay())
	assert.Equal(t, 2, res.State.CurrentDay())
	assert.Equal(t, 2, res.Snapshot.Day)
	assert.Equal(t, 2, res.Context.CurrentDay())
	assert.Equal(t, epoch.Add(time.Hour), res.State.LastUpdated())
	assert.Len(t, res.Context.History(), 2)
}

func TestProcessTurn_RunComplete(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.CooldownDays = 2
	require.NoError(t, e.Register(ev))

	s, err := game.NewState(game.StateSpec{CurrentDay: 10, TotalDays: 10})
	require.NoError(t, err)

	_, err = e.ProcessTurn(s, story.NewContext(config.Default(), s))
	require.ErrorIs(t, err, ErrRunComplete)
	assert.Equal(t, 0, e.Cooldown("E1"))
}

func TestProcessTurn_UnsupportedFormulaSkipped(t *testing.T) {
	rec := telemetry.NewMemoryRepository()
	e := newEngine(t, Options{Telemetry: rec})
	ev := simple("E1")
	ev.Effects = []event.Effect{
		{Metric: metric.Money, Formula: "value * 2"},
		{Metric: metric.Reputation, Formula: "value + 5"},
	}
	require.NoError(t, e.Register(ev))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 10000.0, res.State.Value(metric.Money))
	assert.Equal(t, 55.0, res.State.Value(metric.Reputation))

	skipped, err := rec.GetEvents(time.Time{}, []telemetry.EventType{telemetry.EventEffectSkipped})
	require.NoError(t, err)
	assert.Len(t, skipped, 1)
}

func TestProcessTurn_EffectsClampEachStep(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.Effects = []event.Effect{
		{Metric: metric.Facility, Value: 50},
		{Metric: metric.Facility, Value: -30},
	}
	require.NoError(t, e.Register(ev))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 70.0, res.State.Value(metric.Facility))
}

func TestProcessTurn_StageAndFlags(t *testing.T) {
	e := newEngine(t, Options{})
	early := simple("early")
	early.Triggers = []event.Trigger{{Metric: "STAGE", Operator: event.OpEqual, Value: "early"}}
	late := simple("late")
	late.Triggers = []event.Trigger{{Metric: "STAGE", Operator: event.OpEqual, Value: "late"}}
	vip := simple("vip")
	vip.Triggers = []event.Trigger{{Metric: "VIP_VISIT", Operator: event.OpEqual, Value: true}}
	require.NoError(t, e.RegisterAll([]event.Event{early, late, vip}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"early"}, res.Fired)

	e.SetFlag("vip_visit", true)
	res = turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"early", "vip"}, res.Fired)

	e.ClearFlag("VIP_VISIT")
	res = turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"early"}, res.Fired)
}

func TestProcessTurn_Modifier(t *testing.T) {
	e := newEngine(t, Options{Modifier: game.Seesaw{}})
	ev := simple("E1")
	ev.Effects = []event.Effect{{Metric: metric.Happiness, Value: 10}}
	require.NoError(t, e.Register(ev))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, 60.0, res.State.Value(metric.Happiness))
	assert.Equal(t, 40.0, res.State.Value(metric.Suffering))
	assert.Equal(t, "seesaw", res.Snapshot.Modifier)
}

func TestProcessTurn_Pattern(t *testing.T) {
	p := story.Pattern{
		ID: "flush", Category: story.CategoryGrowth, Severity: 0.9, Probability: 1, CooldownDays: 5,
		Name:        event.Text{"en": "Flush"},
		Description: event.Text{"en": "The till is overflowing."},
		Trigger:     story.PatternTrigger{Metric: metric.Money, Comparison: story.Above, Threshold: 5000},
		Effects:     []story.PatternEffect{{Metric: metric.Reputation, Value: 1}},
	}
	rec := telemetry.NewMemoryRepository()
	e := newEngine(t, Options{Patterns: []story.Pattern{p}, Telemetry: rec})

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	require.NotNil(t, res.Response.StoryPattern)
	assert.Equal(t, "flush", res.Response.StoryPattern.ID)
	assert.Equal(t, 0.9, res.Response.Severity)
	assert.Equal(t, "high", res.Response.Level)
	assert.Equal(t, 51.0, res.State.Value(metric.Reputation))
	assert.Equal(t, []string{"flush"}, res.Context.Patterns())
	assert.Equal(t, "The till is overflowing.", res.Response.Text("en"))
	assert.Equal(t, 5, e.PatternCooldown("flush"))

	hits, err := rec.GetEvents(time.Time{}, []telemetry.EventType{telemetry.EventPatternFired})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestProcessTurn_Suggestion(t *testing.T) {
	e := newEngine(t, Options{})
	daily := simple("daily")
	daily.CooldownDays = 1
	big := simple("big")
	big.Severity = event.SeverityCritical
	big.Probability = 0
	major := simple("major")
	major.Severity = event.SeverityMajor
	major.Probability = 0
	broke := simple("broke")
	broke.Severity = event.SeverityCritical
	broke.Probability = 0
	broke.Triggers = []event.Trigger{{Metric: "MONEY", Operator: event.OpLessThan, Value: 10.0}}
	require.NoError(t, e.RegisterAll([]event.Event{daily, big, major, broke}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, []string{"daily"}, res.Fired)
	require.NotNil(t, res.Response.SuggestedEvent)
	assert.Equal(t, "big", res.Response.SuggestedEvent.EventID)
	assert.Equal(t, event.SeverityCritical, res.Response.SuggestedEvent.Severity)
}

func TestProcessTurn_QuietDay(t *testing.T) {
	e := newEngine(t, Options{})
	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))

	assert.Empty(t, res.Fired)
	assert.Nil(t, res.Response.SuggestedEvent)
	assert.Nil(t, res.Response.StoryPattern)
	assert.Equal(t, "The day passed without incident.", res.Response.Text("en"))
	assert.Equal(t, 0.0, res.Response.Severity)
	assert.NotNil(t, res.Response.MetricChanges)
	assert.Empty(t, res.Response.MetricChanges)
}

func TestProcessTurn_ResponseAggregatesEffects(t *testing.T) {
	e := newEngine(t, Options{})
	a := simple("a")
	a.Severity = event.SeverityMajor
	a.Effects = []event.Effect{{Metric: metric.Money, Value: 100, Message: event.Text{"en": "Tips came in."}}}
	b := simple("b")
	b.Effects = []event.Effect{{Metric: metric.Money, Value: 50, Message: event.Text{"en": "A big order."}}}
	require.NoError(t, e.RegisterAll([]event.Event{a, b}))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	assert.Equal(t, "Tips came in. A big order.", res.Response.Text("en"))
	require.Len(t, res.Response.MetricChanges, 1)
	assert.Equal(t, metric.Money, res.Response.MetricChanges[0].Metric)
	assert.Equal(t, 150.0, res.Response.MetricChanges[0].Value)
	assert.Equal(t, event.SeverityMajor.Weight(), res.Response.Severity)
}

func TestProcessTurn_RecordsGameEvents(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.Description = event.Text{"en": "Lunch rush."}
	ev.Effects = []event.Effect{{Metric: metric.Demand, Value: 5}}
	require.NoError(t, e.Register(ev))

	s := startState(t)
	res := turn(t, e, s, story.NewContext(config.Default(), s))
	recent := res.Context.RecentEvents(5)
	require.Len(t, recent, 1)
	assert.Equal(t, "E1", recent[0].EventID)
	assert.Equal(t, 1, recent[0].Day)
	assert.Equal(t, []metric.Metric{metric.Demand}, recent[0].AffectedMetrics)
}

func TestProcessTurn_Deterministic(t *testing.T) {
	build := func() *Engine {
		e := newEngine(t, Options{Rand: &seqRand{vals: []float64{0.1, 0.7, 0.4, 0.95, 0.2}}})
		for _, id := range []string{"a", "b", "c"} {
			ev := simple(id)
			ev.Probability = 0.5
			ev.CooldownDays = 1
			require.NoError(t, e.Register(ev))
		}
		return e
	}

	run := func(e *Engine) [][]string {
		s := startState(t)
		c := story.NewContext(config.Default(), s)
		var out [][]string
		for i := 0; i < 10; i++ {
			res := turn(t, e, s, c)
			out = append(out, res.Fired)
			s, c = res.State, res.Context
		}
		return out
	}

	assert.Equal(t, run(build()), run(build()))
}

func TestChoose(t *testing.T) {
	grease := simple("grease_fire")
	grease.Severity = event.SeverityCritical
	grease.CooldownDays = 6
	grease.Effects = []event.Effect{{Metric: metric.Facility, Value: -20}}

	ev := simple("fryer_breakdown")
	ev.Type = event.TypeCrisis
	ev.Choices = []event.Choice{
		{ID: "buy_new", Effects: []event.Effect{{Metric: metric.Money, Value: -3000}}},
		{ID: "patch_up", Effects: []event.Effect{{Metric: metric.Money, Value: -200}}, CascadeEvents: []event.Event{grease}},
	}

	e := newEngine(t, Options{})
	require.NoError(t, e.Register(ev))
	s := startState(t)

	res, err := e.Choose(s, "fryer_breakdown", "buy_new")
	require.NoError(t, err)
	assert.Equal(t, 7000.0, res.State.Value(metric.Money))
	assert.Empty(t, res.Fired)
	assert.Equal(t, s.CurrentDay(), res.State.CurrentDay())

	res, err = e.Choose(s, "fryer_breakdown", "patch_up")
	require.NoError(t, err)
	assert.Equal(t, 9800.0, res.State.Value(metric.Money))
	assert.Equal(t, 60.0, res.State.Value(metric.Facility))
	assert.Equal(t, []string{"grease_fire"}, res.Fired)
	assert.Equal(t, []string{"grease_fire"}, res.State.History())
	assert.Equal(t, 6, e.Cooldown("grease_fire"))
	assert.Equal(t, event.SeverityCritical.Weight(), res.Response.Severity)
	require.Len(t, res.Events, 1)

	assert.Equal(t, 10000.0, s.Value(metric.Money))
}

func TestChoose_Unknown(t *testing.T) {
	e := newEngine(t, Options{})
	require.NoError(t, e.Register(simple("E1")))
	s := startState(t)

	_, err := e.Choose(s, "nope", "x")
	require.ErrorIs(t, err, ErrUnknownEvent)

	_, err = e.Choose(s, "E1", "x")
	require.ErrorIs(t, err, ErrUnknownChoice)
}

func TestClone_Independent(t *testing.T) {
	e := newEngine(t, Options{})
	ev := simple("E1")
	ev.CooldownDays = 3
	require.NoError(t, e.Register(ev))
	e.SetFlag("rainy", true)

	c := e.Clone(fixedRand(0))
	s := startState(t)
	turn(t, c, s, story.NewContext(config.Default(), s))
	c.SetFlag("rainy", false)

	assert.Equal(t, 3, c.Cooldown("E1"))
	assert.Equal(t, 0, e.Cooldown("E1"))
	v, _ := e.Facts(s).Fact("RAINY")
	assert.Equal(t, true, v)
}

func TestProcessTurn_Telemetry(t *testing.T) {
	rec := telemetry.NewMemoryRepository()
	e := newEngine(t, Options{Telemetry: rec})
	root := simple("E1")
	root.CooldownDays = 1
	root.CascadeEvents = []event.Event{simple("E2")}
	require.NoError(t, e.Register(root))

	s := startState(t)
	c := story.NewContext(config.Default(), s)
	for i := 0; i < 3; i++ {
		res := turn(t, e, s, c)
		s, c = res.State, res.Context
	}

	events, err := rec.GetEvents(time.Time{}, nil)
	require.NoError(t, err)
	stats, err := telemetry.CalculateStats(events, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Turns)
	assert.Equal(t, 3, stats.FiresByEvent["E1"])
	assert.Equal(t, 3, stats.CascadeFires)
}
