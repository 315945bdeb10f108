package engine

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"chickmaster/internal/config"
	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
	"chickmaster/internal/narrative"
	"chickmaster/internal/story"
	"chickmaster/internal/telemetry"
)

var (
	// ErrRunComplete is returned when a turn is requested on the final day.
	ErrRunComplete = game.ErrRunComplete

	ErrUnknownEvent  = errors.New("unknown event")
	ErrUnknownChoice = errors.New("unknown choice")
)

type Options struct {
	Balance   config.Balance
	Rand      story.Rand
	Clock     game.Clock
	Modifier  game.Modifier
	Patterns  []story.Pattern
	Languages []string
	Telemetry telemetry.Recorder
	Logger    *slog.Logger
}

// Engine owns the event registry and the per-event cooldown shadow map.
// It is not safe for concurrent use; Clone it to drive runs in parallel.
type Engine struct {
	balance   config.Balance
	events    map[string]event.Event
	cooldowns map[string]int
	flags     map[string]any
	rng       story.Rand
	clock     game.Clock
	modifier  game.Modifier
	detector  *story.Detector
	builder   narrative.Builder
	telemetry telemetry.Recorder
	log       *slog.Logger
	trimmed   int
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = game.RealClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := opts.Balance
	return &Engine{
		balance:   b,
		events:    make(map[string]event.Event),
		cooldowns: make(map[string]int),
		flags:     make(map[string]any),
		rng:       opts.Rand,
		clock:     opts.Clock,
		modifier:  opts.Modifier,
		detector:  story.NewDetector(opts.Patterns, opts.Rand, b.SeverityLevel),
		builder:   narrative.Builder{Levels: b.SeverityLevel, Languages: opts.Languages},
		telemetry: opts.Telemetry,
		log:       opts.Logger,
	}
}

// Register validates ev and stores it, replacing any event with the same id
// and resetting its cooldown.
func (e *Engine) Register(ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	e.events[ev.ID] = ev
	e.cooldowns[ev.ID] = 0
	return nil
}

func (e *Engine) RegisterAll(evs []event.Event) error {
	for _, ev := range evs {
		if err := e.Register(ev); err != nil {
			return err
		}
	}
	return nil
}

// Events returns the registered events sorted by id.
func (e *Engine) Events() []event.Event {
	out := make([]event.Event, 0, len(e.events))
	for _, id := range e.ids() {
		out = append(out, e.events[id])
	}
	return out
}

func (e *Engine) Event(id string) (event.Event, bool) {
	ev, ok := e.events[id]
	return ev, ok
}

func (e *Engine) Cooldown(id string) int { return e.cooldowns[id] }

func (e *Engine) Cooldowns() map[string]int {
	out := make(map[string]int, len(e.cooldowns))
	for k, v := range e.cooldowns {
		out[k] = v
	}
	return out
}

func (e *Engine) PatternCooldown(id string) int { return e.detector.Cooldown(id) }

// SetFlag exposes a named value to triggers. Names are case-insensitive.
func (e *Engine) SetFlag(name string, v any) { e.flags[strings.ToUpper(name)] = v }

func (e *Engine) ClearFlag(name string) { delete(e.flags, strings.ToUpper(name)) }

// CascadeTrimmed counts cascade children dropped by the depth bound.
func (e *Engine) CascadeTrimmed() int { return e.trimmed }

func (e *Engine) Balance() config.Balance { return e.balance }

// Clone copies the registry, cooldowns and flags. rng replaces the random
// source; nil shares the original.
func (e *Engine) Clone(rng story.Rand) *Engine {
	if rng == nil {
		rng = e.rng
	}
	c := *e
	c.rng = rng
	c.events = make(map[string]event.Event, len(e.events))
	for k, v := range e.events {
		c.events[k] = v
	}
	c.cooldowns = e.Cooldowns()
	c.flags = make(map[string]any, len(e.flags))
	for k, v := range e.flags {
		c.flags[k] = v
	}
	c.detector = e.detector.Clone(rng)
	return &c
}

func (e *Engine) ids() []string {
	ids := make([]string, 0, len(e.events))
	for id := range e.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Facts layers engine flags over the snapshot's metrics, DAY and STAGE.
func (e *Engine) Facts(s game.State) event.Facts {
	return event.Layered{
		s,
		event.MapFacts{"STAGE": e.balance.Stage(s.CurrentDay())},
		event.MapFacts(e.flags),
	}
}

// ApplicableEvents returns, in id order, the events off cooldown whose
// triggers hold on s and whose roll passes. Each candidate consumes one
// draw from the random source.
func (e *Engine) ApplicableEvents(s game.State) []event.Event {
	return e.applicable(s, e.cooldowns)
}

func (e *Engine) applicable(s game.State, cooldowns map[string]int) []event.Event {
	facts := e.Facts(s)
	var out []event.Event
	for _, id := range e.ids() {
		ev := e.events[id]
		if cooldowns[id] > 0 {
			continue
		}
		if !event.AllHold(ev.Triggers, facts) {
			continue
		}
		if e.rng.Float64() >= ev.Probability {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// suggest picks the highest-severity event likely to be applicable next
// turn, ignoring the roll. Ties go to the lowest id.
func (e *Engine) suggest(s game.State, cooldowns map[string]int, fired map[string]bool) *narrative.SuggestedEvent {
	facts := e.Facts(s)
	var best *event.Event
	for _, id := range e.ids() {
		if fired[id] || cooldowns[id] > 1 {
			continue
		}
		ev := e.events[id]
		if !event.AllHold(ev.Triggers, facts) {
			continue
		}
		if best == nil || ev.Severity.Rank() > best.Severity.Rank() {
			best = &ev
		}
	}
	if best == nil {
		return nil
	}
	return &narrative.SuggestedEvent{
		EventID:     best.ID,
		Name:        best.Name.Clone(),
		Severity:    best.Severity,
		Probability: best.Probability,
		Tags:        append([]string(nil), best.Tags...),
	}
}

func (e *Engine) record(et telemetry.EventType, md telemetry.EventMetadata) {
	if err := e.telemetry.RecordEvent(et, md); err != nil {
		e.log.Warn("telemetry record failed", "type", et, "error", err)
	}
}

func affected(effects []event.Effect) []metric.Metric {
	seen := make(map[metric.Metric]bool, len(effects))
	var out []metric.Metric
	for _, eff := range effects {
		if !seen[eff.Metric] {
			seen[eff.Metric] = true
			out = append(out, eff.Metric)
		}
	}
	return out
}
