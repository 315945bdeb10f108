package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chickmaster/internal/config"
	"chickmaster/internal/engine"
	"chickmaster/internal/game"
	"chickmaster/internal/metric"
	"chickmaster/internal/narrative"
	"chickmaster/internal/story"
	"chickmaster/internal/telemetry"
)

// Tracker drives a single run for callers outside the core. Mutations go
// through the retrier; reads hand out copies.
type Tracker struct {
	engine  *engine.Engine
	balance config.Balance
	retry   Retrier
	state   game.State
	context story.Context
	last    *narrative.Response
}

type Options struct {
	Clock     game.Clock
	Telemetry telemetry.Recorder
}

func New(e *engine.Engine, s game.State, opts Options) *Tracker {
	b := e.Balance()
	return &Tracker{
		engine:  e,
		balance: b,
		retry: Retrier{
			Attempts:  b.MaxRetryAttempts,
			Delay:     time.Duration(b.TimeoutSeconds * float64(time.Second)),
			Clock:     opts.Clock,
			Telemetry: opts.Telemetry,
		},
		state:   s,
		context: story.NewContext(b, s),
	}
}

// ValidateGameSettings reports whether opts is a usable settings bundle.
// Failures are logged, not returned.
func (t *Tracker) ValidateGameSettings(opts map[string]any) bool {
	s, err := config.SettingsFromMap(opts)
	if err == nil {
		err = s.Check(t.balance)
	}
	if err != nil {
		slog.Error("invalid game settings", "error", err)
		return false
	}
	return true
}

// Reset restarts the run from s.
func (t *Tracker) Reset(s game.State) {
	t.state = s
	t.context = story.NewContext(t.balance, s)
	t.last = nil
}

// Advance processes one turn. A finished run fails fast with
// engine.ErrRunComplete.
func (t *Tracker) Advance(ctx context.Context) (engine.TurnResult, error) {
	if t.state.Final() {
		return engine.TurnResult{}, engine.ErrRunComplete
	}
	var res engine.TurnResult
	err := t.retry.Do(ctx, "process_turn", func() error {
		var err error
		res, err = t.engine.ProcessTurn(t.state, t.context)
		return err
	})
	if err != nil {
		return engine.TurnResult{}, err
	}
	t.state, t.context = res.State, res.Context
	resp := res.Response
	t.last = &resp
	return res, nil
}

// Choose resolves a choice on a registered event.
func (t *Tracker) Choose(ctx context.Context, eventID, choiceID string) (engine.ChoiceResult, error) {
	ev, ok := t.engine.Event(eventID)
	if !ok {
		return engine.ChoiceResult{}, fmt.Errorf("%w: %q", engine.ErrUnknownEvent, eventID)
	}
	if _, ok := ev.Choice(choiceID); !ok {
		return engine.ChoiceResult{}, fmt.Errorf("%w: %q on event %s", engine.ErrUnknownChoice, choiceID, eventID)
	}

	var res engine.ChoiceResult
	err := t.retry.Do(ctx, "choose", func() error {
		var err error
		res, err = t.engine.Choose(t.state, eventID, choiceID)
		return err
	})
	if err != nil {
		return engine.ChoiceResult{}, err
	}
	t.state = res.State
	resp := res.Response
	t.last = &resp
	return res, nil
}

func (t *Tracker) State() game.State { return t.state }

func (t *Tracker) Context() story.Context { return t.context }

func (t *Tracker) Metrics() map[metric.Metric]float64 { return t.state.Metrics() }

func (t *Tracker) History() []string { return t.state.History() }

func (t *Tracker) Snapshots() []game.MetricSnapshot {
	snaps := t.context.History()
	for i, snap := range snaps {
		m := make(map[metric.Metric]float64, len(snap.Metrics))
		for k, v := range snap.Metrics {
			m[k] = v
		}
		snaps[i].Metrics = m
		snaps[i].Events = append([]string{}, snap.Events...)
	}
	return snaps
}

// Events returns every remembered event, newest first.
func (t *Tracker) Events() []story.GameEvent { return t.context.RecentEvents(-1) }

// LastResponse returns the most recent narrative, if any.
func (t *Tracker) LastResponse() (narrative.Response, bool) {
	if t.last == nil {
		return narrative.Response{}, false
	}
	r := *t.last
	r.Narrative = r.Narrative.Clone()
	r.MetricChanges = append([]narrative.MetricChange{}, r.MetricChanges...)
	return r, true
}
