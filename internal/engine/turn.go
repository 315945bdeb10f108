package engine

import (
	"errors"
	"fmt"

	"chickmaster/internal/event"
	"chickmaster/internal/game"
	"chickmaster/internal/narrative"
	"chickmaster/internal/story"
	"chickmaster/internal/telemetry"
)

type TurnResult struct {
	State    game.State          `json:"-"`
	Context  story.Context       `json:"-"`
	Fired    []string            `json:"fired"`
	Response narrative.Response  `json:"response"`
	Snapshot game.MetricSnapshot `json:"snapshot"`
	Trimmed  int                 `json:"trimmed"`
}

type ChoiceResult struct {
	State    game.State         `json:"-"`
	Fired    []string           `json:"fired"`
	Events   []story.GameEvent  `json:"events"`
	Response narrative.Response `json:"response"`
	Trimmed  int                `json:"trimmed"`
}

type pending struct {
	ev    event.Event
	depth int
}

// pass accumulates one turn or choice. The engine only sees its cooldowns
// and trim count on commit, so a failed pass leaves the engine untouched.
type pass struct {
	e         *Engine
	day       int
	state     game.State
	cooldowns map[string]int
	fired     []narrative.Fired
	ids       []string
	events    []story.GameEvent
	trimmed   int
}

func (e *Engine) newPass(s game.State) *pass {
	return &pass{e: e, day: s.CurrentDay(), state: s, cooldowns: e.Cooldowns()}
}

func (p *pass) commit() {
	p.e.cooldowns = p.cooldowns
	p.e.trimmed += p.trimmed
}

// apply runs effects in order on the running snapshot. Unsupported formulas
// are skipped; any other failure aborts the pass.
func (p *pass) apply(owner string, effects []event.Effect) error {
	next := p.state
	for _, eff := range effects {
		n, err := eff.Apply(next)
		if errors.Is(err, event.ErrFormulaUnsupported) {
			p.e.log.Warn("effect skipped", "owner", owner, "metric", eff.Metric, "formula", eff.Formula)
			p.e.record(telemetry.EventEffectSkipped, telemetry.EventMetadata{
				"owner":   owner,
				"metric":  string(eff.Metric),
				"formula": eff.Formula,
			})
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", owner, err)
		}
		next = n
	}
	p.state = next
	return nil
}

func (p *pass) fire(ev event.Event, depth int) error {
	if err := p.apply(ev.ID, ev.Effects); err != nil {
		return err
	}
	p.state = p.state.AddEventToHistory(ev.ID)
	p.cooldowns[ev.ID] = ev.CooldownDays
	p.ids = append(p.ids, ev.ID)
	p.fired = append(p.fired, narrative.Fired{ID: ev.ID, Severity: ev.Severity, Effects: ev.Effects})
	p.events = append(p.events, story.GameEvent{
		EventID:         ev.ID,
		Description:     ev.Description.Clone(),
		Day:             p.day,
		Timestamp:       p.e.clock.Now(),
		Severity:        ev.Severity.Weight(),
		AffectedMetrics: affected(ev.Effects),
	})

	if depth == 0 {
		p.e.record(telemetry.EventEventFired, telemetry.EventMetadata{"event_id": ev.ID, "day": p.day})
	} else {
		p.e.record(telemetry.EventCascadeFired, telemetry.EventMetadata{"event_id": ev.ID, "day": p.day, "depth": depth})
	}
	return nil
}

// enqueue adds children one level below parentDepth, or counts them as
// trimmed when that level is past the cascade bound.
func (p *pass) enqueue(queue []pending, owner string, children []event.Event, parentDepth int) []pending {
	if len(children) == 0 {
		return queue
	}
	depth := parentDepth + 1
	if depth > p.e.balance.MaxCascadeDepth {
		p.trimmed += len(children)
		p.e.log.Debug("cascade trimmed", "parent", owner, "depth", depth, "count", len(children))
		p.e.record(telemetry.EventCascadeTrimmed, telemetry.EventMetadata{"parent": owner, "depth": depth, "count": len(children)})
		return queue
	}
	for _, c := range children {
		queue = append(queue, pending{ev: c, depth: depth})
	}
	return queue
}

// cascade drains the queue breadth-first. Children skip the roll and the
// cooldown check; a child whose triggers fail is dropped.
func (p *pass) cascade(queue []pending) error {
	for i := 0; i < len(queue); i++ {
		item := queue[i]
		if !event.AllHold(item.ev.Triggers, p.e.Facts(p.state)) {
			continue
		}
		if err := p.fire(item.ev, item.depth); err != nil {
			return err
		}
		queue = p.enqueue(queue, item.ev.ID, item.ev.CascadeEvents, item.depth)
	}
	return nil
}

// ProcessTurn advances s by one day. The prior cooldowns tick down first,
// then applicable events fire in id order followed by their cascades, the
// modifier runs, the day advances and at most one pattern fires. On error
// s and the engine are unchanged.
func (e *Engine) ProcessTurn(s game.State, c story.Context) (TurnResult, error) {
	if s.Final() {
		return TurnResult{}, ErrRunComplete
	}

	p := e.newPass(s)
	for id, cd := range p.cooldowns {
		if cd > 0 {
			p.cooldowns[id] = cd - 1
		}
	}

	var queue []pending
	for _, ev := range e.applicable(s, p.cooldowns) {
		if err := p.fire(ev, 0); err != nil {
			return TurnResult{}, err
		}
		queue = p.enqueue(queue, ev.ID, ev.CascadeEvents, 0)
	}
	if err := p.cascade(queue); err != nil {
		return TurnResult{}, err
	}

	next := p.state
	modName := ""
	if e.modifier != nil {
		next = e.modifier.Apply(s, next)
		modName = e.modifier.Name()
	}
	next, err := next.AdvanceDay()
	if err != nil {
		return TurnResult{}, err
	}
	next = next.Touch(e.clock.Now())

	hit, next := e.detector.Detect(next)
	patternID := ""
	if hit != nil {
		patternID = hit.Pattern.ID
		e.log.Debug("pattern fired", "pattern", patternID, "observed", hit.Observed)
		e.record(telemetry.EventPatternFired, telemetry.EventMetadata{"pattern_id": patternID, "day": next.CurrentDay()})
	}

	snap := next.Snapshot(p.ids, modName)
	ctx := c.Record(snap, p.events, patternID)

	firedSet := make(map[string]bool, len(p.ids))
	for _, id := range p.ids {
		firedSet[id] = true
	}
	resp := e.builder.Build(p.fired, hit, e.suggest(next, p.cooldowns, firedSet))

	p.commit()
	e.record(telemetry.EventTurnProcessed, telemetry.EventMetadata{
		"day":     next.CurrentDay(),
		"fired":   len(p.ids),
		"trimmed": p.trimmed,
		"pattern": patternID,
	})

	return TurnResult{
		State:    next,
		Context:  ctx,
		Fired:    append([]string{}, p.ids...),
		Response: resp,
		Snapshot: snap,
		Trimmed:  p.trimmed,
	}, nil
}

// Choose resolves a player's choice on an event: the choice's effects apply
// to s and its cascade runs through the same bounded queue. The day does not
// advance.
func (e *Engine) Choose(s game.State, eventID, choiceID string) (ChoiceResult, error) {
	ev, ok := e.events[eventID]
	if !ok {
		return ChoiceResult{}, fmt.Errorf("%w: %q", ErrUnknownEvent, eventID)
	}
	ch, ok := ev.Choice(choiceID)
	if !ok {
		return ChoiceResult{}, fmt.Errorf("%w: %q on event %s", ErrUnknownChoice, choiceID, eventID)
	}

	owner := eventID + "/" + choiceID
	p := e.newPass(s)
	if err := p.apply(owner, ch.Effects); err != nil {
		return ChoiceResult{}, err
	}
	p.fired = append(p.fired, narrative.Fired{ID: owner, Severity: ev.Severity, Effects: ch.Effects})
	if err := p.cascade(p.enqueue(nil, owner, ch.CascadeEvents, 0)); err != nil {
		return ChoiceResult{}, err
	}

	p.commit()
	e.record(telemetry.EventChoiceMade, telemetry.EventMetadata{"event_id": eventID, "choice_id": choiceID, "day": p.day})

	return ChoiceResult{
		State:    p.state.Touch(e.clock.Now()),
		Fired:    append([]string{}, p.ids...),
		Events:   p.events,
		Response: e.builder.Build(p.fired, nil, nil),
		Trimmed:  p.trimmed,
	}, nil
}
