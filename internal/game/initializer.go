package game

import (
	"fmt"

	"chickmaster/internal/config"
)

// Initializer produces starting snapshots from the balance defaults.
type Initializer struct {
	Balance config.Balance
	Clock   Clock
}

func NewInitializer(b config.Balance, clock Clock) Initializer {
	return Initializer{Balance: b, Clock: clock}
}

func (i Initializer) now() Clock {
	if i.Clock == nil {
		return RealClock{}
	}
	return i.Clock
}

// Initialize returns a snapshot filled from the configured starting values.
func (i Initializer) Initialize() (State, error) {
	return i.InitializeWith(config.Settings{})
}

// InitializeWith layers settings over the starting values.
func (i Initializer) InitializeWith(s config.Settings) (State, error) {
	return i.build(s, nil)
}

// LoadSavedGame restores a run. Omitted fields fall back to the defaults.
func (i Initializer) LoadSavedGame(blob SaveBlob) (State, error) {
	return i.build(blob.Settings, blob.EventsHistory)
}

func (i Initializer) build(s config.Settings, history []string) (State, error) {
	if err := s.Check(i.Balance); err != nil {
		return State{}, err
	}
	start := s.Resolve(i.Balance.Starting)
	st, err := NewState(StateSpec{
		Values:      start.Values(),
		Caps:        i.Balance.MetricCaps(),
		CurrentDay:  start.Day,
		TotalDays:   i.Balance.TotalGameDays,
		History:     history,
		LastUpdated: i.now().Now(),
	})
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	return st, nil
}
