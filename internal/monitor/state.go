package monitor

import (
	"fmt"
	"time"
)

// State is a step in a handoff attempt's lifecycle.
type State string

const (
	StateStarted       State = "STARTED"
	StateValidating    State = "VALIDATING"
	StateValid         State = "VALID"
	StateInvalid       State = "INVALID"
	StatePersisting    State = "PERSISTING"
	StatePersisted     State = "PERSISTED"
	StatePersistFailed State = "PERSIST_FAILED"
	StateRecorded      State = "RECORDED"
)

var transitions = map[State][]State{
	StateStarted:       {StateValidating},
	StateValidating:    {StateValid, StateInvalid},
	StateValid:         {StatePersisting},
	StateInvalid:       {StateRecorded},
	StatePersisting:    {StatePersisted, StatePersistFailed},
	StatePersisted:     {StateRecorded},
	StatePersistFailed: {StateRecorded},
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateRecorded
}

// attempt tracks the states one handoff has passed through.
type attempt struct {
	began  time.Time
	states []State
}

func newAttempt(began time.Time) *attempt {
	return &attempt{began: began, states: []State{StateStarted}}
}

func (a *attempt) current() State {
	return a.states[len(a.states)-1]
}

func (a *attempt) move(next State) {
	if !a.current().CanTransition(next) {
		panic(fmt.Sprintf("monitor: illegal handoff transition %s -> %s", a.current(), next))
	}
	a.states = append(a.states, next)
}

func (a *attempt) history() []State {
	return append([]State(nil), a.states...)
}
