// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     session
// Description: Recording session states and transition rules
// License:     MIT
// ============================================================================

package session

import (
	"sync"
	"time"
)

// State represents the current phase of a dictation session
type State int

const (
	// StateIdle - waiting for a hotkey trigger
	StateIdle State = iota

	// StateRecording - microphone capture in progress
	StateRecording

	// StateTranscribing - clip handed to the provider pipeline
	StateTranscribing

	// StatePasting - delivering the result to the target application
	StatePasting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StatePasting:
		return "pasting"
	default:
		return "unknown"
	}
}

// Mode selects how a finished transcript is used
type Mode int

const (
	// Dictation pastes the transcript directly
	Dictation Mode = iota

	// Command treats the transcript as an instruction applied to the
	// captured target text
	Command
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case Dictation:
		return "dictation"
	case Command:
		return "command"
	default:
		return "unknown"
	}
}

// StateChangeListener is called after each committed transition
type StateChangeListener func(oldState, newState State)

// stateMachine guards the session lifecycle. Transitions outside the
// valid set are rejected, which is how overlapping triggers are
// dropped instead of queued.
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	enteredAt time.Time
	listeners []StateChangeListener
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current:   StateIdle,
		enteredAt: time.Now(),
	}
}

// Current returns the current state
func (sm *stateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// StateDuration returns how long the current state has been held
func (sm *stateMachine) StateDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return time.Since(sm.enteredAt)
}

// AddListener registers a transition listener
func (sm *stateMachine) AddListener(listener StateChangeListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// Transition commits a state change if it is valid
func (sm *stateMachine) Transition(to State) bool {
	sm.mu.Lock()
	from := sm.current

	if !validTransition(from, to) {
		sm.mu.Unlock()
		return false
	}

	sm.current = to
	sm.enteredAt = time.Now()
	listeners := sm.listeners
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(from, to)
	}
	return true
}

// validTransition checks the session lifecycle rules
func validTransition(from, to State) bool {
	valid := map[State][]State{
		StateIdle:         {StateRecording},
		StateRecording:    {StateTranscribing, StateIdle},
		StateTranscribing: {StatePasting, StateIdle},
		StatePasting:      {StateIdle},
	}

	for _, target := range valid[from] {
		if target == to {
			return true
		}
	}
	return false
}
