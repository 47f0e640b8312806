// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Press/hold/double-tap/toggle state machine per binding
// License:     MIT
// ============================================================================

package hotkeys

import (
	"fmt"
	"sync"
	"time"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

const (
	// DefaultDoubleTapWindow is the maximum gap between two presses that
	// counts as a double tap. A single press is withheld for this window
	// so a double tap emits no press/hold callbacks at all.
	DefaultDoubleTapWindow = 300 * time.Millisecond

	// DefaultPasteSuppression is how long input events are ignored after
	// a programmatic paste, so synthesized paste keystrokes are not
	// mistaken for physical hotkey presses
	DefaultPasteSuppression = 500 * time.Millisecond
)

// EventKind is the raw input edge reported by a tap source
type EventKind int

const (
	Press EventKind = iota
	Release
)

// Event is one matched input edge for a specific binding
type Event struct {
	BindingID string
	Kind      EventKind
	When      time.Time
}

// Tap is an OS-level input intercept that matches raw events against
// its bindings and forwards edges to the dispatcher.
type Tap interface {
	Start(dispatch func(Event)) error
	Stop()
}

// Callbacks receive dispatched binding actions. Callbacks run on the
// dispatcher's flow with no lock held; heavy work belongs on the
// callee's own goroutine.
type Callbacks struct {
	OnPressed   func(bindingID string)
	OnReleased  func(bindingID string)
	OnDoubleTap func(bindingID string)
}

// phase is the per-binding interaction state
type phase int

const (
	phaseIdle phase = iota
	phasePending // press seen, double-tap window still open
	phaseHolding
	phaseToggledOn
)

type bindingState struct {
	binding  Binding
	phase    phase
	keyDown  bool
	released bool // release arrived while the press was still pending
	timer    *time.Timer
	gen      uint64 // invalidates stale pending timers

	// Callbacks are queued under the dispatcher lock and drained by a
	// single goroutine, so a deferred press and a concurrent release
	// are always observed in the order the machine decided them.
	pending    []func(string)
	delivering bool
}

// Dispatcher demultiplexes input events to per-binding state machines.
// Push-to-talk bindings are level-triggered (press/release), toggle
// bindings edge-triggered (press only). Events for one binding are
// never evaluated against another.
type Dispatcher struct {
	mu        sync.Mutex
	logger    *logging.Logger
	bindings  map[string]*bindingState
	taps      []Tap
	callbacks Callbacks
	tapWindow time.Duration

	suppressUntil time.Time
	running       bool
}

// NewDispatcher creates a dispatcher for the given bindings
func NewDispatcher(bindings []Binding, callbacks Callbacks, logger *logging.Logger) (*Dispatcher, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("no bindings configured")
	}

	states := make(map[string]*bindingState, len(bindings))
	for _, b := range bindings {
		if _, dup := states[b.ID]; dup {
			return nil, fmt.Errorf("duplicate binding id %q", b.ID)
		}
		states[b.ID] = &bindingState{binding: b}
	}

	return &Dispatcher{
		logger:    logger,
		bindings:  states,
		callbacks: callbacks,
		tapWindow: DefaultDoubleTapWindow,
	}, nil
}

// SetTapWindow overrides the double-tap window. Must be called before
// any events are dispatched.
func (d *Dispatcher) SetTapWindow(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if window > 0 {
		d.tapWindow = window
	}
}

// AddTap attaches an input source. Must be called before Start.
func (d *Dispatcher) AddTap(tap Tap) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taps = append(d.taps, tap)
}

// Start registers all tap sources
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	taps := d.taps
	d.mu.Unlock()

	for i, tap := range taps {
		if err := tap.Start(d.Dispatch); err != nil {
			for _, started := range taps[:i] {
				started.Stop()
			}
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return fmt.Errorf("failed to start input tap: %w", err)
		}
	}

	d.logger.Info("Input dispatcher started", "bindings", len(d.bindings), "taps", len(taps))
	return nil
}

// Stop unregisters all tap sources and cancels pending press timers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	taps := d.taps
	for _, state := range d.bindings {
		state.gen++
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
		state.phase = phaseIdle
		state.pending = nil
	}
	d.mu.Unlock()

	for _, tap := range taps {
		tap.Stop()
	}
}

// Suppress ignores all input events until the given duration elapses.
// Called after programmatic paste injection.
func (d *Dispatcher) Suppress(duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until := time.Now().Add(duration)
	if until.After(d.suppressUntil) {
		d.suppressUntil = until
	}
}

// Dispatch feeds one matched event through its binding's state machine.
// Tap sources call this from their event goroutines; the mutex keeps
// per-binding ordering intact.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()

	if ev.When.Before(d.suppressUntil) {
		d.mu.Unlock()
		return
	}

	state, ok := d.bindings[ev.BindingID]
	if !ok {
		d.mu.Unlock()
		return
	}

	var fire func(string)
	switch ev.Kind {
	case Press:
		fire = d.handlePress(state)
	case Release:
		fire = d.handleRelease(state)
	}

	if fire != nil {
		state.pending = append(state.pending, fire)
	}
	d.mu.Unlock()

	d.deliver(state)
}

// deliver drains the binding's callback queue outside the lock. Only
// one goroutine drains at a time; callbacks queued while a drain is in
// flight are picked up by the active drainer, preserving queue order.
func (d *Dispatcher) deliver(state *bindingState) {
	d.mu.Lock()
	if state.delivering {
		d.mu.Unlock()
		return
	}
	state.delivering = true
	id := state.binding.ID

	for len(state.pending) > 0 {
		batch := state.pending
		state.pending = nil
		d.mu.Unlock()

		for _, fire := range batch {
			fire(id)
		}

		d.mu.Lock()
	}

	state.delivering = false
	d.mu.Unlock()
}

// handlePress implements the press edge. Returns the callback to fire
// after the lock is released, or nil.
func (d *Dispatcher) handlePress(state *bindingState) func(string) {
	if state.keyDown {
		// OS auto-repeat; the physical key never came up.
		return nil
	}
	state.keyDown = true

	switch state.phase {
	case phaseIdle:
		// The press is withheld until the double-tap window closes. A
		// second press inside the window turns the pair into a double
		// tap with no press/hold ever delivered.
		state.phase = phasePending
		state.released = false
		state.gen++
		gen := state.gen
		state.timer = time.AfterFunc(d.tapWindow, func() {
			d.windowElapsed(state, gen)
		})
		return nil

	case phasePending:
		state.gen++
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
		state.phase = phaseIdle
		return d.callbacks.OnDoubleTap

	case phaseToggledOn:
		// Press is the off edge in toggle mode.
		state.phase = phaseIdle
		return d.callbacks.OnReleased

	default:
		// Press while Holding cannot happen for a physical key; the
		// keyDown guard above already swallows repeats.
		return nil
	}
}

// handleRelease implements the release edge
func (d *Dispatcher) handleRelease(state *bindingState) func(string) {
	state.keyDown = false

	switch state.phase {
	case phasePending:
		// The window is still open; remember the release so a short
		// single tap still yields a full press/release pair.
		state.released = true
		return nil

	case phaseHolding:
		state.phase = phaseIdle
		return d.callbacks.OnReleased

	default:
		// Releases are ignored in toggle mode and while idle.
		return nil
	}
}

// windowElapsed runs when the double-tap window closes with no second
// press: the withheld press is delivered now.
func (d *Dispatcher) windowElapsed(state *bindingState, gen uint64) {
	d.mu.Lock()

	if state.gen != gen || state.phase != phasePending {
		d.mu.Unlock()
		return
	}
	state.timer = nil

	if d.callbacks.OnPressed != nil {
		state.pending = append(state.pending, d.callbacks.OnPressed)
	}
	if state.binding.Mode == Toggle {
		state.phase = phaseToggledOn
	} else if state.released {
		// Short single tap: the key came back up before the window
		// closed, so deliver the pair back to back.
		state.phase = phaseIdle
		if d.callbacks.OnReleased != nil {
			state.pending = append(state.pending, d.callbacks.OnReleased)
		}
	} else {
		state.phase = phaseHolding
	}

	d.mu.Unlock()

	d.deliver(state)
}
