// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Raw event tap for mouse-button bindings
// License:     MIT
// ============================================================================

package hotkeys

import (
	"fmt"
	"sync"
	"time"

	hook "github.com/robotn/gohook"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// modifier rawcodes as delivered by the raw event hook. X11 keysyms on
// Linux, with the macOS and Windows variants alongside.
var modifierRawcodes = map[string][]uint16{
	"ctrl":  {65507, 65508, 37, 105, 59, 62, 162, 163, 17},
	"shift": {65505, 65506, 50, 56, 60, 160, 161, 16},
	"alt":   {65513, 65514, 58, 61, 64, 164, 165, 18},
	"cmd":   {65515, 65516, 55, 54, 91, 92, 133, 134},
}

// HookTap monitors the raw OS event stream and matches mouse-button
// bindings, with required keyboard modifiers tracked from key
// down/up events. Keyboard-only bindings are handled by HotkeyTap;
// this tap ignores them.
type HookTap struct {
	logger   *logging.Logger
	bindings []Binding

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewHookTap builds a raw-event tap for the mouse bindings in the set
func NewHookTap(bindings []Binding, logger *logging.Logger) *HookTap {
	tap := &HookTap{logger: logger}
	for _, b := range bindings {
		if b.Kind == KindMouse {
			tap.bindings = append(tap.bindings, b)
		}
	}
	return tap
}

// HasBindings reports whether any mouse binding is configured. A tap
// with no bindings does not need to hook the event stream at all.
func (t *HookTap) HasBindings() bool {
	return len(t.bindings) > 0
}

// Start begins monitoring the raw event stream
func (t *HookTap) Start(dispatch func(Event)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("hook tap already running")
	}
	if len(t.bindings) == 0 {
		return nil
	}

	t.running = true
	t.done = make(chan struct{})
	t.wg.Add(1)
	go t.monitor(dispatch)

	t.logger.Info("Raw input hook started", "mouseBindings", len(t.bindings))
	return nil
}

// monitor consumes raw events until stopped. Modifier keys are tracked
// as plain key events because the hook reports them no differently from
// other keys.
func (t *HookTap) monitor(dispatch func(Event)) {
	defer t.wg.Done()

	events := hook.Start()
	defer hook.End()

	modsDown := map[string]bool{}

	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev.Kind {
			case hook.KeyDown, hook.KeyHold:
				if name := modifierName(ev.Rawcode); name != "" {
					modsDown[name] = true
				}
			case hook.KeyUp:
				if name := modifierName(ev.Rawcode); name != "" {
					modsDown[name] = false
				}
			case hook.MouseDown:
				if b, ok := t.match(int(ev.Button), modsDown); ok {
					dispatch(Event{BindingID: b.ID, Kind: Press, When: time.Now()})
				}
			case hook.MouseUp:
				// Releases match on the button alone so a modifier
				// released mid-hold cannot swallow the up edge.
				if b, ok := t.matchButton(int(ev.Button)); ok {
					dispatch(Event{BindingID: b.ID, Kind: Release, When: time.Now()})
				}
			}
		}
	}
}

// Stop ends raw event monitoring
func (t *HookTap) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}

// match finds the binding for a pressed button with all its required
// modifiers currently held
func (t *HookTap) match(button int, modsDown map[string]bool) (Binding, bool) {
	for _, b := range t.bindings {
		if b.MouseButton != button {
			continue
		}
		satisfied := true
		for _, mod := range b.Modifiers {
			if !modsDown[mod] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return b, true
		}
	}
	return Binding{}, false
}

// matchButton finds the binding for a button regardless of modifiers
func (t *HookTap) matchButton(button int) (Binding, bool) {
	for _, b := range t.bindings {
		if b.MouseButton == button {
			return b, true
		}
	}
	return Binding{}, false
}

// modifierName maps a raw keycode to its modifier name, or ""
func modifierName(rawcode uint16) string {
	for name, codes := range modifierRawcodes {
		for _, code := range codes {
			if code == rawcode {
				return name
			}
		}
	}
	return ""
}
