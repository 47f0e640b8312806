// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Keyboard tap source backed by registered global hotkeys
// License:     MIT
// ============================================================================

package hotkeys

import (
	"fmt"
	"sync"
	"time"

	"golang.design/x/hotkey"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// HotkeyTap registers each keyboard binding as a global hotkey and
// forwards its keydown/keyup channels as press/release events. Mouse
// bindings are not handled here; see HookTap.
type HotkeyTap struct {
	logger  *logging.Logger
	entries []hotkeyEntry

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

type hotkeyEntry struct {
	bindingID string
	hk        *hotkey.Hotkey
}

// NewHotkeyTap builds a tap for the keyboard bindings in the given set.
// Mouse bindings are skipped; an unmappable key or modifier is an error.
func NewHotkeyTap(bindings []Binding, logger *logging.Logger) (*HotkeyTap, error) {
	tap := &HotkeyTap{logger: logger}

	for _, b := range bindings {
		if b.Kind != KindKey {
			continue
		}

		key, err := mapKey(b.Key)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.ID, err)
		}
		mods, err := mapModifiers(b.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.ID, err)
		}

		tap.entries = append(tap.entries, hotkeyEntry{
			bindingID: b.ID,
			hk:        hotkey.New(mods, key),
		})
	}

	return tap, nil
}

// Start registers the hotkeys and begins forwarding events
func (t *HotkeyTap) Start(dispatch func(Event)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("hotkey tap already running")
	}

	for i, entry := range t.entries {
		if err := entry.hk.Register(); err != nil {
			for _, registered := range t.entries[:i] {
				registered.hk.Unregister()
			}
			return fmt.Errorf("failed to register hotkey for %s: %w", entry.bindingID, err)
		}
		t.logger.Info("Hotkey registered", "binding", entry.bindingID)
	}

	t.done = make(chan struct{})
	t.running = true

	for _, entry := range t.entries {
		t.wg.Add(1)
		go t.forward(entry, dispatch, t.done)
	}
	return nil
}

// forward pumps one hotkey's keydown/keyup channels into the dispatcher
func (t *HotkeyTap) forward(entry hotkeyEntry, dispatch func(Event), done chan struct{}) {
	defer t.wg.Done()

	for {
		select {
		case <-done:
			return
		case <-entry.hk.Keydown():
			dispatch(Event{BindingID: entry.bindingID, Kind: Press, When: time.Now()})
		case <-entry.hk.Keyup():
			dispatch(Event{BindingID: entry.bindingID, Kind: Release, When: time.Now()})
		}
	}
}

// Stop unregisters the hotkeys and waits for the forwarders to exit
func (t *HotkeyTap) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
	for _, entry := range t.entries {
		entry.hk.Unregister()
	}
}

// mapModifiers translates normalized modifier names to hotkey modifiers
func mapModifiers(names []string) ([]hotkey.Modifier, error) {
	mods := make([]hotkey.Modifier, 0, len(names))
	for _, name := range names {
		switch name {
		case "ctrl":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		case "alt":
			mods = append(mods, modAlt)
		case "cmd":
			mods = append(mods, modCmd)
		default:
			return nil, fmt.Errorf("unsupported modifier %q", name)
		}
	}
	return mods, nil
}

var keyNames = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"esc":    hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
	"f1":     hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// mapKey translates a normalized key name to a hotkey key code
func mapKey(name string) (hotkey.Key, error) {
	key, ok := keyNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported key %q", name)
	}
	return key, nil
}
