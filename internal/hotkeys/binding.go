// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Hotkey binding model and spec parsing
// License:     MIT
// ============================================================================

package hotkeys

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how a binding drives recording
type Mode int

const (
	// PushToTalk records while the binding is held; release stops
	PushToTalk Mode = iota

	// Toggle starts on one press and stops on a later press
	Toggle
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case PushToTalk:
		return "push-to-talk"
	case Toggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// Kind distinguishes keyboard from mouse-button bindings
type Kind int

const (
	KindKey Kind = iota
	KindMouse
)

// Well-known binding IDs. Each active binding is dispatched only to its
// own handler, never to the other's.
const (
	BindingDictation = "dictation"
	BindingCommand   = "command"
)

// Binding describes one configured activation trigger
type Binding struct {
	ID          string
	Kind        Kind
	Key         string   // normalized key name, e.g. "m", "space", "f5"
	Modifiers   []string // normalized: "ctrl", "shift", "alt", "cmd"
	MouseButton int      // button number for KindMouse
	Mode        Mode
}

// String returns the human-readable binding spec
func (b Binding) String() string {
	parts := append([]string{}, b.Modifiers...)
	if b.Kind == KindMouse {
		parts = append(parts, fmt.Sprintf("mouse%d", b.MouseButton))
	} else {
		parts = append(parts, b.Key)
	}
	return strings.Join(parts, "+")
}

// ParseBinding parses a spec like "ctrl+shift+m", "alt+space", or
// "mouse4" into a Binding.
func ParseBinding(id, spec string, mode Mode) (Binding, error) {
	if strings.TrimSpace(spec) == "" {
		return Binding{}, fmt.Errorf("empty binding spec")
	}

	b := Binding{ID: id, Mode: mode}

	parts := strings.Split(strings.ToLower(spec), "+")
	for i, raw := range parts {
		part := strings.TrimSpace(raw)
		last := i == len(parts)-1

		switch part {
		case "ctrl", "control":
			b.Modifiers = append(b.Modifiers, "ctrl")
		case "shift":
			b.Modifiers = append(b.Modifiers, "shift")
		case "alt", "option", "opt":
			b.Modifiers = append(b.Modifiers, "alt")
		case "cmd", "command", "super", "win", "meta":
			b.Modifiers = append(b.Modifiers, "cmd")
		default:
			if !last {
				return Binding{}, fmt.Errorf("unknown modifier %q in %q", part, spec)
			}
			if strings.HasPrefix(part, "mouse") {
				n, err := strconv.Atoi(strings.TrimPrefix(part, "mouse"))
				if err != nil || n < 1 {
					return Binding{}, fmt.Errorf("invalid mouse button %q in %q", part, spec)
				}
				b.Kind = KindMouse
				b.MouseButton = n
			} else {
				if part == "" {
					return Binding{}, fmt.Errorf("missing key in %q", spec)
				}
				b.Kind = KindKey
				b.Key = part
			}
		}
	}

	if b.Kind == KindKey && b.Key == "" {
		return Binding{}, fmt.Errorf("binding %q has no key", spec)
	}
	return b, nil
}
