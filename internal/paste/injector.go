// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     paste
// Description: Input injection backed by robotgo
// License:     MIT
// ============================================================================

package paste

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// RobotgoInjector synthesizes keystrokes through robotgo
type RobotgoInjector struct {
	pasteModifier string
}

// NewRobotgoInjector creates the production injector with the
// platform's paste modifier
func NewRobotgoInjector() *RobotgoInjector {
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return &RobotgoInjector{pasteModifier: modifier}
}

// PasteKeystroke injects Cmd/Ctrl+V
func (i *RobotgoInjector) PasteKeystroke() error {
	if err := robotgo.KeyTap("v", i.pasteModifier); err != nil {
		return fmt.Errorf("paste keystroke failed: %w", err)
	}
	return nil
}

// DeleteBackward injects n backspaces
func (i *RobotgoInjector) DeleteBackward(n int) error {
	for j := 0; j < n; j++ {
		if err := robotgo.KeyTap("backspace"); err != nil {
			return fmt.Errorf("delete keystroke failed: %w", err)
		}
	}
	return nil
}

// MoveCursorForward injects n right-arrow presses
func (i *RobotgoInjector) MoveCursorForward(n int) error {
	for j := 0; j < n; j++ {
		if err := robotgo.KeyTap("right"); err != nil {
			return fmt.Errorf("cursor keystroke failed: %w", err)
		}
	}
	return nil
}
