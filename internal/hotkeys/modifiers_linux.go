// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Linux (X11) modifier key codes
// License:     MIT
// ============================================================================

package hotkeys

import "golang.design/x/hotkey"

const (
	modAlt = hotkey.Mod1
	modCmd = hotkey.Mod4
)
