// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: Windows modifier key codes
// License:     MIT
// ============================================================================

package hotkeys

import "golang.design/x/hotkey"

const (
	modAlt = hotkey.ModAlt
	modCmd = hotkey.ModWin
)
