// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     hotkeys
// Description: macOS modifier key codes
// License:     MIT
// ============================================================================

package hotkeys

import "golang.design/x/hotkey"

const (
	modAlt = hotkey.ModOption
	modCmd = hotkey.ModCmd
)
