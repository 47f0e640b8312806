// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     session
// Description: Snapshot of the environment when a session starts
// License:     MIT
// ============================================================================

package session

import (
	"context"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"
)

// CapturedContext is the state of the target application at session
// start, used for leading-space insertion and command-mode targets
type CapturedContext struct {
	// AppName is the frontmost application
	AppName string

	// WindowTitle is the focused window's title
	WindowTitle string

	// PrecedingText is the text immediately before the cursor in the
	// focused field, when accessibility exposes it
	PrecedingText string

	// SelectedText is the live text selection, if any
	SelectedText string

	// ClipboardText is the clipboard at session start
	ClipboardText string

	// ScreenText is optional OCR output for command-mode context
	ScreenText string
}

// NeedsLeadingSpace reports whether pasted text should be prefixed
// with a space because the field's existing text ends mid-word
func (c *CapturedContext) NeedsLeadingSpace() bool {
	if c == nil || c.PrecedingText == "" {
		return false
	}
	last := rune(0)
	for _, r := range c.PrecedingText {
		last = r
	}
	return !unicode.IsSpace(last)
}

// TargetText returns the command-mode target and whether it came from
// a live selection (which must be reconstructed before replacement)
func (c *CapturedContext) TargetText() (string, bool) {
	if c == nil {
		return "", false
	}
	if strings.TrimSpace(c.SelectedText) != "" {
		return c.SelectedText, true
	}
	return c.ClipboardText, false
}

// ContextProvider snapshots the captured context at session start
type ContextProvider interface {
	Snapshot(ctx context.Context) (*CapturedContext, error)
}

// ClipboardContextProvider is the portable fallback provider: it can
// only observe the clipboard. Accessibility-based selection capture is
// a platform service layered on top.
type ClipboardContextProvider struct{}

// Snapshot reads the clipboard into a fresh context
func (ClipboardContextProvider) Snapshot(ctx context.Context) (*CapturedContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	captured := &CapturedContext{}
	if text, err := clipboard.ReadAll(); err == nil {
		captured.ClipboardText = text
	}
	return captured, nil
}
