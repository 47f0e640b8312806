// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     paste
// Description: Clipboard paste coordinator with scheduled restore
// License:     MIT
// ============================================================================

package paste

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// DefaultSettleDelay is how long after injecting the paste keystroke
// the original clipboard contents are restored
const DefaultSettleDelay = 800 * time.Millisecond

// Clipboard abstracts the system clipboard for testing
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// systemClipboard is the production clipboard
type systemClipboard struct{}

func (systemClipboard) Read() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) Write(text string) error { return clipboard.WriteAll(text) }

// Injector synthesizes input events. All methods are best-effort; a
// missing accessibility permission surfaces as ErrNoPermission from
// PasteKeystroke and the coordinator degrades to copy-only.
type Injector interface {
	PasteKeystroke() error
	DeleteBackward(n int) error
	MoveCursorForward(n int) error
}

// Coordinator pastes text by replacing the clipboard, injecting the
// paste keystroke, and restoring the previous clipboard after a settle
// delay. At most one restore is ever pending: a new paste cancels the
// previously scheduled one.
type Coordinator struct {
	clip        Clipboard
	injector    Injector
	settleDelay time.Duration
	logger      *logging.Logger

	// suppressInput, when set, is invoked before injecting so the
	// hotkey dispatcher ignores the synthesized keystroke.
	suppressInput func(time.Duration)

	mu           sync.Mutex
	restoreTimer *time.Timer
	restoreGen   uint64
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClipboard overrides the system clipboard
func WithClipboard(clip Clipboard) Option {
	return func(c *Coordinator) { c.clip = clip }
}

// WithSettleDelay overrides the restore delay
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settleDelay = d }
}

// WithInputSuppression sets the hook called before keystroke injection
func WithInputSuppression(fn func(time.Duration)) Option {
	return func(c *Coordinator) { c.suppressInput = fn }
}

// NewCoordinator creates a paste coordinator
func NewCoordinator(injector Injector, logger *logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		clip:        systemClipboard{},
		injector:    injector,
		settleDelay: DefaultSettleDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Paste writes text to the clipboard, injects the paste keystroke, and
// schedules restoration of the previous clipboard contents. A missing
// injection permission degrades to copy-only and still returns nil.
func (c *Coordinator) Paste(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	previous, readErr := c.clip.Read()
	if readErr != nil {
		// Unreadable clipboard means nothing to restore.
		previous = ""
	}

	if err := c.clip.Write(text); err != nil {
		return err
	}

	if c.suppressInput != nil {
		c.suppressInput(c.settleDelay)
	}

	// The agent never owns focus: dictation is triggered by a global
	// hotkey while the target application stays frontmost, so the
	// keystroke lands there without an explicit activation step.
	if err := c.injector.PasteKeystroke(); err != nil {
		// Copy-only fallback: the text stays on the clipboard for the
		// user to paste manually, so the previous contents must not be
		// restored over it.
		c.logger.Warn("Paste keystroke unavailable, clipboard holds text", "error", err)
		c.cancelPendingRestore()
		return nil
	}

	if previous == "" || readErr != nil {
		c.cancelPendingRestore()
		return nil
	}

	c.scheduleRestore(previous)
	return nil
}

// PasteReplacingSelection reconstructs a live selection of selectionLen
// characters (cursor moved to its end, selection deleted backward) and
// then pastes the replacement text in place.
func (c *Coordinator) PasteReplacingSelection(ctx context.Context, text string, selectionLen int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if selectionLen > 0 {
		if err := c.injector.MoveCursorForward(selectionLen); err != nil {
			return err
		}
		if err := c.injector.DeleteBackward(selectionLen); err != nil {
			return err
		}
	}
	return c.Paste(ctx, text)
}

// scheduleRestore arms the single restore timer, replacing any pending
// one so two rapid pastes cannot race on restoration order
func (c *Coordinator) scheduleRestore(previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restoreTimer != nil {
		c.restoreTimer.Stop()
	}
	c.restoreGen++
	gen := c.restoreGen

	c.restoreTimer = time.AfterFunc(c.settleDelay, func() {
		c.mu.Lock()
		stale := gen != c.restoreGen
		if !stale {
			c.restoreTimer = nil
		}
		c.mu.Unlock()
		if stale {
			return
		}

		if err := c.clip.Write(previous); err != nil {
			c.logger.Warn("Clipboard restore failed", "error", err)
		}
	})
}

// cancelPendingRestore drops any scheduled restore
func (c *Coordinator) cancelPendingRestore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.restoreGen++
	if c.restoreTimer != nil {
		c.restoreTimer.Stop()
		c.restoreTimer = nil
	}
}

// Close cancels any pending restore
func (c *Coordinator) Close() {
	c.cancelPendingRestore()
}
