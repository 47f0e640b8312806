// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     paste
// Description: Paste coordinator tests
// License:     MIT
// ============================================================================

package paste

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// testSettle is short so restore timers fire quickly in tests
const testSettle = 30 * time.Millisecond

type fakeClipboard struct {
	mu      sync.Mutex
	content string
	history []string
	readErr error
}

func (f *fakeClipboard) Read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.content, nil
}

func (f *fakeClipboard) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = text
	f.history = append(f.history, text)
	return nil
}

func (f *fakeClipboard) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

type fakeInjector struct {
	mu       sync.Mutex
	ops      []string
	pasteErr error
}

func (f *fakeInjector) PasteKeystroke() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pasteErr != nil {
		return f.pasteErr
	}
	f.ops = append(f.ops, "paste")
	return nil
}

func (f *fakeInjector) DeleteBackward(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("delete:%d", n))
	return nil
}

func (f *fakeInjector) MoveCursorForward(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fmt.Sprintf("forward:%d", n))
	return nil
}

func (f *fakeInjector) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

func newTestCoordinator(clip *fakeClipboard, inj *fakeInjector) *Coordinator {
	return NewCoordinator(inj, logging.New("test"),
		WithClipboard(clip),
		WithSettleDelay(testSettle),
	)
}

func TestPasteAndRestore(t *testing.T) {
	clip := &fakeClipboard{content: "original"}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.Paste(context.Background(), "dictated text"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}

	if got := clip.current(); got != "dictated text" {
		t.Errorf("clipboard after paste = %q, want %q", got, "dictated text")
	}
	if ops := inj.operations(); len(ops) != 1 || ops[0] != "paste" {
		t.Errorf("operations = %v, want [paste]", ops)
	}

	time.Sleep(3 * testSettle)
	if got := clip.current(); got != "original" {
		t.Errorf("clipboard after settle = %q, want %q", got, "original")
	}
}

func TestSecondPasteCancelsFirstRestore(t *testing.T) {
	clip := &fakeClipboard{content: "original"}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.Paste(context.Background(), "first"); err != nil {
		t.Fatalf("Paste A failed: %v", err)
	}
	// Before A's restore fires, paste B. B reads "first" as the
	// now-current clipboard and must be the only scheduled restore.
	if err := c.Paste(context.Background(), "second"); err != nil {
		t.Fatalf("Paste B failed: %v", err)
	}

	time.Sleep(3 * testSettle)

	if got := clip.current(); got != "first" {
		t.Errorf("clipboard after settle = %q, want %q (B's saved value only)", got, "first")
	}

	// Exactly one restore write happened: first, second, then B's
	// restore of "first".
	clip.mu.Lock()
	history := append([]string{}, clip.history...)
	clip.mu.Unlock()
	want := []string{"first", "second", "first"}
	if len(history) != len(want) {
		t.Fatalf("write history = %v, want %v", history, want)
	}
	for i := range want {
		if history[i] != want[i] {
			t.Fatalf("write history = %v, want %v", history, want)
		}
	}
}

func TestNoRestoreWhenClipboardWasEmpty(t *testing.T) {
	clip := &fakeClipboard{content: ""}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.Paste(context.Background(), "text"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}

	time.Sleep(3 * testSettle)
	if got := clip.current(); got != "text" {
		t.Errorf("clipboard = %q, want %q (no restore of empty)", got, "text")
	}
}

func TestCopyOnlyFallbackWithoutPermission(t *testing.T) {
	clip := &fakeClipboard{content: "original"}
	inj := &fakeInjector{pasteErr: errors.New("accessibility permission missing")}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.Paste(context.Background(), "text"); err != nil {
		t.Fatalf("Paste returned error in copy-only fallback: %v", err)
	}

	// The text must stay on the clipboard for a manual paste; no
	// restore may overwrite it.
	time.Sleep(3 * testSettle)
	if got := clip.current(); got != "text" {
		t.Errorf("clipboard = %q, want %q", got, "text")
	}
}

func TestPasteReplacingSelectionOrder(t *testing.T) {
	clip := &fakeClipboard{content: "original"}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.PasteReplacingSelection(context.Background(), "FOO", 3); err != nil {
		t.Fatalf("PasteReplacingSelection failed: %v", err)
	}

	want := []string{"forward:3", "delete:3", "paste"}
	got := inj.operations()
	if len(got) != len(want) {
		t.Fatalf("operations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("operations = %v, want %v", got, want)
		}
	}
	if current := clip.current(); current != "FOO" {
		t.Errorf("clipboard = %q, want FOO", current)
	}
}

func TestPasteReplacingSelectionZeroLength(t *testing.T) {
	clip := &fakeClipboard{}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	if err := c.PasteReplacingSelection(context.Background(), "text", 0); err != nil {
		t.Fatalf("PasteReplacingSelection failed: %v", err)
	}

	if ops := inj.operations(); len(ops) != 1 || ops[0] != "paste" {
		t.Errorf("operations = %v, want [paste] only", ops)
	}
}

func TestSuppressionHookInvoked(t *testing.T) {
	clip := &fakeClipboard{content: "x"}
	inj := &fakeInjector{}

	var suppressed time.Duration
	c := NewCoordinator(inj, logging.New("test"),
		WithClipboard(clip),
		WithSettleDelay(testSettle),
		WithInputSuppression(func(d time.Duration) { suppressed = d }),
	)
	defer c.Close()

	if err := c.Paste(context.Background(), "text"); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if suppressed != testSettle {
		t.Errorf("suppression duration = %v, want %v", suppressed, testSettle)
	}
}

func TestPasteCancelledContext(t *testing.T) {
	clip := &fakeClipboard{content: "original"}
	inj := &fakeInjector{}
	c := newTestCoordinator(clip, inj)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Paste(ctx, "text"); err == nil {
		t.Error("Paste with cancelled context expected error")
	}
	if got := clip.current(); got != "original" {
		t.Errorf("clipboard touched after cancelled context: %q", got)
	}
}
