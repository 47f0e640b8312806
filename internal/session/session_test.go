// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     session
// Description: Session machine tests
// License:     MIT
// ============================================================================

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/internal/history"
	"github.com/voxkey/voxkey/internal/provider"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeCapture struct {
	dir      string
	short    bool
	wav      bool
	startErr error
	stopErr  error
}

func (c *fakeCapture) Start() error { return c.startErr }

func (c *fakeCapture) Stop() (*capture.Clip, error) {
	if c.stopErr != nil {
		return nil, c.stopErr
	}
	path := filepath.Join(c.dir, "clip.wav")
	var data []byte
	if c.wav {
		samples := make([]float32, 16000)
		data = capture.EncodeWav(samples, 16000)
	} else {
		data = make([]byte, 2000)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	clip := &capture.Clip{
		Path:     path,
		Duration: 2 * time.Second,
		Size:     int64(len(data)),
	}
	if c.short {
		clip.Duration = 100 * time.Millisecond
		clip.Size = 100
	}
	return clip, nil
}

type fakeGate struct {
	speech bool
	err    error
}

func (g *fakeGate) HasSpeech(_ context.Context, _ string) (bool, error) {
	return g.speech, g.err
}

type fakeTranscriber struct {
	mu     sync.Mutex
	text   string
	err    error
	prompt string
}

func (t *fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string, prompt string) (string, error) {
	t.mu.Lock()
	t.prompt = prompt
	t.mu.Unlock()
	return t.text, t.err
}

func (t *fakeTranscriber) Close() error { return nil }

type fakeEngine struct {
	text string
}

func (e *fakeEngine) State() provider.EngineState        { return provider.EngineReady }
func (e *fakeEngine) AwaitReady(_ context.Context) error { return nil }
func (e *fakeEngine) Close() error                       { return nil }

func (e *fakeEngine) Transcribe(_ context.Context, _ []float32) (string, error) {
	return e.text, nil
}

type fakeCompleter struct {
	mu        sync.Mutex
	transform func(system, user string) string
	err       error
	calls     []string
}

func (c *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, user)
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.transform(system, user), nil
}

type fakePaster struct {
	mu  sync.Mutex
	ops []string
}

func (p *fakePaster) Paste(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, "paste:"+text)
	return nil
}

func (p *fakePaster) PasteReplacingSelection(_ context.Context, text string, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, fmt.Sprintf("replace:%d:%s", n, text))
	return nil
}

func (p *fakePaster) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.ops))
	copy(out, p.ops)
	return out
}

type fakeStore struct {
	mu    sync.Mutex
	recs  []*history.Recording
	words int
}

func (s *fakeStore) SaveRecording(_ context.Context, rec *history.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs = append(s.recs, &cp)
	return nil
}

func (s *fakeStore) ListRecordings(_ context.Context, _ int) ([]*history.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*history.Recording(nil), s.recs...), nil
}

func (s *fakeStore) GetRecording(_ context.Context, _ string) (*history.Recording, error) {
	return nil, errors.New("not found")
}

func (s *fakeStore) ArchiveClip(tempPath string) (string, error) {
	return tempPath, nil
}

func (s *fakeStore) AddWords(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words += n
	return nil
}

func (s *fakeStore) TotalWords(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.words, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) Recordings() []*history.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*history.Recording(nil), s.recs...)
}

type fakeLimiter struct {
	err error
}

func (l *fakeLimiter) CheckQuota(_ context.Context) error { return l.err }

type fakeContext struct {
	snap *CapturedContext
}

func (c *fakeContext) Snapshot(_ context.Context) (*CapturedContext, error) {
	if c.snap == nil {
		return &CapturedContext{}, nil
	}
	return c.snap, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func awaitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if ev.To == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v, current %v", want, m.State())
		}
	}
}

func runSession(t *testing.T, m *Machine, mode Mode) {
	t.Helper()
	if !m.Begin(mode) {
		t.Fatal("Begin() = false, want true")
	}
	awaitState(t, m, StateRecording)
	if !m.Finish() {
		t.Fatal("Finish() = false, want true")
	}
	awaitState(t, m, StateIdle)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDictationEndToEnd(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello world"},
		Paster:      paster,
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste:hello world" {
		t.Errorf("paste ops = %v, want [paste:hello world]", ops)
	}

	recs := store.Recordings()
	if len(recs) != 1 {
		t.Fatalf("len(recordings) = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != history.StatusSuccess {
		t.Errorf("Status = %q, want %q", rec.Status, history.StatusSuccess)
	}
	if rec.WordCount != 2 {
		t.Errorf("WordCount = %d, want 2", rec.WordCount)
	}
	if rec.Provider != "custom" {
		t.Errorf("Provider = %q, want %q", rec.Provider, "custom")
	}
	if words, _ := store.TotalWords(context.Background()); words != 2 {
		t.Errorf("TotalWords = %d, want 2", words)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}
}

func TestDictationLeadingSpace(t *testing.T) {
	paster := &fakePaster{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{snap: &CapturedContext{PrecedingText: "stop"}},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste: hello" {
		t.Errorf("paste ops = %v, want [paste: hello]", ops)
	}
}

func TestCommandModeReplacesSelection(t *testing.T) {
	paster := &fakePaster{}
	completer := &fakeCompleter{
		transform: func(_, user string) string {
			// Upcase the target text between "Text:" and the instruction.
			lines := strings.SplitN(user, "\n\n", 2)
			return strings.ToUpper(strings.TrimPrefix(lines[0], "Text:\n"))
		},
	}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "make it uppercase"},
		Completer:   completer,
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{snap: &CapturedContext{SelectedText: "foo"}},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Command)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "replace:3:FOO" {
		t.Errorf("paste ops = %v, want [replace:3:FOO]", ops)
	}
}

func TestCommandModeClipboardTargetPastes(t *testing.T) {
	paster := &fakePaster{}
	completer := &fakeCompleter{
		transform: func(_, _ string) string { return "result" },
	}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "summarize"},
		Completer:   completer,
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{snap: &CapturedContext{ClipboardText: "long text"}},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Command)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste:result" {
		t.Errorf("paste ops = %v, want [paste:result]", ops)
	}
}

func TestCommandFailureDoesNotPaste(t *testing.T) {
	paster := &fakePaster{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "do something"},
		Completer:   &fakeCompleter{err: errors.New("model offline")},
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Command)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}
}

func TestShortClipDiscardedSilently(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir(), short: true},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	if recs := store.Recordings(); len(recs) != 0 {
		t.Errorf("len(recordings) = %d, want 0", len(recs))
	}
}

func TestQuotaFailureRecordsError(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       store,
		Limiter:     &fakeLimiter{err: provider.ErrQuotaExceeded},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	recs := store.Recordings()
	if len(recs) != 1 {
		t.Fatalf("len(recordings) = %d, want 1", len(recs))
	}
	if recs[0].Status != history.StatusFailed {
		t.Errorf("Status = %q, want %q", recs[0].Status, history.StatusFailed)
	}
	if recs[0].ErrorMessage == "" {
		t.Error("ErrorMessage is empty, want the quota error")
	}
}

func TestNoSpeechDiscardedSilently(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined, VADEnabled: true}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Gate:        &fakeGate{speech: false},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	if recs := store.Recordings(); len(recs) != 0 {
		t.Errorf("len(recordings) = %d, want 0", len(recs))
	}
}

func TestGateFailureProceeds(t *testing.T) {
	paster := &fakePaster{}
	m, err := NewMachine(Config{Path: CustomCombined, VADEnabled: true}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Gate:        &fakeGate{err: errors.New("classifier crashed")},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste:hello" {
		t.Errorf("paste ops = %v, want [paste:hello]", ops)
	}
}

func TestEmptyTranscriptDiscardedSilently(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "   "},
		Paster:      paster,
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	if recs := store.Recordings(); len(recs) != 0 {
		t.Errorf("len(recordings) = %d, want 0", len(recs))
	}
}

func TestTranscriptionFailureRecorded(t *testing.T) {
	store := &fakeStore{}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{err: provider.ErrMissingCredential},
		Paster:      &fakePaster{},
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	recs := store.Recordings()
	if len(recs) != 1 {
		t.Fatalf("len(recordings) = %d, want 1", len(recs))
	}
	if recs[0].Status != history.StatusFailed {
		t.Errorf("Status = %q, want %q", recs[0].Status, history.StatusFailed)
	}
}

func TestLocalEnginePathWithFormatting(t *testing.T) {
	paster := &fakePaster{}
	m, err := NewMachine(Config{Path: OnDeviceThenLLM, AutoFormat: true}, Deps{
		Capture: &fakeCapture{dir: t.TempDir(), wav: true},
		Engine:  &fakeEngine{text: "hello world"},
		Completer: &fakeCompleter{
			transform: func(_, user string) string { return "Hello world." },
		},
		Paster:  paster,
		Store:   &fakeStore{},
		Context: &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste:Hello world." {
		t.Errorf("paste ops = %v, want [paste:Hello world.]", ops)
	}
}

func TestFormattingFailureFallsBackToRaw(t *testing.T) {
	paster := &fakePaster{}
	m, err := NewMachine(Config{Path: CloudThenLLM, AutoFormat: true}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello world"},
		Completer:   &fakeCompleter{err: errors.New("model offline")},
		Paster:      paster,
		Store:       &fakeStore{},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	runSession(t, m, Dictation)

	ops := paster.Ops()
	if len(ops) != 1 || ops[0] != "paste:hello world" {
		t.Errorf("paste ops = %v, want [paste:hello world]", ops)
	}
}

func TestBeginWhileRecordingRejected(t *testing.T) {
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      &fakePaster{},
		Store:       &fakeStore{},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	if !m.Begin(Dictation) {
		t.Fatal("Begin() = false, want true")
	}
	awaitState(t, m, StateRecording)
	if m.Begin(Dictation) {
		t.Error("second Begin() = true, want false")
	}
	if !m.Finish() {
		t.Fatal("Finish() = false, want true")
	}
	awaitState(t, m, StateIdle)
}

func TestAbortDiscardsWithoutRecord(t *testing.T) {
	paster := &fakePaster{}
	store := &fakeStore{}
	capt := &fakeCapture{dir: t.TempDir()}
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     capt,
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      paster,
		Store:       store,
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	if !m.Begin(Dictation) {
		t.Fatal("Begin() = false, want true")
	}
	awaitState(t, m, StateRecording)
	if !m.Abort() {
		t.Fatal("Abort() = false, want true")
	}
	awaitState(t, m, StateIdle)

	if ops := paster.Ops(); len(ops) != 0 {
		t.Errorf("paste ops = %v, want none", ops)
	}
	if recs := store.Recordings(); len(recs) != 0 {
		t.Errorf("len(recordings) = %d, want 0", len(recs))
	}
	if _, err := os.Stat(filepath.Join(capt.dir, "clip.wav")); !os.IsNotExist(err) {
		t.Error("aborted clip file still exists")
	}
}

func TestFinishWhileIdleRejected(t *testing.T) {
	m, err := NewMachine(Config{Path: CustomCombined}, Deps{
		Capture:     &fakeCapture{dir: t.TempDir()},
		Transcriber: &fakeTranscriber{text: "hello"},
		Paster:      &fakePaster{},
		Store:       &fakeStore{},
		Context:     &fakeContext{},
	})
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	defer m.Close()

	if m.Finish() {
		t.Error("Finish() while idle = true, want false")
	}
	if m.Abort() {
		t.Error("Abort() while idle = true, want false")
	}
}

func TestNewMachineValidation(t *testing.T) {
	base := Deps{
		Capture:     &fakeCapture{},
		Transcriber: &fakeTranscriber{},
		Paster:      &fakePaster{},
		Store:       &fakeStore{},
	}

	missing := base
	missing.Capture = nil
	if _, err := NewMachine(Config{Path: CustomCombined}, missing); err == nil {
		t.Error("NewMachine() without capture: error = nil, want error")
	}

	missing = base
	missing.Transcriber = nil
	if _, err := NewMachine(Config{Path: CloudThenLLM}, missing); err == nil {
		t.Error("NewMachine() without transcriber: error = nil, want error")
	}

	missing = base
	if _, err := NewMachine(Config{Path: OnDeviceThenLLM}, missing); err == nil {
		t.Error("NewMachine() without engine: error = nil, want error")
	}
}

func TestProviderPathString(t *testing.T) {
	cases := []struct {
		path ProviderPath
		want string
	}{
		{CustomCombined, "custom"},
		{OnDeviceThenLLM, "local"},
		{CloudThenLLM, "cloud"},
		{ProviderPath(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.path.String(); got != tc.want {
			t.Errorf("ProviderPath(%d).String() = %q, want %q", tc.path, got, tc.want)
		}
	}
}
