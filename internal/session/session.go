// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     session
// Description: Recording session orchestrator
// License:     MIT
// ============================================================================

package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/internal/history"
	"github.com/voxkey/voxkey/internal/provider"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

// snapshotTimeout bounds the captured-context snapshot at session start
const snapshotTimeout = time.Second

// ProviderPath selects which transcription pipeline runs. Exactly one
// path executes per session.
type ProviderPath int

const (
	// CustomCombined sends the clip to a server that transcribes and
	// formats in one call
	CustomCombined ProviderPath = iota

	// OnDeviceThenLLM transcribes locally, optionally formatting the
	// result with a separate completion call
	OnDeviceThenLLM

	// CloudThenLLM transcribes in the cloud, optionally formatting the
	// result with a separate completion call
	CloudThenLLM
)

// String returns the string representation of the provider path
func (p ProviderPath) String() string {
	switch p {
	case CustomCombined:
		return "custom"
	case OnDeviceThenLLM:
		return "local"
	case CloudThenLLM:
		return "cloud"
	default:
		return "unknown"
	}
}

// CaptureSession is the audio capture collaborator
type CaptureSession interface {
	Start() error
	Stop() (*capture.Clip, error)
}

// SpeechGate decides whether a clip contains speech
type SpeechGate interface {
	HasSpeech(ctx context.Context, clipPath string) (bool, error)
}

// Paster delivers a transcript to the target application
type Paster interface {
	Paste(ctx context.Context, text string) error
	PasteReplacingSelection(ctx context.Context, text string, selectionLen int) error
}

// Limiter is an optional pre-transcription quota check
type Limiter interface {
	CheckQuota(ctx context.Context) error
}

// StateChange is published on the observer channel after each
// committed transition
type StateChange struct {
	From State
	To   State
}

// Config holds machine configuration
type Config struct {
	// Path selects the transcription pipeline
	Path ProviderPath

	// VADEnabled runs the speech gate before transcription
	VADEnabled bool

	// AutoFormat runs dictation transcripts through the Completer
	AutoFormat bool
}

// Deps are the machine's collaborators. Capture, Paster, and Store are
// required; the rest depend on configuration.
type Deps struct {
	Capture     CaptureSession
	Gate        SpeechGate
	Transcriber provider.Transcriber
	Engine      provider.Engine
	Completer   provider.Completer
	Paster      Paster
	Store       history.Store
	Limiter     Limiter
	Context     ContextProvider
	Logger      *logging.Logger
}

type commandKind int

const (
	cmdBegin commandKind = iota
	cmdFinish
	cmdAbort
)

type command struct {
	kind commandKind
	mode Mode
}

// Machine is the single authority for the session lifecycle. All
// transitions run on one serial loop so the state guard is atomic with
// the mutation; overlapping triggers are dropped, never queued.
type Machine struct {
	cfg    Config
	deps   Deps
	logger *logging.Logger

	sm       *stateMachine
	commands chan command
	events   chan StateChange
	done     chan struct{}
	stopped  chan struct{}

	// loop-owned; never touched outside the command goroutine
	mode     Mode
	captured *CapturedContext
}

// NewMachine creates the session machine
func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	if deps.Capture == nil {
		return nil, fmt.Errorf("capture session is required")
	}
	if deps.Paster == nil {
		return nil, fmt.Errorf("paster is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	switch cfg.Path {
	case CustomCombined, CloudThenLLM:
		if deps.Transcriber == nil {
			return nil, fmt.Errorf("transcriber is required for %s path", cfg.Path)
		}
	case OnDeviceThenLLM:
		if deps.Engine == nil {
			return nil, fmt.Errorf("engine is required for %s path", cfg.Path)
		}
	default:
		return nil, fmt.Errorf("unknown provider path %d", cfg.Path)
	}
	if deps.Logger == nil {
		deps.Logger = logging.New("session")
	}
	if deps.Context == nil {
		deps.Context = ClipboardContextProvider{}
	}

	m := &Machine{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger,
		sm:       newStateMachine(),
		commands: make(chan command, 1),
		events:   make(chan StateChange, 16),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	m.sm.AddListener(func(from, to State) {
		select {
		case m.events <- StateChange{From: from, To: to}:
		default:
		}
	})

	go m.loop()
	return m, nil
}

// State returns the current session state
func (m *Machine) State() State {
	return m.sm.Current()
}

// Events is the state-change observer channel. Slow consumers drop
// events rather than stalling the machine.
func (m *Machine) Events() <-chan StateChange {
	return m.events
}

// Begin requests a new session in the given mode. Returns false when
// the machine is busy or the trigger was dropped.
func (m *Machine) Begin(mode Mode) bool {
	if m.sm.Current() != StateIdle {
		return false
	}
	return m.submit(command{kind: cmdBegin, mode: mode})
}

// Finish requests the end of the capture phase. Returns false when no
// recording is active.
func (m *Machine) Finish() bool {
	if m.sm.Current() != StateRecording {
		return false
	}
	return m.submit(command{kind: cmdFinish})
}

// Abort cancels an active recording, discarding the clip without
// transcription
func (m *Machine) Abort() bool {
	if m.sm.Current() != StateRecording {
		return false
	}
	return m.submit(command{kind: cmdAbort})
}

// submit enqueues without blocking; a full queue means the loop is
// busy and the trigger is intentionally lost
func (m *Machine) submit(cmd command) bool {
	select {
	case m.commands <- cmd:
		return true
	default:
		m.logger.Debug("Trigger dropped, machine busy", "kind", int(cmd.kind))
		return false
	}
}

// Close stops the command loop. An in-flight session finishes first.
func (m *Machine) Close() {
	close(m.done)
	<-m.stopped
}

// loop is the serial executor for all lifecycle work
func (m *Machine) loop() {
	defer close(m.stopped)

	for {
		select {
		case <-m.done:
			return
		case cmd := <-m.commands:
			switch cmd.kind {
			case cmdBegin:
				m.handleBegin(cmd.mode)
			case cmdFinish:
				m.handleFinish()
			case cmdAbort:
				m.handleAbort()
			}
		}
	}
}

// handleBegin starts capture for a new session
func (m *Machine) handleBegin(mode Mode) {
	if !m.sm.Transition(StateRecording) {
		m.logger.Debug("Start rejected", "state", m.sm.Current().String())
		return
	}

	m.mode = mode
	m.captured = nil

	snapCtx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	if snap, err := m.deps.Context.Snapshot(snapCtx); err == nil {
		m.captured = snap
	} else {
		m.logger.Warn("Context snapshot failed", "error", err)
	}
	cancel()

	if err := m.deps.Capture.Start(); err != nil {
		m.logger.Error("Capture start failed", "error", err)
		m.saveFailedRecording("", 0, fmt.Errorf("%w: %v", provider.ErrCaptureFailure, err))
		m.toIdle()
		return
	}

	m.logger.Info("Recording started", "mode", mode.String())
}

// handleAbort discards an active recording
func (m *Machine) handleAbort() {
	if m.sm.Current() != StateRecording {
		return
	}

	clip, err := m.deps.Capture.Stop()
	if err != nil {
		m.logger.Warn("Capture stop failed during abort", "error", err)
	}
	if clip != nil {
		clip.Discard()
	}
	m.logger.Info("Recording aborted")
	m.toIdle()
}

// handleFinish runs the full stop → transcribe → paste pipeline to
// completion. There is no mid-flight cancellation; a second trigger
// during this span is rejected by the state guard.
func (m *Machine) handleFinish() {
	if !m.sm.Transition(StateTranscribing) {
		m.logger.Debug("Stop rejected", "state", m.sm.Current().String())
		return
	}

	clip, err := m.deps.Capture.Stop()
	if err != nil {
		m.logger.Error("Capture stop failed", "error", err)
		m.saveFailedRecording("", 0, fmt.Errorf("%w: %v", provider.ErrCaptureFailure, err))
		m.toIdle()
		return
	}
	if clip == nil {
		m.toIdle()
		return
	}

	if clip.TooShort() {
		m.logger.Info("Clip too short, discarding",
			"duration", clip.Duration, "size", clip.Size)
		clip.Discard()
		m.toIdle()
		return
	}

	ctx := context.Background()

	if m.deps.Limiter != nil {
		if err := m.deps.Limiter.CheckQuota(ctx); err != nil {
			m.logger.Warn("Quota check failed", "error", err)
			m.saveFailedRecording("", clip.Duration, err)
			clip.Discard()
			m.toIdle()
			return
		}
	}

	if m.cfg.VADEnabled && m.deps.Gate != nil {
		hasSpeech, err := m.deps.Gate.HasSpeech(ctx, clip.Path)
		if err != nil {
			// Gate failure assumes speech and proceeds.
			m.logger.Warn("Speech gate failed, proceeding", "error", err)
		} else if !hasSpeech {
			m.logger.Info("No speech detected, discarding clip")
			clip.Discard()
			m.toIdle()
			return
		}
	}

	text, err := m.transcribe(ctx, clip)
	if err != nil {
		m.logger.Error("Transcription failed", "error", err)
		m.saveFailedRecording("", clip.Duration, err)
		clip.Discard()
		m.toIdle()
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		m.logger.Info("Empty transcript, discarding clip")
		clip.Discard()
		m.toIdle()
		return
	}

	clipPath := m.archiveClip(clip)
	m.saveSuccessRecording(text, clip.Duration, clipPath)

	switch m.mode {
	case Command:
		m.deliverCommand(ctx, text)
	default:
		m.deliverDictation(ctx, text)
	}

	m.toIdle()
}

// transcribe runs exactly one provider path
func (m *Machine) transcribe(ctx context.Context, clip *capture.Clip) (string, error) {
	switch m.cfg.Path {
	case CustomCombined:
		data, err := os.ReadFile(clip.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read clip: %w", err)
		}
		return m.deps.Transcriber.Transcribe(ctx, data, "wav", m.contextHint())

	case OnDeviceThenLLM:
		if err := m.deps.Engine.AwaitReady(ctx); err != nil {
			return "", err
		}
		samples, _, err := capture.DecodeWavFile(clip.Path)
		if err != nil {
			return "", fmt.Errorf("failed to decode clip: %w", err)
		}
		raw, err := m.deps.Engine.Transcribe(ctx, samples)
		if err != nil {
			return "", err
		}
		return m.maybeFormat(ctx, raw)

	case CloudThenLLM:
		data, err := os.ReadFile(clip.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read clip: %w", err)
		}
		raw, err := m.deps.Transcriber.Transcribe(ctx, data, "wav", m.contextHint())
		if err != nil {
			return "", err
		}
		return m.maybeFormat(ctx, raw)

	default:
		return "", fmt.Errorf("unknown provider path %d", m.cfg.Path)
	}
}

// maybeFormat runs the optional post-transcription formatting pass for
// dictation sessions
func (m *Machine) maybeFormat(ctx context.Context, raw string) (string, error) {
	if !m.cfg.AutoFormat || m.deps.Completer == nil || m.mode != Dictation {
		return raw, nil
	}

	formatted, err := m.deps.Completer.Complete(ctx, formatSystemPrompt, raw)
	if err != nil {
		// Formatting is best-effort; the raw transcript still works.
		m.logger.Warn("Formatting pass failed, using raw transcript", "error", err)
		return raw, nil
	}
	return formatted, nil
}

// deliverDictation pastes the transcript directly
func (m *Machine) deliverDictation(ctx context.Context, text string) {
	if !m.sm.Transition(StatePasting) {
		return
	}

	if m.captured.NeedsLeadingSpace() {
		text = " " + text
	}

	if err := m.deps.Paster.Paste(ctx, text); err != nil {
		m.logger.Error("Paste failed", "error", err)
		return
	}
	m.logger.Info("Transcript pasted", "length", len(text))
}

// deliverCommand executes the transcript as an instruction over the
// captured target text and pastes the result
func (m *Machine) deliverCommand(ctx context.Context, instruction string) {
	if m.deps.Completer == nil {
		m.logger.Error("Command mode requires a completion provider")
		return
	}

	target, fromSelection := m.captured.TargetText()

	result, err := m.deps.Completer.Complete(ctx,
		commandSystemPrompt(m.captured),
		commandUserPrompt(target, instruction),
	)
	if err != nil {
		// Command failure resets without pasting.
		m.logger.Error("Command execution failed", "error", err)
		return
	}
	result = strings.TrimSpace(result)
	if result == "" {
		m.logger.Warn("Command produced empty result")
		return
	}

	if !m.sm.Transition(StatePasting) {
		return
	}

	if fromSelection {
		err = m.deps.Paster.PasteReplacingSelection(ctx, result, utf8.RuneCountInString(target))
	} else {
		err = m.deps.Paster.Paste(ctx, result)
	}
	if err != nil {
		m.logger.Error("Command paste failed", "error", err)
		return
	}
	m.logger.Info("Command result pasted", "length", len(result))
}

// toIdle ends the session: state back to Idle, mode reset to
// Dictation, captured context cleared
func (m *Machine) toIdle() {
	m.mode = Dictation
	m.captured = nil
	m.sm.Transition(StateIdle)
}

// archiveClip moves the clip to durable storage, best-effort
func (m *Machine) archiveClip(clip *capture.Clip) string {
	archived, err := m.deps.Store.ArchiveClip(clip.Path)
	if err != nil {
		m.logger.Warn("Clip archival failed", "error", err)
		return clip.Path
	}
	return archived
}

// saveSuccessRecording persists the completed session and updates the
// word-count accounting (best-effort)
func (m *Machine) saveSuccessRecording(text string, duration time.Duration, clipPath string) {
	words := len(strings.Fields(text))

	rec := &history.Recording{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Mode:      m.mode.String(),
		Provider:  m.cfg.Path.String(),
		Text:      text,
		Status:    history.StatusSuccess,
		Duration:  duration,
		WordCount: words,
		ClipPath:  clipPath,
	}
	if err := m.deps.Store.SaveRecording(context.Background(), rec); err != nil {
		m.logger.Warn("Failed to save recording", "error", err)
	}
	if err := m.deps.Store.AddWords(context.Background(), words); err != nil {
		m.logger.Warn("Word-count accounting failed", "error", err)
	}
}

// saveFailedRecording persists a failed session
func (m *Machine) saveFailedRecording(text string, duration time.Duration, cause error) {
	rec := &history.Recording{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		Mode:         m.mode.String(),
		Provider:     m.cfg.Path.String(),
		Text:         text,
		ErrorMessage: cause.Error(),
		Status:       history.StatusFailed,
		Duration:     duration,
	}
	if err := m.deps.Store.SaveRecording(context.Background(), rec); err != nil {
		m.logger.Warn("Failed to save recording", "error", err)
	}
}

// contextHint builds the recognition hint sent with transcription
// requests
func (m *Machine) contextHint() string {
	if m.captured == nil || m.captured.AppName == "" {
		return ""
	}
	return "Dictated into " + m.captured.AppName + "."
}

const formatSystemPrompt = "You clean up dictated text. Fix punctuation and " +
	"capitalization without changing the words or their meaning. Reply with " +
	"the cleaned text only."

// commandSystemPrompt builds the system prompt for instruction
// execution
func commandSystemPrompt(captured *CapturedContext) string {
	var b strings.Builder
	b.WriteString("You apply a spoken instruction to a piece of text. ")
	b.WriteString("Reply with the transformed text only, no explanation.")
	if captured != nil && captured.AppName != "" {
		b.WriteString(" The text comes from ")
		b.WriteString(captured.AppName)
		b.WriteString(".")
	}
	if captured != nil && captured.ScreenText != "" {
		b.WriteString(" Visible screen context:\n")
		b.WriteString(captured.ScreenText)
	}
	return b.String()
}

// commandUserPrompt builds the user prompt for instruction execution
func commandUserPrompt(target, instruction string) string {
	if target == "" {
		return "Instruction: " + instruction
	}
	return "Text:\n" + target + "\n\nInstruction: " + instruction
}
