// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     app
// Description: Main application controller
// License:     MIT
// ============================================================================

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/voxkey/voxkey/internal/analyzer"
	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/internal/history"
	"github.com/voxkey/voxkey/internal/hotkeys"
	"github.com/voxkey/voxkey/internal/paste"
	"github.com/voxkey/voxkey/internal/provider"
	"github.com/voxkey/voxkey/internal/session"
	"github.com/voxkey/voxkey/internal/vadgate"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

// App is the long-lived dictation agent: it owns the hotkey
// dispatcher, the capture hardware, and the session machine, and wires
// binding actions into session lifecycle calls.
type App struct {
	config Config
	logger *logging.Logger

	// Components
	capture    *capture.Session
	store      history.Store
	paster     *paste.Coordinator
	machine    *session.Machine
	dispatcher *hotkeys.Dispatcher
	engine     provider.Engine
}

// New creates the application and initializes all components
func New(cfg Config) (*App, error) {
	format := logging.FormatText
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logger := logging.NewWithConfig(logging.Config{
		Name:   "voxkey",
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: format,
	})

	a := &App{
		config: cfg,
		logger: logger,
	}

	if err := a.initComponents(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return a, nil
}

// initComponents initializes all components
func (a *App) initComponents() error {
	var err error

	// Audio capture
	device := a.config.InputDevice
	if device == "default" {
		device = ""
	}
	a.capture, err = capture.NewSession(capture.Config{
		SampleRate: float64(a.config.SampleRate),
		BufferSize: a.config.BufferSize,
		Channels:   1,
		DeviceName: device,
		DuckOutput: a.config.DuckOutput,
	}, logging.New("capture"))
	if err != nil {
		return fmt.Errorf("failed to create audio capture: %w", err)
	}

	// Speech gate
	var gate session.SpeechGate
	if a.config.VADEnabled {
		classifier, err := vadgate.NewWebRTCClassifier(a.config.VADMode)
		if err != nil {
			a.logger.Warn("Voice classifier unavailable, gate disabled", "error", err)
		} else {
			gate = vadgate.New(vadgate.Config{
				Threshold:      a.config.VADThreshold,
				MinSpeechRatio: a.config.MinSpeechRatio,
			}, classifier, logging.New("vadgate"))
		}
	}

	// History store
	a.store, err = history.NewSQLiteStore(history.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}

	// Paste coordinator. Synthesized paste keystrokes must not be
	// re-interpreted as hotkey presses, so pastes suppress dispatch.
	a.paster = paste.NewCoordinator(
		paste.NewRobotgoInjector(),
		logging.New("paste"),
		paste.WithSettleDelay(time.Duration(a.config.SettleDelayMs)*time.Millisecond),
		paste.WithInputSuppression(a.suppressInput),
	)

	// Providers
	completer := provider.NewLLMClient(provider.LLMConfig{
		BaseURL:        a.config.LLMBaseURL,
		Model:          a.config.LLMModel,
		TimeoutSeconds: a.config.TimeoutSeconds,
	})

	sessionCfg := session.Config{
		VADEnabled: gate != nil,
		AutoFormat: a.config.AutoFormat,
	}
	deps := session.Deps{
		Capture:   a.capture,
		Gate:      gate,
		Completer: completer,
		Paster:    a.paster,
		Store:     a.store,
		Logger:    logging.New("session"),
	}

	switch a.config.Provider {
	case "custom":
		sessionCfg.Path = session.CustomCombined
		deps.Transcriber, err = provider.NewCustomClient(provider.CustomConfig{
			Endpoint:       a.config.CustomEndpoint,
			APIKey:         APIKey(),
			TimeoutSeconds: a.config.TimeoutSeconds,
		})
		if err != nil {
			return err
		}

	case "local":
		sessionCfg.Path = session.OnDeviceThenLLM
		a.engine, err = provider.NewLocalEngine(provider.LocalConfig{
			ModelPath:  a.config.WhisperModelPath,
			ModelURL:   a.config.WhisperModelURL,
			Language:   a.config.Language,
			SampleRate: a.config.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to create local engine: %w", err)
		}
		deps.Engine = a.engine

	case "cloud", "":
		sessionCfg.Path = session.CloudThenLLM
		deps.Transcriber = provider.NewCloudClient(provider.CloudConfig{
			BaseURL:        a.config.CloudBaseURL,
			APIKey:         APIKey(),
			Model:          a.config.CloudModel,
			Language:       a.config.Language,
			TimeoutSeconds: a.config.TimeoutSeconds,
		})

	default:
		return fmt.Errorf("unknown provider %q", a.config.Provider)
	}

	a.machine, err = session.NewMachine(sessionCfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create session machine: %w", err)
	}

	// Hotkey dispatcher
	bindings, err := a.buildBindings()
	if err != nil {
		return err
	}
	a.dispatcher, err = hotkeys.NewDispatcher(bindings, hotkeys.Callbacks{
		OnPressed:   a.onPressed,
		OnReleased:  a.onReleased,
		OnDoubleTap: a.onDoubleTap,
	}, logging.New("hotkeys"))
	if err != nil {
		return err
	}
	if a.config.DoubleTapWindowMs > 0 {
		a.dispatcher.SetTapWindow(time.Duration(a.config.DoubleTapWindowMs) * time.Millisecond)
	}

	keyTap, err := hotkeys.NewHotkeyTap(bindings, logging.New("hotkeys"))
	if err != nil {
		return err
	}
	a.dispatcher.AddTap(keyTap)

	hookTap := hotkeys.NewHookTap(bindings, logging.New("hotkeys"))
	if hookTap.HasBindings() {
		a.dispatcher.AddTap(hookTap)
	}

	return nil
}

// buildBindings parses the configured shortcuts
func (a *App) buildBindings() ([]hotkeys.Binding, error) {
	mode := func(toggle bool) hotkeys.Mode {
		if toggle {
			return hotkeys.Toggle
		}
		return hotkeys.PushToTalk
	}

	dictation, err := hotkeys.ParseBinding(
		hotkeys.BindingDictation, a.config.DictationShortcut, mode(a.config.DictationToggle))
	if err != nil {
		return nil, fmt.Errorf("invalid dictation shortcut: %w", err)
	}
	bindings := []hotkeys.Binding{dictation}

	if a.config.CommandShortcut != "" {
		command, err := hotkeys.ParseBinding(
			hotkeys.BindingCommand, a.config.CommandShortcut, mode(a.config.CommandToggle))
		if err != nil {
			return nil, fmt.Errorf("invalid command shortcut: %w", err)
		}
		bindings = append(bindings, command)
	}

	return bindings, nil
}

// Run starts the dispatcher and blocks until the context is cancelled
func (a *App) Run(ctx context.Context) error {
	if err := a.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start hotkey dispatcher: %w", err)
	}

	a.logger.Info("Dictation agent running",
		"dictation", a.config.DictationShortcut,
		"command", a.config.CommandShortcut,
		"provider", a.config.Provider,
	)

	go a.logStateChanges(ctx)

	<-ctx.Done()
	a.logger.Info("Shutting down")

	a.dispatcher.Stop()
	a.machine.Close()
	return nil
}

// logStateChanges mirrors session transitions into the log
func (a *App) logStateChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.machine.Events():
			a.logger.Debug("Session state changed",
				"from", ev.From.String(), "to", ev.To.String())
		}
	}
}

// sessionMode maps a binding id to a session mode
func sessionMode(bindingID string) session.Mode {
	if bindingID == hotkeys.BindingCommand {
		return session.Command
	}
	return session.Dictation
}

// onPressed starts a session for the binding's mode
func (a *App) onPressed(bindingID string) {
	a.machine.Begin(sessionMode(bindingID))
}

// onReleased ends the capture phase
func (a *App) onReleased(bindingID string) {
	a.machine.Finish()
}

// onDoubleTap toggles a hands-free session: tap-tap to start, tap-tap
// again to stop
func (a *App) onDoubleTap(bindingID string) {
	if a.machine.State() == session.StateIdle {
		a.machine.Begin(sessionMode(bindingID))
		return
	}
	a.machine.Finish()
}

// suppressInput masks hotkey dispatch while synthesized keystrokes fly
func (a *App) suppressInput(d time.Duration) {
	if a.dispatcher != nil {
		a.dispatcher.Suppress(d)
	}
}

// Frames exposes the real-time analyzer stream for a UI layer
func (a *App) Frames() <-chan analyzer.Frame {
	return a.capture.Frames()
}

// Close releases all components
func (a *App) Close() {
	if a.paster != nil {
		a.paster.Close()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.capture != nil {
		a.capture.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
