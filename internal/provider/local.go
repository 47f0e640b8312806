// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: On-device transcription engine (whisper.cpp CLI)
// License:     MIT
// ============================================================================

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/voxkey/voxkey/internal/capture"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

// LocalEngine implements Engine over a whisper.cpp style CLI binary.
// The model file is downloaded on first use; until the download
// finishes the engine reports EngineDownloading and Transcribe fails
// with ErrEngineNotReady.
type LocalEngine struct {
	binaryPath string
	modelPath  string
	modelURL   string
	language   string
	sampleRate int
	tempDir    string
	logger     *logging.Logger

	mu    sync.Mutex
	state EngineState
	err   error
	ready chan struct{}
}

// LocalConfig holds on-device engine configuration
type LocalConfig struct {
	// ModelPath is where the model file lives (or will be downloaded)
	ModelPath string

	// ModelURL is fetched when ModelPath does not exist yet
	ModelURL string

	// Language is the target language ("auto" for detection)
	Language string

	// SampleRate is the sample rate of incoming audio
	SampleRate int
}

// NewLocalEngine creates the engine and starts model preparation in
// the background
func NewLocalEngine(cfg LocalConfig) (*LocalEngine, error) {
	binaryPath := findWhisperBinary()
	if binaryPath == "" {
		return nil, fmt.Errorf("whisper binary not found in PATH or common locations")
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	tempDir, err := os.MkdirTemp("", "voxkey-stt-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	e := &LocalEngine{
		binaryPath: binaryPath,
		modelPath:  cfg.ModelPath,
		modelURL:   cfg.ModelURL,
		language:   cfg.Language,
		sampleRate: cfg.SampleRate,
		tempDir:    tempDir,
		logger:     logging.New("local-stt"),
		state:      EngineInitialized,
		ready:      make(chan struct{}),
	}

	go e.prepare()
	return e, nil
}

// findWhisperBinary locates the whisper CLI
func findWhisperBinary() string {
	if path, err := exec.LookPath("whisper-cli"); err == nil {
		return path
	}
	if path, err := exec.LookPath("whisper"); err == nil {
		return path
	}

	locations := []string{
		"/opt/homebrew/bin/whisper-cli",
		"/opt/homebrew/bin/whisper",
		"/usr/local/bin/whisper-cli",
		"/usr/local/bin/whisper",
		"/usr/bin/whisper",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// prepare ensures the model file exists, downloading it if needed
func (e *LocalEngine) prepare() {
	if _, err := os.Stat(e.modelPath); err == nil {
		e.setState(EngineReady, nil)
		return
	}

	if e.modelURL == "" {
		e.setState(EngineError, fmt.Errorf("model file not found: %s", e.modelPath))
		return
	}

	e.setState(EngineDownloading, nil)
	e.logger.Info("Downloading model", "url", e.modelURL, "dest", e.modelPath)

	if err := e.downloadModel(); err != nil {
		e.setState(EngineError, fmt.Errorf("model download failed: %w", err))
		return
	}
	e.setState(EngineReady, nil)
}

// downloadModel fetches the model to a temp file and renames into place
func (e *LocalEngine) downloadModel() error {
	if err := os.MkdirAll(filepath.Dir(e.modelPath), 0o755); err != nil {
		return err
	}

	resp, err := http.Get(e.modelURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.modelPath), ".model-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), e.modelPath)
}

// setState records the lifecycle transition and wakes waiters on any
// terminal state
func (e *LocalEngine) setState(state EngineState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = state
	e.err = err
	if state == EngineReady || state == EngineError {
		select {
		case <-e.ready:
		default:
			close(e.ready)
		}
	}

	if err != nil {
		e.logger.Error("Engine state changed", "state", state.String(), "error", err)
	} else {
		e.logger.Info("Engine state changed", "state", state.String())
	}
}

// State reports the current lifecycle state
func (e *LocalEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AwaitReady blocks until the engine is ready, failed, or ctx ends
func (e *LocalEngine) AwaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.ready:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EngineReady {
		if e.err != nil {
			return e.err
		}
		return ErrEngineNotReady
	}
	return nil
}

// Transcribe converts 16 kHz mono samples to text via the CLI
func (e *LocalEngine) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if e.State() != EngineReady {
		return "", ErrEngineNotReady
	}
	if len(samples) == 0 {
		return "", fmt.Errorf("no audio samples provided")
	}

	wavPath := filepath.Join(e.tempDir, fmt.Sprintf("audio_%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(wavPath, capture.EncodeWav(samples, e.sampleRate), 0o600); err != nil {
		return "", fmt.Errorf("failed to write WAV file: %w", err)
	}
	defer os.Remove(wavPath)

	args := []string{
		"--model", e.modelPath,
		"--language", e.language,
		"--no-prints",
		wavPath,
	}

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return cleanWhisperOutput(stdout.String()), nil
}

// cleanWhisperOutput strips timestamp markers and joins segment lines
func cleanWhisperOutput(raw string) string {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Segment lines look like "[00:00:00.000 --> 00:00:02.000]  text"
		if strings.HasPrefix(line, "[") {
			if idx := strings.Index(line, "]"); idx >= 0 {
				line = strings.TrimSpace(line[idx+1:])
			}
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// Close releases the engine's scratch space
func (e *LocalEngine) Close() error {
	return os.RemoveAll(e.tempDir)
}
