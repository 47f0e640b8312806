// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     capture
// Description: Microphone capture session using PortAudio
// License:     MIT
// ============================================================================

package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxkey/voxkey/internal/analyzer"
	"github.com/voxkey/voxkey/pkg/core/logging"
)

const (
	// DefaultSampleRate is 16kHz, matching the transcription engines
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is the hardware buffer size
	DefaultFramesPerBuffer = 512

	// DefaultChannels is mono audio
	DefaultChannels = 1

	// MinClipDuration is the shortest clip worth transcribing
	MinClipDuration = 300 * time.Millisecond

	// MinClipBytes is the smallest clip file worth transcribing
	MinClipBytes = 1000

	// analysisWindow is how many recent samples feed the analyzer
	analysisWindow = 4096
)

// Config holds configuration for the capture session
type Config struct {
	SampleRate float64
	BufferSize int
	Channels   int
	DeviceName string // Name of the input device (empty = default)
	ClipDir    string // Directory for clip files (empty = os.TempDir)
	DuckOutput bool   // Lower system output volume while recording
}

// DefaultConfig returns default capture configuration
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		BufferSize: DefaultFramesPerBuffer,
		Channels:   DefaultChannels,
	}
}

// Clip is a handle to a recorded audio artifact. Ownership transfers to
// the caller on Stop; the caller discards it on any short-circuit path.
type Clip struct {
	Path     string
	Duration time.Duration
	Samples  int
	Size     int64
}

// TooShort reports whether the clip is below the transcription minimums
func (c *Clip) TooShort() bool {
	return c.Duration < MinClipDuration || c.Size < MinClipBytes
}

// Discard removes the clip file
func (c *Clip) Discard() error {
	if c.Path == "" {
		return nil
	}
	return os.Remove(c.Path)
}

// audioStream is the slice of the PortAudio stream surface the session
// drives. *portaudio.Stream satisfies it.
type audioStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// Session owns the hardware input stream. On each hardware buffer it
// appends to the clip file, feeds the analyzer, and publishes the
// resulting frame to observers without blocking the capture goroutine.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	logger *logging.Logger

	analyzer *analyzer.Analyzer
	window   *RingBuffer
	counter  SampleCounter
	frames   chan analyzer.Frame

	stream        audioStream
	newStream     func(buffer []float32) (audioStream, error)
	writer        *WavWriter
	clipPath      string
	running       bool
	done          chan struct{}
	loopWG        sync.WaitGroup
	restoreVolume func()
	initialized   bool
}

// NewSession initializes PortAudio and creates a capture session
func NewSession(cfg Config, logger *logging.Logger) (*Session, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultFramesPerBuffer
	}
	if cfg.Channels == 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.ClipDir == "" {
		cfg.ClipDir = os.TempDir()
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		analyzer:    analyzer.New(),
		window:      NewRingBuffer(analysisWindow),
		frames:      make(chan analyzer.Frame, 16),
		initialized: true,
	}
	s.newStream = s.openStream
	return s, nil
}

// Frames returns the channel receiving analysis frames during capture.
// Frames are dropped rather than blocking the capture goroutine.
func (s *Session) Frames() <-chan analyzer.Frame {
	return s.frames
}

// IsRunning returns whether capture is currently active
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins audio capture. If a capture is already running it is
// stopped first and its clip discarded; the prior stream is never
// silently dropped.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("Capture already running, restarting", "clip", s.clipPath)
		if clip, err := s.stopLocked(); err == nil && clip != nil {
			clip.Discard()
		}
	}

	clipPath := filepath.Join(s.cfg.ClipDir, fmt.Sprintf("voxkey-%d.wav", time.Now().UnixNano()))
	writer, err := NewWavWriter(clipPath, int(s.cfg.SampleRate), s.cfg.Channels)
	if err != nil {
		return fmt.Errorf("failed to create clip file: %w", err)
	}

	buffer := make([]float32, s.cfg.BufferSize)
	stream, err := s.newStream(buffer)
	if err != nil {
		writer.Close()
		os.Remove(clipPath)
		return fmt.Errorf("failed to open audio stream: %w", err)
	}

	if s.cfg.DuckOutput {
		s.restoreVolume = duckOutputVolume(s.logger)
	} else {
		s.restoreVolume = func() {}
	}

	s.analyzer.Reset()
	s.window.Clear()
	s.counter.Reset()

	if err := stream.Start(); err != nil {
		stream.Close()
		writer.Close()
		os.Remove(clipPath)
		s.restoreVolume()
		s.restoreVolume = nil
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	done := make(chan struct{})
	s.stream = stream
	s.writer = writer
	s.clipPath = clipPath
	s.running = true
	s.done = done

	s.loopWG.Add(1)
	go s.captureLoop(stream, buffer, done)

	s.logger.Debug("Capture started", "clip", clipPath, "rate", s.cfg.SampleRate)
	return nil
}

// openStream opens the configured device, falling back to the default
// input when the named device is missing.
func (s *Session) openStream(buffer []float32) (audioStream, error) {
	if s.cfg.DeviceName != "" && s.cfg.DeviceName != "default" {
		device, err := findDeviceByName(s.cfg.DeviceName)
		if err == nil {
			params := portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: s.cfg.Channels,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      s.cfg.SampleRate,
				FramesPerBuffer: s.cfg.BufferSize,
			}
			return portaudio.OpenStream(params, buffer)
		}
		s.logger.Warn("Input device not found, using default", "device", s.cfg.DeviceName)
	}

	return portaudio.OpenDefaultStream(s.cfg.Channels, 0, s.cfg.SampleRate, s.cfg.BufferSize, buffer)
}

// captureLoop runs on its own goroutine, processing buffers in arrival
// order: clip file append, analysis, frame publication. The loop never
// takes s.mu: Stop holds it while waiting for this goroutine, so exit
// is signalled through the done channel instead.
func (s *Session) captureLoop(stream audioStream, buffer []float32, done chan struct{}) {
	defer s.loopWG.Done()

	for {
		select {
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-done:
				return
			default:
			}
			// Transient overflow; back off briefly before retrying so a
			// persistent device fault cannot busy-spin.
			time.Sleep(2 * time.Millisecond)
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)

		if err := s.writer.WriteSamples(samples); err != nil {
			s.logger.Error("Clip write failed", "error", err)
		}
		s.counter.Add(len(samples))
		s.window.Write(samples)

		frame := s.analyzer.Analyze(s.window.Snapshot(), s.cfg.SampleRate)
		select {
		case s.frames <- frame:
		default:
			// Observer is behind; drop rather than block.
		}
	}
}

// Stop tears down the hardware stream and returns the clip handle. The
// caller owns the clip file from here on. Returns nil when nothing was
// recorded.
func (s *Session) Stop() (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() (*Clip, error) {
	if !s.running {
		return nil, nil
	}

	s.running = false
	if s.done != nil {
		close(s.done)
		s.done = nil
	}

	if s.restoreVolume != nil {
		defer func() {
			s.restoreVolume()
			s.restoreVolume = nil
		}()
	}

	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop audio stream", "error", err)
		}
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("Failed to close audio stream", "error", err)
		}
		s.stream = nil
	}

	// The capture goroutine exits on the closed done channel once the
	// stopped stream unblocks its read; wait for it before finalizing
	// the file it writes to.
	s.loopWG.Wait()

	if err := s.writer.Close(); err != nil {
		os.Remove(s.clipPath)
		s.writer = nil
		return nil, fmt.Errorf("failed to finalize clip: %w", err)
	}
	s.writer = nil

	clip := &Clip{
		Path:     s.clipPath,
		Duration: s.counter.Duration(s.cfg.SampleRate),
		Samples:  s.counter.Count(),
	}
	if info, err := os.Stat(s.clipPath); err == nil {
		clip.Size = info.Size()
	}
	s.clipPath = ""

	s.logger.Debug("Capture stopped", "duration", clip.Duration, "bytes", clip.Size)
	return clip, nil
}

// SetDeviceName sets the input device for future captures
func (s *Session) SetDeviceName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.DeviceName = name
}

// Close stops any running capture and releases PortAudio
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		if clip, err := s.stopLocked(); err == nil && clip != nil {
			clip.Discard()
		}
	}

	if s.initialized {
		s.initialized = false
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("failed to terminate PortAudio: %w", err)
		}
	}
	return nil
}

// findDeviceByName finds a PortAudio input device by name
func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// DeviceInfo holds information about an audio input device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the available input devices
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var inputs []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}
	return inputs, nil
}
