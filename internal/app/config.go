// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     app
// Description: Application configuration
// License:     MIT
// ============================================================================

package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// General
	Language  string `yaml:"language"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Hotkeys
	DictationShortcut string `yaml:"dictation_shortcut"`
	DictationToggle   bool   `yaml:"dictation_toggle"`
	CommandShortcut   string `yaml:"command_shortcut"`
	CommandToggle     bool   `yaml:"command_toggle"`
	DoubleTapWindowMs int    `yaml:"double_tap_window_ms"`

	// Audio
	InputDevice string `yaml:"input_device"`
	SampleRate  int    `yaml:"sample_rate"`
	BufferSize  int    `yaml:"buffer_size"`
	DuckOutput  bool   `yaml:"duck_output"`

	// VAD
	VADEnabled     bool    `yaml:"vad_enabled"`
	VADMode        int     `yaml:"vad_mode"` // webrtc aggressiveness 0-3
	VADThreshold   float32 `yaml:"vad_threshold"`
	MinSpeechRatio float32 `yaml:"min_speech_ratio"`

	// Provider
	Provider   string `yaml:"provider"` // "custom", "local", "cloud"
	AutoFormat bool   `yaml:"auto_format"`

	// Cloud (OpenAI-compatible transcription API)
	CloudBaseURL string `yaml:"cloud_base_url"`
	CloudModel   string `yaml:"cloud_model"`

	// Custom (combined transcription+formatting endpoint)
	CustomEndpoint string `yaml:"custom_endpoint"`

	// Local (whisper.cpp)
	WhisperModelPath string `yaml:"whisper_model_path"`
	WhisperModelURL  string `yaml:"whisper_model_url"`

	// LLM (Ollama completion for formatting and command mode)
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMModel   string `yaml:"llm_model"`

	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Paste
	SettleDelayMs int `yaml:"settle_delay_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		// General
		Language:  "auto",
		LogLevel:  "info",
		LogFormat: "text",

		// Hotkeys
		DictationShortcut: "ctrl+shift+space",
		CommandShortcut:   "ctrl+shift+m",
		DoubleTapWindowMs: 300,

		// Audio
		InputDevice: "default",
		SampleRate:  16000,
		BufferSize:  512,

		// VAD
		VADEnabled:     true,
		VADMode:        2,
		VADThreshold:   0.3,
		MinSpeechRatio: 0.1,

		// Provider
		Provider:   "cloud",
		AutoFormat: false,

		CloudBaseURL: "https://api.openai.com",
		CloudModel:   "whisper-1",

		WhisperModelPath: defaultModelPath(),
		WhisperModelURL:  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",

		LLMBaseURL: "http://localhost:11434",
		LLMModel:   "mistral:7b",

		TimeoutSeconds: 60,

		// Paste
		SettleDelayMs: 800,
	}
}

// defaultModelPath places downloaded models under the user config dir
func defaultModelPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "voxkey", "models", "ggml-base.bin")
	}
	return filepath.Join(dir, "voxkey", "models", "ggml-base.bin")
}

// ConfigPath returns the path of the YAML config file
func ConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxkey", "config.yaml"), nil
}

// LoadConfig reads the YAML config file over the defaults. A missing
// file is not an error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	if err := loadConfigFile(&cfg, path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// APIKey resolves the provider credential from the environment
func APIKey() string {
	if key := os.Getenv("VOXKEY_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
