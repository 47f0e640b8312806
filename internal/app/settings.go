// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     app
// Description: Runtime settings persistence
// License:     MIT
// ============================================================================

package app

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SettingsFile holds the runtime-mutable settings. Unlike the YAML
// config these are rewritten by the application itself.
type SettingsFile struct {
	Provider          string `json:"provider"`
	AutoFormat        bool   `json:"auto_format"`
	Language          string `json:"language"`
	InputDevice       string `json:"input_device"`
	VADEnabled        bool   `json:"vad_enabled"`
	DictationShortcut string `json:"dictation_shortcut"`
	DictationToggle   bool   `json:"dictation_toggle"`
	CommandShortcut   string `json:"command_shortcut"`
	CommandToggle     bool   `json:"command_toggle"`
	LLMModel          string `json:"llm_model"`
	CloudModel        string `json:"cloud_model"`
}

// getSettingsPath returns the path to the settings file
func getSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(dir, "voxkey")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "settings.json"), nil
}

// SaveSettings writes the mutable subset of the config to disk
func SaveSettings(cfg *Config) error {
	path, err := getSettingsPath()
	if err != nil {
		return err
	}

	settings := SettingsFile{
		Provider:          cfg.Provider,
		AutoFormat:        cfg.AutoFormat,
		Language:          cfg.Language,
		InputDevice:       cfg.InputDevice,
		VADEnabled:        cfg.VADEnabled,
		DictationShortcut: cfg.DictationShortcut,
		DictationToggle:   cfg.DictationToggle,
		CommandShortcut:   cfg.CommandShortcut,
		CommandToggle:     cfg.CommandToggle,
		LLMModel:          cfg.LLMModel,
		CloudModel:        cfg.CloudModel,
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadSettings loads persisted settings and applies them over the
// config. A missing file leaves the config untouched.
func LoadSettings(cfg *Config) error {
	path, err := getSettingsPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var settings SettingsFile
	if err := json.Unmarshal(data, &settings); err != nil {
		return err
	}

	applySettings(cfg, &settings)
	return nil
}

// applySettings copies loaded settings over the config. Empty string
// fields keep the config value; booleans always apply.
func applySettings(cfg *Config, settings *SettingsFile) {
	if settings.Provider != "" {
		cfg.Provider = settings.Provider
	}
	cfg.AutoFormat = settings.AutoFormat
	if settings.Language != "" {
		cfg.Language = settings.Language
	}
	if settings.InputDevice != "" {
		cfg.InputDevice = settings.InputDevice
	}
	cfg.VADEnabled = settings.VADEnabled
	if settings.DictationShortcut != "" {
		cfg.DictationShortcut = settings.DictationShortcut
	}
	cfg.DictationToggle = settings.DictationToggle
	if settings.CommandShortcut != "" {
		cfg.CommandShortcut = settings.CommandShortcut
	}
	cfg.CommandToggle = settings.CommandToggle
	if settings.LLMModel != "" {
		cfg.LLMModel = settings.LLMModel
	}
	if settings.CloudModel != "" {
		cfg.CloudModel = settings.CloudModel
	}
}
