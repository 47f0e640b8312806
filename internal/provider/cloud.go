// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: Cloud transcription client (OpenAI-compatible API)
// License:     MIT
// ============================================================================

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// CloudClient implements Transcriber against an OpenAI-compatible
// /v1/audio/transcriptions endpoint
type CloudClient struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	logger   *logging.Logger
}

// CloudConfig holds cloud transcription configuration
type CloudConfig struct {
	// BaseURL is the API server URL (e.g., "https://api.openai.com")
	BaseURL string

	// APIKey is the bearer token; empty means unauthenticated local
	// servers are allowed but hosted endpoints will reject
	APIKey string

	// Model is the transcription model name
	Model string

	// Language is the target language ("" or "auto" for detection)
	Language string

	// TimeoutSeconds is the request timeout
	TimeoutSeconds int
}

// DefaultCloudConfig returns default cloud transcription configuration
func DefaultCloudConfig() CloudConfig {
	return CloudConfig{
		BaseURL:        "https://api.openai.com",
		Model:          "whisper-1",
		Language:       "auto",
		TimeoutSeconds: 60,
	}
}

// NewCloudClient creates a new cloud transcription client
func NewCloudClient(cfg CloudConfig) *CloudClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 60
	}

	return &CloudClient{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logging.New("cloud-stt"),
	}
}

// Transcribe sends the audio clip as a multipart upload
func (c *CloudClient) Transcribe(ctx context.Context, audio []byte, format string, prompt string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data provided")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.WriteField("model", c.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if c.language != "" && c.language != "auto" {
		if err := writer.WriteField("language", c.language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if prompt != "" {
		if err := writer.WriteField("prompt", prompt); err != nil {
			return "", fmt.Errorf("failed to write prompt field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response_format field: %w", err)
	}
	if err := writer.WriteField("temperature", "0"); err != nil {
		return "", fmt.Errorf("failed to write temperature field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := c.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("Sending transcription request", "url", url, "size", len(audio))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}

	var apiResp transcriptionResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug("Transcription complete",
		"duration", time.Since(start),
		"textLength", len(apiResp.Text),
	)

	return apiResp.Text, nil
}

// Close releases resources
func (c *CloudClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// transcriptionResponse is the API response structure
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float32 `json:"duration,omitempty"`
}
