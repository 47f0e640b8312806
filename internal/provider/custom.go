// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: Combined transcription+formatting endpoint client
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

// CustomClient talks to a self-hosted endpoint that transcribes and
// formats in a single call, so no separate LLM pass is needed.
type CustomClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logging.Logger
}

// CustomConfig holds combined-endpoint configuration
type CustomConfig struct {
	// Endpoint is the full URL of the combined service
	Endpoint string

	// APIKey is an optional bearer token
	APIKey string

	// TimeoutSeconds is the request timeout
	TimeoutSeconds int
}

// NewCustomClient creates a client for the combined endpoint
func NewCustomClient(cfg CustomConfig) (*CustomClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("custom endpoint URL is required")
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 90
	}

	return &CustomClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logging.New("custom-stt"),
	}, nil
}

// Transcribe uploads the clip; the prompt carries formatting hints the
// server applies before returning the final text.
func (c *CustomClient) Transcribe(ctx context.Context, audio []byte, format string, prompt string) (string, error) {
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
	if prompt != "" {
		if err := writer.WriteField("instructions", prompt); err != nil {
			return "", fmt.Errorf("failed to write instructions field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("Sending combined request", "url", c.endpoint, "size", len(audio))

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
	return apiResp.Text, nil
}

// Close releases resources
func (c *CustomClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
