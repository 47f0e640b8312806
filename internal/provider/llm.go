// ============================================================================
// voxkey - Push-to-Talk Dictation
// ============================================================================
//
// Package:     provider
// Description: LLM completion client (Ollama-compatible chat API)
// License:     MIT
// ============================================================================

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxkey/voxkey/pkg/core/logging"
)

// LLMClient implements Completer against an Ollama-compatible chat API
type LLMClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *logging.Logger
}

// LLMConfig holds completion client configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// DefaultLLMConfig returns default completion configuration
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:        "http://localhost:11434",
		Model:          "mistral:7b",
		TimeoutSeconds: 120,
	}
}

// NewLLMClient creates a new completion client
func NewLLMClient(cfg LLMConfig) *LLMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral:7b"
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = 120
	}

	return &LLMClient{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logging.New("llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete runs one system+user exchange and returns the reply text
func (c *LLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	req := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", statusError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Completion finished",
		"duration", time.Since(start),
		"replyLength", len(chatResp.Message.Content),
	)

	return chatResp.Message.Content, nil
}
