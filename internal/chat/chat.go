// Package chat implements the ChatPort collaborator: a single
// chat-completion call delegated to an OpenAI-compatible endpoint.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/searchgrep/searchgrep/internal/errs"
)

const remoteTimeout = 60 * time.Second

// Port is the chat-completion collaborator the Answerer delegates to.
type Port interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// OpenAIChat calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIChat struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New constructs a chat collaborator. baseURL defaults to
// https://api.openai.com/v1 when empty.
func New(baseURL, apiKey, model string) *OpenAIChat {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIChat{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 8},
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one system/user exchange and returns the assistant's
// reply text. Returns ConfigMissing if no API key is configured.
func (c *OpenAIChat) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", errs.New(errs.ConfigMissing, "no API key configured for chat completion")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", errs.Wrap(errs.EmbedderFailure, "marshal chat request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errs.Wrap(errs.EmbedderFailure, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.EmbedderFailure, "chat completion call failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errs.Wrap(errs.EmbedderFailure, "decode chat response", err)
	}
	if parsed.Error != nil {
		return "", errs.New(errs.EmbedderFailure, fmt.Sprintf("chat completion error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// Available reports whether this chat collaborator has credentials.
func (c *OpenAIChat) Available(context.Context) bool {
	return c.apiKey != ""
}

// Close releases idle connections held by the underlying HTTP client.
func (c *OpenAIChat) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
