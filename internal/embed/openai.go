package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/searchgrep/searchgrep/internal/errs"
)

const remoteTimeout = 30 * time.Second

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. It is
// used whenever the configured provider is "openai" or a compatible
// third-party API reachable at BaseURL.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu         sync.Mutex
	dimensions int
}

// NewOpenAIEmbedder constructs a remote embedder. baseURL defaults to
// https://api.openai.com/v1 when empty.
func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 8},
		},
	}
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.apiKey == "" {
		return nil, errs.New(errs.ConfigMissing, "no API key configured for remote embedder")
	}
	texts = Truncate(texts)

	reqBody, err := json.Marshal(openaiEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "marshal request", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "remote embedder call failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var parsed openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "decode response", err)
	}
	if parsed.Error != nil {
		return nil, errs.New(errs.EmbedderFailure, fmt.Sprintf("remote embedder error: %s", parsed.Error.Message))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = normalizeVector(d.Embedding)
	}

	e.mu.Lock()
	if e.dimensions == 0 && len(vectors) > 0 {
		e.dimensions = len(vectors[0])
	}
	e.mu.Unlock()

	return vectors, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	return e.apiKey != ""
}

func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
