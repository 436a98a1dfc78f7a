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

const (
	// warmTimeout is used once the local model is known to be loaded;
	// coldTimeout covers the first call, which may need to load weights.
	warmTimeout = 30 * time.Second
	coldTimeout = 90 * time.Second
)

// LocalEmbedder calls a local HTTP embedding server, grounded on
// scripts/embedding_server.py's wire contract: POST /embeddings with
// {texts, is_query} returning {embeddings, model, dimension}.
type LocalEmbedder struct {
	baseURL string
	client  *http.Client

	mu         sync.Mutex
	lastCall   time.Time
	dimensions int
	modelName  string
}

// NewLocalEmbedder constructs a LocalEmbedder targeting baseURL (typically
// http://127.0.0.1:11434, the embedding server's default).
func NewLocalEmbedder(baseURL string) *LocalEmbedder {
	return &LocalEmbedder{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{MaxIdleConnsPerHost: 8},
		},
	}
}

type localEmbedRequest struct {
	Texts   []string `json:"texts"`
	IsQuery bool     `json:"is_query"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
	Error      string      `json:"error"`
}

// Embed truncates each text, calls the local server, normalizes each
// returned vector, and validates that every response vector has the same
// dimensionality.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	texts = Truncate(texts)

	reqBody, err := json.Marshal(localEmbedRequest{Texts: texts, IsQuery: kind == KindQuery})
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderFailure, "marshal request", err)
	}

	timeout := e.getTimeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *localEmbedResponse
		err  error
	}
	done := make(chan result, 1)

	go func() {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			done <- result{err: err}
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer func() { _ = resp.Body.Close() }()

		var parsed localEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			done <- result{err: err}
			return
		}
		if parsed.Error != "" {
			done <- result{err: fmt.Errorf("local embedder: %s", parsed.Error)}
			return
		}
		done <- result{resp: &parsed}
	}()

	select {
	case <-callCtx.Done():
		return nil, errs.Wrap(errs.EmbedderFailure, "local embedder timed out", callCtx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, errs.Wrap(errs.EmbedderFailure, "local embedder call failed", r.err)
		}

		e.mu.Lock()
		e.lastCall = time.Now()
		e.modelName = r.resp.Model
		if e.dimensions == 0 {
			e.dimensions = r.resp.Dimension
		}
		e.mu.Unlock()

		vectors := make([][]float32, len(r.resp.Embeddings))
		for i, v := range r.resp.Embeddings {
			if e.dimensions != 0 && len(v) != e.dimensions {
				return nil, errs.New(errs.EmbedderFailure, "dimension mismatch in local embedder response").
					WithDetail("want", e.dimensions).WithDetail("got", len(v))
			}
			vectors[i] = normalizeVector(v)
		}
		return vectors, nil
	}
}

func (e *LocalEmbedder) getTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastCall.IsZero() {
		return coldTimeout
	}
	return warmTimeout
}

// Dimensions returns the dimensionality discovered from the first
// successful Embed call, or 0 if none has happened yet.
func (e *LocalEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

func (e *LocalEmbedder) ModelName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modelName
}

// Available probes the server's /health endpoint.
func (e *LocalEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (e *LocalEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
