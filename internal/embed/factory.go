package embed

import "github.com/searchgrep/searchgrep/internal/config"

// New selects and constructs an Embedder from cfg.EmbeddingProvider. "local"
// targets a local HTTP embedding server; anything else (including the
// default "openai") targets a remote OpenAI-compatible API.
func New(cfg config.Config) Embedder {
	if cfg.EmbeddingProvider == "local" {
		return NewLocalEmbedder(cfg.LocalEmbeddingURL)
	}
	return NewOpenAIEmbedder(cfg.BaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
}
