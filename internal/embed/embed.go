// Package embed provides the EmbedderPort capability: turning text into
// dense vectors, either via a local HTTP model runner or a remote API.
package embed

import (
	"context"
	"math"
)

// Kind distinguishes a document embedding from a query embedding, allowing
// asymmetric embedding schemes.
type Kind string

const (
	KindDoc   Kind = "doc"
	KindQuery Kind = "query"
)

// maxInputChars is the per-text truncation bound applied before any
// embedder call, per SPEC_FULL.md section 4.4.
const maxInputChars = 8000

// Embedder is the capability interface consumed by the store and
// retriever. Implementations must return vectors of equal dimensionality
// for every call and must be single-flight during initialization.
type Embedder interface {
	Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// Truncate clamps each text to maxInputChars runes, the shared
// preprocessing step every Embedder implementation applies before calling
// out to a model.
func Truncate(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = truncateOne(t)
	}
	return out
}

func truncateOne(text string) string {
	r := []rune(text)
	if len(r) <= maxInputChars {
		return text
	}
	return string(r[:maxInputChars])
}

// normalizeVector L2-normalizes v to unit length, returning it unchanged if
// it is the zero vector.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
