// Package retrieve implements the hybrid retriever: a brute-force dense
// cosine scan fused with BM25 via Reciprocal Rank Fusion, deduplicated to
// one best chunk per file.
package retrieve

import "github.com/searchgrep/searchgrep/internal/store"

// rrfK is the RRF smoothing constant from section 4.6 step 4.
const rrfK = 60

// Options configures a Search call.
type Options struct {
	// Hybrid enables the BM25 pass; when false, results are pure dense.
	Hybrid bool
	// FileTypes filters documents by extension (case-insensitive, leading
	// dot optional). Empty means "all".
	FileTypes []string
}

// Result is one ranked chunk, with its parent document's full content
// attached for callers (such as the Answerer) that want more context than
// the chunk alone provides.
type Result struct {
	Path            string
	Score           float64
	Chunk           store.Chunk
	DocumentContent string
}
