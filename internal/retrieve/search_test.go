package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/store"
)

func TestCosineZeroVectorIsZeroNotNaN(t *testing.T) {
	assert.Equal(t, 0.0, cosine(nil, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{1, 2, 3}, []float32{1, 2}))
}

func TestCosineIdenticalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
}

func TestDedupByPathKeepsHighestScoringChunkPerPath(t *testing.T) {
	doc := &store.Document{Path: "a.go"}
	entries := []fusionEntry{
		{ref: chunkRef{doc: doc, chunk: &store.Chunk{LineStart: 1}}, score: 0.9},
		{ref: chunkRef{doc: doc, chunk: &store.Chunk{LineStart: 20}}, score: 0.7},
	}

	out := dedupByPath(entries, 10)
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].score)
}

func TestFusionTieBreakScenario(t *testing.T) {
	docA := &store.Document{Path: "a.go"}
	docB := &store.Document{Path: "b.go"}
	docC := &store.Document{Path: "c.go"}
	chunkA := chunkRef{doc: docA, chunk: &store.Chunk{LineStart: 1}}
	chunkB := chunkRef{doc: docB, chunk: &store.Chunk{LineStart: 1}}
	chunkC := chunkRef{doc: docC, chunk: &store.Chunk{LineStart: 1}}

	// A is #1 dense (rank0), #3 BM25 (rank2). B is #2 dense (rank1), #1 BM25 (rank0).
	dense := []fusionEntry{{ref: chunkA}, {ref: chunkB}}
	sparse := []fusionEntry{{ref: chunkB}, {ref: chunkC}, {ref: chunkA}}

	fused := fuse(dense, sparse)
	require.Len(t, fused, 3)

	scoreOf := func(path string) float64 {
		for _, e := range fused {
			if e.ref.doc.Path == path {
				return e.score
			}
		}
		t.Fatalf("no entry for %s", path)
		return 0
	}

	wantA := 1.0/61 + 1.0/63
	wantB := 1.0/62 + 1.0/61
	assert.InDelta(t, wantA, scoreOf("a.go"), 1e-9)
	assert.InDelta(t, wantB, scoreOf("b.go"), 1e-9)
	assert.Equal(t, "b.go", fused[0].ref.doc.Path, "B ranks first")
}

// stubEmbedder is a tiny deterministic Embedder: every text embeds to a
// vector derived from its length, so cosine similarity against the chunks'
// preset embeddings is reproducible without a real model.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string, kind embed.Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t) % 7), float32(len(t) % 3), 1}
	}
	return out, nil
}
func (stubEmbedder) Dimensions() int                { return 3 }
func (stubEmbedder) ModelName() string              { return "stub" }
func (stubEmbedder) Available(context.Context) bool { return true }
func (stubEmbedder) Close() error                   { return nil }

func TestSearchReturnsAtMostTopKUniquePaths(t *testing.T) {
	docs := []*store.Document{
		{Path: "auth.go", Chunks: []store.Chunk{
			{Content: "func Login() {}", LineStart: 1, LineEnd: 3, Embedding: []float32{1, 0, 1}},
			{Content: "func Logout() {}", LineStart: 10, LineEnd: 12, Embedding: []float32{2, 1, 1}},
		}},
		{Path: "db.go", Chunks: []store.Chunk{
			{Content: "func Connect() {}", LineStart: 1, LineEnd: 3, Embedding: []float32{0, 1, 1}},
		}},
	}

	results, err := Search(context.Background(), stubEmbedder{}, docs, "login authentication", 1, Options{Hybrid: true})
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 1)

	seen := map[string]bool{}
	for _, r := range results {
		require.False(t, seen[r.Path], "duplicate path in results")
		seen[r.Path] = true
	}
}

func TestSearchNoChunksReturnsEmpty(t *testing.T) {
	results, err := Search(context.Background(), stubEmbedder{}, nil, "anything", 5, Options{Hybrid: true})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearchEmptyQueryTokensDegradesToDense(t *testing.T) {
	docs := []*store.Document{
		{Path: "a.go", Chunks: []store.Chunk{{Content: "!!! ??", LineStart: 1, LineEnd: 1, Embedding: []float32{1, 0, 1}}}},
	}
	results, err := Search(context.Background(), stubEmbedder{}, docs, "!!", 5, Options{Hybrid: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchFiltersByFileType(t *testing.T) {
	docs := []*store.Document{
		{Path: "a.go", Chunks: []store.Chunk{{Content: "x", LineStart: 1, LineEnd: 1, Embedding: []float32{1, 0, 1}}}},
		{Path: "b.py", Chunks: []store.Chunk{{Content: "y", LineStart: 1, LineEnd: 1, Embedding: []float32{0, 1, 1}}}},
	}
	results, err := Search(context.Background(), stubEmbedder{}, docs, "x", 5, Options{Hybrid: true, FileTypes: []string{".go"}})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "a.go", r.Path)
	}
}
