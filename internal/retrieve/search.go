package retrieve

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/searchgrep/searchgrep/internal/embed"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/tokenize"
)

// chunkRef pairs a chunk with its parent document, so scoring can read both
// without re-walking the document list.
type chunkRef struct {
	doc   *store.Document
	chunk *store.Chunk
}

func (c chunkRef) key() fusionKey {
	return fusionKey{path: c.doc.Path, lineStart: c.chunk.LineStart}
}

type fusionKey struct {
	path      string
	lineStart int
}

type fusionEntry struct {
	ref   chunkRef
	score float64
}

// Search runs the hybrid retrieval pipeline described in section 4.6:
// filter by file type, score densely and (optionally) with BM25, fuse with
// RRF, deduplicate to one chunk per path, and truncate to topK.
func Search(ctx context.Context, embedder embed.Embedder, documents []*store.Document, query string, topK int, opts Options) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}

	refs := filterChunks(documents, opts.FileTypes)
	if len(refs) == 0 {
		return nil, nil
	}

	dense, err := denseScore(ctx, embedder, refs, query, 3*topK)
	if err != nil {
		return nil, err
	}

	var sparse []fusionEntry
	if opts.Hybrid {
		sparse = sparseScore(refs, query, 3*topK)
	}

	fused := fuse(dense, sparse)
	deduped := dedupByPath(fused, 2*topK)

	if len(deduped) > topK {
		deduped = deduped[:topK]
	}

	results := make([]Result, len(deduped))
	for i, e := range deduped {
		results[i] = Result{
			Path:            e.ref.doc.Path,
			Score:           e.score,
			Chunk:           *e.ref.chunk,
			DocumentContent: e.ref.doc.Content,
		}
	}
	return results, nil
}

// filterChunks flattens every chunk of every document matching fileTypes
// into a single scoring list. An empty fileTypes means "all".
func filterChunks(documents []*store.Document, fileTypes []string) []chunkRef {
	allowed := normalizeFileTypes(fileTypes)

	var refs []chunkRef
	for _, d := range documents {
		if len(allowed) > 0 && !allowed[extensionOf(d.Path)] {
			continue
		}
		for i := range d.Chunks {
			refs = append(refs, chunkRef{doc: d, chunk: &d.Chunks[i]})
		}
	}
	return refs
}

func normalizeFileTypes(fileTypes []string) map[string]bool {
	if len(fileTypes) == 0 {
		return nil
	}
	out := make(map[string]bool, len(fileTypes))
	for _, ft := range fileTypes {
		ft = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ft), "."))
		if ft != "" {
			out[ft] = true
		}
	}
	return out
}

func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

// denseScore embeds the query and ranks refs by cosine similarity,
// returning the top n as fusionEntries in descending score order.
func denseScore(ctx context.Context, embedder embed.Embedder, refs []chunkRef, query string, n int) ([]fusionEntry, error) {
	vectors, err := embedder.Embed(ctx, []string{query}, embed.KindQuery)
	if err != nil {
		return nil, err
	}
	var qvec []float32
	if len(vectors) > 0 {
		qvec = vectors[0]
	}

	scored := make([]fusionEntry, len(refs))
	for i, r := range refs {
		scored[i] = fusionEntry{ref: r, score: cosine(qvec, r.chunk.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return truncate(scored, n), nil
}

// sparseScore ranks refs by Okapi BM25 against the tokenized query,
// returning the top n as fusionEntries. An empty token query degrades to no
// sparse contribution at all, per section 4.6's numeric edge cases.
func sparseScore(refs []chunkRef, query string, n int) []fusionEntry {
	queryTokens := tokenize.Tokens(query)
	if len(queryTokens) == 0 {
		return nil
	}

	docTokens := make([][]string, len(refs))
	df := make(map[string]int)
	var totalLen int
	for i, r := range refs {
		toks := tokenize.Tokens(r.chunk.Content)
		docTokens[i] = toks
		totalLen += len(toks)
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	docCount := float64(len(refs))
	avgLen := 0.0
	if docCount > 0 {
		avgLen = float64(totalLen) / docCount
	}

	idf := make(map[string]float64, len(queryTokens))
	for _, t := range queryTokens {
		d := float64(df[t])
		idf[t] = math.Log((docCount-d+0.5)/(d+0.5) + 1)
	}

	const k1 = 1.5
	const b = 0.75

	scored := make([]fusionEntry, len(refs))
	for i, r := range refs {
		tf := termFrequencies(docTokens[i])
		docLen := float64(len(docTokens[i]))

		var score float64
		for _, t := range queryTokens {
			freq, ok := tf[t]
			if !ok {
				continue
			}
			f := float64(freq)
			denom := f + k1*(1-b+b*docLen/nonZero(avgLen))
			score += idf[t] * (f * (k1 + 1)) / denom
		}
		scored[i] = fusionEntry{ref: r, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return truncate(scored, n)
}

func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func truncate(entries []fusionEntry, n int) []fusionEntry {
	if n < 0 || n > len(entries) {
		return entries
	}
	return entries[:n]
}

// fuse applies RRF over the dense and sparse rank lists, accumulating a
// score keyed by (path, chunk.lineStart). Entries are collected in the
// order first seen (dense first, then sparse) and then stably sorted by
// score descending, so ties keep that insertion order as section 4.6
// requires.
func fuse(dense, sparse []fusionEntry) []fusionEntry {
	index := make(map[fusionKey]int)
	var fused []fusionEntry

	add := func(rank int, e fusionEntry) {
		rrf := 1 / float64(rrfK+rank+1)
		key := e.ref.key()
		if i, ok := index[key]; ok {
			fused[i].score += rrf
			return
		}
		index[key] = len(fused)
		fused = append(fused, fusionEntry{ref: e.ref, score: rrf})
	}

	for rank, e := range dense {
		add(rank, e)
	}
	for rank, e := range sparse {
		add(rank, e)
	}

	sort.SliceStable(fused, func(i, j int) bool { return fused[i].score > fused[j].score })
	return fused
}

// dedupByPath walks fused (already sorted by score descending) and keeps
// only the highest-scoring chunk per path, stopping once maxPaths unique
// paths have been collected.
func dedupByPath(fused []fusionEntry, maxPaths int) []fusionEntry {
	seen := make(map[string]bool)
	out := make([]fusionEntry, 0, maxPaths)

	for _, e := range fused {
		path := e.ref.doc.Path
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, e)
		if len(out) >= maxPaths {
			break
		}
	}
	return out
}

// cosine computes cosine similarity, returning 0 rather than NaN for a
// zero-length vector, a zero vector, or a dimensionality mismatch.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
