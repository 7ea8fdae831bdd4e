package manualindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// Embedder converts text spans into vectors. Implementations talk to a local
// embedding server; the index never contacts anything else.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
}

// Chunk is one indexed span of a procedure manual.
type Chunk struct {
	ID         int64
	DocOrder   int
	ChunkOrder int
	Source     string
	Text       string
	Embedding  []float32
}

// Match pairs a chunk with its relevance to a query.
type Match struct {
	Chunk Chunk
	Score float64
}

// Index answers similarity queries against an embedded manual corpus. Build
// it once per corpus; Query is safe for concurrent use afterwards.
type Index struct {
	store       *Store
	embedder    Embedder
	fingerprint string
	chunks      []Chunk
}

// NewIndex wires an index to its persistence store and embedding backend.
func NewIndex(store *Store, embedder Embedder) *Index {
	return &Index{store: store, embedder: embedder}
}

// Fingerprint identifies a corpus by content. Documents are hashed in sorted
// name order so ingestion order does not affect identity.
func Fingerprint(docs []Document) string {
	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	hash := sha256.New()
	for _, doc := range sorted {
		fmt.Fprintf(hash, "%s\x00%s\x00", doc.Name, normalizeText(doc.Text))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// Build chunks and embeds the corpus, persisting the result. Rebuilding an
// unchanged corpus is a no-op beyond a fingerprint check; the persisted chunks
// are reloaded instead of re-embedded.
func (ix *Index) Build(ctx context.Context, docs []Document, chunkChars int) error {
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	sorted := make([]Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fingerprint := Fingerprint(sorted)
	exists, err := ix.store.hasCorpus(ctx, fingerprint)
	if err != nil {
		return err
	}
	if exists {
		return ix.load(ctx, fingerprint)
	}

	var chunks []Chunk
	for docOrder, doc := range sorted {
		for chunkOrder, text := range chunkDocument(doc.Text, chunkChars) {
			chunks = append(chunks, Chunk{
				DocOrder:   docOrder,
				ChunkOrder: chunkOrder,
				Source:     doc.Name,
				Text:       text,
			})
		}
	}
	if len(chunks) == 0 {
		return ErrEmptyCorpus
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := ix.store.insertCorpus(ctx, fingerprint, ix.embedder.Model(), chunks); err != nil {
		return err
	}

	ix.fingerprint = fingerprint
	ix.chunks = chunks
	return nil
}

// Load restores the most recently built corpus from the store.
func (ix *Index) Load(ctx context.Context) error {
	fingerprint, err := ix.store.latestFingerprint(ctx)
	if err != nil {
		return err
	}
	if fingerprint == "" {
		return ErrNotBuilt
	}
	return ix.load(ctx, fingerprint)
}

func (ix *Index) load(ctx context.Context, fingerprint string) error {
	chunks, err := ix.store.loadChunks(ctx, fingerprint)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ErrNotBuilt
	}
	ix.fingerprint = fingerprint
	ix.chunks = chunks
	return nil
}

// Fingerprint returns the identity of the loaded corpus, or empty when none
// is loaded.
func (ix *Index) Fingerprint() string {
	return ix.fingerprint
}

// ChunkCount returns the number of loaded chunks.
func (ix *Index) ChunkCount() int {
	return len(ix.chunks)
}

// Query returns the topK most similar chunks for the text, highest score
// first. Equal scores are broken by document order then chunk order, so
// results are deterministic for a fixed corpus and query.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if len(ix.chunks) == 0 {
		return nil, ErrNotBuilt
	}
	if topK <= 0 {
		return nil, nil
	}

	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: expected 1 vector, got %d", len(vectors))
	}
	query := vectors[0]

	matches := make([]Match, 0, len(ix.chunks))
	for _, chunk := range ix.chunks {
		matches = append(matches, Match{Chunk: chunk, Score: cosineSimilarity(query, chunk.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Chunk.DocOrder != matches[j].Chunk.DocOrder {
			return matches[i].Chunk.DocOrder < matches[j].Chunk.DocOrder
		}
		return matches[i].Chunk.ChunkOrder < matches[j].Chunk.ChunkOrder
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
