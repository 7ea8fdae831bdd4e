package manualindex

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// stubEmbedder returns fixed vectors for known texts and a neutral vector
// otherwise, counting how many inputs it was asked to embed.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	s.calls += len(inputs)
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		if vec, ok := s.vectors[input]; ok {
			out[i] = vec
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubEmbedder) Model() string { return "stub-embed" }

func openTestIndex(t *testing.T, embedder Embedder) *Index {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "manuals.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewIndex(store, embedder)
}

func TestBuildEmptyCorpus(t *testing.T) {
	ix := openTestIndex(t, &stubEmbedder{})
	if err := ix.Build(context.Background(), nil, 1200); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	docs := []Document{{Name: "blank.txt", Text: "   \n\n  "}}
	if err := ix.Build(context.Background(), docs, 1200); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus for whitespace corpus, got %v", err)
	}
}

func TestQueryBeforeBuild(t *testing.T) {
	ix := openTestIndex(t, &stubEmbedder{})
	if _, err := ix.Query(context.Background(), "anything", 3); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
	if err := ix.Load(context.Background()); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt from Load on empty store, got %v", err)
	}
}

func TestQueryRanking(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Use of force must be proportional.": {1, 0, 0},
		"Vehicle searches require consent.":  {0, 1, 0},
		"Report every detention in writing.": {0, 0, 1},
		"force query":                        {0.9, 0.1, 0},
	}}
	ix := openTestIndex(t, embedder)

	docs := []Document{
		{Name: "force.md", Text: "Use of force must be proportional."},
		{Name: "search.md", Text: "Vehicle searches require consent."},
		{Name: "reporting.md", Text: "Report every detention in writing."},
	}
	if err := ix.Build(context.Background(), docs, 1200); err != nil {
		t.Fatalf("Build: %v", err)
	}

	matches, err := ix.Query(context.Background(), "force query", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.Source != "force.md" {
		t.Fatalf("expected force.md first, got %s", matches[0].Chunk.Source)
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("expected descending scores, got %f then %f", matches[0].Score, matches[1].Score)
	}
}

func TestQueryTieBreakIsDocOrder(t *testing.T) {
	// All chunks get the same vector so every score ties; ordering must fall
	// back to document order then chunk order.
	embedder := &stubEmbedder{}
	ix := openTestIndex(t, embedder)

	docs := []Document{
		{Name: "b-manual.md", Text: "second doc text."},
		{Name: "a-manual.md", Text: "first doc text."},
		{Name: "c-manual.md", Text: "third doc text."},
	}
	if err := ix.Build(context.Background(), docs, 1200); err != nil {
		t.Fatalf("Build: %v", err)
	}

	matches, err := ix.Query(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"a-manual.md", "b-manual.md", "c-manual.md"}
	for i, name := range want {
		if matches[i].Chunk.Source != name {
			t.Fatalf("match %d: expected %s, got %s", i, name, matches[i].Chunk.Source)
		}
	}
}

func TestRebuildSameCorpusSkipsEmbedding(t *testing.T) {
	embedder := &stubEmbedder{}
	store, err := OpenStore(filepath.Join(t.TempDir(), "manuals.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	docs := []Document{
		{Name: "pursuit.md", Text: "Pursuits require supervisor approval."},
		{Name: "custody.md", Text: "Subjects in custody must be monitored."},
	}

	ix := NewIndex(store, embedder)
	if err := ix.Build(context.Background(), docs, 1200); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	afterFirst := embedder.calls
	if afterFirst == 0 {
		t.Fatal("expected embeddings on first build")
	}

	// Same documents in a different order hash to the same fingerprint.
	reordered := []Document{docs[1], docs[0]}
	rebuilt := NewIndex(store, embedder)
	if err := rebuilt.Build(context.Background(), reordered, 1200); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if embedder.calls != afterFirst {
		t.Fatalf("rebuild re-embedded: %d calls before, %d after", afterFirst, embedder.calls)
	}
	if rebuilt.Fingerprint() != ix.Fingerprint() {
		t.Fatal("fingerprints diverged for identical corpus")
	}
	if rebuilt.ChunkCount() != ix.ChunkCount() {
		t.Fatalf("chunk counts diverged: %d vs %d", ix.ChunkCount(), rebuilt.ChunkCount())
	}
}

func TestLoadRestoresPersistedCorpus(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"Handcuffs must be double-locked.": {0, 1, 0},
		"restraint query":                  {0, 1, 0},
	}}
	path := filepath.Join(t.TempDir(), "manuals.db")

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	ix := NewIndex(store, embedder)
	docs := []Document{{Name: "restraint.md", Text: "Handcuffs must be double-locked."}}
	if err := ix.Build(context.Background(), docs, 1200); err != nil {
		t.Fatalf("Build: %v", err)
	}
	fingerprint := ix.Fingerprint()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	loaded := NewIndex(reopened, embedder)
	if err := loaded.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Fingerprint() != fingerprint {
		t.Fatalf("fingerprint mismatch after reload: %s vs %s", loaded.Fingerprint(), fingerprint)
	}

	matches, err := loaded.Query(context.Background(), "restraint query", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 || !strings.Contains(matches[0].Chunk.Text, "double-locked") {
		t.Fatalf("unexpected matches after reload: %+v", matches)
	}
}
