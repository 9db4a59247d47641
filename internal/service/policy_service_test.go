package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"policybot/internal/chunker"
	"policybot/internal/domain"
	"policybot/internal/embedding/tfidf"
	"policybot/internal/index"
	"policybot/internal/llm"
	"policybot/internal/loader"
	"policybot/internal/logging"
	"policybot/internal/vectorstore/memory"
)

const leavePolicy = `Leave Policy

This policy covers all permanent employees.

15.1 Annual Leave
Employees accrue eighteen days of annual leave per year.

15.2 Casual Leave
Employees are entitled to twelve days of casual leave per year. Casual leave cannot be carried forward.
`

const travelPolicy = `7.1 Air Travel
Economy class airfare is reimbursed for domestic trips.
`

type recordingGenerator struct {
	answer   string
	question string
	results  []domain.SearchResult
}

func (g *recordingGenerator) Name() string { return "recording" }

func (g *recordingGenerator) Generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	g.question = question
	g.results = results
	return g.answer, nil
}

func setup(t *testing.T) (Options, *recordingGenerator) {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"leave.txt": leavePolicy, "travel.txt": travelPolicy} {
		if err := os.WriteFile(filepath.Join(data, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return Options{DataDir: data, IndexDir: filepath.Join(root, "policy_index"), TopK: 3}, &recordingGenerator{answer: "Twelve days."}
}

func newService(opts Options, gen domain.Generator) *PolicyService {
	return newServiceWith(opts, gen, memory.NewStorage(), func() domain.Embedder { return tfidf.NewEmbedder() })
}

func newServiceWith(opts Options, gen domain.Generator, store domain.VectorStore, newEmbedder func() domain.Embedder) *PolicyService {
	factory := func() (domain.Embedder, error) { return newEmbedder(), nil }
	return NewPolicyService(opts, chunker.NewSectionChunker(800, 100), factory, store, gen, logging.Discard())
}

// gatedEmbedder blocks in Prepare until release is closed.
type gatedEmbedder struct {
	domain.Embedder
	started chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Prepare(corpus []string) error {
	close(g.started)
	<-g.release
	return g.Embedder.Prepare(corpus)
}

type failingEmbedder struct{ domain.Embedder }

func (failingEmbedder) Prepare([]string) error { return errors.New("prepare failed") }

// flakyStore fails Upsert while failUpsert is set.
type flakyStore struct {
	*memory.Storage
	failUpsert bool
}

func (f *flakyStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if f.failUpsert {
		f.failUpsert = false
		return errors.New("upsert failed")
	}
	return f.Storage.Upsert(ctx, chunks, vectors)
}

func TestReindexAndAsk(t *testing.T) {
	opts, gen := setup(t)
	svc := newService(opts, gen)
	defer svc.Close()

	if _, err := svc.Ask(context.Background(), "How much casual leave?"); !errors.Is(err, index.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound before indexing, got %v", err)
	}

	st, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if st.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", st.Documents)
	}
	for _, sec := range []string{"General/Intro", "15.1", "15.2", "7.1"} {
		if st.Sections[sec] == 0 {
			t.Errorf("expected chunks for section %s, got %v", sec, st.Sections)
		}
	}
	if !svc.Ready() {
		t.Fatal("expected service to be ready")
	}

	ans, err := svc.Ask(context.Background(), "  How many days of casual leave?  ")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Text != "Twelve days." || gen.question != "How many days of casual leave?" {
		t.Errorf("unexpected answer %+v (question %q)", ans, gen.question)
	}
	if len(gen.results) == 0 || gen.results[0].Chunk.Section() != "15.2" {
		t.Fatalf("expected 15.2 ranked first, got %+v", gen.results)
	}
	if ans.Sources[0] != "leave.txt | Sec 15.2 - Casual Leave" {
		t.Errorf("unexpected first source %q", ans.Sources[0])
	}
	seen := map[string]bool{}
	for _, s := range ans.Sources {
		if seen[s] {
			t.Errorf("duplicate source %q", s)
		}
		seen[s] = true
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	opts, gen := setup(t)
	svc := newService(opts, gen)
	if _, err := svc.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAsk_NotFoundAnswerHasNoSources(t *testing.T) {
	opts, gen := setup(t)
	gen.answer = llm.NotFoundAnswer
	svc := newService(opts, gen)
	defer svc.Close()
	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatal(err)
	}
	ans, err := svc.Ask(context.Background(), "What is the dress code?")
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("expected no sources, got %v", ans.Sources)
	}
}

func TestOpen_ReusesPersistedIndex(t *testing.T) {
	opts, gen := setup(t)
	first := newService(opts, gen)
	if err := first.Open(context.Background()); !errors.Is(err, index.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if _, err := first.Reindex(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := first.Stats()
	first.Close()

	second := newService(opts, gen)
	defer second.Close()
	if err := second.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	got := second.Stats()
	if got.Chunks != want.Chunks || got.Documents != want.Documents {
		t.Errorf("expected stats %+v, got %+v", want, got)
	}
	res, err := second.Retrieve(context.Background(), "airfare reimbursed", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Chunk.Source() != "travel.txt" {
		t.Errorf("unexpected retrieval: %+v", res)
	}
}

func TestRetrieve_HeadingOnlyTermsUseKeywordIndex(t *testing.T) {
	opts, gen := setup(t)
	svc := newService(opts, gen)
	defer svc.Close()
	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatal(err)
	}
	// "air" and "travel" only occur in the 7.1 heading, so the query vector is
	// zero and retrieval goes to the persisted keyword index.
	res, err := svc.Retrieve(context.Background(), "air travel", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(res) == 0 {
		t.Fatal("expected keyword hits")
	}
	got := res[0].Chunk
	if got.Section() != "7.1" || got.Heading() != "Air Travel" || got.Source() != "travel.txt" {
		t.Errorf("expected travel.txt 7.1 Air Travel, got %s", got.Citation())
	}
	if got.Text != "Economy class airfare is reimbursed for domestic trips." {
		t.Errorf("unexpected chunk text %q", got.Text)
	}
}

func TestAsk_AnsweredFromLiveGenerationDuringReindex(t *testing.T) {
	opts, gen := setup(t)
	gate := &gatedEmbedder{Embedder: tfidf.NewEmbedder(), started: make(chan struct{}), release: make(chan struct{})}
	calls := 0
	svc := newServiceWith(opts, gen, memory.NewStorage(), func() domain.Embedder {
		calls++
		if calls == 1 {
			return tfidf.NewEmbedder()
		}
		return gate
	})
	defer svc.Close()
	ctx := context.Background()
	before, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Reindex(ctx)
		done <- err
	}()
	<-gate.started

	answered := make(chan error, 1)
	go func() {
		_, err := svc.Ask(ctx, "How many days of casual leave?")
		answered <- err
	}()
	select {
	case err := <-answered:
		if err != nil {
			t.Errorf("ask during re-index: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(gate.release)
		t.Fatal("ask waited for the running re-index")
	}
	if got := svc.Stats(); got.Chunks != before.Chunks || !got.IndexedAt.Equal(before.IndexedAt) {
		t.Errorf("expected previous stats while re-indexing, got %+v", got)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("second reindex: %v", err)
	}
}

func TestReindex_FailureKeepsPreviousGeneration(t *testing.T) {
	opts, gen := setup(t)
	fail := false
	svc := newServiceWith(opts, gen, memory.NewStorage(), func() domain.Embedder {
		if fail {
			return failingEmbedder{tfidf.NewEmbedder()}
		}
		return tfidf.NewEmbedder()
	})
	ctx := context.Background()
	before, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(opts.DataDir, "leave.txt")); err != nil {
		t.Fatal(err)
	}
	fail = true
	if _, err := svc.Reindex(ctx); err == nil || !strings.Contains(err.Error(), "prepare failed") {
		t.Fatalf("expected prepare failure, got %v", err)
	}

	after := svc.Stats()
	if after.Chunks != before.Chunks || after.Sections["15.2"] != before.Sections["15.2"] {
		t.Errorf("expected stats of the previous generation, got %+v", after)
	}
	res, err := svc.Retrieve(ctx, "casual leave", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Chunk.Citation() != "leave.txt | Sec 15.2 - Casual Leave" {
		t.Errorf("expected previous generation to answer, got %+v", res)
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}

	// The persisted index still describes the previous corpus.
	idx, err := index.Open(opts.IndexDir)
	if err != nil {
		t.Fatalf("open persisted index: %v", err)
	}
	defer idx.Close()
	hits, err := idx.Search("casual leave", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Error("expected the persisted index to keep the previous corpus")
	}
}

func TestReindex_StoreFailureRestoresPreviousVectors(t *testing.T) {
	opts, gen := setup(t)
	store := &flakyStore{Storage: memory.NewStorage()}
	svc := newServiceWith(opts, gen, store, func() domain.Embedder { return tfidf.NewEmbedder() })
	defer svc.Close()
	ctx := context.Background()
	before, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(opts.DataDir, "leave.txt")); err != nil {
		t.Fatal(err)
	}
	store.failUpsert = true
	if _, err := svc.Reindex(ctx); err == nil {
		t.Fatal("expected upsert failure")
	}
	if store.Len() != before.Chunks {
		t.Errorf("expected %d restored vectors, got %d", before.Chunks, store.Len())
	}
	res, err := svc.Retrieve(ctx, "casual leave", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].Chunk.Source() != "leave.txt" {
		t.Errorf("expected previous vectors to answer, got %+v", res)
	}

	st, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st.Documents != 1 || st.Sections["15.2"] != 0 {
		t.Errorf("expected only travel.txt after a successful retry, got %+v", st)
	}
}

func TestRetrieve_UnknownTermsFallBackToKeywordSearch(t *testing.T) {
	opts, gen := setup(t)
	svc := newService(opts, gen)
	defer svc.Close()
	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Retrieve(context.Background(), "zzzz", 3)
	if err != nil {
		t.Fatalf("expected fallback without error, got %v", err)
	}
	if len(res) != 0 {
		t.Errorf("expected no keyword hits, got %d", len(res))
	}
}

func TestReindex_MissingDataDir(t *testing.T) {
	opts, gen := setup(t)
	opts.DataDir = filepath.Join(opts.DataDir, "missing")
	svc := newService(opts, gen)
	if _, err := svc.Reindex(context.Background()); !errors.Is(err, loader.ErrDataDirNotFound) {
		t.Errorf("expected ErrDataDirNotFound, got %v", err)
	}
}

func TestStats_SectionNames(t *testing.T) {
	st := Stats{Sections: map[string]int{"7.1": 1, "15.2": 2, "General/Intro": 1}}
	got := st.SectionNames()
	want := []string{"15.2", "7.1", "General/Intro"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

type closingGenerator struct {
	recordingGenerator
	closed bool
}

func (g *closingGenerator) Close() error {
	g.closed = true
	return nil
}

func TestClose_ReleasesGenerator(t *testing.T) {
	opts, _ := setup(t)
	gen := &closingGenerator{}
	svc := newService(opts, gen)
	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if !gen.closed {
		t.Error("expected generator client to be closed")
	}
	if svc.Ready() {
		t.Error("expected service not ready after close")
	}
}
