package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"policybot/internal/domain"
	"policybot/internal/embedding"
	"policybot/internal/index"
	"policybot/internal/llm"
	"policybot/internal/loader"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Stats describes the current index.
type Stats struct {
	// Documents counts source files, not pages.
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Sections  map[string]int `json:"sections"`
	Duration  time.Duration  `json:"duration_ns,omitempty"`
	IndexedAt time.Time      `json:"indexed_at"`
}

// Options holds the paths and limits a PolicyService works with.
type Options struct {
	DataDir  string
	IndexDir string
	TopK     int
}

// EmbedderFactory returns an unprepared embedder. Every index generation
// gets its own, so preparing the next one never disturbs queries against
// the live one.
type EmbedderFactory func() (domain.Embedder, error)

// generation is everything a query reads: the keyword index, the embedder
// that produced the stored vectors, and what went into them.
type generation struct {
	index    *index.Index
	embedder domain.Embedder
	chunks   []domain.Chunk
	vectors  [][]float64
	stats    Stats
}

// PolicyService ingests policy documents and answers questions over them.
type PolicyService struct {
	opts        Options
	chunker     domain.Chunker
	newEmbedder EmbedderFactory
	store       domain.VectorStore
	generator   domain.Generator
	log         *slog.Logger

	// reindexMu serializes rebuilds. mu guards live and the store; it is
	// held for writing only while a prepared generation is swapped in.
	reindexMu sync.Mutex
	mu        sync.RWMutex
	live      *generation
}

func NewPolicyService(opts Options, chunker domain.Chunker, newEmbedder EmbedderFactory, store domain.VectorStore, generator domain.Generator, log *slog.Logger) *PolicyService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &PolicyService{
		opts:        opts,
		chunker:     chunker,
		newEmbedder: newEmbedder,
		store:       store,
		generator:   generator,
		log:         log.With("component", "service"),
	}
}

// Reindex rebuilds the index from every document in the data directory.
// Queries keep being answered from the previous generation until the new
// one is ready; if any step fails the previous generation stays live.
func (s *PolicyService) Reindex(ctx context.Context) (Stats, error) {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()
	start := time.Now()

	docs, err := loader.LoadDir(ctx, s.opts.DataDir, s.log)
	if err != nil {
		return Stats{}, err
	}
	chunks, err := s.chunkAll(ctx, docs)
	if err != nil {
		return Stats{}, err
	}
	if len(chunks) == 0 {
		return Stats{}, fmt.Errorf("%w: documents produced no text", loader.ErrNoDocuments)
	}
	next, err := s.embed(ctx, chunks)
	if err != nil {
		return Stats{}, err
	}
	next.index, err = index.Build(s.opts.IndexDir, chunks, s.log)
	if err != nil {
		return Stats{}, err
	}
	next.stats.Duration = time.Since(start)

	if err := s.swap(ctx, next, true); err != nil {
		if dErr := next.index.Discard(); dErr != nil {
			s.log.Warn("discard failed index generation", "error", dErr)
		}
		return Stats{}, err
	}
	if err := index.Prune(s.opts.IndexDir); err != nil {
		s.log.Warn("prune old index generations", "dir", s.opts.IndexDir, "error", err)
	}
	st := next.stats
	s.log.Info("re-index complete", "documents", st.Documents, "chunks", st.Chunks, "took", st.Duration.Round(time.Millisecond))
	return s.Stats(), nil
}

// Open loads a previously built index. It returns index.ErrIndexNotFound when
// none exists yet.
func (s *PolicyService) Open(ctx context.Context) error {
	s.reindexMu.Lock()
	defer s.reindexMu.Unlock()

	idx, err := index.Open(s.opts.IndexDir)
	if err != nil {
		return err
	}
	chunks, err := idx.All()
	if err != nil {
		_ = idx.Close()
		return err
	}
	if len(chunks) == 0 {
		_ = idx.Close()
		return fmt.Errorf("%w: %s is empty", index.ErrIndexNotFound, s.opts.IndexDir)
	}
	next, err := s.embed(ctx, chunks)
	if err != nil {
		_ = idx.Close()
		return err
	}
	next.index = idx
	if err := s.swap(ctx, next, false); err != nil {
		_ = idx.Close()
		return err
	}
	s.log.Info("index opened", "dir", s.opts.IndexDir, "generation", idx.Generation(), "chunks", len(chunks))
	return nil
}

// embed prepares a fresh embedder over chunks and vectorizes them. It touches
// nothing queries read.
func (s *PolicyService) embed(ctx context.Context, chunks []domain.Chunk) (*generation, error) {
	emb, err := s.newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := emb.Prepare(texts); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := embedding.EmbedAll(ctx, emb, texts)
	if err != nil {
		return nil, err
	}
	return &generation{embedder: emb, chunks: chunks, vectors: vectors, stats: buildStats(chunks)}, nil
}

// swap loads next into the vector store, publishes its index when commit is
// set and makes it live. On failure the store is refilled from the previous
// generation, which stays live.
func (s *PolicyService) swap(ctx context.Context, next *generation, commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.live

	err := s.fillStore(ctx, next)
	if err == nil && commit {
		err = next.index.Commit()
	}
	if err != nil {
		if prev != nil {
			if rErr := s.fillStore(ctx, prev); rErr != nil {
				s.log.Error("restore previous vectors", "error", rErr)
				_ = prev.index.Close()
				s.live = nil
			}
		}
		return err
	}
	s.live = next
	if prev != nil {
		_ = prev.index.Close()
	}
	return nil
}

// fillStore replaces the store contents with g's vectors. Callers hold s.mu.
func (s *PolicyService) fillStore(ctx context.Context, g *generation) error {
	dim := g.embedder.Dimension()
	if dim == 0 && len(g.vectors) > 0 {
		dim = len(g.vectors[0])
	}
	if err := s.store.Init(ctx, dim); err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	if err := s.store.Upsert(ctx, g.chunks, g.vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// Retrieve returns the topK chunks most relevant to question. Queries that
// carry no vector signal fall back to keyword search on the persisted index.
func (s *PolicyService) Retrieve(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := s.live
	if live == nil {
		return nil, index.ErrIndexNotFound
	}

	vec, err := live.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if embedding.IsZero(vec) {
		return live.index.Search(question, topK)
	}
	res, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if r.Score > 1e-9 {
			return res, nil
		}
	}
	return live.index.Search(question, topK)
}

// Ask answers question from the indexed policies.
func (s *PolicyService) Ask(ctx context.Context, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	results, err := s.Retrieve(ctx, question, s.opts.TopK)
	if err != nil {
		return domain.Answer{}, err
	}
	text, err := s.generator.Generate(ctx, question, results)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	ans := domain.Answer{Question: question, Text: text, Results: results}
	if strings.TrimSpace(text) != llm.NotFoundAnswer {
		ans.Sources = citations(results)
	}
	s.log.Debug("answered", "question", question, "results", len(results), "sources", len(ans.Sources))
	return ans, nil
}

// Stats returns a copy of the current index statistics.
func (s *PolicyService) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live == nil {
		return Stats{Sections: map[string]int{}}
	}
	st := s.live.stats
	st.Sections = make(map[string]int, len(s.live.stats.Sections))
	for k, v := range s.live.stats.Sections {
		st.Sections[k] = v
	}
	return st
}

// Ready reports whether an index is loaded.
func (s *PolicyService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live != nil
}

// Close releases the live index and the generator's client, if it holds one.
func (s *PolicyService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.live != nil {
		errs = append(errs, s.live.index.Close())
		s.live = nil
	}
	if c, ok := s.generator.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// chunkAll chunks documents concurrently, keeping document order.
func (s *PolicyService) chunkAll(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error) {
	perDoc := make([][]domain.Chunk, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, d := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks, err := s.chunker.Chunk(d)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", d.Metadata.String(domain.MetaSource), err)
			}
			perDoc[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []domain.Chunk
	for _, c := range perDoc {
		out = append(out, c...)
	}
	return out, nil
}

func buildStats(chunks []domain.Chunk) Stats {
	docs := map[string]struct{}{}
	st := Stats{Chunks: len(chunks), Sections: map[string]int{}, IndexedAt: time.Now()}
	for _, c := range chunks {
		key := c.Metadata.String(domain.MetaPath)
		if key == "" {
			key = c.Source()
		}
		docs[key] = struct{}{}
		st.Sections[c.Section()]++
	}
	st.Documents = len(docs)
	return st
}

// citations returns the distinct citations of results in rank order.
func citations(results []domain.SearchResult) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range results {
		c := r.Chunk.Citation()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SectionNames returns the section ids of st sorted for display.
func (st Stats) SectionNames() []string {
	names := make([]string, 0, len(st.Sections))
	for k := range st.Sections {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
