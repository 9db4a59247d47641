package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	"policybot/internal/domain"
)

// SchemaVersion is bumped whenever the stored record layout changes.
// An index written with another version must be rebuilt.
const SchemaVersion = 2

const (
	batchSize    = 100
	manifestName = ".index_version"
	genPrefix    = "gen-"
)

// ErrIndexNotFound is returned when no usable index exists at the configured path.
var ErrIndexNotFound = errors.New("policy index not found; run a re-index")

// record is the document stored in bleve for every chunk.
type record struct {
	Seq        int    `json:"seq"`
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Source     string `json:"source"`
	Page       string `json:"page"`
	Path       string `json:"path"`
	Section    string `json:"section,omitempty"`
	Heading    string `json:"heading,omitempty"`
}

// Index is a persisted, keyword-searchable store of chunks.
//
// On disk dir holds one bleve index per generation plus a manifest naming
// the schema version and the live generation. A build writes a new
// generation next to the live one, so readers of the old generation are
// undisturbed until Commit rewrites the manifest.
type Index struct {
	dir   string
	gen   string
	index bleve.Index
}

// Build writes chunks into a new generation under dir. The result is
// searchable but not live: Commit publishes it, Discard throws it away.
func Build(dir string, chunks []domain.Chunk, log *slog.Logger) (*Index, error) {
	start := time.Now()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	gen := genPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
	path := filepath.Join(dir, gen)

	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index generation: %w", err)
	}
	fail := func(err error) (*Index, error) {
		_ = idx.Close()
		_ = os.RemoveAll(path)
		return nil, err
	}

	batch := idx.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(c.ChunkID, toRecord(i, c)); err != nil {
			return fail(fmt.Errorf("add chunk %s: %w", c.ChunkID, err))
		}
		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				return fail(fmt.Errorf("index batch: %w", err))
			}
			batch = idx.NewBatch()
			log.Debug("indexed chunks", "done", i+1, "total", len(chunks))
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fail(fmt.Errorf("index final batch: %w", err))
		}
	}
	log.Info("index built", "dir", dir, "generation", gen, "chunks", len(chunks), "took", time.Since(start).Round(time.Millisecond))
	return &Index{dir: dir, gen: gen, index: idx}, nil
}

// Commit makes x the generation that Open returns.
func (x *Index) Commit() error {
	tmp := filepath.Join(x.dir, manifestName+".tmp")
	body := fmt.Sprintf("%d\n%s\n", SchemaVersion, x.gen)
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write index manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(x.dir, manifestName)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish index manifest: %w", err)
	}
	return nil
}

// Discard closes an uncommitted generation and removes it from disk.
func (x *Index) Discard() error {
	err := x.index.Close()
	if rmErr := os.RemoveAll(filepath.Join(x.dir, x.gen)); err == nil {
		err = rmErr
	}
	return err
}

// Prune removes every generation under dir except the live one.
// Generations still held open elsewhere must be closed first.
func Prune(dir string) error {
	_, live, err := readManifest(dir)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) || e.Name() == live {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Rebuild builds, commits and prunes in one step, for callers that hold no
// previous generation open.
func Rebuild(dir string, chunks []domain.Chunk, log *slog.Logger) (*Index, error) {
	idx, err := Build(dir, chunks, log)
	if err != nil {
		return nil, err
	}
	if err := idx.Commit(); err != nil {
		_ = idx.Discard()
		return nil, err
	}
	if err := Prune(dir); err != nil {
		log.Warn("prune old index generations", "dir", dir, "error", err)
	}
	return idx, nil
}

// Open opens the live generation under dir. A missing index or one written
// with another schema version yields ErrIndexNotFound.
func Open(dir string) (*Index, error) {
	version, gen, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has schema version %d, want %d", ErrIndexNotFound, dir, version, SchemaVersion)
	}
	idx, err := bleve.Open(filepath.Join(dir, gen))
	if err != nil {
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("open index %s: %w", dir, err)
	}
	return &Index{dir: dir, gen: gen, index: idx}, nil
}

func readManifest(dir string) (int, string, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 || !strings.HasPrefix(fields[1], genPrefix) {
		return 0, "", fmt.Errorf("%w: %s has a malformed manifest", ErrIndexNotFound, dir)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s has a malformed manifest", ErrIndexNotFound, dir)
	}
	return v, fields[1], nil
}

// Search runs a keyword query over chunk text and headings.
func (x *Index) Search(q string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	text := bleve.NewMatchQuery(q)
	text.SetField("text")
	heading := bleve.NewMatchQuery(q)
	heading.SetField("heading")
	heading.SetBoost(2)
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(text, heading), topK, 0, false)
	req.Fields = []string{"*"}
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, domain.SearchResult{Chunk: fromFields(hit.Fields), Score: hit.Score})
	}
	return out, nil
}

// All returns every stored chunk in ingestion order.
func (x *Index) All() ([]domain.Chunk, error) {
	n, err := x.index.DocCount()
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(n), 0, false)
	req.Fields = []string{"*"}
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	type seqChunk struct {
		seq   int
		chunk domain.Chunk
	}
	all := make([]seqChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		seq, _ := hit.Fields["seq"].(float64)
		all = append(all, seqChunk{int(seq), fromFields(hit.Fields)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]domain.Chunk, len(all))
	for i, sc := range all {
		out[i] = sc.chunk
	}
	return out, nil
}

// DocCount reports how many chunks are indexed.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Dir returns the on-disk location of the index.
func (x *Index) Dir() string { return x.dir }

// Generation names the on-disk generation x reads from.
func (x *Index) Generation() string { return x.gen }

func (x *Index) Close() error {
	return x.index.Close()
}

func toRecord(seq int, c domain.Chunk) record {
	return record{
		Seq:        seq,
		DocumentID: c.DocumentID,
		ChunkID:    c.ChunkID,
		Index:      c.Index,
		Text:       c.Text,
		Source:     c.Metadata.String(domain.MetaSource),
		Page:       c.Metadata.String(domain.MetaPage),
		Path:       c.Metadata.String(domain.MetaPath),
		Section:    c.Metadata.String(domain.MetaSection),
		Heading:    c.Metadata.String(domain.MetaHeading),
	}
}

func fromFields(f map[string]any) domain.Chunk {
	str := func(k string) string {
		s, _ := f[k].(string)
		return s
	}
	c := domain.Chunk{
		DocumentID: str("document_id"),
		ChunkID:    str("chunk_id"),
		Text:       str("text"),
		Metadata:   domain.Metadata{},
	}
	if v, ok := f["index"].(float64); ok {
		c.Index = int(v)
	}
	for _, k := range []string{domain.MetaSource, domain.MetaPath, domain.MetaSection, domain.MetaHeading} {
		if s := str(k); s != "" {
			c.Metadata[k] = s
		}
	}
	if p := str("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			c.Metadata[domain.MetaPage] = n
		} else {
			c.Metadata[domain.MetaPage] = p
		}
	}
	return c
}
