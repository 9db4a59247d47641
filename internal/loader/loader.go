package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"policybot/internal/domain"
)

var (
	// ErrDataDirNotFound is returned when the policy folder does not exist.
	ErrDataDirNotFound = errors.New("data directory not found")
	// ErrNoDocuments is returned when the policy folder holds no readable documents.
	ErrNoDocuments = errors.New("no policy documents found")
)

// NotPaged is the page label for formats without pagination.
const NotPaged = "N/A"

// Page is one unit of extracted text. Paged is false for formats without pages.
// Err is set when the page exists but its text could not be extracted.
type Page struct {
	Number int
	Paged  bool
	Text   string
	Err    error
}

// Loader extracts text pages from raw file bytes.
type Loader interface {
	Load(r io.Reader) ([]Page, error)
}

// SupportedExtensions lists file extensions this loader can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	case ".txt":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupported checks if a file extension is supported.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// LoadFile reads one file and returns a document per extracted page.
// Blank pages are dropped; pages whose text could not be extracted are logged and dropped.
func LoadFile(path string, log *slog.Logger) ([]domain.Document, error) {
	ld, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages, err := safeLoad(ld, f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return toDocuments(path, pages, log), nil
}

// safeLoad runs ld, turning a parser panic on a malformed file into an error.
func safeLoad(ld Loader, r io.Reader) (pages []Page, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("parser panic: %v", p)
		}
	}()
	return ld.Load(r)
}

func toDocuments(path string, pages []Page, log *slog.Logger) []domain.Document {
	docs := make([]domain.Document, 0, len(pages))
	for _, p := range pages {
		if p.Err != nil {
			log.Warn("skipping unreadable page", "path", path, "page", p.Number, "error", p.Err)
			continue
		}
		text := normalizeText(p.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		var page any = NotPaged
		key := path
		if p.Paged {
			page = p.Number
			key = path + "#" + strconv.Itoa(p.Number)
		}
		docs = append(docs, domain.Document{
			ID:      hashString(key),
			Path:    path,
			Content: text,
			Metadata: domain.Metadata{
				domain.MetaSource: filepath.Base(path),
				domain.MetaPage:   page,
				domain.MetaPath:   path,
			},
		})
	}
	return docs
}

// LoadDir loads every supported file below dir. Files are read concurrently;
// the result is ordered by path, then page. Unreadable files are logged and skipped.
func LoadDir(ctx context.Context, dir string, log *slog.Logger) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDataDirNotFound, dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsSupported(path) || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	log.Info("loading documents", "dir", dir, "files", len(paths))

	perFile := make([][]domain.Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := LoadFile(path, log)
			if err != nil {
				log.Warn("skipping unreadable document", "path", path, "error", err)
				return nil
			}
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Document
	for _, docs := range perFile {
		out = append(out, docs...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return out, nil
}

// normalizeText folds compatibility characters (ligatures, full-width digits)
// and line endings so numbered headings are found reliably.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\x00", "")
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
