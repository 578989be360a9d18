package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ragdb/internal/domain"
)

// PageReader extracts per-page text from one kind of file.
type PageReader interface {
	Supports(path string) bool
	ReadPages(path string) ([]domain.Page, error)
}

// Loader expands path patterns and reads every supported file into a Document.
type Loader struct {
	readers []PageReader
	log     *zap.Logger
}

// New returns a Loader that tries readers in order.
func New(log *zap.Logger, readers ...PageReader) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{readers: readers, log: log}
}

// NewDefault wires the text reader plus the configured PDF reader.
func NewDefault(log *zap.Logger, pdfReader, unipdfKey string) (*Loader, error) {
	var pdfR PageReader
	switch pdfReader {
	case "", "ledongthuc":
		pdfR = PDFReader{}
	case "unipdf":
		r, err := NewUniPDFReader(unipdfKey)
		if err != nil {
			return nil, err
		}
		pdfR = r
	default:
		return nil, fmt.Errorf("unknown pdf reader: %s", pdfReader)
	}
	return New(log, pdfR, TextReader{}), nil
}

// Expand resolves glob patterns into a sorted, de-duplicated file list.
// Patterns without matches are kept as literal paths.
func Expand(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Load reads every supported file matched by patterns. Books are named after
// the file's base name; a later file whose name is already taken is skipped.
func (l *Loader) Load(patterns []string) ([]domain.Document, error) {
	var docs []domain.Document
	names := map[string]string{}
	for _, path := range Expand(patterns) {
		r := l.readerFor(path)
		if r == nil {
			l.log.Warn("skipping unsupported file", zap.String("path", path))
			continue
		}
		name := filepath.Base(path)
		if first, ok := names[name]; ok {
			l.log.Warn("skipping file with duplicate book name",
				zap.String("path", path), zap.String("book", name), zap.String("loaded_from", first))
			continue
		}
		names[name] = path
		doc, err := l.loadFile(r, path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadFile reads a single file.
func (l *Loader) LoadFile(path string) (domain.Document, error) {
	r := l.readerFor(path)
	if r == nil {
		return domain.Document{}, fmt.Errorf("unsupported file type: %s", path)
	}
	return l.loadFile(r, path)
}

func (l *Loader) loadFile(r PageReader, path string) (domain.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	pages, err := r.ReadPages(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read pages of %s: %w", path, err)
	}
	l.log.Debug("loaded file", zap.String("path", path), zap.Int("pages", len(pages)))
	return domain.Document{Path: path, Name: filepath.Base(path), Pages: pages}, nil
}

func (l *Loader) readerFor(path string) PageReader {
	for _, r := range l.readers {
		if r.Supports(path) {
			return r
		}
	}
	return nil
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
