package loader

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"ragdb/internal/domain"
)

// TextReader reads .txt and .md files; form feeds separate pages.
type TextReader struct{}

func (TextReader) Supports(path string) bool { return hasExt(path, ".txt", ".md") }

func (TextReader) ReadPages(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]domain.Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, domain.Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

// PDFReader extracts plain text per page with ledongthuc/pdf.
type PDFReader struct{}

func (PDFReader) Supports(path string) bool { return hasExt(path, ".pdf") }

func (PDFReader) ReadPages(path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}

// UniPDFReader extracts text per page with unipdf.
type UniPDFReader struct{}

// NewUniPDFReader applies the metered license key when one is provided.
func NewUniPDFReader(key string) (UniPDFReader, error) {
	if key != "" {
		if err := license.SetMeteredKey(key); err != nil {
			return UniPDFReader{}, fmt.Errorf("unipdf license: %w", err)
		}
	}
	return UniPDFReader{}, nil
}

func (UniPDFReader) Supports(path string) bool { return hasExt(path, ".pdf") }

func (UniPDFReader) ReadPages(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	n, err := r.GetNumPages()
	if err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		page, err := r.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
