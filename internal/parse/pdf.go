package parse

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.Converter = (*PDFConverter)(nil)
	_ driven.Converter = (*UnavailableConverter)(nil)
)

// PDFConverter extracts plain text from PDF files.
type PDFConverter struct{}

// NewPDFConverter creates a PDFConverter.
func NewPDFConverter() *PDFConverter {
	return &PDFConverter{}
}

func (c *PDFConverter) Available() bool { return true }

func (c *PDFConverter) Supports(ext string) bool {
	return strings.ToLower(ext) == ".pdf"
}

// Convert extracts the text content of a PDF into a normalized document.
func (c *PDFConverter) Convert(path string) (*domain.ParsedDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	body, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract pdf text from %s: %w", path, err)
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("failed to read pdf text from %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return &domain.ParsedDocument{
		Path:    path,
		Title:   stem(path),
		Content: buf.String(),
		Format:  "pdf",
		Metadata: map[string]any{
			"filename":   filepath.Base(path),
			"size_bytes": info.Size(),
			"pages":      reader.NumPage(),
		},
	}, nil
}

// UnavailableConverter is the capability-absent Converter. Heavy formats
// dispatched to it report domain.ErrConverterUnavailable.
type UnavailableConverter struct{}

func (UnavailableConverter) Available() bool { return false }

func (UnavailableConverter) Supports(string) bool { return false }

func (UnavailableConverter) Convert(path string) (*domain.ParsedDocument, error) {
	return nil, fmt.Errorf("%s: %w", path, domain.ErrConverterUnavailable)
}
