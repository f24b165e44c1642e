package parse

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// nativeFormats are handled without any external converter.
var nativeFormats = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".json": true, ".yaml": true, ".yml": true,
	".csv": true, ".tsv": true,
}

// heavyFormats need a Converter.
var heavyFormats = map[string]bool{
	".pdf": true,
}

// Registry dispatches files to parsers by extension. Native text formats
// always work; heavy formats route through an optional Converter.
type Registry struct {
	mu        sync.RWMutex
	converter driven.Converter
}

// NewRegistry creates a registry with the given converter for heavy
// formats. Pass an UnavailableConverter when none is installed.
func NewRegistry(converter driven.Converter) *Registry {
	return &Registry{converter: converter}
}

// SetConverter swaps the heavy-format converter at runtime.
func (r *Registry) SetConverter(converter driven.Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converter = converter
}

// Supported lists the extensions this registry can currently parse,
// sorted, including heavy formats only when the converter is available.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exts []string
	for ext := range nativeFormats {
		exts = append(exts, ext)
	}
	if r.converter != nil && r.converter.Available() {
		for ext := range heavyFormats {
			if r.converter.Supports(ext) {
				exts = append(exts, ext)
			}
		}
	}
	sort.Strings(exts)
	return exts
}

// ParseDocument parses the file at path into a normalized document.
// Unknown extensions fall back to plain text. Heavy formats without an
// available converter return domain.ErrConverterUnavailable.
func (r *Registry) ParseDocument(path string) (*domain.ParsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".csv":
		return parseDelimited(path, ',')
	case ".tsv":
		return parseDelimited(path, '\t')
	case ".json":
		return parseJSON(path)
	}

	if nativeFormats[ext] {
		return parsePlainText(path)
	}

	if heavyFormats[ext] {
		r.mu.RLock()
		converter := r.converter
		r.mu.RUnlock()

		if converter == nil || !converter.Available() {
			return nil, fmt.Errorf("%s: %w", ext, domain.ErrConverterUnavailable)
		}
		if !converter.Supports(ext) {
			return nil, fmt.Errorf("%s: %w", ext, domain.ErrUnsupportedFormat)
		}
		return converter.Convert(path)
	}

	// Unknown extension: best effort as plain text
	return parsePlainText(path)
}

// ParseDirectory walks dir and parses every supported file. Files that
// fail to parse are skipped, not fatal; the walk error is the only hard
// failure.
func (r *Registry) ParseDirectory(dir string, recursive bool) ([]*domain.ParsedDocument, error) {
	supported := make(map[string]bool)
	for _, ext := range r.Supported() {
		supported[ext] = true
	}

	var docs []*domain.ParsedDocument
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !supported[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		doc, err := r.ParseDocument(path)
		if err != nil {
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	return docs, nil
}
