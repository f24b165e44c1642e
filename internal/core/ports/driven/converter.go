package driven

import "github.com/custodia-labs/knowledge-core/internal/core/domain"

// Converter turns heavy document formats (PDF, office, HTML) into
// normalized markdown documents. The capability is optional: callers
// query Available before dispatch and receive
// domain.ErrConverterUnavailable from the absent variant rather than a
// crash on a missing installation.
type Converter interface {
	// Available reports whether the converter is installed and usable.
	Available() bool

	// Supports reports whether the converter handles the extension
	// (lowercase, with leading dot, e.g. ".pdf").
	Supports(ext string) bool

	// Convert parses the file at path into a normalized document.
	Convert(path string) (*domain.ParsedDocument, error)
}
