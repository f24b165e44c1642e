package parse

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// parsePlainText reads a text or markdown file. For markdown, a leading
// "# " heading becomes the title.
func parsePlainText(path string) (*domain.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)

	title := ""
	if lines := strings.SplitN(content, "\n", 2); len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
		title = strings.TrimSpace(lines[0][2:])
	}
	if title == "" {
		title = stem(path)
	}

	return &domain.ParsedDocument{
		Path:    path,
		Title:   title,
		Content: content,
		Format:  formatTag(path),
		Metadata: map[string]any{
			"filename":   filepath.Base(path),
			"size_bytes": len(data),
		},
	}, nil
}

// parseDelimited converts a CSV or TSV file into a markdown table. Rows
// shorter than the header are padded; longer rows are trimmed. A file
// that fails to parse falls back to its raw text.
func parseDelimited(path string, delimiter rune) (*domain.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)

	format := "csv"
	if delimiter == '\t' {
		format = "tsv"
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		// Malformed tabular data still gets ingested as text
		return &domain.ParsedDocument{
			Path:    path,
			Title:   stem(path),
			Content: content,
			Format:  format,
			Metadata: map[string]any{
				"filename":    filepath.Base(path),
				"parse_error": err.Error(),
			},
		}, nil
	}

	if len(rows) == 0 {
		return &domain.ParsedDocument{
			Path:    path,
			Title:   stem(path),
			Content: "(empty file)",
			Format:  format,
			Metadata: map[string]any{
				"filename": filepath.Base(path),
				"rows":     0,
			},
		}, nil
	}

	header := rows[0]
	var md strings.Builder
	md.WriteString("| " + strings.Join(header, " | ") + " |\n")
	md.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows[1:] {
		for len(row) < len(header) {
			row = append(row, "")
		}
		md.WriteString("| " + strings.Join(row[:len(header)], " | ") + " |\n")
	}

	return &domain.ParsedDocument{
		Path:    path,
		Title:   stem(path),
		Content: strings.TrimRight(md.String(), "\n"),
		Format:  format,
		Metadata: map[string]any{
			"filename": filepath.Base(path),
			"rows":     len(rows) - 1,
			"columns":  len(header),
			"headers":  header,
		},
	}, nil
}

// parseJSON pretty-prints a JSON file into a fenced code block, sniffing
// a title from common fields. Invalid JSON falls back to raw text.
func parseJSON(path string) (*domain.ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return &domain.ParsedDocument{
			Path:    path,
			Title:   stem(path),
			Content: content,
			Format:  "json",
			Metadata: map[string]any{
				"filename":    filepath.Base(path),
				"parse_error": err.Error(),
			},
		}, nil
	}

	formatted, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", path, err)
	}

	title := ""
	if obj, ok := parsed.(map[string]any); ok {
		for _, key := range []string{"title", "name", "id"} {
			if v, ok := obj[key]; ok && v != nil {
				title = fmt.Sprintf("%v", v)
				break
			}
		}
	}
	if title == "" {
		title = stem(path)
	}

	return &domain.ParsedDocument{
		Path:    path,
		Title:   title,
		Content: "```json\n" + string(formatted) + "\n```",
		Format:  "json",
		Metadata: map[string]any{
			"filename":   filepath.Base(path),
			"size_bytes": len(data),
		},
	}, nil
}

// stem returns the file name without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// formatTag returns the lowercase extension without the dot.
func formatTag(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
