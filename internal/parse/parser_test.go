package parse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestParsePlainText_MarkdownTitle(t *testing.T) {
	path := writeTestFile(t, "guide.md", "# Getting Started\n\nSome content here.")

	doc, err := parsePlainText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Getting Started" {
		t.Errorf("expected title from heading, got %q", doc.Title)
	}
	if doc.Format != "md" {
		t.Errorf("expected format md, got %s", doc.Format)
	}
	if doc.Metadata["filename"] != "guide.md" {
		t.Errorf("unexpected filename metadata: %v", doc.Metadata["filename"])
	}
}

func TestParsePlainText_TitleFallsBackToStem(t *testing.T) {
	path := writeTestFile(t, "notes.txt", "no heading in this file")

	doc, err := parsePlainText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected stem title, got %q", doc.Title)
	}
}

func TestParseDelimited_CSVToMarkdownTable(t *testing.T) {
	path := writeTestFile(t, "data.csv", "name,role\nalice,admin\nbob,viewer")

	doc, err := parseDelimited(path, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(doc.Content, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 table lines, got %d:\n%s", len(lines), doc.Content)
	}
	if lines[0] != "| name | role |" {
		t.Errorf("unexpected header row: %q", lines[0])
	}
	if lines[1] != "| --- | --- |" {
		t.Errorf("unexpected separator row: %q", lines[1])
	}
	if lines[2] != "| alice | admin |" {
		t.Errorf("unexpected data row: %q", lines[2])
	}
	if doc.Metadata["rows"] != 2 {
		t.Errorf("expected 2 data rows, got %v", doc.Metadata["rows"])
	}
	if doc.Metadata["columns"] != 2 {
		t.Errorf("expected 2 columns, got %v", doc.Metadata["columns"])
	}
}

func TestParseDelimited_ShortRowsPadded(t *testing.T) {
	path := writeTestFile(t, "data.csv", "a,b,c\n1,2\n")

	doc, err := parseDelimited(path, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(doc.Content, "\n")
	if lines[2] != "| 1 | 2 |  |" {
		t.Errorf("expected padded row, got %q", lines[2])
	}
}

func TestParseDelimited_TSV(t *testing.T) {
	path := writeTestFile(t, "data.tsv", "x\ty\n1\t2")

	doc, err := parseDelimited(path, '\t')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Format != "tsv" {
		t.Errorf("expected format tsv, got %s", doc.Format)
	}
	if !strings.Contains(doc.Content, "| x | y |") {
		t.Errorf("expected markdown table, got:\n%s", doc.Content)
	}
}

func TestParseDelimited_EmptyFile(t *testing.T) {
	path := writeTestFile(t, "empty.csv", "")

	doc, err := parseDelimited(path, ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Content != "(empty file)" {
		t.Errorf("unexpected content: %q", doc.Content)
	}
}

func TestParseJSON_FencedBlockAndTitle(t *testing.T) {
	path := writeTestFile(t, "config.json", `{"title": "My Config", "debug": true}`)

	doc, err := parseJSON(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "My Config" {
		t.Errorf("expected sniffed title, got %q", doc.Title)
	}
	if !strings.HasPrefix(doc.Content, "```json\n") || !strings.HasSuffix(doc.Content, "\n```") {
		t.Errorf("expected fenced code block, got:\n%s", doc.Content)
	}
	if !strings.Contains(doc.Content, `"debug": true`) {
		t.Errorf("expected pretty-printed body, got:\n%s", doc.Content)
	}
}

func TestParseJSON_TitlePreference(t *testing.T) {
	path := writeTestFile(t, "item.json", `{"id": 42, "name": "Widget"}`)

	doc, err := parseJSON(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// name beats id in the sniffing order
	if doc.Title != "Widget" {
		t.Errorf("expected name as title, got %q", doc.Title)
	}
}

func TestParseJSON_InvalidFallsBackToRaw(t *testing.T) {
	raw := "{not valid json"
	path := writeTestFile(t, "broken.json", raw)

	doc, err := parseJSON(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Content != raw {
		t.Errorf("expected raw content fallback, got %q", doc.Content)
	}
	if _, ok := doc.Metadata["parse_error"]; !ok {
		t.Error("expected parse_error metadata")
	}
	if doc.Title != "broken" {
		t.Errorf("expected stem title, got %q", doc.Title)
	}
}
