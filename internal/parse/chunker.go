package parse

import (
	"bufio"
	"strings"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// ChunkDocument splits a parsed document into chunk texts on markdown
// headings. Each heading starts a new chunk titled by the heading; a
// document without headings becomes a single chunk titled by the
// document title. Chunk numbers follow document order.
func ChunkDocument(doc *domain.ParsedDocument) []domain.ChunkText {
	var chunks []domain.ChunkText
	var current strings.Builder
	currentTitle := doc.Title

	flush := func() {
		content := strings.TrimSpace(current.String())
		if content != "" {
			chunks = append(chunks, domain.ChunkText{
				Number:  len(chunks),
				Title:   currentTitle,
				Content: content,
			})
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(doc.Content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			flush()
			currentTitle = strings.TrimSpace(strings.TrimLeft(line, "#"))
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if len(chunks) == 0 {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			return nil
		}
		chunks = append(chunks, domain.ChunkText{
			Number:  0,
			Title:   doc.Title,
			Content: content,
		})
	}

	return chunks
}
