// Package kb is the knowledge base: merged documents are chunked,
// embedded, and indexed in a vector store, then queried with
// retrieval-augmented summarization.
package kb

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// Chunking defaults, overridable through configuration.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Chunker splits text into overlapping windows. Markdown headings are
// section boundaries first, so a chunk never straddles two pages of a
// merged document.
type Chunker struct {
	Size    int // runes per chunk, zero means DefaultChunkSize
	Overlap int // runes shared between neighbors, zero means DefaultChunkOverlap, negative means none
}

// Chunk returns the chunks of text in source order. Empty input yields
// none.
func (c Chunker) Chunk(text string) []string {
	var chunks []string
	for _, section := range splitSections(text) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		chunks = append(chunks, c.windows(section)...)
	}
	return chunks
}

func (c Chunker) windows(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := c.Overlap
	if overlap == 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// splitSections cuts the text at top-level markdown headings, keeping the
// heading with its section. Text before the first heading is its own
// section.
func splitSections(text string) []string {
	source := []byte(text)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(source))

	offsets := []int{0}
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if node.Kind() != ast.KindHeading {
			continue
		}
		lines := node.Lines()
		if lines.Len() == 0 {
			continue
		}
		start := lines.At(0).Start
		for start > 0 && source[start-1] != '\n' {
			start--
		}
		if start > 0 {
			offsets = append(offsets, start)
		}
	}

	sections := make([]string, 0, len(offsets))
	for i, off := range offsets {
		end := len(source)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		sections = append(sections, string(source[off:end]))
	}
	return sections
}
