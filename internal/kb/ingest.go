package kb

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/models"
)

// harvestKeys are the merged-page fields that carry readable text, in
// the order they should appear in the flattened output. Layout fields
// such as coordinates, fonts, and sheet names are skipped.
var harvestKeys = []string{"text", "blocks", "lines", "spans", "rows", "content"}

// Ingestor writes a merged document into the vector index.
type Ingestor struct {
	Chunker  Chunker
	Embedder Embedder
	Index    *Index
}

// IngestMerged flattens, chunks, embeds, and indexes one merged
// document. It returns the number of chunks stored, zero when the
// document has no readable text.
func (ing Ingestor) IngestMerged(ctx context.Context, doc models.MergedDocument) (int, error) {
	text := FlattenPages(doc.Pages)
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	chunks := ing.Chunker.Chunk(text)
	vectors := make([][]float32, 0, len(chunks))
	for n, chunk := range chunks {
		vector, err := ing.Embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d of %s: %w", n, doc.DocumentID, err)
		}
		vectors = append(vectors, vector)
	}

	if err := ing.Index.Add(ctx, doc.DocumentID, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// FlattenPages extracts the readable text of merged-document pages.
// Markdown pages pass through as-is. Structured pages are walked
// recursively: text fields are collected, table rows become
// tab-separated lines, and layout metadata is dropped.
func FlattenPages(pages []any) string {
	var parts []string
	for _, page := range pages {
		if text := flattenValue(page); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func flattenValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		return flattenList(val)
	case map[string]any:
		var parts []string
		for _, key := range harvestKeys {
			child, ok := val[key]
			if !ok {
				continue
			}
			if text := flattenValue(child); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// flattenList joins a list of strings with tabs, so spreadsheet rows
// come out as one line per row. Anything else joins line by line.
func flattenList(list []any) string {
	allStrings := len(list) > 0
	for _, item := range list {
		if _, ok := item.(string); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		cells := make([]string, len(list))
		for n, item := range list {
			cells[n] = item.(string)
		}
		return strings.Join(cells, "\t")
	}

	var parts []string
	for _, item := range list {
		if text := flattenValue(item); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
