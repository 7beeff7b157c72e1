package kb

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/internal/models"
)

// NoContextSummary is returned when retrieval finds nothing close enough
// to the question. The summarizer is not invoked in that case.
const NoContextSummary = "No relevant context found in the knowledge base."

const summaryPromptFormat = "Answer the question using only the provided context. " +
	"If the context does not contain the answer, say so.\n\n" +
	"Context:\n%s\n\nQuestion: %s"

// Query answers a question from the knowledge base: the question is
// embedded, the closest chunks are retrieved, and the summarizer
// condenses them into an answer.
type Query struct {
	Embedder      Embedder
	Index         *Index
	Summarizer    llm.Backend
	TopK          int     // zero means DefaultTopK
	MinSimilarity float64 // zero means DefaultMinSimilarity, negative means no floor
}

// Run executes a knowledge base query.
func (q Query) Run(ctx context.Context, question string) (*models.KBQueryResponse, error) {
	vector, err := q.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	matches, err := q.Index.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	floor := q.MinSimilarity
	if floor == 0 {
		floor = DefaultMinSimilarity
	}
	resp := &models.KBQueryResponse{Query: question, Matches: []models.KBMatch{}}
	var texts []string
	for _, m := range matches {
		if m.Similarity < floor {
			continue
		}
		resp.Matches = append(resp.Matches, models.KBMatch{
			DocumentID: m.DocumentID,
			Text:       m.Text,
			Score:      m.Similarity,
		})
		texts = append(texts, m.Text)
	}

	if len(texts) == 0 {
		resp.Summary = NoContextSummary
		return resp, nil
	}

	prompt := fmt.Sprintf(summaryPromptFormat, strings.Join(texts, " "), question)
	summary, err := q.Summarizer.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize matches: %w", err)
	}
	resp.Summary = summary
	return resp, nil
}
