package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/internal/models"
)

// DefaultMinWords is the shortest reply the sufficiency gate accepts.
const DefaultMinWords = 20

// insufficientPhrases mark replies that dodge the question.
var insufficientPhrases = []string{
	"i can't",
	"i am unable",
	"i do not know",
	"as an ai",
	"i cannot provide",
}

// Sufficient reports whether a reply passes the quality gate: no refusal
// phrase and at least minWords words.
func Sufficient(response string, minWords int) bool {
	lower := strings.ToLower(response)
	for _, phrase := range insufficientPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return len(strings.Fields(response)) >= minWords
}

// Escalator answers with the weak backend first and retries on the strong
// one when the reply fails the sufficiency gate.
type Escalator struct {
	Weak     llm.Backend
	Strong   llm.Backend
	MinWords int // zero means DefaultMinWords
}

func (e Escalator) Generate(ctx context.Context, prompt string) (*models.RouteResponse, error) {
	minWords := e.MinWords
	if minWords <= 0 {
		minWords = DefaultMinWords
	}

	weakReply, err := e.Weak.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("weak backend %s: %w", e.Weak.Name(), err)
	}
	if Sufficient(weakReply, minWords) {
		return &models.RouteResponse{
			RoutedBy:  "cascading",
			ModelUsed: e.Weak.Name(),
			Response:  weakReply,
			Trace:     []string{"Attempted weak model, response was sufficient."},
		}, nil
	}

	strongReply, err := e.Strong.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("strong backend %s: %w", e.Strong.Name(), err)
	}
	return &models.RouteResponse{
		RoutedBy:  "cascading",
		ModelUsed: e.Strong.Name(),
		Response:  strongReply,
		Trace: []string{
			"Attempted weak model, response was insufficient.",
			fmt.Sprintf("Weak model response: %.100s...", weakReply),
			"Escalated to strong model.",
		},
	}, nil
}
