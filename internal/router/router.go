// Package router picks a language-model backend for a prompt. Strategies
// run in a cascade: each may decide or abstain, and the first decision
// wins.
package router

import (
	"strings"

	"github.com/pagemill/pagemill/internal/llm"
)

// DefaultComplexityThreshold is the word count at which a prompt counts
// as complex.
const DefaultComplexityThreshold = 20

// Decision names the backend chosen by a strategy.
type Decision struct {
	Backend  llm.Backend
	RoutedBy string
}

// Router proposes a backend for a prompt. A nil decision means the
// strategy abstains and the next router in the chain runs.
type Router interface {
	TryRoute(prompt string) *Decision
}

// Heuristic routes on word count: prompts at or above Threshold words go
// to the strong backend, shorter ones to the light backend.
type Heuristic struct {
	Threshold int // zero means DefaultComplexityThreshold
	Strong    llm.Backend
	Light     llm.Backend
}

func (h Heuristic) TryRoute(prompt string) *Decision {
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultComplexityThreshold
	}
	if len(strings.Fields(prompt)) >= threshold {
		return &Decision{Backend: h.Strong, RoutedBy: "heuristic"}
	}
	return &Decision{Backend: h.Light, RoutedBy: "heuristic"}
}

// Predictive is the model-driven strategy. It abstains until a trained
// model is wired in, letting the rest of the cascade decide.
type Predictive struct{}

func (Predictive) TryRoute(string) *Decision { return nil }

// Generative is the final fallback and always chooses the strong backend.
type Generative struct {
	Strong llm.Backend
}

func (g Generative) TryRoute(string) *Decision {
	return &Decision{Backend: g.Strong, RoutedBy: "generative"}
}

// Cascade runs routers in order and returns the first decision.
type Cascade []Router

func (c Cascade) TryRoute(prompt string) *Decision {
	for _, r := range c {
		if d := r.TryRoute(prompt); d != nil {
			return d
		}
	}
	return nil
}
