// Package llm invokes language-model backends behind one interface, so
// routing strategies never touch per-provider wire formats.
package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

// Backend generates a completion for a prompt.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ParseEndpoints resolves an endpoint list from configuration values: the
// comma-separated plural value wins, otherwise the single value, otherwise
// nothing.
func ParseEndpoints(plural, single string) []string {
	var endpoints []string
	for _, part := range strings.Split(plural, ",") {
		if p := strings.TrimSpace(part); p != "" {
			endpoints = append(endpoints, p)
		}
	}
	if len(endpoints) > 0 {
		return endpoints
	}
	if single != "" {
		return []string{single}
	}
	return nil
}

// pool hands out endpoints round-robin across calls.
type pool struct {
	endpoints []string
	next      atomic.Uint64
}

func newPool(endpoints []string) (*pool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("no endpoints configured")
	}
	return &pool{endpoints: endpoints}, nil
}

func (p *pool) pick() string {
	n := p.next.Add(1) - 1
	return p.endpoints[n%uint64(len(p.endpoints))]
}
