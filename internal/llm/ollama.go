package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama calls the native generate API of one or more Ollama servers.
// Each configured endpoint is the full URL to post to.
type Ollama struct {
	pool   *pool
	model  string
	client *http.Client
}

func NewOllama(endpoints []string, model string) (*Ollama, error) {
	p, err := newPool(endpoints)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &Ollama{
		pool:  p,
		model: model,
		// Generous timeout: local servers may load the model on the
		// first request.
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	endpoint := o.pool.pick()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, respBody)
	}

	var reply ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	return reply.Response, nil
}
