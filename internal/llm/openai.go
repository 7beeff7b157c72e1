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

// OpenAI calls an OpenAI-compatible chat-completions endpoint, such as a
// Bedrock access gateway or vLLM. Each configured endpoint is the full URL
// to post to.
type OpenAI struct {
	pool   *pool
	model  string
	apiKey string
	client *http.Client
}

func NewOpenAI(endpoints []string, model, apiKey string) (*OpenAI, error) {
	p, err := newPool(endpoints)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &OpenAI{
		pool:   p,
		model:  model,
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

type chatCompletionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	endpoint := o.pool.pick()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion error %d: %s", resp.StatusCode, respBody)
	}

	var reply chatCompletionResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return "", fmt.Errorf("decoding chat completion response: %w", err)
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return reply.Choices[0].Message.Content, nil
}
