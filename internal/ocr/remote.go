package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

func init() {
	Register("easyocr", func(cfg Config) (Engine, error) {
		return newRemoteEngine("easyocr", cfg, parseEasyOCR)
	})
	Register("paddleocr", func(cfg Config) (Engine, error) {
		return newRemoteEngine("paddleocr", cfg, parsePaddleOCR)
	})
	Register("trocr", func(cfg Config) (Engine, error) {
		return newRemoteEngine("trocr", cfg, parseTrOCR)
	})
	Register("docling", func(cfg Config) (Engine, error) {
		return newRemoteEngine("docling", cfg, parseDocling)
	})
}

// remoteEngine posts the PNG to an HTTP recognition service and normalizes
// the reply with a per-flavor parser.
type remoteEngine struct {
	name     string
	endpoint string
	client   *http.Client
	parse    func([]byte) (Result, error)
}

func newRemoteEngine(name string, cfg Config, parse func([]byte) (Result, error)) (Engine, error) {
	endpoint := cfg.Endpoints[name]
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured for ocr engine %q", name)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &remoteEngine{name: name, endpoint: endpoint, client: client, parse: parse}, nil
}

func (e *remoteEngine) Name() string { return e.name }

func (e *remoteEngine) Recognize(ctx context.Context, image []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(image))
	if err != nil {
		return Result{}, fmt.Errorf("build %s request: %w", e.name, err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call %s: %w", e.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read %s reply: %w", e.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%s returned %s: %.200s", e.name, resp.Status, body)
	}
	out, err := e.parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s reply: %w", e.name, err)
	}
	return out, nil
}

// parseEasyOCR reads a detection list [{"text","confidence"},...]. The
// detections join with spaces, confidence is the mean.
func parseEasyOCR(body []byte) (Result, error) {
	var detections []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(body, &detections); err != nil {
		return Result{}, err
	}
	texts := make([]string, 0, len(detections))
	total := 0.0
	for _, d := range detections {
		texts = append(texts, d.Text)
		total += d.Confidence
	}
	res := Result{Text: strings.Join(texts, " ")}
	if len(detections) > 0 {
		res.Confidence = total / float64(len(detections))
	}
	return res, nil
}

// parsePaddleOCR reads {"results":[{"text","score"},...]}. Lines join
// with newlines, confidence is the mean score.
func parsePaddleOCR(body []byte) (Result, error) {
	var reply struct {
		Results []struct {
			Text  string  `json:"text"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return Result{}, err
	}
	lines := make([]string, 0, len(reply.Results))
	total := 0.0
	for _, r := range reply.Results {
		lines = append(lines, r.Text)
		total += r.Score
	}
	res := Result{Text: strings.Join(lines, "\n")}
	if len(reply.Results) > 0 {
		res.Confidence = total / float64(len(reply.Results))
	}
	return res, nil
}

// parseTrOCR reads {"text": "..."}. The service reports no confidence.
func parseTrOCR(body []byte) (Result, error) {
	var reply struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return Result{}, err
	}
	return Result{Text: reply.Text}, nil
}

// parseDocling converts the service's HTML reply to markdown.
func parseDocling(body []byte) (Result, error) {
	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return Result{}, err
	}
	return Result{Text: md}, nil
}
