package ocr

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewUnsupportedEngine(t *testing.T) {
	_, err := New("unsupported-engine", Config{})
	if !errors.Is(err, ErrUnsupportedEngine) {
		t.Errorf("err = %v, want ErrUnsupportedEngine", err)
	}
}

func TestNewMissingEndpoint(t *testing.T) {
	_, err := New("easyocr", Config{})
	if err == nil {
		t.Fatal("expected an error for a missing endpoint")
	}
	if errors.Is(err, ErrUnsupportedEngine) {
		t.Errorf("missing endpoint reported as unsupported engine: %v", err)
	}
}

func TestEngineList(t *testing.T) {
	names := Engines()
	for _, want := range []string{"easyocr", "paddleocr", "trocr", "docling"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("registry is missing %q: %v", want, names)
		}
	}
}

func recognize(t *testing.T, name, reply string, image []byte) Result {
	t.Helper()
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, reply)
	}))
	defer srv.Close()

	eng, err := New(name, Config{Endpoints: map[string]string{name: srv.URL}})
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	if eng.Name() != name {
		t.Errorf("Name() = %q, want %q", eng.Name(), name)
	}
	res, err := eng.Recognize(context.Background(), image)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if gotContentType != "image/png" {
		t.Errorf("request content type = %q, want image/png", gotContentType)
	}
	if string(gotBody) != string(image) {
		t.Errorf("request body = %q, want the image bytes", gotBody)
	}
	return res
}

func TestEasyOCR(t *testing.T) {
	res := recognize(t, "easyocr",
		`[{"text":"hello","confidence":0.91},{"text":"world","confidence":0.87}]`,
		[]byte("png-bytes"))
	if res.Text != "hello world" {
		t.Errorf("text = %q, want %q", res.Text, "hello world")
	}
	if math.Abs(res.Confidence-0.89) > 1e-9 {
		t.Errorf("confidence = %g, want 0.89", res.Confidence)
	}
}

func TestPaddleOCR(t *testing.T) {
	res := recognize(t, "paddleocr",
		`{"results":[{"text":"line one","score":0.8},{"text":"line two","score":0.6}]}`,
		[]byte("png"))
	if res.Text != "line one\nline two" {
		t.Errorf("text = %q", res.Text)
	}
	if math.Abs(res.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence = %g, want 0.7", res.Confidence)
	}
}

func TestTrOCR(t *testing.T) {
	res := recognize(t, "trocr", `{"text":"handwritten note"}`, []byte("png"))
	if res.Text != "handwritten note" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %g, want 0", res.Confidence)
	}
}

func TestDocling(t *testing.T) {
	res := recognize(t, "docling", `<h1>Title</h1><p>Body text</p>`, []byte("png"))
	if !strings.Contains(res.Text, "# Title") || !strings.Contains(res.Text, "Body text") {
		t.Errorf("markdown = %q, want a heading and the body", res.Text)
	}
}

func TestRemoteEngineErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	eng, err := New("trocr", Config{Endpoints: map[string]string{"trocr": srv.URL}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := eng.Recognize(context.Background(), []byte("png")); err == nil {
		t.Error("expected an error for a 500 reply")
	}
}

func TestPostProcess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing spaces", "hello  \nworld\t", "hello\nworld"},
		{"blank run collapses", "a\n\n\n\nb", "a\n\nb"},
		{"leading and trailing blanks drop", "\n\n  \ntext\n\n", "text"},
		{"windows line endings", "a\r\nb", "a\nb"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PostProcess(tt.in); got != tt.want {
				t.Errorf("PostProcess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPageMarkdown(t *testing.T) {
	if got := PageMarkdown(2, "recognized text"); got != "## Page 2\n\nrecognized text\n" {
		t.Errorf("PageMarkdown = %q", got)
	}
}
