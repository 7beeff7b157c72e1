package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/nativetext"
	"github.com/pagemill/pagemill/internal/pdftest"
)

func textExtractorFixture() (*blob.Memory, *TextExtractorFunction) {
	store := blob.NewMemory()
	fn := NewTextExtractor(store, TextExtractorConfig{
		Bucket:         "pipeline",
		TextPDFPrefix:  "pdf-text-pages/",
		TextPagePrefix: "text-pages/",
	})
	return store, fn
}

func TestTextExtractorWritesPageOutput(t *testing.T) {
	ctx := context.Background()
	store, fn := textExtractorFixture()
	store.Put(ctx, "pipeline", "pdf-text-pages/doc-1/page_007.pdf", pdftest.SinglePage("Hello World"), "application/pdf")

	resp := fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-text-pages/doc-1/page_007.pdf"}))
	if resp.StatusCode != 200 || resp.Body.Message != "Text extractor executed" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The page index carries through from the source key.
	payload, err := store.Get(ctx, "pipeline", "text-pages/doc-1/page_007.json")
	if err != nil {
		t.Fatalf("page output missing: %v", err)
	}
	var page nativetext.Page
	if err := json.Unmarshal(payload, &page); err != nil {
		t.Fatalf("page output unparseable: %v", err)
	}
	if len(page.Blocks) != 1 || len(page.Blocks[0].Lines) != 1 {
		t.Fatalf("layout = %+v, want one block with one line", page.Blocks)
	}
	if got := page.Blocks[0].Lines[0].Spans[0].Text; got != "Hello World" {
		t.Errorf("span text = %q", got)
	}
	if ct := store.ContentType("pipeline", "text-pages/doc-1/page_007.json"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestTextExtractorSkipsCorruptPage(t *testing.T) {
	ctx := context.Background()
	store, fn := textExtractorFixture()
	store.Put(ctx, "pipeline", "pdf-text-pages/doc-2/page_001.pdf", pdftest.Corrupt(), "application/pdf")

	resp := fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-text-pages/doc-2/page_001.pdf"}))
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	keys, err := store.List(ctx, "pipeline", "text-pages/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("corrupt page produced output: %v", keys)
	}
}

func TestTextExtractorBatchIsolation(t *testing.T) {
	ctx := context.Background()
	store, fn := textExtractorFixture()
	store.Put(ctx, "pipeline", "pdf-text-pages/doc-3/page_001.pdf", pdftest.Corrupt(), "application/pdf")
	store.Put(ctx, "pipeline", "pdf-text-pages/doc-3/page_002.pdf", pdftest.SinglePage("page two"), "application/pdf")

	fn.Process(ctx, models.Batch(
		models.StorageEvent{Bucket: "pipeline", Name: "pdf-text-pages/doc-3/page_001.pdf"},
		models.StorageEvent{Bucket: "pipeline", Name: "pdf-text-pages/doc-3/page_002.pdf"},
	))

	if ok, _ := store.Exists(ctx, "pipeline", "text-pages/doc-3/page_001.json"); ok {
		t.Error("corrupt page produced output")
	}
	if ok, _ := store.Exists(ctx, "pipeline", "text-pages/doc-3/page_002.json"); !ok {
		t.Error("good page skipped after sibling failure")
	}
}

func TestTextExtractorSkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	store, fn := textExtractorFixture()
	store.Put(ctx, "pipeline", "pdf-scan-pages/doc-4/page_001.pdf", pdftest.SinglePage("scanned path"), "application/pdf")

	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-scan-pages/doc-4/page_001.pdf"}))

	keys, err := store.List(ctx, "pipeline", "text-pages/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("out-of-scope object processed: %v", keys)
	}
}
