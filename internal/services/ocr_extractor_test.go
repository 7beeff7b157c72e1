package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/ocr"
)

type fakeRasterizer struct {
	image  []byte
	err    error
	gotDPI float64
}

func (r *fakeRasterizer) PageImage(_ []byte, dpi float64) ([]byte, error) {
	r.gotDPI = dpi
	return r.image, r.err
}

type fakeEngine struct {
	result ocr.Result
	err    error
	images [][]byte
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, image []byte) (ocr.Result, error) {
	e.images = append(e.images, image)
	return e.result, e.err
}

func ocrFixture(engine ocr.Engine, rasterizer ocr.Rasterizer) (*blob.Memory, *OCRExtractorFunction) {
	store := blob.NewMemory()
	fn := NewOCRExtractor(store, engine, rasterizer, OCRExtractorConfig{
		Bucket:         "pipeline",
		ScanPDFPrefix:  "pdf-scan-pages/",
		TextPagePrefix: "text-pages/",
		DPI:            150,
	})
	return store, fn
}

func TestOCRExtractorWritesMarkdown(t *testing.T) {
	ctx := context.Background()
	rasterizer := &fakeRasterizer{image: []byte("png bytes")}
	engine := &fakeEngine{result: ocr.Result{Text: "INVOICE 42\r\n\r\n\r\nTotal: 17.50", Confidence: 0.93}}
	store, fn := ocrFixture(engine, rasterizer)
	store.Put(ctx, "pipeline", "pdf-scan-pages/doc-1/page_002.pdf", []byte("pdf bytes"), "application/pdf")

	resp := fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-scan-pages/doc-1/page_002.pdf"}))
	if resp.StatusCode != 200 || resp.Body.Message != "OCR extractor executed" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if rasterizer.gotDPI != 150 {
		t.Errorf("rasterized at %v dpi, want 150", rasterizer.gotDPI)
	}
	if len(engine.images) != 1 || !bytes.Equal(engine.images[0], []byte("png bytes")) {
		t.Errorf("engine received %d images", len(engine.images))
	}

	payload, err := store.Get(ctx, "pipeline", "text-pages/doc-1/page_002.md")
	if err != nil {
		t.Fatalf("page output missing: %v", err)
	}
	// The heading carries the page index from the object key, and the
	// text is whitespace-normalized.
	want := "## Page 2\n\nINVOICE 42\n\nTotal: 17.50\n"
	if string(payload) != want {
		t.Errorf("page output = %q, want %q", payload, want)
	}
	if ct := store.ContentType("pipeline", "text-pages/doc-1/page_002.md"); ct != "text/markdown" {
		t.Errorf("content type = %q", ct)
	}
}

func TestOCRExtractorSkipsOnEngineFailure(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{err: errors.New("model overloaded")}
	store, fn := ocrFixture(engine, &fakeRasterizer{image: []byte("png")})
	store.Put(ctx, "pipeline", "pdf-scan-pages/doc-2/page_001.pdf", []byte("pdf"), "application/pdf")

	resp := fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-scan-pages/doc-2/page_001.pdf"}))
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	keys, err := store.List(ctx, "pipeline", "text-pages/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("failed recognition produced output: %v", keys)
	}
}

func TestOCRExtractorSkipsOnRasterFailure(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{result: ocr.Result{Text: "unused"}}
	store, fn := ocrFixture(engine, &fakeRasterizer{err: errors.New("bad pdf")})
	store.Put(ctx, "pipeline", "pdf-scan-pages/doc-3/page_001.pdf", []byte("pdf"), "application/pdf")

	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-scan-pages/doc-3/page_001.pdf"}))

	if len(engine.images) != 0 {
		t.Error("engine invoked after rasterization failed")
	}
	keys, err := store.List(ctx, "pipeline", "text-pages/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("failed rasterization produced output: %v", keys)
	}
}

func TestOCRExtractorSkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{result: ocr.Result{Text: "unused"}}
	store, fn := ocrFixture(engine, &fakeRasterizer{image: []byte("png")})
	store.Put(ctx, "pipeline", "pdf-text-pages/doc-4/page_001.pdf", []byte("pdf"), "application/pdf")

	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-text-pages/doc-4/page_001.pdf"}))

	if len(engine.images) != 0 {
		t.Error("engine invoked for out-of-scope object")
	}
}
