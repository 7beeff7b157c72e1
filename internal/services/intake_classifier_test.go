package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/pdftest"
)

func intakeFixture() (*blob.Memory, *IntakeClassifierFunction) {
	store := blob.NewMemory()
	fn := NewIntakeClassifier(store, IntakeClassifierConfig{
		Bucket:       "pipeline",
		RawPrefix:    "raw-docs/",
		PDFRawPrefix: "pdf-raw/",
		OfficePrefix: "office-docs/",
	})
	return store, fn
}

func TestIntakeRoutesPDF(t *testing.T) {
	ctx := context.Background()
	store, fn := intakeFixture()

	source := pdftest.SinglePage("Quarterly report")
	store.Put(ctx, "pipeline", "raw-docs/report.pdf", source, "application/pdf")

	resp := fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "raw-docs/report.pdf"}))
	if resp.StatusCode != 200 || resp.Body.Message != "Intake classifier executed" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	routed, err := store.Get(ctx, "pipeline", "pdf-raw/report.pdf")
	if err != nil {
		t.Fatalf("routed copy missing: %v", err)
	}
	if !bytes.Equal(routed, source) {
		t.Error("routed copy differs from source")
	}
	if ct := store.ContentType("pipeline", "pdf-raw/report.pdf"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
}

func TestIntakeRoutesOfficeDocuments(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		wantDest string
		wantType string
	}{
		{
			name:     "spreadsheet",
			key:      "raw-docs/inventory.xlsx",
			wantDest: "office-docs/inventory.xlsx",
			wantType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
		{
			name:     "presentation uppercase extension",
			key:      "raw-docs/deck.PPTX",
			wantDest: "office-docs/deck.PPTX",
			wantType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		},
		{
			name:     "word document",
			key:      "raw-docs/contract.docx",
			wantDest: "office-docs/contract.docx",
			wantType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, fn := intakeFixture()
			store.Put(ctx, "pipeline", tt.key, []byte("zip bytes"), "")

			fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: tt.key}))

			if ok, _ := store.Exists(ctx, "pipeline", tt.wantDest); !ok {
				t.Fatalf("no copy at %s", tt.wantDest)
			}
			if ct := store.ContentType("pipeline", tt.wantDest); ct != tt.wantType {
				t.Errorf("content type = %q, want %q", ct, tt.wantType)
			}
		})
	}
}

func TestIntakeSkipsUnknownTypes(t *testing.T) {
	ctx := context.Background()
	store, fn := intakeFixture()
	store.Put(ctx, "pipeline", "raw-docs/notes.txt", []byte("plain text"), "text/plain")

	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "raw-docs/notes.txt"}))

	for _, prefix := range []string{"pdf-raw/", "office-docs/"} {
		keys, err := store.List(ctx, "pipeline", prefix)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 0 {
			t.Errorf("unexpected copies under %s: %v", prefix, keys)
		}
	}
}

func TestIntakeSkipsForeignObjects(t *testing.T) {
	ctx := context.Background()
	store, fn := intakeFixture()
	store.Put(ctx, "pipeline", "pdf-raw/already-routed.pdf", pdftest.SinglePage("x"), "application/pdf")

	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "pdf-raw/already-routed.pdf"}))

	if n := store.Writes("pipeline", "pdf-raw/already-routed.pdf"); n != 1 {
		t.Errorf("object rewritten %d times, want the original write only", n)
	}
}

func TestIntakeRoutesCorruptPDF(t *testing.T) {
	ctx := context.Background()
	store, fn := intakeFixture()
	store.Put(ctx, "pipeline", "raw-docs/broken.pdf", pdftest.Corrupt(), "application/pdf")

	// The probe fails but routing is by extension; the splitter decides
	// whether the file is usable.
	fn.Process(ctx, models.Batch(models.StorageEvent{Bucket: "pipeline", Name: "raw-docs/broken.pdf"}))

	if ok, _ := store.Exists(ctx, "pipeline", "pdf-raw/broken.pdf"); !ok {
		t.Fatal("corrupt PDF not routed to the split path")
	}
}

func TestIntakeBatchIsolation(t *testing.T) {
	ctx := context.Background()
	store, fn := intakeFixture()
	store.Put(ctx, "pipeline", "raw-docs/good.pdf", pdftest.SinglePage("fine"), "application/pdf")

	batch := models.Batch(
		models.StorageEvent{Bucket: "pipeline", Name: "raw-docs/deleted.pdf"},
		models.StorageEvent{Bucket: "pipeline", Name: "raw-docs/good.pdf"},
	)
	resp := fn.Process(ctx, batch)
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if ok, _ := store.Exists(ctx, "pipeline", "pdf-raw/good.pdf"); !ok {
		t.Fatal("good record not processed after sibling failure")
	}
}
