package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/models"
)

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	tracker := NewTracker(store, "bucket", "pdf-pages/")

	created, err := tracker.Write(ctx, models.Manifest{DocumentID: "doc-1", Pages: 4})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !created {
		t.Error("first Write reported created = false")
	}

	m, err := tracker.Read(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.DocumentID != "doc-1" || m.Pages != 4 {
		t.Errorf("Read = %+v", m)
	}
	if m.DocType() != "pdf" {
		t.Errorf("DocType = %q, want pdf", m.DocType())
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	tracker := NewTracker(store, "bucket", "pdf-pages/")

	if _, err := tracker.Write(ctx, models.Manifest{DocumentID: "doc-1", Pages: 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	created, err := tracker.Write(ctx, models.Manifest{DocumentID: "doc-1", Pages: 9})
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if created {
		t.Error("second Write reported created = true")
	}

	m, _ := tracker.Read(ctx, "doc-1")
	if m.Pages != 4 {
		t.Errorf("page count after redelivery = %d, want the original 4", m.Pages)
	}
}

func TestReadMissing(t *testing.T) {
	tracker := NewTracker(blob.NewMemory(), "bucket", "pdf-pages/")
	_, err := tracker.Read(context.Background(), "nope")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("err = %v, want blob.ErrNotFound", err)
	}
}

func TestDocTypeRoundTrip(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(blob.NewMemory(), "bucket", "text-pages/")
	if _, err := tracker.Write(ctx, models.Manifest{DocumentID: "deck", Pages: 3, Type: "pptx"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	m, err := tracker.Read(ctx, "deck")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.DocType() != "pptx" {
		t.Errorf("DocType = %q, want pptx", m.DocType())
	}
}
