package classify

import (
	"testing"

	"github.com/pagemill/pagemill/internal/pdftest"
)

func TestPageNativeText(t *testing.T) {
	cls, err := Page(pdftest.SinglePage("Invoice total: 412.50"))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if cls != NativeText {
		t.Errorf("class = %q, want %q", cls, NativeText)
	}
}

func TestPageWhitespaceOnlyIsScanned(t *testing.T) {
	cls, err := Page(pdftest.SinglePage("   "))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if cls != Scanned {
		t.Errorf("class = %q, want %q", cls, Scanned)
	}
}

func TestPageEmptyContentIsScanned(t *testing.T) {
	cls, err := Page(pdftest.Build(pdftest.Page{}))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if cls != Scanned {
		t.Errorf("class = %q, want %q", cls, Scanned)
	}
}

func TestPageCorruptFallsBackToScanned(t *testing.T) {
	cls, err := Page(pdftest.Corrupt())
	if err == nil {
		t.Error("expected a parse error for corrupt input")
	}
	if cls != Scanned {
		t.Errorf("class = %q, want %q", cls, Scanned)
	}
}

func TestPageIsDeterministic(t *testing.T) {
	data := pdftest.SinglePage("same bytes, same label")
	first, _ := Page(data)
	for i := 0; i < 3; i++ {
		got, _ := Page(data)
		if got != first {
			t.Fatalf("run %d classified %q, first run %q", i, got, first)
		}
	}
}
