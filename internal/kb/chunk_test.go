package kb

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChunkWindows(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name:    "fits in one chunk",
			size:    1000,
			overlap: 100,
			text:    "hello world",
			want:    []string{"hello world"},
		},
		{
			name:    "overlapping windows",
			size:    10,
			overlap: 3,
			text:    "abcdefghijklmnopqrst",
			want:    []string{"abcdefghij", "hijklmnopq", "opqrst"},
		},
		{
			name:    "overlap at least size falls back to full steps",
			size:    4,
			overlap: 4,
			text:    "abcdefgh",
			want:    []string{"abcd", "efgh"},
		},
		{
			name:    "negative overlap means none",
			size:    4,
			overlap: -1,
			text:    "abcdefgh",
			want:    []string{"abcd", "efgh"},
		},
		{
			name:    "empty input",
			size:    10,
			overlap: 2,
			text:    "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chunker{Size: tt.size, Overlap: tt.overlap}
			got := c.Chunk(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() returned %d chunks %q, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkDefaults(t *testing.T) {
	text := strings.Repeat("a", 1500)
	got := Chunker{}.Chunk(text)
	if len(got) != 2 {
		t.Fatalf("Chunk() returned %d chunks, want 2", len(got))
	}
	if len(got[0]) != DefaultChunkSize {
		t.Errorf("first chunk has %d runes, want %d", len(got[0]), DefaultChunkSize)
	}
	// Second window starts at size-overlap, so it covers the tail.
	if len(got[1]) != 1500-(DefaultChunkSize-DefaultChunkOverlap) {
		t.Errorf("second chunk has %d runes, want %d", len(got[1]), 1500-(DefaultChunkSize-DefaultChunkOverlap))
	}
}

func TestChunkSplitsAtHeadings(t *testing.T) {
	text := "intro\n\n# One\n\nalpha\n\n# Two\n\nbeta\n"
	got := Chunker{Size: 1000}.Chunk(text)
	if len(got) != 3 {
		t.Fatalf("Chunk() returned %d chunks %q, want 3", len(got), got)
	}
	if got[0] != "intro\n\n" {
		t.Errorf("preamble chunk = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "# One") || !strings.Contains(got[1], "alpha") {
		t.Errorf("first section chunk = %q", got[1])
	}
	if !strings.HasPrefix(got[2], "# Two") || !strings.Contains(got[2], "beta") {
		t.Errorf("second section chunk = %q", got[2])
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Errorf("sections do not reassemble the input:\n%q", joined)
	}
}

func TestChunkPageHeadings(t *testing.T) {
	text := "## Page 1\n\nalpha\n\n## Page 2\n\nbeta\n"
	got := Chunker{Size: 1000}.Chunk(text)
	if len(got) != 2 {
		t.Fatalf("Chunk() returned %d chunks %q, want 2", len(got), got)
	}
	if !strings.HasPrefix(got[0], "## Page 1") {
		t.Errorf("first chunk = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "## Page 2") {
		t.Errorf("second chunk = %q", got[1])
	}
}

func TestChunkSkipsBlankSections(t *testing.T) {
	if got := Chunker{}.Chunk("  \n\t\n"); len(got) != 0 {
		t.Fatalf("Chunk() returned %q for blank input", got)
	}
}

func TestFlattenPages(t *testing.T) {
	pagesJSON := `[
		{"width":612,"height":792,"blocks":[{"lines":[{"y":720,"spans":[{"text":"Hello World","font":"Helvetica","size":12,"x":72}]},{"y":706,"spans":[{"text":"second line","size":12,"x":72}]}]}]},
		"## Page 2\n\nscanned text",
		{"sheet":"Inventory","rows":[["name","qty"],["bolts",""]]}
	]`
	var pages []any
	if err := json.Unmarshal([]byte(pagesJSON), &pages); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	got := FlattenPages(pages)

	want := "Hello World\nsecond line\n\n## Page 2\n\nscanned text\n\nname\tqty\nbolts\t"
	if got != want {
		t.Errorf("FlattenPages() =\n%q\nwant\n%q", got, want)
	}
}

func TestFlattenPagesDropsLayoutOnly(t *testing.T) {
	pages := []any{
		map[string]any{"width": 612.0, "height": 792.0},
		map[string]any{"sheet": "Empty"},
	}
	if got := FlattenPages(pages); got != "" {
		t.Errorf("FlattenPages() = %q, want empty", got)
	}
}
