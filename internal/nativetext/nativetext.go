// Package nativetext extracts the embedded text layer of a PDF page into a
// layout-aware structure of blocks, lines, and spans.
package nativetext

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ledongthuc/pdf"
)

// Span is a run of text in one font and size, anchored at its left edge.
type Span struct {
	Text string  `json:"text"`
	Font string  `json:"font,omitempty"`
	Size float64 `json:"size"`
	X    float64 `json:"x"`
}

// Line is one baseline of spans, ordered left to right.
type Line struct {
	Y     float64 `json:"y"`
	Spans []Span  `json:"spans"`
}

// Block is a group of vertically adjacent lines, ordered top to bottom.
type Block struct {
	Lines []Line `json:"lines"`
}

// Page is the extracted content of one PDF page.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Blocks []Block `json:"blocks"`
}

const (
	// lineTolerance absorbs baseline jitter when grouping glyphs into lines.
	lineTolerance = 2.0
	// wordGapFactor times the font size is the horizontal gap read as a
	// missing space between words.
	wordGapFactor = 0.3
	// spanGapFactor times the font size is the horizontal gap that starts
	// a new span, as between table columns.
	spanGapFactor = 3.0
	// blockGapFactor times the font size is the vertical gap that starts
	// a new block.
	blockGapFactor = 2.0
)

// Extract parses a single-page PDF and returns its text layer grouped into
// blocks, lines, and spans. A page without any text yields a Page with no
// blocks.
func Extract(data []byte) (page *Page, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("parse pdf page: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf page: %w", err)
	}
	if reader.NumPage() < 1 {
		return nil, errors.New("pdf page count is zero")
	}
	p := reader.Page(1)
	if p.V.IsNull() {
		return nil, errors.New("pdf page tree is empty")
	}

	width, height := mediaBox(p.V)
	page = &Page{Width: width, Height: height}
	content := p.Content()
	if len(content.Text) == 0 {
		return page, nil
	}
	page.Blocks = groupBlocks(groupLines(content.Text))
	return page, nil
}

// mediaBox resolves the page size, following Parent links because the
// MediaBox entry is inheritable. Unresolvable sizes fall back to US Letter.
func mediaBox(page pdf.Value) (width, height float64) {
	v := page
	for depth := 0; depth < 16 && !v.IsNull(); depth++ {
		if mb := v.Key("MediaBox"); mb.Len() == 4 {
			width = mb.Index(2).Float64() - mb.Index(0).Float64()
			height = mb.Index(3).Float64() - mb.Index(1).Float64()
			if width > 0 && height > 0 {
				return width, height
			}
		}
		v = v.Key("Parent")
	}
	return 612, 792
}

func groupLines(texts []pdf.Text) []Line {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []Line
	var group []pdf.Text
	flush := func() {
		if len(group) == 0 {
			return
		}
		y := group[0].Y
		sort.SliceStable(group, func(i, j int) bool { return group[i].X < group[j].X })
		lines = append(lines, Line{Y: y, Spans: buildSpans(group)})
		group = nil
	}
	for _, t := range sorted {
		if len(group) > 0 && group[0].Y-t.Y > lineTolerance {
			flush()
		}
		group = append(group, t)
	}
	flush()
	return lines
}

// buildSpans merges glyphs that are left-to-right adjacent. The extractor
// sees individual glyphs, so word spaces wider than wordGapFactor get
// re-inserted and column-sized gaps split the line into separate spans.
func buildSpans(glyphs []pdf.Text) []Span {
	var spans []Span
	var cur *Span
	var endX float64
	for _, g := range glyphs {
		gap := g.X - endX
		switch {
		case cur == nil || g.Font != cur.Font || g.FontSize != cur.Size || gap > spanGapFactor*g.FontSize:
			spans = append(spans, Span{Text: g.S, Font: g.Font, Size: g.FontSize, X: g.X})
			cur = &spans[len(spans)-1]
		case gap > wordGapFactor*g.FontSize:
			cur.Text += " " + g.S
		default:
			cur.Text += g.S
		}
		endX = g.X + g.W
	}
	return spans
}

func groupBlocks(lines []Line) []Block {
	var blocks []Block
	for i, line := range lines {
		if i > 0 && lines[i-1].Y-line.Y <= blockGapFactor*maxSize(lines[i-1]) {
			last := &blocks[len(blocks)-1]
			last.Lines = append(last.Lines, line)
			continue
		}
		blocks = append(blocks, Block{Lines: []Line{line}})
	}
	return blocks
}

func maxSize(l Line) float64 {
	size := 0.0
	for _, s := range l.Spans {
		if s.Size > size {
			size = s.Size
		}
	}
	if size == 0 {
		return 12
	}
	return size
}
