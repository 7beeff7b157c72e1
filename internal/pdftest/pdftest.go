// Package pdftest builds small, valid PDF files in memory so tests do not
// depend on binary fixtures.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Op places one run of text on a page.
type Op struct {
	X, Y float64
	Size float64
	Text string
}

// Page describes one page of a generated document. A zero Width/Height
// falls back to US Letter.
type Page struct {
	Width  float64
	Height float64
	Ops    []Op
}

// SinglePage builds a one-page document with text at a fixed position.
func SinglePage(text string) []byte {
	return Build(Page{Ops: []Op{{X: 72, Y: 720, Size: 12, Text: text}}})
}

// Corrupt returns bytes that start like a PDF but cannot be parsed.
func Corrupt() []byte {
	return []byte("%PDF-1.7\nthis is not a real pdf body")
}

// Build assembles a document with a computed cross-reference table. Every
// page shares one Helvetica font with uniform glyph widths, which keeps
// extracted text positions predictable.
func Build(pages ...Page) []byte {
	objects := make([]string, 0, 3+2*len(pages))

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		fontObject(),
	)

	for i, p := range pages {
		w, h := p.Width, p.Height
		if w == 0 {
			w = 612
		}
		if h == 0 {
			h = 792
		}
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			w, h, 5+2*i))
		objects = append(objects, streamObject(contentStream(p.Ops)))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)
	return buf.Bytes()
}

func fontObject() string {
	widths := strings.TrimSuffix(strings.Repeat("500 ", 95), " ")
	return fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		widths)
}

func contentStream(ops []Op) string {
	var sb strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&sb, "BT /F1 %g Tf %g %g Td (%s) Tj ET\n", op.Size, op.X, op.Y, escape(op.Text))
	}
	return sb.String()
}

func streamObject(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content)
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
