// Package office extracts page content from Office Open XML documents.
// Word documents become one synthetic page of paragraph blocks,
// presentations one page per slide, workbooks one page per sheet.
package office

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat reports a file extension outside docx, pptx, xlsx.
var ErrUnsupportedFormat = errors.New("unsupported office format")

// Page is one extracted page unit with its 1-based index.
type Page struct {
	Index   int
	Content any
}

// Paragraph is one docx paragraph with its named style.
type Paragraph struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// DocPage is the single synthetic page of a word-processing document.
type DocPage struct {
	Blocks []Paragraph `json:"blocks"`
}

// SlidePage is the text of one presentation slide, paragraphs joined by
// newlines.
type SlidePage struct {
	Slide int    `json:"slide"`
	Text  string `json:"text"`
}

// SheetPage is the cell grid of one workbook sheet. The grid is
// rectangular, absent cells read as empty strings.
type SheetPage struct {
	Sheet string     `json:"sheet"`
	Rows  [][]string `json:"rows"`
}

// Extract converts an office document into ordered page units. ext may
// carry a leading dot and any case. A document that yields no pages at
// all is treated as malformed.
func Extract(data []byte, ext string) (docType string, pages []Page, err error) {
	docType = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch docType {
	case "docx":
		pages, err = extractDocx(data)
	case "pptx":
		pages, err = extractPptx(data)
	case "xlsx":
		pages, err = extractXlsx(data)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", nil, err
	}
	if len(pages) == 0 {
		return "", nil, fmt.Errorf("%s document has no content pages", docType)
	}
	return docType, pages, nil
}

func extractDocx(data []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}
	raw, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	var doc struct {
		Body struct {
			Paragraphs []struct {
				Props struct {
					Style struct {
						Val string `xml:"val,attr"`
					} `xml:"pStyle"`
				} `xml:"pPr"`
				Runs []struct {
					Texts []string `xml:"t"`
				} `xml:"r"`
			} `xml:"p"`
		} `xml:"body"`
	}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse word/document.xml: %w", err)
	}

	blocks := make([]Paragraph, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				sb.WriteString(t)
			}
		}
		blocks = append(blocks, Paragraph{Text: sb.String(), Style: p.Props.Style.Val})
	}
	return []Page{{Index: 1, Content: DocPage{Blocks: blocks}}}, nil
}

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func extractPptx(data []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx archive: %w", err)
	}

	type slideFile struct {
		number int
		file   *zip.File
	}
	var slides []slideFile
	for _, f := range zr.File {
		m := slidePattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideFile{number: n, file: f})
	}
	// Archive entry order is arbitrary, slide10 must follow slide9.
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	pages := make([]Page, 0, len(slides))
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.file.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.file.Name, err)
		}
		text, err := slideText(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.file.Name, err)
		}
		pages = append(pages, Page{Index: i + 1, Content: SlidePage{Slide: i + 1, Text: text}})
	}
	return pages, nil
}

// slideText flattens one slide's drawing XML: text runs concatenate within
// a paragraph, paragraphs join with newlines, empty paragraphs drop out.
func slideText(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var paragraphs []string
	var cur strings.Builder
	inParagraph := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				cur.Reset()
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return "", err
				}
				cur.WriteString(s)
			}
		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				if text := cur.String(); strings.TrimSpace(text) != "" {
					paragraphs = append(paragraphs, text)
				}
				inParagraph = false
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

func extractXlsx(data []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx workbook: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		pages = append(pages, Page{Index: i + 1, Content: SheetPage{Sheet: sheet, Rows: padRows(rows)}})
	}
	return pages, nil
}

// padRows squares the grid: the reader trims trailing empty cells, so
// short rows get cells appended up to the widest row.
func padRows(rows [][]string) [][]string {
	if rows == nil {
		return [][]string{}
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
