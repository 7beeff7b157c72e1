// Package classify decides whether a PDF page carries a native text layer
// or needs OCR.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Class labels a page for downstream extraction.
type Class string

const (
	// NativeText marks pages whose text layer can be read directly.
	NativeText Class = "has_native_text"
	// Scanned marks pages with no usable text layer. They go through OCR.
	Scanned Class = "scanned"
)

// Page classifies a single-page PDF by probing its text layer. A page
// whose text is empty or whitespace-only counts as scanned. Malformed
// input also classifies as Scanned, with the parse error returned so the
// caller can log the fallback; an unreadable page is still routed to OCR
// rather than stalling the document.
func Page(data []byte) (Class, error) {
	text, err := pageText(data)
	if err != nil {
		return Scanned, err
	}
	if strings.TrimSpace(text) == "" {
		return Scanned, nil
	}
	return NativeText, nil
}

func pageText(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf page: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf page: %w", err)
	}
	if reader.NumPage() < 1 {
		return "", errors.New("pdf page count is zero")
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", errors.New("pdf page tree is empty")
	}
	return page.GetPlainText(nil)
}
