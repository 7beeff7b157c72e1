package models

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Object keys follow fixed shapes under each stage prefix:
//
//	pdf-pages/{documentId}/page_001.pdf
//	text-pages/{documentId}/page_001.json
//	pdf-pages/{documentId}/manifest.json
//	text-docs/{documentId}.json
//
// Page numbers are 1-based and zero-padded to three digits so that
// lexicographic listings come back in page order.

// PageKey returns the object key for one split page.
func PageKey(prefix, documentID string, page int) string {
	return fmt.Sprintf("%s%s/page_%03d.pdf", prefix, documentID, page)
}

// PageOutputKey returns the key for one extracted page. ext is "json" for
// structured output and "md" for markdown.
func PageOutputKey(prefix, documentID string, page int, ext string) string {
	return fmt.Sprintf("%s%s/page_%03d.%s", prefix, documentID, page, ext)
}

// ManifestKey returns the key of the split manifest for a document.
func ManifestKey(prefix, documentID string) string {
	return prefix + documentID + "/manifest.json"
}

// MergedDocKey returns the key of the final merged document.
func MergedDocKey(prefix, documentID string) string {
	return prefix + documentID + ".json"
}

// DocumentIDFromKey extracts the document ID from an object key: the path
// segment directly under the prefix, minus any file extension.
func DocumentIDFromKey(key, prefix string) string {
	rest := strings.TrimPrefix(key, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return strings.TrimSuffix(rest, path.Ext(rest))
}

// PageIndexFromKey extracts the 1-based page number from keys whose base
// name looks like page_001.pdf. It returns 0 for any other shape, such as
// a manifest key.
func PageIndexFromKey(key string) int {
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	num, ok := strings.CutPrefix(base, "page_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
