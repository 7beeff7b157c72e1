package models

// Manifest is written once per document, after every page object exists.
// Its arrival signals that the document is fully split.
type Manifest struct {
	DocumentID string `json:"documentId"`
	Pages      int    `json:"pages"`
	Type       string `json:"type,omitempty"`
}

// DocType returns the manifest's document type. Manifests written by the
// PDF splitter omit the field, so the zero value means "pdf".
func (m Manifest) DocType() string {
	if m.Type == "" {
		return "pdf"
	}
	return m.Type
}

// MergedDocument is the final combined output for one document.
type MergedDocument struct {
	DocumentID string `json:"documentId"`
	Type       string `json:"type"`
	PageCount  int    `json:"pageCount"`
	Pages      []any  `json:"pages"`
}
