// Package docstate records per-document processing status so operators can
// see where a document is without trawling logs. Status writes are
// observability, not control flow: stages log registry failures and keep
// going.
package docstate

import (
	"context"

	"github.com/pagemill/pagemill/internal/models"
)

// Processing statuses, in pipeline order.
const (
	StatusValidating = "VALIDATING"
	StatusSplitting  = "SPLITTING"
	StatusExtracting = "EXTRACTING"
	StatusComplete   = "COMPLETE"
	StatusFailed     = "FAILED"
)

// Registry stores one status record per document ID.
type Registry interface {
	// Put creates or replaces the record for doc.DocumentID.
	Put(ctx context.Context, doc models.Document) error
	// SetSplitting moves a document to SPLITTING and records its page count.
	SetSplitting(ctx context.Context, documentID string, pageCount int) error
	// SetStatus updates just the status field.
	SetStatus(ctx context.Context, documentID, status string) error
	// MarkFailed moves a document to FAILED with the failure detail.
	MarkFailed(ctx context.Context, documentID, detail string) error
	// FindByHash returns document IDs sharing a source file hash.
	FindByHash(ctx context.Context, fileHash string) ([]string, error)
}
