package models

import "time"

// Document is the per-document status record kept in Firestore. It is
// keyed by document ID so that every stage updates the same record.
type Document struct {
	DocumentID       string    `firestore:"documentId,omitempty" json:"documentId,omitempty"`
	FileHash         string    `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty" json:"originalFilename,omitempty"`
	Status           string    `firestore:"status,omitempty" json:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	DocType          string    `firestore:"docType,omitempty" json:"docType,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}
