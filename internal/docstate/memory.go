package docstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagemill/pagemill/internal/models"
)

// Memory is an in-process Registry for tests and local runs.
type Memory struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]models.Document)}
}

func (m *Memory) Put(_ context.Context, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = time.Now().UTC()
	m.docs[doc.DocumentID] = doc
	return nil
}

func (m *Memory) SetSplitting(_ context.Context, documentID string, pageCount int) error {
	return m.mutate(documentID, func(d *models.Document) {
		d.Status = StatusSplitting
		d.PageCount = pageCount
	})
}

func (m *Memory) SetStatus(_ context.Context, documentID, status string) error {
	return m.mutate(documentID, func(d *models.Document) {
		d.Status = status
	})
}

func (m *Memory) MarkFailed(_ context.Context, documentID, detail string) error {
	return m.mutate(documentID, func(d *models.Document) {
		d.Status = StatusFailed
		d.ErrorDetails = detail
	})
}

func (m *Memory) mutate(documentID string, fn func(*models.Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		return fmt.Errorf("update document %s: no such record", documentID)
	}
	fn(&doc)
	doc.UpdatedAt = time.Now().UTC()
	m.docs[documentID] = doc
	return nil
}

func (m *Memory) FindByHash(_ context.Context, fileHash string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, doc := range m.docs {
		if doc.FileHash == fileHash {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get returns the stored record, for assertions in tests.
func (m *Memory) Get(documentID string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	return doc, ok
}
