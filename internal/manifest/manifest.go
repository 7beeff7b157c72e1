// Package manifest tracks the split manifest that declares a document's
// expected page count.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/models"
)

// Tracker reads and writes manifests under one bucket and prefix.
type Tracker struct {
	store  blob.Store
	bucket string
	prefix string
}

func NewTracker(store blob.Store, bucket, prefix string) *Tracker {
	return &Tracker{store: store, bucket: bucket, prefix: prefix}
}

// Write stores the manifest unless one already exists for the document.
// It reports whether this call created it, so redeliveries can be logged
// instead of overwriting the page count mid-assembly.
func (t *Tracker) Write(ctx context.Context, m models.Manifest) (created bool, err error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("marshal manifest: %w", err)
	}
	key := models.ManifestKey(t.prefix, m.DocumentID)
	created, err = t.store.PutIfAbsent(ctx, t.bucket, key, data, "application/json")
	if err != nil {
		return false, fmt.Errorf("write manifest %s: %w", key, err)
	}
	return created, nil
}

// Read returns the manifest for a document. A missing manifest surfaces
// blob.ErrNotFound, which pollers treat as "still splitting", not as a
// failure.
func (t *Tracker) Read(ctx context.Context, documentID string) (models.Manifest, error) {
	key := models.ManifestKey(t.prefix, documentID)
	data, err := t.store.Get(ctx, t.bucket, key)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("read manifest %s: %w", key, err)
	}
	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Manifest{}, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return m, nil
}
