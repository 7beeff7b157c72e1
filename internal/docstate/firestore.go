package docstate

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/pagemill/pagemill/internal/models"
)

// Firestore is the production Registry, one Firestore document per
// pipeline document ID.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore creates a registry in the given project and collection.
func NewFirestore(ctx context.Context, projectID, collection string) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &Firestore{client: client, collection: collection}, nil
}

func (f *Firestore) Put(ctx context.Context, doc models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = time.Now().UTC()
	_, err := f.client.Collection(f.collection).Doc(doc.DocumentID).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.DocumentID, err)
	}
	return nil
}

func (f *Firestore) SetSplitting(ctx context.Context, documentID string, pageCount int) error {
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "status", Value: StatusSplitting},
		{Path: "pageCount", Value: pageCount},
	})
}

func (f *Firestore) SetStatus(ctx context.Context, documentID, status string) error {
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "status", Value: status},
	})
}

func (f *Firestore) MarkFailed(ctx context.Context, documentID, detail string) error {
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "status", Value: StatusFailed},
		{Path: "errorDetails", Value: detail},
	})
}

func (f *Firestore) update(ctx context.Context, documentID string, updates []firestore.Update) error {
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})
	_, err := f.client.Collection(f.collection).Doc(documentID).Update(ctx, updates)
	if err != nil {
		return fmt.Errorf("update document %s: %w", documentID, err)
	}
	return nil
}

func (f *Firestore) FindByHash(ctx context.Context, fileHash string) ([]string, error) {
	iter := f.client.Collection(f.collection).Where("fileHash", "==", fileHash).Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query by hash: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

// Close releases the underlying client.
func (f *Firestore) Close() error {
	return f.client.Close()
}
