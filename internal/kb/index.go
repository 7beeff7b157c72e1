package kb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// Retrieval defaults, overridable through configuration.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.7

	collectionName = "document-chunks"
)

// Index is a cosine-similarity vector store over document chunks. With an
// empty path it lives in memory, otherwise chunks persist on disk and
// survive restarts.
type Index struct {
	collection *chromem.Collection
}

// Match is one retrieved chunk.
type Match struct {
	ID         string
	DocumentID string
	Text       string
	Similarity float64
}

// NewIndex opens the vector store at path, creating it if needed.
func NewIndex(path string) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
	}
	collection, err := db.GetOrCreateCollection(collectionName, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}
	return &Index{collection: collection}, nil
}

// Add stores the chunks of one document together with their vectors.
// Chunk IDs encode the document ID and chunk ordinal, so re-ingesting a
// document overwrites its previous chunks instead of duplicating them.
func (i *Index) Add(ctx context.Context, documentID string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("have %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for n := range chunks {
		ids[n] = fmt.Sprintf("%s-%04d", documentID, n)
		metadatas[n] = map[string]string{
			"documentId": documentID,
			"chunk":      strconv.Itoa(n),
		}
	}
	if err := i.collection.Add(ctx, ids, vectors, metadatas, chunks); err != nil {
		return fmt.Errorf("failed to add chunks for %s: %w", documentID, err)
	}
	return nil
}

// Search returns the chunks closest to vector, best first, at most topK.
// An empty index yields no matches.
func (i *Index) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			ID:         r.ID,
			DocumentID: r.Metadata["documentId"],
			Text:       r.Content,
			Similarity: float64(r.Similarity),
		})
	}
	return matches, nil
}

// Count reports how many chunks the index holds.
func (i *Index) Count() int {
	return i.collection.Count()
}
