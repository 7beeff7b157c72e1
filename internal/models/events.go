package models

// StorageEvent identifies one object that changed in the pipeline bucket.
type StorageEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// StorageEventBatch is the batched notification shape delivered to the
// storage-triggered stages. Each record is handled independently, so one
// bad object never aborts its siblings.
type StorageEventBatch struct {
	Records []StorageEvent `json:"records"`
}

// Batch wraps a single event into a one-record batch.
func Batch(events ...StorageEvent) *StorageEventBatch {
	return &StorageEventBatch{Records: events}
}
