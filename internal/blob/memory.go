package blob

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store for tests and the local runner.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte // "<bucket>/<key>" -> content
	types   map[string]string
	writes  map[string]int

	// Notify, when set, is called after every successful write with the
	// bucket and key of the new object. The local runner uses it to feed
	// synthetic object-created events back into the pipeline.
	Notify func(bucket, key string)
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		writes:  make(map[string]int),
	}
}

func ref(bucket, key string) string { return bucket + "/" + key }

func (m *Memory) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[ref(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	m.mu.Lock()
	r := ref(bucket, key)
	m.objects[r] = append([]byte(nil), data...)
	m.types[r] = contentType
	m.writes[r]++
	notify := m.Notify
	m.mu.Unlock()
	if notify != nil {
		notify(bucket, key)
	}
	return nil
}

func (m *Memory) PutIfAbsent(_ context.Context, bucket, key string, data []byte, contentType string) (bool, error) {
	m.mu.Lock()
	r := ref(bucket, key)
	if _, ok := m.objects[r]; ok {
		m.mu.Unlock()
		return false, nil
	}
	m.objects[r] = append([]byte(nil), data...)
	m.types[r] = contentType
	m.writes[r]++
	notify := m.Notify
	m.mu.Unlock()
	if notify != nil {
		notify(bucket, key)
	}
	return true, nil
}

func (m *Memory) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[ref(bucket, key)]
	return ok, nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for r := range m.objects {
		b, key, ok := strings.Cut(r, "/")
		if !ok || b != bucket {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Download(ctx context.Context, bucket, key, destPath string) error {
	data, err := m.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (m *Memory) UploadFile(ctx context.Context, bucket, key, srcPath, contentType string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", srcPath, err)
	}
	return m.Put(ctx, bucket, key, data, contentType)
}

// Writes reports how many times an object has been written. Tests use it to
// assert write-once behavior.
func (m *Memory) Writes(bucket, key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[ref(bucket, key)]
}

// ContentType returns the content type recorded for an object.
func (m *Memory) ContentType(bucket, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[ref(bucket, key)]
}
