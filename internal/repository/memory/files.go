package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyapp/soy-backend/internal/repository"
)

// Files is an in-memory object store.
type Files struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

func NewFiles(bucket string) *Files {
	return &Files{bucket: bucket, objects: make(map[string][]byte)}
}

var _ repository.FileStorage = (*Files)(nil)

func (f *Files) Download(_ context.Context, path string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", path, repository.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (f *Files) Upload(_ context.Context, path, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *Files) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[path]; !ok {
		return fmt.Errorf("object %s: %w", path, repository.ErrNotFound)
	}
	delete(f.objects, path)
	return nil
}

func (f *Files) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var names []string
	for name := range f.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *Files) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", f.bucket, path)
}

// Len reports how many objects are stored.
func (f *Files) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.objects)
}
