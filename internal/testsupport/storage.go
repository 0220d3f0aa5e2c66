package testsupport

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MemStorage is an in-memory storage.Storage.
type MemStorage struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		Objects: make(map[string][]byte),
		Types:   make(map[string]string),
	}
}

func (m *MemStorage) Save(ctx context.Context, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[path] = data
	m.Types[path] = contentType
	return nil
}

func (m *MemStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Objects[path]; !ok {
		return errors.New("object not found")
	}
	delete(m.Objects, path)
	delete(m.Types, path)
	return nil
}

func (m *MemStorage) URL(ctx context.Context, path string) (string, error) {
	return "https://storage.test/" + path, nil
}

func (m *MemStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
