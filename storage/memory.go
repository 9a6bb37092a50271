package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Object is a stored blob in the in-memory backend.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process backend for tests and local tooling.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
	// FailPut and FailDelete inject errors for the given keys ("*" matches all).
	FailPut    map[string]error
	FailDelete map[string]error
}

func NewMemory() *Memory {
	return &Memory{objects: map[string]Object{}}
}

func failure(m map[string]error, key string) error {
	if err, ok := m[key]; ok {
		return err
	}
	return m["*"]
}

func (m *Memory) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	fail := failure(m.FailPut, key)
	m.mu.Unlock()
	if fail != nil {
		return fail
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("read body for %s: %w", key, err)
	}
	m.mu.Lock()
	m.objects[key] = Object{Data: buf.Bytes(), ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := failure(m.FailDelete, key); err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s?ttl=%d", key, int(ttl.Seconds())), nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
