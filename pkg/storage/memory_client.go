package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryClient keeps objects in process memory. Used for local runs
// without a bucket and in tests.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string][]byte)}
}

func objectPath(bucket, key string) string {
	return bucket + "/" + key
}

func (c *MemoryClient) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body for %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[objectPath(bucket, key)] = data
	return nil
}

func (c *MemoryClient) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.objects[objectPath(bucket, key)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *MemoryClient) Delete(ctx context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, objectPath(bucket, key))
	return nil
}

func (c *MemoryClient) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s/%s?expires=%d", bucket, key, int64(expiration.Seconds())), nil
}

// Len returns the number of stored objects
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}
