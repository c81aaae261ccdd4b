package storage

import (
	"context"
	"sync"
)

// MemoryStore implements an in-memory object store.
// It is safe for concurrent use by multiple goroutines.
//
// Buckets must be created before objects can be written to them, mirroring
// S3. Stored bytes are copied on the way in and out. For anything that
// must outlive the process use S3Store or RedisStore instead.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// NewMemoryStore creates an in-memory store with the given buckets.
func NewMemoryStore(buckets ...string) *MemoryStore {
	s := &MemoryStore{buckets: make(map[string]map[string][]byte)}
	for _, b := range buckets {
		s.CreateBucket(b)
	}
	return s
}

// CreateBucket adds an empty bucket. Creating an existing bucket is a no-op.
func (s *MemoryStore) CreateBucket(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string][]byte)
	}
}

// Put stores data under loc.Key, replacing any existing object.
//
// Returns a *StorageError wrapping ErrBucketNotFound if the bucket does not
// exist, or the context error if ctx is canceled.
func (s *MemoryStore) Put(ctx context.Context, loc Locator, data []byte) error {
	select {
	case <-ctx.Done():
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: ctx.Err()}
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[loc.Bucket]
	if !ok {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: ErrBucketNotFound}
	}
	objects[loc.Key] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the object stored under loc.Key.
func (s *MemoryStore) Get(ctx context.Context, loc Locator) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: ctx.Err()}
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, ok := s.buckets[loc.Bucket]
	if !ok {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: ErrBucketNotFound}
	}
	data, ok := objects[loc.Key]
	if !ok {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: ErrNotFound}
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of objects in bucket.
// This method is primarily useful for testing.
func (s *MemoryStore) Len(bucket string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets[bucket])
}

// Delete removes an object. Returns true if an object was deleted.
func (s *MemoryStore) Delete(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		return false
	}
	_, existed := objects[key]
	delete(objects, key)
	return existed
}
