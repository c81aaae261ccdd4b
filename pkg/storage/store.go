// Package storage persists fitted model artifacts in object stores.
//
// ModelStore encodes an artifact as a versioned blob and writes it to an
// ObjectStore addressed by a Locator. S3Store talks to any S3-compatible
// endpoint, RedisStore keeps blobs in Redis and MemoryStore keeps them in
// process.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/HatiCode/ticketcast/pkg/models"
)

// DefaultKey is the object key models are saved under by default.
const DefaultKey = "models/sarimax_model.joblib"

// Locator addresses one object in an object store together with the
// credentials needed to reach it. It is owned by the caller.
type Locator struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Key       string
}

// String returns "bucket/key"; credentials are never included.
func (l Locator) String() string {
	return l.Bucket + "/" + l.Key
}

func (l Locator) validate() error {
	if l.Bucket == "" {
		return errors.New("bucket is required")
	}
	if l.Key == "" {
		return errors.New("object key is required")
	}
	return nil
}

// ObjectStore reads and writes whole objects. Implementations build their
// client from the locator on every call and make a single attempt.
type ObjectStore interface {
	Put(ctx context.Context, loc Locator, data []byte) error
	Get(ctx context.Context, loc Locator) ([]byte, error)
}

// ModelStore saves and loads model artifacts through an ObjectStore.
//
// Saves to the same locator are last-writer-wins; nothing is locked.
type ModelStore struct {
	Objects ObjectStore
}

// NewModelStore creates a ModelStore backed by objects.
func NewModelStore(objects ObjectStore) *ModelStore {
	return &ModelStore{Objects: objects}
}

// Save encodes a and writes it to loc, replacing any existing object.
// Saving the same artifact twice produces the same stored bytes.
func (s *ModelStore) Save(ctx context.Context, a *models.Artifact, loc Locator) error {
	if err := loc.validate(); err != nil {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}

	data, err := Encode(a)
	if err != nil {
		return err
	}

	return s.Objects.Put(ctx, loc, data)
}

// Load reads the object at loc and decodes it into an artifact.
func (s *ModelStore) Load(ctx context.Context, loc Locator) (*models.Artifact, error) {
	if err := loc.validate(); err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}

	data, err := s.Objects.Get(ctx, loc)
	if err != nil {
		return nil, err
	}

	a, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", loc, err)
	}
	return a, nil
}
