package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped when the object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is wrapped when the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is wrapped when the credentials are rejected.
	ErrAccessDenied = errors.New("access denied")

	// ErrIncompatibleVersion is wrapped by SerializationError when a blob
	// was written by a different codec version.
	ErrIncompatibleVersion = errors.New("incompatible artifact version")
)

// StorageError reports a failed object store operation.
type StorageError struct {
	Op     string // "put" or "get"
	Bucket string
	Key    string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SerializationError reports an artifact that could not be encoded or a blob
// that could not be decoded.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err == nil {
		return "serialization: " + e.Reason
	}
	return fmt.Sprintf("serialization: %s: %v", e.Reason, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
