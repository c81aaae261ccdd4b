package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultRegion is used when the locator does not name one. Setting a region
// up front spares the client a bucket-location lookup.
const DefaultRegion = "us-east-1"

// s3Attempts is the per-client request budget. One attempt per operation;
// failures surface to the caller as-is.
const s3Attempts = 1

// S3Store implements ObjectStore against an S3-compatible endpoint using
// static V4 credentials from the locator.
//
// The locator's Endpoint may carry a scheme ("http://minio:9000"); without
// one TLS is used. Objects are written with a single-part PUT, which S3
// applies atomically: a failed save leaves no partial object behind.
type S3Store struct {
	// Transport overrides the HTTP transport. Nil uses minio's default.
	Transport http.RoundTripper
}

// NewS3Store creates an S3-backed object store.
func NewS3Store() *S3Store {
	return &S3Store{}
}

// NewS3StoreTLS creates an S3-backed object store whose HTTPS connections use
// tlsConfig, e.g. to trust a private CA or present a client certificate.
func NewS3StoreTLS(tlsConfig *tls.Config) *S3Store {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsConfig
	return &S3Store{Transport: tr}
}

func (s *S3Store) client(loc Locator) (*minio.Client, error) {
	host, secure, err := parseEndpoint(loc.Endpoint)
	if err != nil {
		return nil, err
	}

	region := loc.Region
	if region == "" {
		region = DefaultRegion
	}

	return minio.New(host, &minio.Options{
		Creds:      credentials.NewStaticV4(loc.AccessKey, loc.SecretKey, ""),
		Secure:     secure,
		Region:     region,
		Transport:  s.Transport,
		MaxRetries: s3Attempts,
	})
}

// parseEndpoint splits an endpoint into the host[:port] minio expects and
// whether to use TLS.
func parseEndpoint(endpoint string) (string, bool, error) {
	if endpoint == "" {
		return "", false, errors.New("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), true, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// Put uploads data to loc.Bucket/loc.Key, replacing any existing object.
func (s *S3Store) Put(ctx context.Context, loc Locator, data []byte) error {
	client, err := s.client(loc)
	if err != nil {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}

	_, err = client.PutObject(ctx, loc.Bucket, loc.Key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return &StorageError{Op: "put", Bucket: loc.Bucket, Key: loc.Key, Err: s3Error(err)}
	}
	return nil
}

// Get downloads the object at loc.Bucket/loc.Key.
func (s *S3Store) Get(ctx context.Context, loc Locator) ([]byte, error) {
	client, err := s.client(loc)
	if err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: err}
	}

	obj, err := client.GetObject(ctx, loc.Bucket, loc.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: s3Error(err)}
	}
	defer obj.Close()

	// GetObject is lazy; request errors surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &StorageError{Op: "get", Bucket: loc.Bucket, Key: loc.Key, Err: s3Error(err)}
	}
	return data, nil
}

// s3Error maps S3 error codes onto the package's sentinel errors. Anything
// else, including transport failures, is returned unchanged.
func s3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	default:
		return err
	}
}
