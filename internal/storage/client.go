package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrStoreUnavailable indicates the store could not be reached or refused the request
	ErrStoreUnavailable = errors.New("object store unavailable")
	// ErrBucketMissing indicates the destination bucket does not exist
	ErrBucketMissing = errors.New("bucket does not exist")
)

// Client defines the interface for S3-compatible storage operations
type Client interface {
	// Bucket operations
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error

	// Object operations
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts PutOptions) error
	ListObjects(ctx context.Context, bucket, prefix string) (<-chan ObjectInfo, <-chan error)

	// Version operations, used by the cleanup command
	ListObjectVersions(ctx context.Context, bucket string) (<-chan VersionInfo, <-chan error)
	RemoveObjectVersion(ctx context.Context, bucket, key, versionID string) error
}

// ObjectInfo contains object metadata
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// VersionInfo describes one object version or delete marker
type VersionInfo struct {
	Key            string
	VersionID      string
	Size           int64
	IsDeleteMarker bool
	LastModified   time.Time
}

// PutOptions contains options for put operations
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// PartSize bounds the in-memory buffer for unknown-length uploads
	PartSize int64
}

// Config contains client configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}
