package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket           string
	ContentType      string
	Size             int64
	ProgressCallback func(done, total int64)
}

// Service stores rendered documents in remote object storage.
type Service interface {
	PutObject(ctx context.Context, key string, body io.Reader, opts UploadOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// Location renders the canonical s3:// address of an object.
func Location(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
