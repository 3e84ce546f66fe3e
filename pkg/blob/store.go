package blob

import (
	"context"
	"io"
)

// Store abstracts the durable object store that holds raw attachment bytes.
type Store interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	Bucket() string
}
