package storage

import (
	"context"
	"io"
)

// UploadInput describes one object to store.
type UploadInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Service stores chat attachments and ticket QR images. Implementations
// return a URL the object can be fetched from.
type Service interface {
	PutObject(ctx context.Context, in UploadInput) (string, error)
	DeleteObject(ctx context.Context, key string) error
}
