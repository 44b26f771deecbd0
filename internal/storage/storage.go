package storage

import (
	"context"
	"io"
)

// Uploader stores original question documents.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}
