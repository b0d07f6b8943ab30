package core

import (
	"context"
	"io"
)

// ObjectStore is any binary object store able to return a publicly resolvable URL for stored objects.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	Delete(ctx context.Context, key string) error
}
