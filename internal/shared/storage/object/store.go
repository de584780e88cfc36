package object

import (
	"context"
	"errors"
)

// ErrNotFound indicates no object exists at the key.
var ErrNotFound = errors.New("object not found")

// Store archives small JSON documents, keyed by caller-chosen paths. The API
// server uses it to keep full analysis state out of the relational rows.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
