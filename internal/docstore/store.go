// Package docstore is a small document database abstraction: JSON documents
// addressed by slash-separated paths, grouped into collections, with
// equality queries and a change feed.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned by Update and Delete when the document is absent.
var ErrNotFound = errors.New("document not found")

// ErrInvalidPath is returned for paths that do not name a document.
var ErrInvalidPath = errors.New("invalid document path")

// Data is a document body.
type Data = map[string]any

// Doc is a stored document.
type Doc struct {
	Path      string    `json:"path"`
	Data      Data      `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ID returns the last path segment.
func (d Doc) ID() string {
	_, id, _ := Split(d.Path)
	return id
}

// Store is the persistence interface consumed by the account, playbook and
// campaign services. Writes are atomic per document; Commit is atomic across
// the documents in a batch.
type Store interface {
	Get(ctx context.Context, q Query) ([]Doc, error)
	GetDoc(ctx context.Context, path string) (Doc, bool, error)
	Set(ctx context.Context, path string, data Data) error
	Update(ctx context.Context, path string, patch Data) error
	Delete(ctx context.Context, path string) error
	Commit(ctx context.Context, b *Batch) error

	// OnChange calls fn with the query result now and again after every
	// change to the queried collection, until the returned func is called or
	// ctx is cancelled.
	OnChange(ctx context.Context, q Query, fn func([]Doc)) (func(), error)
}

// NewID returns a new sortable document id.
func NewID() string {
	return ulid.Make().String()
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the collection and id of a document path. Document paths
// have an even number of non-empty segments.
func Split(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}
