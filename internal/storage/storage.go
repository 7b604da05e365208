// Package storage provides pluggable byte-storage backends behind a single
// capability interface, plus a registry that routes calls to a configured
// default backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies a backend variant. The set is closed; backend selection at
// startup and diagnostics key off these values.
type Kind string

const (
	KindLocal  Kind = "local"
	KindIPFS   Kind = "ipfs"
	KindGitHub Kind = "github"
	KindS3     Kind = "s3"
)

// Well-known metadata keys accepted by Store.
const (
	MetaFilename    = "filename"
	MetaPath        = "path"
	MetaContentType = "content_type"
	MetaMessage     = "message"
)

const DefaultContentType = "application/octet-stream"

var (
	// ErrNotFound is returned by Retrieve and Delete for unknown identifiers.
	ErrNotFound = errors.New("storage: content not found")

	// ErrImmutable is returned by Delete on backends that cannot remove
	// content. Permanent, not retryable.
	ErrImmutable = errors.New("storage: backend content is immutable")

	// ErrMissingPath is returned by path-addressed backends when the "path"
	// metadata key is absent. A caller configuration error.
	ErrMissingPath = errors.New("storage: 'path' metadata key is required")
)

// Metadata describes a stored object.
type Metadata struct {
	ID          string            `json:"id"`
	Hash        string            `json:"hash"`
	Size        int               `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
	ContentType string            `json:"content_type"`
	Extra       map[string]string `json:"extra"`
}

// Result is the outcome of a single Store call. Immutable once returned.
type Result struct {
	ID       string   `json:"id"`
	URL      string   `json:"url,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Storage is the capability contract implemented by every backend variant.
type Storage interface {
	// Store writes content and returns an identifier unique within this
	// backend's namespace. Content-addressed backends derive it from the
	// bytes; path-addressed backends require the "path" metadata key.
	Store(ctx context.Context, content []byte, metadata map[string]string) (*Result, error)

	// Retrieve returns the stored bytes, or ErrNotFound.
	Retrieve(ctx context.Context, id string) ([]byte, error)

	// Exists never fails on absence; an unknown id yields (false, nil).
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes content, or returns ErrImmutable on backends that
	// structurally cannot.
	Delete(ctx context.Context, id string) error

	// List enumerates stored objects, best-effort. Backends without cheap
	// enumeration may return an empty slice.
	List(ctx context.Context, prefix string) ([]Metadata, error)

	// Kind is constant per backend.
	Kind() Kind
}

func contentTypeOf(metadata map[string]string) string {
	if ct, ok := metadata[MetaContentType]; ok && ct != "" {
		return ct
	}
	return DefaultContentType
}

var storageLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storageLogger = l
}
