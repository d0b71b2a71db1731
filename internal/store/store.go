// Package store persists documents and chunks and performs permission-filtered
// similarity search.
package store

import (
	"context"
	"errors"

	"github.com/verticelabs/acervo/internal/models"
)

// ErrDimensionMismatch is returned when an embedding's length disagrees with
// the store's fixed dimensionality. The offending write or search is rejected;
// vectors are never truncated or padded.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrDuplicateDocument is returned when a document with the same content
// checksum already exists.
var ErrDuplicateDocument = errors.New("document with identical checksum already exists")

// ErrNotFound is returned when a document or chunk does not exist, or is not
// visible to the caller.
var ErrNotFound = errors.New("not found")

// SearchHit is one result of a similarity search.
type SearchHit struct {
	Chunk      *models.DocumentChunk
	Document   *models.Document
	Similarity float64
}

// Filter narrows search candidates by document metadata. Zero values match
// everything. Permission filtering is separate and always applied.
type Filter struct {
	Type    models.DocType
	Council string
	Number  string
}

// Stats summarizes the corpus.
type Stats struct {
	Documents       int64                  `json:"documents"`
	Chunks          int64                  `json:"chunks"`
	DocumentsByType map[models.DocType]int `json:"documents_by_type"`
}

// Store defines persistence and search over documents and chunks.
type Store interface {
	AddDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string, perm models.Permission) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, perm models.Permission, offset, limit int) ([]*models.Document, error)
	FindByChecksum(ctx context.Context, checksum string) (*models.Document, error)

	UpsertChunk(ctx context.Context, chunk *models.DocumentChunk) error
	BatchAddChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.DocumentChunk, error)

	Search(ctx context.Context, query []float32, k int, perm models.Permission) ([]SearchHit, error)
	SearchFiltered(ctx context.Context, query []float32, k int, perm models.Permission, f Filter) ([]SearchHit, error)

	Dimensions() int
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
