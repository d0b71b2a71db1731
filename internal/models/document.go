// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document represents an institutional artifact (regulation, minutes, agenda,
// resolution) stored in the corpus. Checksum is the SHA-256 of the extracted
// text and is unique across documents; re-ingesting identical content is a no-op.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Type      DocType   `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Number    string    `json:"number,omitempty" db:"number"`
	Date      string    `json:"date,omitempty" db:"date"`
	Council   string    `json:"council,omitempty" db:"council"`
	OwnerID   string    `json:"owner_id,omitempty" db:"owner_id"`
	IsGlobal  bool      `json:"is_global" db:"is_global"`
	Checksum  string    `json:"checksum" db:"checksum"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DocumentChunk is a contiguous slice of a document's text, the unit of
// retrieval. Embedding always has exactly the store's dimensionality.
type DocumentChunk struct {
	ID         string            `json:"id" db:"id"`
	DocumentID string            `json:"document_id" db:"document_id"`
	Content    string            `json:"content" db:"content"`
	Embedding  []float32         `json:"-" db:"-"`
	Position   int               `json:"position" db:"position"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
}

// DocumentInput is the payload accepted from ingestion collaborators: a
// document's metadata plus its already-extracted plain text.
type DocumentInput struct {
	Title    string  `json:"title"`
	Type     DocType `json:"type"`
	Number   string  `json:"number,omitempty"`
	Date     string  `json:"date,omitempty"`
	Council  string  `json:"council,omitempty"`
	OwnerID  string  `json:"owner_id,omitempty"`
	IsGlobal bool    `json:"is_global"`
	Content  string  `json:"content"`
}
