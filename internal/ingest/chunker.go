// Package ingest accepts pre-extracted document text from ingestion
// collaborators, splits it into chunks, embeds them, and stores the result.
package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/verticelabs/acervo/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 256
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 8
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into DocumentChunks with overlapping windows. Position
// follows the chunk's ordinal place in the document.
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var chunks []*models.DocumentChunk
	position := 0
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			DocumentID: docID,
			Content:    strings.Join(words[i:end], " "),
			Position:   position,
		})
		position++
		if end >= len(words) {
			break
		}
	}
	return chunks
}
