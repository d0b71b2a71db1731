package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/embedding"
	"github.com/verticelabs/acervo/internal/models"
	"github.com/verticelabs/acervo/internal/store"
)

// Ingestor turns a DocumentInput into a stored document with embedded chunks.
type Ingestor struct {
	store    store.Store
	embedder embedding.Provider
	chunker  *Chunker
	logger   *zap.Logger
}

// NewIngestor creates an ingestor with the given dependencies.
func NewIngestor(st store.Store, embedder embedding.Provider, chunker *Chunker, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: st, embedder: embedder, chunker: chunker, logger: logger}
}

// Ingest stores the document and its embedded chunks. Content identical to an
// already stored document (by SHA-256 checksum) is a no-op returning the
// existing document, never a duplicate.
func (in *Ingestor) Ingest(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if input.Content == "" {
		return nil, fmt.Errorf("document content is empty")
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("invalid document type: %q", input.Type)
	}

	sum := sha256.Sum256([]byte(input.Content))
	checksum := hex.EncodeToString(sum[:])

	if existing, err := in.store.FindByChecksum(ctx, checksum); err == nil {
		in.logger.Info("document already ingested, skipping",
			zap.String("id", existing.ID), zap.String("title", input.Title))
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	doc := &models.Document{
		ID:       uuid.New().String(),
		Type:     input.Type,
		Title:    input.Title,
		Number:   input.Number,
		Date:     input.Date,
		Council:  input.Council,
		OwnerID:  input.OwnerID,
		IsGlobal: input.IsGlobal,
		Checksum: checksum,
	}

	chunks := in.chunker.Chunk(doc.ID, input.Content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vecs, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i, chunk := range chunks {
		chunk.Embedding = vecs[i]
	}

	if err := in.store.AddDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := in.store.BatchAddChunks(ctx, chunks); err != nil {
		// Leave no half-ingested document behind.
		_ = in.store.DeleteDocument(ctx, doc.ID)
		return nil, err
	}

	in.logger.Info("document ingested",
		zap.String("id", doc.ID), zap.String("title", doc.Title), zap.Int("chunks", len(chunks)))
	return doc, nil
}
