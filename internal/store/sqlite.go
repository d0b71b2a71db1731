// Package store provides the SQLite implementation of the Store interface.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/verticelabs/acervo/internal/models"
)

// SQLiteStore implements Store using SQLite. Reads run concurrently; every
// write goes through a transaction or a single atomic statement so readers
// never observe a partially written row. The embedding dimensionality is
// fixed when the database is first created and verified on every open.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath with the given
// embedding dimensionality. Parent directories are created if needed. Opening
// an existing store with a different dimensionality is an error, not a
// degraded mode.
func NewSQLiteStore(dbPath string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, dimensions: dimensions}
	if err := s.checkDimensions(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		number TEXT,
		date TEXT,
		council TEXT,
		owner_id TEXT,
		is_global INTEGER NOT NULL DEFAULT 0,
		checksum TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_checksum ON documents(checksum);
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, is_global);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		position INTEGER NOT NULL,
		metadata TEXT,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// checkDimensions records the dimensionality on first open and rejects any
// later open that disagrees, so a store never silently holds mixed vectors.
func (s *SQLiteStore) checkDimensions() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'embedding_dimensions'`).Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`INSERT INTO store_meta (key, value) VALUES ('embedding_dimensions', ?)`,
			strconv.Itoa(s.dimensions))
		return err
	}
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt store_meta dimensions %q: %w", stored, err)
	}
	if n != s.dimensions {
		return fmt.Errorf("%w: store created with %d dimensions, configured %d",
			ErrDimensionMismatch, n, s.dimensions)
	}
	return nil
}

// Dimensions returns the store's fixed embedding dimensionality.
func (s *SQLiteStore) Dimensions() int {
	return s.dimensions
}

// AddDocument inserts a document. A duplicate content checksum returns
// ErrDuplicateDocument and leaves the store unchanged.
func (s *SQLiteStore) AddDocument(ctx context.Context, doc *models.Document) error {
	if !doc.Type.Valid() {
		return fmt.Errorf("invalid document type: %q", doc.Type)
	}
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE checksum = ?`, doc.Checksum,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, existing)
	}
	if err != sql.ErrNoRows {
		return err
	}

	doc.CreatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, type, title, number, date, council, owner_id, is_global, checksum, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, string(doc.Type), doc.Title, doc.Number, doc.Date, doc.Council,
		doc.OwnerID, boolToInt(doc.IsGlobal), doc.Checksum, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID if it is visible to the caller.
// Invisible documents are indistinguishable from missing ones.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string, perm models.Permission) (*models.Document, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !perm.Visible(doc) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return doc, nil
}

func (s *SQLiteStore) getDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var typ string
	var isGlobal int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, title, number, date, council, owner_id, is_global, checksum, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &typ, &doc.Title, &doc.Number, &doc.Date, &doc.Council,
		&doc.OwnerID, &isGlobal, &doc.Checksum, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	doc.Type = models.DocType(typ)
	doc.IsGlobal = isGlobal != 0
	return &doc, nil
}

// FindByChecksum returns the document with the given content checksum, or
// ErrNotFound.
func (s *SQLiteStore) FindByChecksum(ctx context.Context, checksum string) (*models.Document, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE checksum = ?`, checksum,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checksum %s: %w", checksum, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.getDocument(ctx, id)
}

// DeleteDocument removes a document and, via the foreign key cascade, all of
// its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns documents visible to the caller, newest first. The
// visibility predicate is the same one search uses.
func (s *SQLiteStore) ListDocuments(ctx context.Context, perm models.Permission, offset, limit int) ([]*models.Document, error) {
	where, params := permissionClause(perm)
	params = append(params, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, title, number, date, council, owner_id, is_global, checksum, created_at
		 FROM documents d `+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		params...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var typ string
		var isGlobal int
		if err := rows.Scan(&doc.ID, &typ, &doc.Title, &doc.Number, &doc.Date, &doc.Council,
			&doc.OwnerID, &isGlobal, &doc.Checksum, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = models.DocType(typ)
		doc.IsGlobal = isGlobal != 0
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// UpsertChunk stores or replaces a chunk. An embedding of the wrong length is
// rejected with ErrDimensionMismatch.
func (s *SQLiteStore) UpsertChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	if len(chunk.Embedding) != s.dimensions {
		return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
			ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), s.dimensions)
	}
	metadataJSON, err := marshalMetadata(chunk.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, document_id, content, embedding, position, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   embedding = excluded.embedding,
		   position = excluded.position,
		   metadata = excluded.metadata`,
		chunk.ID, chunk.DocumentID, chunk.Content, embeddingToBytes(chunk.Embedding),
		chunk.Position, metadataJSON,
	)
	return err
}

// BatchAddChunks inserts chunks in one transaction so readers see either none
// or all of a document's chunks.
func (s *SQLiteStore) BatchAddChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, store expects %d",
				ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), s.dimensions)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, content, embedding, position, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := marshalMetadata(chunk.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			embeddingToBytes(chunk.Embedding), chunk.Position, metadataJSON); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by position.
func (s *SQLiteStore) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, embedding, position, metadata
		 FROM chunks WHERE document_id = ? ORDER BY position`, docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// Search returns up to k chunks visible to the caller, ranked by cosine
// similarity to query, highest first. Candidates are filtered by permission
// before any scoring happens; ties keep insertion order so results are
// reproducible across runs.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int, perm models.Permission) ([]SearchHit, error) {
	return s.SearchFiltered(ctx, query, k, perm, Filter{})
}

// SearchFiltered is Search with additional metadata constraints.
func (s *SQLiteStore) SearchFiltered(ctx context.Context, query []float32, k int, perm models.Permission, f Filter) ([]SearchHit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			ErrDimensionMismatch, len(query), s.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	where, params := permissionClause(perm)
	if f.Type != "" {
		where += " AND d.type = ?"
		params = append(params, string(f.Type))
	}
	if f.Council != "" {
		where += " AND d.council = ?"
		params = append(params, f.Council)
	}
	if f.Number != "" {
		where += " AND d.number = ?"
		params = append(params, f.Number)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.content, c.embedding, c.position, c.metadata,
		        d.id, d.type, d.title, d.number, d.date, d.council, d.owner_id, d.is_global, d.checksum, d.created_at
		 FROM chunks c
		 JOIN documents d ON c.document_id = d.id
		 `+where+`
		 ORDER BY c.rowid`,
		params...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var chunk models.DocumentChunk
		var doc models.Document
		var blob []byte
		var metadataJSON sql.NullString
		var typ string
		var isGlobal int
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &blob, &chunk.Position, &metadataJSON,
			&doc.ID, &typ, &doc.Title, &doc.Number, &doc.Date, &doc.Council,
			&doc.OwnerID, &isGlobal, &doc.Checksum, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Type = models.DocType(typ)
		doc.IsGlobal = isGlobal != 0
		chunk.Embedding = bytesToEmbedding(blob)
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata)
		}
		hits = append(hits, SearchHit{
			Chunk:      &chunk,
			Document:   &doc,
			Similarity: CosineSimilarity(query, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Candidates arrive in insertion order; the stable sort keeps that order
	// for equal similarities.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Stats returns corpus counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DocumentsByType: make(map[models.DocType]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM documents GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		st.DocumentsByType[models.DocType(typ)] = n
	}
	return st, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// permissionClause builds the WHERE clause implementing the visibility rule.
// Admins see everything, users see global plus their own documents, anonymous
// callers see only global documents. Filtering happens before scoring so
// access control can never leak through ranking.
func permissionClause(perm models.Permission) (string, []interface{}) {
	if perm.Admin() {
		return "WHERE 1=1", nil
	}
	if perm.UserID != "" {
		return "WHERE (d.is_global = 1 OR d.owner_id = ?)", []interface{}{perm.UserID}
	}
	return "WHERE d.is_global = 1", nil
}

func scanChunks(rows *sql.Rows) ([]*models.DocumentChunk, error) {
	var chunks []*models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		var blob []byte
		var metadataJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &blob,
			&chunk.Position, &metadataJSON); err != nil {
			return nil, err
		}
		chunk.Embedding = bytesToEmbedding(blob)
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
