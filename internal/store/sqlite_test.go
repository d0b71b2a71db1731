package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/verticelabs/acervo/internal/models"
)

func newTestStore(t *testing.T, dimensions int) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path, dimensions)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addDoc(t *testing.T, s *SQLiteStore, id, owner string, global bool) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:       id,
		Type:     models.DocTypeMinutes,
		Title:    "Doc " + id,
		OwnerID:  owner,
		IsGlobal: global,
		Checksum: "sum-" + id,
	}
	if err := s.AddDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func addChunk(t *testing.T, s *SQLiteStore, id, docID string, emb []float32) {
	t.Helper()
	err := s.UpsertChunk(context.Background(), &models.DocumentChunk{
		ID:         id,
		DocumentID: docID,
		Content:    "content " + id,
		Embedding:  emb,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteStore_DocumentCRUD(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	doc := addDoc(t, s, "doc1", "alice", true)
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := s.GetDocument(ctx, "doc1", models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Doc doc1" || got.Type != models.DocTypeMinutes || !got.IsGlobal {
		t.Errorf("got %+v", got)
	}

	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetDocument(ctx, "doc1", models.Anonymous()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ChecksumDeduplication(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	first := &models.Document{ID: "a", Type: models.DocTypeAgenda, Title: "A", Checksum: "same", IsGlobal: true}
	if err := s.AddDocument(ctx, first); err != nil {
		t.Fatal(err)
	}
	dup := &models.Document{ID: "b", Type: models.DocTypeAgenda, Title: "B", Checksum: "same", IsGlobal: true}
	err := s.AddDocument(ctx, dup)
	if !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}

	found, err := s.FindByChecksum(ctx, "same")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != "a" {
		t.Errorf("checksum resolves to %s, want a", found.ID)
	}
}

func TestSQLiteStore_CascadeDelete(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	addDoc(t, s, "doc1", "", true)
	addChunk(t, s, "c1", "doc1", []float32{1, 0, 0, 0})
	addChunk(t, s, "c2", "doc1", []float32{0, 1, 0, 0})

	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	chunks, err := s.GetChunksByDocumentID(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks after cascade delete, got %d", len(chunks))
	}
}

func TestSQLiteStore_UpsertChunk_DimensionMismatch(t *testing.T) {
	s := newTestStore(t, 4)
	addDoc(t, s, "doc1", "", true)

	err := s.UpsertChunk(context.Background(), &models.DocumentChunk{
		ID:         "bad",
		DocumentID: "doc1",
		Content:    "x",
		Embedding:  []float32{1, 0, 0}, // 3 != 4
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	chunks, _ := s.GetChunksByDocumentID(context.Background(), "doc1")
	if len(chunks) != 0 {
		t.Error("rejected chunk must not be stored")
	}
}

func TestSQLiteStore_Search_QueryDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 4)
	_, err := s.Search(context.Background(), []float32{1, 0}, 5, models.Permission{Role: models.RoleAdmin})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSQLiteStore_Search_Ordering(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	addDoc(t, s, "doc1", "", true)

	addChunk(t, s, "far", "doc1", []float32{0, 1, 0, 0})
	addChunk(t, s, "close", "doc1", []float32{0.8, 0.2, 0, 0})
	addChunk(t, s, "exact", "doc1", []float32{1, 0, 0, 0})

	hits, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10, models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	wantOrder := []string{"exact", "close", "far"}
	for i, want := range wantOrder {
		if hits[i].Chunk.ID != want {
			t.Errorf("rank %d = %s, want %s", i, hits[i].Chunk.ID, want)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Similarity > hits[i-1].Similarity {
			t.Errorf("similarity not descending at rank %d", i)
		}
	}
}

func TestSQLiteStore_Search_TiesKeepInsertionOrder(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	addDoc(t, s, "doc1", "", true)

	// Identical vectors -> identical similarity -> insertion order decides.
	for i := 0; i < 5; i++ {
		addChunk(t, s, fmt.Sprintf("tie%d", i), "doc1", []float32{0.5, 0.5, 0, 0})
	}
	hits, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5, models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	for i, hit := range hits {
		want := fmt.Sprintf("tie%d", i)
		if hit.Chunk.ID != want {
			t.Errorf("rank %d = %s, want %s", i, hit.Chunk.ID, want)
		}
	}
}

func TestSQLiteStore_Search_TruncatesToK(t *testing.T) {
	s := newTestStore(t, 4)
	addDoc(t, s, "doc1", "", true)
	for i := 0; i < 10; i++ {
		addChunk(t, s, fmt.Sprintf("c%d", i), "doc1", []float32{1, 0, 0, 0})
	}
	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 3, models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
}

func TestSQLiteStore_Search_ZeroNormChunk(t *testing.T) {
	s := newTestStore(t, 4)
	addDoc(t, s, "doc1", "", true)
	addChunk(t, s, "degenerate", "doc1", []float32{0, 0, 0, 0})
	addChunk(t, s, "normal", "doc1", []float32{1, 0, 0, 0})

	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 10, models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("a zero-norm chunk must not poison the query; got %d hits", len(hits))
	}
	if hits[0].Chunk.ID != "normal" || hits[1].Similarity != 0 {
		t.Errorf("degenerate chunk should score 0 and rank last: %+v", hits)
	}
}

func TestSQLiteStore_Search_PermissionSoundness(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	addDoc(t, s, "public", "", true)
	addDoc(t, s, "alices", "alice", false)
	addDoc(t, s, "bobs", "bob", false)
	addChunk(t, s, "cp", "public", []float32{1, 0, 0, 0})
	addChunk(t, s, "ca", "alices", []float32{1, 0, 0, 0})
	addChunk(t, s, "cb", "bobs", []float32{1, 0, 0, 0})

	query := []float32{1, 0, 0, 0}

	// Anonymous: only global results.
	hits, err := s.Search(ctx, query, 10, models.Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	for _, hit := range hits {
		if !hit.Document.IsGlobal {
			t.Errorf("anonymous search leaked private document %s", hit.Document.ID)
		}
	}
	if len(hits) != 1 {
		t.Errorf("anonymous search: got %d hits, want 1", len(hits))
	}

	// Alice: global plus her own.
	hits, err = s.Search(ctx, query, 10, models.Permission{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("alice search: got %d hits, want 2", len(hits))
	}
	for _, hit := range hits {
		if !hit.Document.IsGlobal && hit.Document.OwnerID != "alice" {
			t.Errorf("alice search leaked document owned by %s", hit.Document.OwnerID)
		}
	}

	// Admin sees everything.
	hits, err = s.Search(ctx, query, 10, models.Permission{UserID: "root", Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("admin search: got %d hits, want 3", len(hits))
	}
}

func TestSQLiteStore_ListDocuments_SamePredicateAsSearch(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	addDoc(t, s, "public", "", true)
	addDoc(t, s, "alices", "alice", false)

	docs, err := s.ListDocuments(ctx, models.Anonymous(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "public" {
		t.Errorf("anonymous listing = %+v, want only public", docs)
	}

	docs, err = s.ListDocuments(ctx, models.Permission{UserID: "alice"}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("alice listing: got %d docs, want 2", len(docs))
	}
}

func TestSQLiteStore_GetDocument_InvisibleIsNotFound(t *testing.T) {
	s := newTestStore(t, 4)
	addDoc(t, s, "alices", "alice", false)

	_, err := s.GetDocument(context.Background(), "alices", models.Permission{UserID: "bob"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("invisible document must look missing, got %v", err)
	}
}

func TestSQLiteStore_SearchFiltered(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()

	agenda := &models.Document{ID: "ag", Type: models.DocTypeAgenda, Title: "Agenda", Council: "CONSUNI", Checksum: "s1", IsGlobal: true}
	minutes := &models.Document{ID: "mi", Type: models.DocTypeMinutes, Title: "Minutes", Council: "CEPE", Checksum: "s2", IsGlobal: true}
	if err := s.AddDocument(ctx, agenda); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDocument(ctx, minutes); err != nil {
		t.Fatal(err)
	}
	addChunk(t, s, "c1", "ag", []float32{1, 0, 0, 0})
	addChunk(t, s, "c2", "mi", []float32{1, 0, 0, 0})

	hits, err := s.SearchFiltered(ctx, []float32{1, 0, 0, 0}, 10, models.Anonymous(), Filter{Type: models.DocTypeAgenda})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Document.ID != "ag" {
		t.Errorf("type filter: got %+v", hits)
	}

	hits, err = s.SearchFiltered(ctx, []float32{1, 0, 0, 0}, 10, models.Anonymous(), Filter{Council: "CEPE"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Document.ID != "mi" {
		t.Errorf("council filter: got %+v", hits)
	}
}

func TestSQLiteStore_DimensionsFixedAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := NewSQLiteStore(path, 8); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("reopening with different dimensions must fail, got %v", err)
	}
	s, err = NewSQLiteStore(path, 4)
	if err != nil {
		t.Fatalf("reopening with matching dimensions failed: %v", err)
	}
	s.Close()
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestStore(t, 4)
	addDoc(t, s, "d1", "", true)
	addChunk(t, s, "c1", "d1", []float32{1, 0, 0, 0})

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 1 || st.Chunks != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.DocumentsByType[models.DocTypeMinutes] != 1 {
		t.Errorf("documents by type = %+v", st.DocumentsByType)
	}
}

func TestSQLiteStore_UpsertChunk_Replaces(t *testing.T) {
	s := newTestStore(t, 4)
	ctx := context.Background()
	addDoc(t, s, "doc1", "", true)
	addChunk(t, s, "c1", "doc1", []float32{1, 0, 0, 0})

	err := s.UpsertChunk(ctx, &models.DocumentChunk{
		ID:         "c1",
		DocumentID: "doc1",
		Content:    "updated",
		Embedding:  []float32{0, 1, 0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := s.GetChunksByDocumentID(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Content != "updated" || chunks[0].Embedding[1] != 1 {
		t.Errorf("upsert did not replace: %+v", chunks)
	}
}
