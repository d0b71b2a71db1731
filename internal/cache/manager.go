package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/models"
)

// ErrCorrupt marks a stored payload that failed to deserialize. It never
// reaches callers: the entry is evicted and the lookup reports a miss.
var ErrCorrupt = errors.New("corrupt cache entry")

// DefaultMaxEntries bounds each scope when no limit is configured.
const DefaultMaxEntries = 1000

// Entry is one cached answer.
type Entry struct {
	NormalizedQuery string          `json:"normalized_query"`
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	Sources         []models.Source `json:"sources"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Manager is the two-scope answer cache over SQLite. A write to a
// (scope, normalized query) key is a single atomic upsert; the user and
// global tables are independent, so user-scope writes never block global
// reads.
type Manager struct {
	db         *sql.DB
	maxEntries int
	logger     *zap.Logger
}

// NewManager opens or creates the cache database at dbPath. Each scope holds
// at most maxEntries entries; overflow evicts the oldest by creation time.
func NewManager(dbPath string, maxEntries int, logger *zap.Logger) (*Manager, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initCacheSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Manager{db: db, maxEntries: maxEntries, logger: logger}, nil
}

func initCacheSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		normalized_query TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(user_id, normalized_query)
	);

	CREATE INDEX IF NOT EXISTS idx_cache_user_norm ON cache_user(user_id, normalized_query);

	CREATE TABLE IF NOT EXISTS cache_global (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		normalized_query TEXT UNIQUE NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		hit_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Lookup normalizes the query and checks the caller's scope first, then the
// global scope. The returned scope tag, models.ProvenanceUser or
// models.ProvenanceGlobal, records which scope matched; a miss returns
// (nil, "", nil).
func (m *Manager) Lookup(ctx context.Context, rawQuery, userID string) (*Entry, string, error) {
	normalized := Normalize(rawQuery)

	if userID != "" {
		entry, err := m.lookupUser(ctx, userID, normalized)
		if err != nil {
			return nil, "", err
		}
		if entry != nil {
			return entry, models.ProvenanceUser, nil
		}
	}

	entry, err := m.lookupGlobal(ctx, normalized)
	if err != nil {
		return nil, "", err
	}
	if entry != nil {
		return entry, models.ProvenanceGlobal, nil
	}
	return nil, "", nil
}

func (m *Manager) lookupUser(ctx context.Context, userID, normalized string) (*Entry, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT normalized_query, question, answer, sources, created_at
		 FROM cache_user WHERE user_id = ? AND normalized_query = ?`,
		userID, normalized,
	)
	entry, err := m.scanEntry(row)
	if errors.Is(err, ErrCorrupt) {
		m.logger.Warn("evicting corrupt user cache entry",
			zap.String("user_id", userID), zap.String("normalized_query", normalized))
		_, _ = m.db.ExecContext(ctx,
			`DELETE FROM cache_user WHERE user_id = ? AND normalized_query = ?`, userID, normalized)
		return nil, nil
	}
	return entry, err
}

func (m *Manager) lookupGlobal(ctx context.Context, normalized string) (*Entry, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT normalized_query, question, answer, sources, created_at
		 FROM cache_global WHERE normalized_query = ?`,
		normalized,
	)
	entry, err := m.scanEntry(row)
	if errors.Is(err, ErrCorrupt) {
		m.logger.Warn("evicting corrupt global cache entry",
			zap.String("normalized_query", normalized))
		_, _ = m.db.ExecContext(ctx,
			`DELETE FROM cache_global WHERE normalized_query = ?`, normalized)
		return nil, nil
	}
	if err == nil && entry != nil {
		_, _ = m.db.ExecContext(ctx,
			`UPDATE cache_global SET hit_count = hit_count + 1 WHERE normalized_query = ?`, normalized)
	}
	return entry, err
}

func (m *Manager) scanEntry(row *sql.Row) (*Entry, error) {
	var entry Entry
	var sourcesJSON string
	err := row.Scan(&entry.NormalizedQuery, &entry.Question, &entry.Answer, &sourcesJSON, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &entry.Sources); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &entry, nil
}

// Store writes the answer into the caller's scope and, when promoteToGlobal
// is set, into the global scope as well. The promotion decision belongs to
// the orchestrator; the manager only executes it. Each write is one atomic
// upsert, last writer wins.
func (m *Manager) Store(ctx context.Context, rawQuery, userID, answer string, sources []models.Source, promoteToGlobal bool) error {
	normalized := Normalize(rawQuery)
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	now := time.Now()

	if userID != "" {
		_, err = m.db.ExecContext(ctx,
			`INSERT INTO cache_user (user_id, normalized_query, question, answer, sources, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, normalized_query) DO UPDATE SET
			   question = excluded.question,
			   answer = excluded.answer,
			   sources = excluded.sources,
			   created_at = excluded.created_at`,
			userID, normalized, rawQuery, answer, string(sourcesJSON), now,
		)
		if err != nil {
			return err
		}
		if err := m.evictUser(ctx, userID); err != nil {
			return err
		}
	}

	if promoteToGlobal {
		_, err = m.db.ExecContext(ctx,
			`INSERT INTO cache_global (normalized_query, question, answer, sources, created_at, hit_count)
			 VALUES (?, ?, ?, ?, ?, 0)
			 ON CONFLICT(normalized_query) DO UPDATE SET
			   question = excluded.question,
			   answer = excluded.answer,
			   sources = excluded.sources,
			   created_at = excluded.created_at`,
			normalized, rawQuery, answer, string(sourcesJSON), now,
		)
		if err != nil {
			return err
		}
		if err := m.evictGlobal(ctx); err != nil {
			return err
		}
	}
	return nil
}

// evictUser keeps the newest maxEntries rows of one user scope, dropping the
// oldest by creation time first (strict insertion-order FIFO, not recency).
func (m *Manager) evictUser(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cache_user WHERE user_id = ? AND id NOT IN (
		   SELECT id FROM cache_user WHERE user_id = ?
		   ORDER BY created_at DESC, id DESC LIMIT ?
		 )`,
		userID, userID, m.maxEntries,
	)
	return err
}

func (m *Manager) evictGlobal(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cache_global WHERE id NOT IN (
		   SELECT id FROM cache_global ORDER BY created_at DESC, id DESC LIMIT ?
		 )`,
		m.maxEntries,
	)
	return err
}

// ClearUser removes every cached answer for one user.
func (m *Manager) ClearUser(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cache_user WHERE user_id = ?`, userID)
	return err
}

// ClearGlobal empties the shared scope.
func (m *Manager) ClearGlobal(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cache_global`)
	return err
}

// Stats reports entry counts per scope.
func (m *Manager) Stats(ctx context.Context) (user, global int64, err error) {
	if err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_user`).Scan(&user); err != nil {
		return 0, 0, err
	}
	if err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_global`).Scan(&global); err != nil {
		return 0, 0, err
	}
	return user, global, nil
}

// Close closes the cache database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// negativeSignals mark answers that admit to having no documentary basis.
// They are kept out of the cache so the question is retried once new
// documents arrive.
var negativeSignals = []string{
	"nao encontrei",
	"sem base documental",
	"nao tenho certeza",
	"nao ha evidencia",
	"nao sei",
	"no evidence",
	"not found in the documents",
	"i dont know",
}

// IsNegative reports whether an answer should bypass caching.
func IsNegative(answer string) bool {
	lower := Normalize(answer)
	for _, signal := range negativeSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}
