package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/adtree/internal/capec"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// SearchResult is a lightweight view of a pattern matched by Search.
type SearchResult struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Abstraction capec.Abstraction `json:"abstraction"`
	Rank        float64           `json:"rank"`
}

// Stats holds aggregate knowledge base statistics.
type Stats struct {
	TotalPatterns int            `json:"total_patterns"`
	ByAbstraction map[string]int `json:"by_abstraction"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds SQLite store configuration.
type Config struct {
	DataDir          string
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the SQLite store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".adtree"),
		MaxSearchResults: 50,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// SQLiteStore is the CAPEC catalog backed by SQLite + FTS5.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Open creates the data directory if needed, opens capec.db with WAL
// mode and runs migrations.
func Open(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("knowledge: create data dir: %w", err)
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = DefaultConfig().MaxSearchResults
	}

	dbPath := filepath.Join(cfg.DataDir, "capec.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("knowledge: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("knowledge: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("knowledge: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS patterns (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			abstraction        TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL DEFAULT '',
			description        TEXT NOT NULL DEFAULT '',
			execution_flow     TEXT NOT NULL DEFAULT '',
			related_patterns   TEXT NOT NULL DEFAULT '',
			related_weaknesses TEXT NOT NULL DEFAULT '',
			mitigations        TEXT NOT NULL DEFAULT '',
			imported_at        TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_patterns_abstraction ON patterns(abstraction);

		CREATE VIRTUAL TABLE IF NOT EXISTS patterns_fts USING fts5(
			name,
			description,
			content='patterns',
			content_rowid='rowid'
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS triggers (idempotent)
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='patterns_fts_insert'",
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		triggers := `
			CREATE TRIGGER patterns_fts_insert AFTER INSERT ON patterns BEGIN
				INSERT INTO patterns_fts(rowid, name, description)
				VALUES (new.rowid, new.name, new.description);
			END;

			CREATE TRIGGER patterns_fts_delete AFTER DELETE ON patterns BEGIN
				INSERT INTO patterns_fts(patterns_fts, rowid, name, description)
				VALUES ('delete', old.rowid, old.name, old.description);
			END;

			CREATE TRIGGER patterns_fts_update AFTER UPDATE ON patterns BEGIN
				INSERT INTO patterns_fts(patterns_fts, rowid, name, description)
				VALUES ('delete', old.rowid, old.name, old.description);
				INSERT INTO patterns_fts(rowid, name, description)
				VALUES (new.rowid, new.name, new.description);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return nil
}

// ─── Records ─────────────────────────────────────────────────────────────────

// GetRecord looks a pattern up by id ("66" or "CAPEC-66").
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*capec.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, abstraction, status, description, execution_flow,
		        related_patterns, related_weaknesses, mitigations
		 FROM patterns WHERE id = ?`, capec.NormalizeID(id),
	)
	var r capec.Record
	var abstraction string
	err := row.Scan(&r.ID, &r.Name, &abstraction, &r.Status, &r.Description,
		&r.ExecutionFlow, &r.RelatedPatterns, &r.RelatedWeaknesses, &r.Mitigations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: get %s: %w", id, err)
	}
	r.Abstraction = capec.Abstraction(abstraction)
	return &r, nil
}

// UpsertRecords inserts or replaces records in a single transaction and
// returns how many were written. Records without an id are skipped.
func (s *SQLiteStore) UpsertRecords(ctx context.Context, records []capec.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("knowledge: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (id, name, abstraction, status, description, execution_flow,
		                      related_patterns, related_weaknesses, mitigations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name               = excluded.name,
			abstraction        = excluded.abstraction,
			status             = excluded.status,
			description        = excluded.description,
			execution_flow     = excluded.execution_flow,
			related_patterns   = excluded.related_patterns,
			related_weaknesses = excluded.related_weaknesses,
			mitigations        = excluded.mitigations,
			imported_at        = datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("knowledge: prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	n := 0
	for _, r := range records {
		id := capec.NormalizeID(r.ID)
		if id == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			id, r.Name, string(r.Abstraction), r.Status, r.Description, r.ExecutionFlow,
			r.RelatedPatterns, r.RelatedWeaknesses, r.Mitigations,
		); err != nil {
			return 0, fmt.Errorf("knowledge: upsert %s: %w", id, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("knowledge: commit: %w", err)
	}
	return n, nil
}

// ─── Search (FTS5) ───────────────────────────────────────────────────────────

// Search performs full-text search over pattern names and descriptions.
// An empty query lists patterns in id order.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query)
	var (
		rows *sql.Rows
		err  error
	)
	if ftsQuery == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, name, abstraction, 0 AS rank
			 FROM patterns
			 ORDER BY CAST(id AS INTEGER), id
			 LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT p.id, p.name, p.abstraction, fts.rank
			 FROM patterns_fts fts
			 JOIN patterns p ON p.rowid = fts.rowid
			 WHERE patterns_fts MATCH ?
			 ORDER BY fts.rank
			 LIMIT ?`, ftsQuery, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var sr SearchResult
		var abstraction string
		if err := rows.Scan(&sr.ID, &sr.Name, &abstraction, &sr.Rank); err != nil {
			return nil, err
		}
		sr.Abstraction = capec.Abstraction(abstraction)
		results = append(results, sr)
	}
	return results, rows.Err()
}

// ─── Stats ───────────────────────────────────────────────────────────────────

// Stats returns the pattern count, total and per abstraction level.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByAbstraction: map[string]int{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT abstraction, COUNT(*) FROM patterns GROUP BY abstraction`)
	if err != nil {
		return nil, fmt.Errorf("knowledge: stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		if level == "" {
			level = "Unknown"
		}
		stats.ByAbstraction[level] += n
		stats.TotalPatterns += n
	}
	return stats, rows.Err()
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "sql injection" → `"sql" "injection"`
func sanitizeFTS(query string) string {
	var words []string
	for _, w := range strings.Fields(query) {
		if w = strings.ReplaceAll(w, `"`, ""); w != "" {
			words = append(words, `"`+w+`"`)
		}
	}
	return strings.Join(words, " ")
}
