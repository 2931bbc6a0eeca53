// Package store persists discovered projects and search events in SQLite.
// It is the dedup gate for the harvest: each source URL is recorded at
// most once, and the download status is the only mutable field.
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
	"rfharvest/pkg/universe"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// StoredRecord is a persisted project row. DownloadPath is non-empty
// exactly when Downloaded is true.
type StoredRecord struct {
	ID int64
	universe.Project
	Downloaded   bool
	DownloadPath string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store wraps a SQLite database holding projects and search events
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Open opens (or creates) the SQLite database at path and runs pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not run yet
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// Exists reports whether a project with the given source URL is already
// persisted. Safe to call before every insert.
func (s *Store) Exists(sourceURL string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE source_url = ?", sourceURL).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking project existence: %w", err)
	}
	return count > 0, nil
}

// Add inserts a newly discovered project. A duplicate source URL fails
// with a conflict error; callers treat that as "already present".
func (s *Store) Add(p universe.Project) (*StoredRecord, error) {
	tags, err := json.Marshal(tagsOrEmpty(p.Tags))
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	now := time.Now().UTC()
	ts := now.Format(time.RFC3339)

	res, err := s.db.Exec(`
		INSERT INTO projects (source_url, workspace_id, project_id, title, author, image_count, model_count, tags, downloaded, download_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)`,
		p.SourceURL, p.WorkspaceID, p.ProjectID, p.Title, p.Author,
		p.ImageCount, p.ModelCount, string(tags), ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, errs.New(errs.ErrorTypeConflict, "project already recorded: "+p.SourceURL)
		}
		return nil, fmt.Errorf("inserting project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted id: %w", err)
	}

	return &StoredRecord{
		ID:        id,
		Project:   p,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkDownloaded records a completed download. Returns false, not an
// error, when no project matches the source URL.
func (s *Store) MarkDownloaded(sourceURL, downloadPath string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE projects SET downloaded = 1, download_path = ?, updated_at = ?
		WHERE source_url = ?`,
		downloadPath, now, sourceURL,
	)
	if err != nil {
		return false, fmt.Errorf("updating download status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated rows: %w", err)
	}
	return n > 0, nil
}

// ListUndownloaded returns all projects still awaiting a download, in
// insertion order. Feeds the recovery sweep.
func (s *Store) ListUndownloaded() ([]StoredRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, source_url, workspace_id, project_id, title, author, image_count, model_count, tags, downloaded, download_path, created_at, updated_at
		FROM projects WHERE downloaded = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing undownloaded projects: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// RecordSearchEvent appends one audit row per crawl. Failures are logged
// and swallowed; an audit miss must never abort the harvest.
func (s *Store) RecordSearchEvent(term string, resultCount int) {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO search_events (term, result_count, created_at) VALUES (?, ?, ?)`,
		term, resultCount, now,
	)
	if err != nil {
		s.log.WithError(err).WithField("term", term).Warn("Failed to record search event")
	}
}

// SearchEvent is one audit row from the search_events table
type SearchEvent struct {
	ID          int64
	Term        string
	ResultCount int
	CreatedAt   time.Time
}

// ListSearchEvents returns recorded crawls, newest first
func (s *Store) ListSearchEvents(limit int) ([]SearchEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, term, result_count, created_at FROM search_events
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing search events: %w", err)
	}
	defer rows.Close()

	var events []SearchEvent
	for rows.Next() {
		var e SearchEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Term, &e.ResultCount, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats summarises the store for operator output
type Stats struct {
	Projects   int
	Downloaded int
	Searches   int
}

// GetStats returns row counts for the status display
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&stats.Projects); err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE downloaded = 1").Scan(&stats.Downloaded); err != nil {
		return nil, fmt.Errorf("counting downloads: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM search_events").Scan(&stats.Searches); err != nil {
		return nil, fmt.Errorf("counting search events: %w", err)
	}
	return &stats, nil
}

func scanRecord(rows *sql.Rows) (*StoredRecord, error) {
	var r StoredRecord
	var tags, createdAt, updatedAt string
	var downloaded int

	err := rows.Scan(&r.ID, &r.SourceURL, &r.WorkspaceID, &r.ProjectID, &r.Title, &r.Author,
		&r.ImageCount, &r.ModelCount, &tags, &downloaded, &r.DownloadPath, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning project row: %w", err)
	}

	r.Downloaded = downloaded != 0
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &r, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
