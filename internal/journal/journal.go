// Package journal persists traces to SQLite for later inspection.
//
// The journal is diagnostic: it stores what a run did, not state to resume
// from. Nothing in statecore reads a journal back into a store.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/trace"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added idx_entries_kind for kind-filtered reads
const currentSchemaVersion = 1

// Store is a SQLite-backed trace journal. It implements trace.Sink.
type Store struct {
	db *sql.DB
}

// Open creates or opens a journal at path (":memory:" for a scratch journal).
// Applies pragmas and migrations; safe to call on an existing file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite has one writer; a single connection also keeps :memory: databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		// v1: index for kind-filtered reads.
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(run_id, kind)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Run describes one recorded run.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Entries  int    `json:"entries"`
}

// WriteRun registers a run. Writing the same ID twice is a no-op.
func (s *Store) WriteRun(ctx context.Context, runID, scenario string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, scenario)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// Append writes one entry. Implements trace.Sink.
// The run must have been registered with WriteRun. Re-appending an
// existing (run, seq) pair is a no-op.
func (s *Store) Append(ctx context.Context, runID string, e trace.Entry) error {
	payload, err := ir.MarshalIRValue(e.Payload)
	if err != nil {
		return fmt.Errorf("append: marshal payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (run_id, seq, type, kind, payload, hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, e.Seq, string(e.Type), e.Kind, string(payload), e.Hash)
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}

// ReadEntries returns a run's entries in seq order.
// A non-empty kind keeps only event entries of that kind.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadEntries(ctx context.Context, runID, kind string) ([]trace.Entry, error) {
	query := `SELECT seq, type, kind, payload, hash FROM entries WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []trace.Entry{}
	for rows.Next() {
		var (
			e       trace.Entry
			typ     string
			payload string
		)
		if err := rows.Scan(&e.Seq, &typ, &e.Kind, &payload, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = trace.EntryType(typ)

		var obj ir.IRObject
		if err := obj.UnmarshalJSON([]byte(payload)); err != nil {
			return nil, fmt.Errorf("entry %d payload: %w", e.Seq, err)
		}
		e.Payload = obj
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// GetRun returns one run with its entry count.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.scenario, COUNT(e.seq)
		FROM runs r LEFT JOIN entries e ON e.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, runID).Scan(&r.ID, &r.Scenario, &r.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return r, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run ordered by ID. UUIDv7 IDs therefore list in
// creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, COUNT(e.seq)
		FROM runs r LEFT JOIN entries e ON e.run_id = r.id
		GROUP BY r.id
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Entries); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
