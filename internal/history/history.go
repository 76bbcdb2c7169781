// Package history keeps an audit trail of past runs in a local SQLite
// database, so operators can diff batches over time without digging through
// workbook files.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/erptools/nsauto/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists run summaries using modernc.org/sqlite (pure Go, no CGO).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer; a single connection
	// serializes all access through Go's pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists a finished (or aborted) run with all its outcomes.
func (s *Store) SaveRun(ctx context.Context, sum *models.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, workflow, started_at, finished_at, aborted, abort_cause, total, succeeded, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.Workflow,
		sum.StartedAt.UTC().Format(time.RFC3339), sum.FinishedAt.UTC().Format(time.RFC3339),
		boolToInt(sum.Aborted), sum.AbortCause,
		sum.Total(), sum.Succeeded(), sum.Failed(), sum.Skipped(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, o := range sum.Outcomes {
		_, err = tx.ExecContext(ctx, `INSERT INTO outcomes
			(run_id, seq, record_id, row, status, kind, reason, attempts, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, i, o.RecordID, o.Row, string(o.Status), string(o.Kind),
			o.Reason, o.Attempts, o.At.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// RunRow is the list view of one past run.
type RunRow struct {
	RunID      string
	Workflow   string
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
}

// ListRuns returns past runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	q := `SELECT id, workflow, started_at, finished_at, aborted, total, succeeded, failed, skipped
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var started, finished string
		var aborted int
		if err := rows.Scan(&r.RunID, &r.Workflow, &started, &finished, &aborted, &r.Total, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		r.Aborted = aborted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads one run with its full outcome sequence.
func (s *Store) GetRun(ctx context.Context, runID string) (*models.RunSummary, error) {
	sum := &models.RunSummary{}
	var started, finished string
	var aborted int

	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, started_at, finished_at, aborted, abort_cause FROM runs WHERE id = ?`, runID,
	).Scan(&sum.RunID, &sum.Workflow, &started, &finished, &aborted, &sum.AbortCause)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	sum.StartedAt, _ = time.Parse(time.RFC3339, started)
	sum.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	sum.Aborted = aborted != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, row, status, kind, reason, attempts, at FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("get outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Outcome
		var status, kind, at string
		if err := rows.Scan(&o.RecordID, &o.Row, &status, &kind, &o.Reason, &o.Attempts, &at); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = models.OutcomeStatus(status)
		o.Kind = models.FailureKind(kind)
		o.At, _ = time.Parse(time.RFC3339, at)
		sum.Append(o)
	}
	return sum, rows.Err()
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
