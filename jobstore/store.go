// Package jobstore keeps chunked batch runs in SQLite so that an
// interrupted run can be resumed without resubmitting finished chunks.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Job statuses.
const (
	JobRunning  = "running"
	JobDone     = "done"
	JobFailed   = "failed"
	JobCanceled = "canceled"
)

// ErrJobNotFound is returned when a job id is unknown.
var ErrJobNotFound = errors.New("job not found")

// Store is a SQLite-backed record of jobs, their chunks and results.
type Store struct {
	db   *sql.DB
	path string
}

// Job is one chunked batch run.
type Job struct {
	ID           string
	Model        string
	Status       string
	RequestCount int
	ChunkSize    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		model         TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'running',
		request_count INTEGER NOT NULL,
		chunk_size    INTEGER NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		job_id       TEXT NOT NULL,
		idx          INTEGER NOT NULL,
		start_idx    INTEGER NOT NULL,
		end_idx      INTEGER NOT NULL,
		batch_id     TEXT,
		status       TEXT NOT NULL,
		error        TEXT,
		submitted_at TEXT,
		finished_at  TEXT,
		PRIMARY KEY (job_id, idx),
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);

	CREATE TABLE IF NOT EXISTS results (
		job_id        TEXT NOT NULL,
		position      INTEGER NOT NULL,
		custom_id     TEXT NOT NULL,
		status        TEXT NOT NULL,
		message       TEXT,
		error_kind    TEXT,
		error_message TEXT,
		PRIMARY KEY (job_id, position),
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_results_custom_id ON results(job_id, custom_id);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// CreateJob starts a new running job.
func (s *Store) CreateJob(ctx context.Context, model string, requestCount, chunkSize int) (*Job, error) {
	ts := now()
	job := &Job{
		ID:           uuid.NewString(),
		Model:        model,
		Status:       JobRunning,
		RequestCount: requestCount,
		ChunkSize:    chunkSize,
		CreatedAt:    parseTime(ts),
		UpdatedAt:    parseTime(ts),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, model, status, request_count, chunk_size, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Model, job.Status, job.RequestCount, job.ChunkSize, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

const jobColumns = `id, model, status, request_count, chunk_size, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	var j Job
	var created, updated string
	if err := row.Scan(&j.ID, &j.Model, &j.Status, &j.RequestCount, &j.ChunkSize, &created, &updated); err != nil {
		return nil, err
	}
	j.CreatedAt = parseTime(created)
	j.UpdatedAt = parseTime(updated)
	return &j, nil
}

// GetJob returns the job with id, or ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, err
}

// LatestResumable returns the most recent job that is still running.
func (s *Store) LatestResumable(ctx context.Context) (*Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, JobRunning))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return j, err
}

// ListJobs returns all jobs, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// FinishJob sets the final status of a job.
func (s *Store) FinishJob(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}
