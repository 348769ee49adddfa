package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/batch"
)

// Chunk statuses.
const (
	ChunkSubmitted = "submitted"
	ChunkSucceeded = "succeeded"
	ChunkFailed    = "failed"
)

// ChunkRecord is the stored state of one chunk.
type ChunkRecord struct {
	Index   int
	Start   int
	End     int
	BatchID string
	Status  string
	Error   string
}

// Recorder records the progress of one job. It implements
// batch.ChunkRecorder.
type Recorder struct {
	store *Store
	jobID string
}

var _ batch.ChunkRecorder = (*Recorder)(nil)

// Recorder returns the chunk recorder for jobID.
func (s *Store) Recorder(jobID string) *Recorder {
	return &Recorder{store: s, jobID: jobID}
}

// SubmittedBatch returns the batch of a chunk that was submitted and did not
// fail. Failed chunks are submitted again.
func (r *Recorder) SubmittedBatch(ctx context.Context, chunk int) (string, bool, error) {
	var batchID sql.NullString
	err := r.store.db.QueryRowContext(ctx,
		`SELECT batch_id FROM chunks WHERE job_id = ? AND idx = ? AND status != ?`,
		r.jobID, chunk, ChunkFailed,
	).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return batchID.String, batchID.String != "", nil
}

func (r *Recorder) ChunkSubmitted(ctx context.Context, chunk batch.Chunk, batchID string) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO chunks (job_id, idx, start_idx, end_idx, batch_id, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, idx) DO UPDATE SET
			batch_id = excluded.batch_id,
			status = excluded.status,
			error = NULL,
			submitted_at = excluded.submitted_at,
			finished_at = NULL`,
		r.jobID, chunk.Index, chunk.Start, chunk.End, batchID, ChunkSubmitted, now(),
	)
	return err
}

// ChunkFinished stores the chunk outcome and its results in one transaction.
func (r *Recorder) ChunkFinished(ctx context.Context, chunk batch.Chunk, results []claude.BatchResult, chunkErr error) error {
	status, errText := ChunkSucceeded, ""
	if chunkErr != nil {
		status, errText = ChunkFailed, chunkErr.Error()
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks (job_id, idx, start_idx, end_idx, status, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, idx) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		r.jobID, chunk.Index, chunk.Start, chunk.End, status, nullString(errText), now(),
	)
	if err != nil {
		return fmt.Errorf("update chunk: %w", err)
	}

	for i, res := range results {
		var kind, msg sql.NullString
		if res.Error != nil {
			kind = nullString(string(res.Error.Kind))
			msg = nullString(res.Error.Message)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO results (job_id, position, custom_id, status, message, error_kind, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.jobID, chunk.Start+i, res.CustomID, string(res.Status), nullString(string(res.Message)), kind, msg,
		)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", res.CustomID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET updated_at = ? WHERE id = ?`, now(), r.jobID); err != nil {
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Chunks returns the recorded chunks of a job in order.
func (s *Store) Chunks(ctx context.Context, jobID string) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, start_idx, end_idx, COALESCE(batch_id, ''), status, COALESCE(error, '')
		FROM chunks WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.Index, &c.Start, &c.End, &c.BatchID, &c.Status, &c.Error); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Results returns the stored results of a job in request order. Response is
// left nil; decode Message when needed.
func (s *Store) Results(ctx context.Context, jobID string) ([]claude.BatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT custom_id, status, COALESCE(message, ''), COALESCE(error_kind, ''), COALESCE(error_message, '')
		FROM results WHERE job_id = ? ORDER BY position`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []claude.BatchResult
	for rows.Next() {
		var (
			r             claude.BatchResult
			status, msg   string
			kind, errText string
		)
		if err := rows.Scan(&r.CustomID, &status, &msg, &kind, &errText); err != nil {
			return nil, err
		}
		r.Status = claude.ResultStatus(status)
		if msg != "" {
			r.Message = json.RawMessage(msg)
		}
		if kind != "" || errText != "" {
			r.Error = &claude.ResultError{Kind: claude.ErrorKind(kind), Message: errText}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
