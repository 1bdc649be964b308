package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"redline/internal/ports"
)

func (db *DB) EnqueueAnalysis(ctx context.Context, submissionID string, weights []byte) (string, error) {
	var jobID string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO analysis_jobs (submission_id, weights, status)
        VALUES ($1, $2, 'queued')
        RETURNING id
    `, submissionID, weights).Scan(&jobID)
	return jobID, err
}

// ClaimNext selects the next queued analysis job using SKIP LOCKED and
// marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.AnalysisJob, found bool, err error) {
	// Use explicit transaction to safely lock and transition state
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
        SELECT id, submission_id, weights FROM analysis_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.SubmissionID, &job.Weights)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
        UPDATE analysis_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
        UPDATE submissions SET status='analyzing' WHERE id=$1
    `, job.SubmissionID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var submissionID string
	if err = tx.QueryRow(ctx, `SELECT submission_id FROM analysis_jobs WHERE id=$1`, jobID).Scan(&submissionID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='completed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE submissions SET status='completed' WHERE id=$1`, submissionID); err != nil {
		return err
	}
	return nil
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()
	var submissionID string
	if err = tx.QueryRow(ctx, `SELECT submission_id FROM analysis_jobs WHERE id=$1`, jobID).Scan(&submissionID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='failed', failure_reason=$2, finished_at=now() WHERE id=$1`, jobID, reason); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE submissions SET status='failed' WHERE id=$1`, submissionID); err != nil {
		return err
	}
	return nil
}

// StartJobForSubmission marks the queued job for a specific submission as
// running and returns the job id. Used by the synchronous request path.
func (db *DB) StartJobForSubmission(ctx context.Context, submissionID string) (string, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var jobID string
	// lock specific job row if queued
	err = tx.QueryRow(ctx, `
        SELECT id FROM analysis_jobs
        WHERE submission_id = $1 AND status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `, submissionID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = ports.ErrNotFound
		return "", err
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE submissions SET status='analyzing' WHERE id=$1`, submissionID); err != nil {
		return "", err
	}
	return jobID, nil
}

var _ ports.JobRepository = (*DB)(nil)
