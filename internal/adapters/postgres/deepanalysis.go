package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"redline/internal/domain"
	"redline/internal/ports"
)

// ReplaceForCheck deletes any prior audit record for the check and inserts
// the new one in a single transaction. At most one record exists per check.
func (db *DB) ReplaceForCheck(ctx context.Context, record domain.DeepAnalysisRecord) (recordID string, err error) {
	snapshot, err := json.Marshal(record.WeightSnapshot)
	if err != nil {
		return "", err
	}
	results, err := marshalResults(record.Results)
	if err != nil {
		return "", err
	}

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

	if _, err = tx.Exec(ctx, `DELETE FROM deep_analysis WHERE check_id = $1`, record.CheckID); err != nil {
		return "", err
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO deep_analysis
            (check_id, total_units, average_score, min_score, max_score, document_title, severity_config_snapshot, status, analysis_data)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, record.CheckID, record.TotalUnits, record.AverageScore, record.MinScore, record.MaxScore,
		record.DocumentTitle, snapshot, string(record.Status), results).Scan(&recordID)
	if err != nil {
		return "", err
	}
	return recordID, nil
}

// CompleteAnalysis writes the final ledger and stats and transitions the
// record to completed.
func (db *DB) CompleteAnalysis(ctx context.Context, recordID string, record domain.DeepAnalysisRecord) error {
	results, err := marshalResults(record.Results)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
        UPDATE deep_analysis
        SET total_units = $2, average_score = $3, min_score = $4, max_score = $5,
            analysis_data = $6, status = 'completed'
        WHERE id = $1
    `, recordID, record.TotalUnits, record.AverageScore, record.MinScore, record.MaxScore, results)
	return err
}

// MarkAnalysisFailed freezes the record in failed state. Partial data is
// left in place for forensic inspection.
func (db *DB) MarkAnalysisFailed(ctx context.Context, recordID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE deep_analysis SET status = 'failed' WHERE id = $1`, recordID)
	return err
}

func (db *DB) GetByCheck(ctx context.Context, checkID string) (domain.DeepAnalysisRecord, error) {
	var rec domain.DeepAnalysisRecord
	var snapshot, results []byte
	err := db.Pool.QueryRow(ctx, `
        SELECT id, check_id, total_units, average_score, min_score, max_score,
               COALESCE(document_title, ''), severity_config_snapshot, status, analysis_data, created_at
        FROM deep_analysis
        WHERE check_id = $1
    `, checkID).Scan(&rec.ID, &rec.CheckID, &rec.TotalUnits, &rec.AverageScore, &rec.MinScore,
		&rec.MaxScore, &rec.DocumentTitle, &snapshot, &rec.Status, &results, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ports.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(snapshot, &rec.WeightSnapshot); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(results, &rec.Results); err != nil {
		return rec, err
	}
	return rec, nil
}

func marshalResults(results []domain.UnitAnalysisResult) ([]byte, error) {
	if results == nil {
		results = []domain.UnitAnalysisResult{}
	}
	return json.Marshal(results)
}

var _ ports.DeepAnalysisRepository = (*DB)(nil)
var _ ports.RuleRepository = (*DB)(nil)
var _ ports.SubmissionRepository = (*DB)(nil)
var _ ports.ContentRepository = (*DB)(nil)
var _ ports.CheckRepository = (*DB)(nil)
var _ ports.FindingRepository = (*DB)(nil)
