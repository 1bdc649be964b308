package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"redline/internal/domain"
	"redline/internal/ports"
)

// RuleRepository

func (db *DB) ListActive(ctx context.Context) ([]domain.Rule, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, category, rule_text, severity, keywords, pattern, points_deduction, is_active, created_at
        FROM rules
        WHERE is_active
        ORDER BY created_at, id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (db *DB) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Rule, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, category, rule_text, severity, keywords, pattern, points_deduction, is_active, created_at
        FROM rules
        WHERE category = $1
        ORDER BY created_at, id
    `, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (db *DB) Get(ctx context.Context, id string) (domain.Rule, error) {
	var r domain.Rule
	// Ledger rule ids can be detector inventions; anything that is not a
	// UUID cannot be a stored rule.
	if _, err := uuid.Parse(id); err != nil {
		return r, ports.ErrNotFound
	}
	err := db.Pool.QueryRow(ctx, `
        SELECT id, category, rule_text, severity, keywords, pattern, points_deduction, is_active, created_at
        FROM rules
        WHERE id = $1
    `, id).Scan(&r.ID, &r.Category, &r.RuleText, &r.Severity, &r.Keywords, &r.Pattern, &r.PointsDeduction, &r.IsActive, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ports.ErrNotFound
	}
	return r, err
}

func scanRules(rows pgx.Rows) ([]domain.Rule, error) {
	var out []domain.Rule
	for rows.Next() {
		var r domain.Rule
		if err := rows.Scan(&r.ID, &r.Category, &r.RuleText, &r.Severity, &r.Keywords, &r.Pattern, &r.PointsDeduction, &r.IsActive, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SubmissionRepository

func (db *DB) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var s domain.Submission
	err := db.Pool.QueryRow(ctx, `
        SELECT id, title, COALESCE(original_content, ''), content_type, status
        FROM submissions
        WHERE id = $1
    `, id).Scan(&s.ID, &s.Title, &s.Content, &s.ContentType, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ports.ErrNotFound
	}
	return s, err
}

// CheckRepository

func (db *DB) GetCheckBySubmission(ctx context.Context, submissionID string) (domain.ComplianceCheck, error) {
	var c domain.ComplianceCheck
	err := db.Pool.QueryRow(ctx, `
        SELECT id, submission_id, overall_score, regulatory_score, brand_score, seo_score,
               COALESCE(status, ''), COALESCE(grade, ''), COALESCE(ai_summary, ''), check_date
        FROM compliance_checks
        WHERE submission_id = $1
        ORDER BY check_date DESC
        LIMIT 1
    `, submissionID).Scan(&c.ID, &c.SubmissionID, &c.OverallScore, &c.RegulatoryScore, &c.BrandScore,
		&c.SEOScore, &c.Status, &c.Grade, &c.AISummary, &c.CheckDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ports.ErrNotFound
	}
	return c, err
}

func (db *DB) UpdateCheckScores(ctx context.Context, check domain.ComplianceCheck) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE compliance_checks
        SET overall_score = $2, regulatory_score = $3, brand_score = $4, seo_score = $5,
            status = $6, grade = $7, ai_summary = $8
        WHERE id = $1
    `, check.ID, check.OverallScore, check.RegulatoryScore, check.BrandScore, check.SEOScore,
		check.Status, check.Grade, check.AISummary)
	return err
}

// FindingRepository

func (db *DB) ListFindings(ctx context.Context, checkID string) ([]domain.Finding, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, check_id, rule_id, severity, category, description,
               COALESCE(location, ''), COALESCE(current_text, ''), COALESCE(suggested_fix, ''), is_auto_fixable
        FROM findings
        WHERE check_id = $1
        ORDER BY id
    `, checkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(&f.ID, &f.CheckID, &f.RuleID, &f.Severity, &f.Category, &f.Description,
			&f.Location, &f.CurrentText, &f.SuggestedFix, &f.IsAutoFixable); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceFindings swaps a check's findings atomically: delete-then-insert
// in one transaction, per the promotion protocol.
func (db *DB) ReplaceFindings(ctx context.Context, checkID string, findings []domain.Finding) (err error) {
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

	if _, err = tx.Exec(ctx, `DELETE FROM findings WHERE check_id = $1`, checkID); err != nil {
		return err
	}
	for _, f := range findings {
		if _, err = tx.Exec(ctx, `
            INSERT INTO findings (check_id, rule_id, severity, category, description, location, current_text, suggested_fix, is_auto_fixable)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `, checkID, f.RuleID, string(f.Severity), string(f.Category), f.Description,
			f.Location, f.CurrentText, f.SuggestedFix, f.IsAutoFixable); err != nil {
			return err
		}
	}
	return nil
}
