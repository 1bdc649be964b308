package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"redline/internal/domain"
	"redline/internal/services/segmenter"
)

// UnitsForSubmission returns the submission's content chunks in index
// order. Submissions that were never preprocessed are segmented on the fly
// from the raw content, so callers never special-case legacy documents.
// On-the-fly units carry deterministic UUIDv5 identities derived from the
// submission id and chunk index: repeated calls yield the same units.
func (db *DB) UnitsForSubmission(ctx context.Context, submissionID string) ([]domain.ContentUnit, error) {
	sub, err := db.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	// Stored chunks win regardless of status: the submission may already
	// be mid-analysis and flagged as such.
	units, err := db.listChunks(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if len(units) > 0 {
		return units, nil
	}
	return segmentedUnits(sub, db.Chunking), nil
}

func (db *DB) listChunks(ctx context.Context, submissionID string) ([]domain.ContentUnit, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, chunk_index, text, token_count, COALESCE(metadata, '{}'::jsonb)
        FROM content_chunks
        WHERE submission_id = $1
        ORDER BY chunk_index
    `, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContentUnit
	for rows.Next() {
		var u domain.ContentUnit
		var meta []byte
		if err := rows.Scan(&u.ID, &u.Index, &u.Text, &u.TokenCount, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &u.Metadata); err != nil {
			u.Metadata = domain.UnitMetadata{}
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// segmentedUnits segments a never-preprocessed submission's raw content.
// HTML sources are reduced to visible text first. Multi-line text is
// analyzed line by line; single-paragraph blobs fall back to sliding
// character windows. Returns nil for effectively empty content.
func segmentedUnits(sub domain.Submission, opts segmenter.ChunkOptions) []domain.ContentUnit {
	text := sub.Content
	if sub.ContentType == "html" {
		text = segmenter.StripHTML(text)
	}

	if lines := segmenter.Lines(text); len(lines) > 1 {
		units := make([]domain.ContentUnit, 0, len(lines))
		for _, l := range lines {
			id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:line:%d", sub.ID, l.Number)))
			// Index carries the original document line so audit and
			// finding locations map back to the source text even when
			// blank lines were skipped.
			units = append(units, domain.ContentUnit{
				ID:         id.String(),
				Index:      l.Number - 1,
				Text:       l.Content,
				TokenCount: len(strings.Fields(l.Content)),
				Metadata: domain.UnitMetadata{
					SourceType:     sub.ContentType,
					ChunkMethod:    "line",
					Synthetic:      true,
					OriginalLength: len(sub.Content),
				},
			})
		}
		return units
	}

	chunks := segmenter.Chunks(text, opts)
	units := make([]domain.ContentUnit, 0, len(chunks))
	for _, c := range chunks {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", sub.ID, c.Index)))
		units = append(units, domain.ContentUnit{
			ID:         id.String(),
			Index:      c.Index,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			Metadata: domain.UnitMetadata{
				SourceType:      sub.ContentType,
				CharOffsetStart: c.Start,
				CharOffsetEnd:   c.End,
				ChunkMethod:     "sliding_window",
				Synthetic:       true,
				OriginalLength:  len(sub.Content),
			},
		})
	}
	if len(units) == 0 {
		return nil
	}
	return units
}
