package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"textlens/internal/types"
)

// UsageRecordRepo provides data access for the usage_records table.
// Records are append-only from the metering core's perspective; deletion
// happens only through the explicit user-initiated purge operations below.
type UsageRecordRepo struct {
	db DBTX
}

// NewUsageRecordRepo creates a new UsageRecordRepo backed by the given
// database connection (pool or transaction).
func NewUsageRecordRepo(db DBTX) *UsageRecordRepo {
	return &UsageRecordRepo{db: db}
}

// usageColumns is the standard column set for usage record queries.
// Used consistently across all query methods to avoid column drift.
const usageColumns = `id, user_id, tool, source_type, input_descriptor, input_chars, words,
	score, credits_charged, credits_remaining, provider_meta, created_at`

func scanUsageRecord(row pgx.Row) (*types.UsageRecord, error) {
	var rec types.UsageRecord
	var descriptor *string
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Tool,
		&rec.SourceType,
		&descriptor,
		&rec.InputChars,
		&rec.Words,
		&rec.Score,
		&rec.CreditsCharged,
		&rec.CreditsRemaining,
		&rec.ProviderMeta,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if descriptor != nil {
		rec.InputDescriptor = *descriptor
	}
	return &rec, nil
}

// Insert appends a usage record. Called only after a successful provider
// call and a successful deduction; never on the failure path.
func (r *UsageRecordRepo) Insert(ctx context.Context, rec *types.UsageRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_records
		     (id, user_id, tool, source_type, input_descriptor, input_chars, words,
		      score, credits_charged, credits_remaining, provider_meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID,
		rec.UserID,
		rec.Tool,
		rec.SourceType,
		rec.InputDescriptor,
		rec.InputChars,
		rec.Words,
		rec.Score,
		rec.CreditsCharged,
		rec.CreditsRemaining,
		rec.ProviderMeta,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert usage record", err)
	}
	return nil
}

// ListByUser returns the user's usage records, newest first.
func (r *UsageRecordRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]types.UsageRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+usageColumns+`
		 FROM usage_records
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list usage records", err)
	}
	defer rows.Close()

	var records []types.UsageRecord
	for rows.Next() {
		rec, err := scanUsageRecord(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan usage record", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating usage records", err)
	}
	return records, nil
}

// Delete removes a single record, scoped to its owner.
// Returns ErrCodeNotFoundUsageRecord if the record does not exist or
// belongs to another user.
func (r *UsageRecordRepo) Delete(ctx context.Context, userID, recordID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM usage_records WHERE id = $1 AND user_id = $2`,
		recordID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete usage record", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUsageRecord, "usage record not found", nil)
	}
	return nil
}

// DeleteAllByUser wipes the user's entire history. Returns the number of
// records removed.
func (r *UsageRecordRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM usage_records WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to wipe usage history", err)
	}
	return tag.RowsAffected(), nil
}
