package recommendations

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// UpsertBatch stores or replaces rows.
func (r *PGRepo) UpsertBatch(ctx context.Context, rows []Row) error {
	const query = `
INSERT INTO recommendations (
	id, analysis_id, subscription_id, user_id, resource_name, resource_type, action,
	description, estimated_savings, confidence, risk_level, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	for _, row := range rows {
		if _, err := r.DB.ExecContext(ctx, query,
			row.ID, row.AnalysisID, row.SubscriptionID, row.UserID,
			row.ResourceName, row.ResourceType, row.Action, row.Description,
			row.EstimatedSavings, row.Confidence, row.RiskLevel, row.Status,
			row.CreatedAt, row.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

const selectColumns = `
SELECT id, analysis_id, subscription_id, user_id, resource_name, resource_type, action,
       description, estimated_savings, confidence, risk_level, status, created_at, updated_at
FROM recommendations`

// GetByID returns a row scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Row, error) {
	query := selectColumns + `
WHERE id = $1 AND user_id = $2
LIMIT 1`
	return scanRow(r.DB.QueryRowContext(ctx, query, id, userID))
}

// ListByUser returns rows for the user, optionally filtered by status,
// largest savings first.
func (r *PGRepo) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Row, error) {
	query := selectColumns + `
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY estimated_savings DESC, id ASC
LIMIT $3 OFFSET $4`
	rows, err := r.DB.QueryContext(ctx, query, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}
	return all, rows.Err()
}

// UpdateStatus changes a row's status.
func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `
UPDATE recommendations
SET status = $2, updated_at = NOW()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(scanner rowScanner) (Row, error) {
	var row Row
	err := scanner.Scan(
		&row.ID,
		&row.AnalysisID,
		&row.SubscriptionID,
		&row.UserID,
		&row.ResourceName,
		&row.ResourceType,
		&row.Action,
		&row.Description,
		&row.EstimatedSavings,
		&row.Confidence,
		&row.RiskLevel,
		&row.Status,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return row, nil
}

var _ Repo = (*PGRepo)(nil)
