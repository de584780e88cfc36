package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Upsert stores or replaces the summary.
func (r *PGRepo) Upsert(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, subscription_id, user_id, status, analysis_period, anomaly_count, anomaly_severity,
	recommendation_count, total_potential_savings, forecast_30d, health_score, points_earned,
	review_priority, review_reasons, state_key, created_at, updated_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	anomaly_count = EXCLUDED.anomaly_count,
	anomaly_severity = EXCLUDED.anomaly_severity,
	recommendation_count = EXCLUDED.recommendation_count,
	total_potential_savings = EXCLUDED.total_potential_savings,
	forecast_30d = EXCLUDED.forecast_30d,
	health_score = EXCLUDED.health_score,
	points_earned = EXCLUDED.points_earned,
	review_priority = EXCLUDED.review_priority,
	review_reasons = EXCLUDED.review_reasons,
	state_key = EXCLUDED.state_key,
	updated_at = EXCLUDED.updated_at,
	completed_at = EXCLUDED.completed_at`
	reasons, err := json.Marshal(analysis.ReviewReasons)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.SubscriptionID,
		analysis.UserID,
		analysis.Status,
		analysis.AnalysisPeriod,
		analysis.AnomalyCount,
		analysis.AnomalySeverity,
		analysis.RecommendationCount,
		analysis.TotalPotentialSavings,
		analysis.Forecast30d,
		analysis.HealthScore,
		analysis.PointsEarned,
		analysis.ReviewPriority,
		string(reasons),
		analysis.StateKey,
		analysis.CreatedAt,
		analysis.UpdatedAt,
		analysis.CompletedAt,
	)
	return err
}

const selectColumns = `
SELECT id, subscription_id, user_id, status, analysis_period, anomaly_count, anomaly_severity,
       recommendation_count, total_potential_savings, forecast_30d, health_score, points_earned,
       review_priority, review_reasons, state_key, created_at, updated_at, completed_at
FROM analyses`

// GetByID returns a summary scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, analysisID string) (Analysis, error) {
	query := selectColumns + `
WHERE id = $1 AND user_id = $2
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID, userID))
}

// ListByUser returns the user's analyses, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	query := selectColumns + `
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// ListBySubscription returns recent analyses of one subscription.
func (r *PGRepo) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]Analysis, error) {
	query := selectColumns + `
WHERE subscription_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var priority sql.NullString
	var reasons sql.NullString
	var stateKey sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.SubscriptionID,
		&a.UserID,
		&a.Status,
		&a.AnalysisPeriod,
		&a.AnomalyCount,
		&a.AnomalySeverity,
		&a.RecommendationCount,
		&a.TotalPotentialSavings,
		&a.Forecast30d,
		&a.HealthScore,
		&a.PointsEarned,
		&priority,
		&reasons,
		&stateKey,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	a.ReviewPriority = priority.String
	a.StateKey = stateKey.String
	if reasons.Valid && reasons.String != "" {
		if err := json.Unmarshal([]byte(reasons.String), &a.ReviewReasons); err != nil {
			return Analysis{}, err
		}
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func collectAnalyses(rows *sql.Rows) ([]Analysis, error) {
	var all []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	return all, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
