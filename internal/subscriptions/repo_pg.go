package subscriptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new subscription.
func (r *PGRepo) Create(ctx context.Context, sub Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, name, provider, current_monthly_spend, health_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Name,
		sub.Provider,
		sub.CurrentMonthlySpend,
		sub.HealthScore,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// GetByID returns a subscription scoped to its owner.
func (r *PGRepo) GetByID(ctx context.Context, userID, subscriptionID string) (Subscription, error) {
	const query = `
SELECT id, user_id, name, provider, current_monthly_spend, health_score, last_analyzed_at, created_at, updated_at
FROM subscriptions
WHERE id = $1 AND user_id = $2
LIMIT 1`
	return scanSubscription(r.DB.QueryRowContext(ctx, query, subscriptionID, userID))
}

// ListByUser returns the user's subscriptions, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Subscription, error) {
	const query = `
SELECT id, user_id, name, provider, current_monthly_spend, health_score, last_analyzed_at, created_at, updated_at
FROM subscriptions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateHealth records a finished analysis on the subscription.
func (r *PGRepo) UpdateHealth(ctx context.Context, subscriptionID string, healthScore int, analyzedAt time.Time) error {
	const query = `
UPDATE subscriptions
SET health_score = $2, last_analyzed_at = $3, updated_at = NOW()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, subscriptionID, healthScore, analyzedAt)
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

// ReplaceResources swaps the full resource set of a subscription.
func (r *PGRepo) ReplaceResources(ctx context.Context, subscriptionID string, resources []ResourceRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE subscription_id = $1`, subscriptionID); err != nil {
		return err
	}
	const insert = `
INSERT INTO resources (id, subscription_id, name, type, region, monthly_cost, cpu_usage_pct, memory_usage_pct)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, res := range resources {
		if _, err := tx.ExecContext(ctx, insert,
			res.ID, subscriptionID, res.Name, res.Type, res.Region,
			res.MonthlyCost, res.CPUUsagePct, res.MemoryUsagePct,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendCostHistory adds daily spend points, one row per day per
// subscription.
func (r *PGRepo) AppendCostHistory(ctx context.Context, points []CostPoint) error {
	const query = `
INSERT INTO cost_history (subscription_id, date, total_cost, breakdown)
VALUES ($1, $2, $3, $4)
ON CONFLICT (subscription_id, date) DO UPDATE SET total_cost = EXCLUDED.total_cost, breakdown = EXCLUDED.breakdown`
	for _, p := range points {
		breakdown, err := marshalBreakdown(p.Breakdown)
		if err != nil {
			return err
		}
		if _, err := r.DB.ExecContext(ctx, query, p.SubscriptionID, p.Date, p.TotalCost, breakdown); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns the subscription with its resources and history, history
// ordered by date ascending.
func (r *PGRepo) Snapshot(ctx context.Context, userID, subscriptionID string) (Snapshot, error) {
	sub, err := r.GetByID(ctx, userID, subscriptionID)
	if err != nil {
		return Snapshot{}, err
	}

	const resourceQuery = `
SELECT id, subscription_id, name, type, region, monthly_cost, cpu_usage_pct, memory_usage_pct
FROM resources
WHERE subscription_id = $1
ORDER BY monthly_cost DESC`
	rows, err := r.DB.QueryContext(ctx, resourceQuery, subscriptionID)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	var resources []ResourceRecord
	for rows.Next() {
		var res ResourceRecord
		var region sql.NullString
		if err := rows.Scan(&res.ID, &res.SubscriptionID, &res.Name, &res.Type, &region, &res.MonthlyCost, &res.CPUUsagePct, &res.MemoryUsagePct); err != nil {
			return Snapshot{}, err
		}
		res.Region = region.String
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	const historyQuery = `
SELECT subscription_id, date, total_cost, breakdown
FROM cost_history
WHERE subscription_id = $1
ORDER BY date ASC`
	historyRows, err := r.DB.QueryContext(ctx, historyQuery, subscriptionID)
	if err != nil {
		return Snapshot{}, err
	}
	defer historyRows.Close()

	var history []CostPoint
	for historyRows.Next() {
		var p CostPoint
		var breakdown sql.NullString
		if err := historyRows.Scan(&p.SubscriptionID, &p.Date, &p.TotalCost, &breakdown); err != nil {
			return Snapshot{}, err
		}
		if breakdown.Valid && breakdown.String != "" {
			if err := json.Unmarshal([]byte(breakdown.String), &p.Breakdown); err != nil {
				return Snapshot{}, err
			}
		}
		history = append(history, p)
	}
	if err := historyRows.Err(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Subscription: sub, Resources: resources, CostHistory: history}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	var lastAnalyzed sql.NullTime
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Name,
		&sub.Provider,
		&sub.CurrentMonthlySpend,
		&sub.HealthScore,
		&lastAnalyzed,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, err
	}
	if lastAnalyzed.Valid {
		sub.LastAnalyzedAt = &lastAnalyzed.Time
	}
	return sub, nil
}

func marshalBreakdown(breakdown map[string]float64) (any, error) {
	if breakdown == nil {
		return nil, nil
	}
	data, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

var _ Repo = (*PGRepo)(nil)
