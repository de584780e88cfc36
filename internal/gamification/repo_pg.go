package gamification

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

// Get returns the stats for a user.
func (r *PGRepo) Get(ctx context.Context, userID string) (Stats, error) {
	const query = `
SELECT user_id, points, badges, analyses_run, adopted_count, total_savings, max_single_savings, updated_at
FROM gamification
WHERE user_id = $1
LIMIT 1`
	var stats Stats
	var badges sql.NullString
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.Points,
		&badges,
		&stats.AnalysesRun,
		&stats.AdoptedCount,
		&stats.TotalSavings,
		&stats.MaxSingleSavings,
		&stats.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, ErrNotFound
	}
	if err != nil {
		return Stats{}, err
	}
	if badges.Valid && badges.String != "" {
		if err := json.Unmarshal([]byte(badges.String), &stats.Badges); err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

// Upsert stores the full stats row.
func (r *PGRepo) Upsert(ctx context.Context, stats Stats) error {
	const query = `
INSERT INTO gamification (user_id, points, badges, analyses_run, adopted_count, total_savings, max_single_savings, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET
	points = EXCLUDED.points,
	badges = EXCLUDED.badges,
	analyses_run = EXCLUDED.analyses_run,
	adopted_count = EXCLUDED.adopted_count,
	total_savings = EXCLUDED.total_savings,
	max_single_savings = EXCLUDED.max_single_savings,
	updated_at = EXCLUDED.updated_at`
	badges, err := json.Marshal(stats.Badges)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		stats.UserID,
		stats.Points,
		string(badges),
		stats.AnalysesRun,
		stats.AdoptedCount,
		stats.TotalSavings,
		stats.MaxSingleSavings,
		stats.UpdatedAt,
	)
	return err
}

// Leaderboard returns the top users by points.
func (r *PGRepo) Leaderboard(ctx context.Context, limit int) ([]Stats, error) {
	const query = `
SELECT user_id, points, badges, analyses_run, adopted_count, total_savings, max_single_savings, updated_at
FROM gamification
ORDER BY points DESC, user_id ASC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []Stats
	for rows.Next() {
		var stats Stats
		var badges sql.NullString
		if err := rows.Scan(
			&stats.UserID,
			&stats.Points,
			&badges,
			&stats.AnalysesRun,
			&stats.AdoptedCount,
			&stats.TotalSavings,
			&stats.MaxSingleSavings,
			&stats.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if badges.Valid && badges.String != "" {
			if err := json.Unmarshal([]byte(badges.String), &stats.Badges); err != nil {
				return nil, err
			}
		}
		all = append(all, stats)
	}
	return all, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
