package gamification

import "context"

// Repo defines persistence operations for gamification stats.
type Repo interface {
	Get(ctx context.Context, userID string) (Stats, error)
	Upsert(ctx context.Context, stats Stats) error
	Leaderboard(ctx context.Context, limit int) ([]Stats, error)
}
