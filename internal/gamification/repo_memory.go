package gamification

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores stats in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string]Stats
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string]Stats)}
}

// Get returns the stats for a user.
func (r *MemoryRepo) Get(ctx context.Context, userID string) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats, ok := r.byUser[userID]
	if !ok {
		return Stats{}, ErrNotFound
	}
	stats.Badges = append([]string(nil), stats.Badges...)
	return stats, nil
}

// Upsert stores the full stats row.
func (r *MemoryRepo) Upsert(ctx context.Context, stats Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stats.Badges = append([]string(nil), stats.Badges...)
	r.byUser[stats.UserID] = stats
	return nil
}

// Leaderboard returns the top users by points.
func (r *MemoryRepo) Leaderboard(ctx context.Context, limit int) ([]Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Stats, 0, len(r.byUser))
	for _, stats := range r.byUser {
		stats.Badges = append([]string(nil), stats.Badges...)
		all = append(all, stats)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

var _ Repo = (*MemoryRepo)(nil)
