package subscriptions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores subscriptions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Subscription
	resources map[string][]ResourceRecord
	history   map[string][]CostPoint
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Subscription),
		resources: make(map[string][]ResourceRecord),
		history:   make(map[string][]CostPoint),
	}
}

// Create stores the subscription.
func (r *MemoryRepo) Create(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[sub.ID] = sub
	return nil
}

// GetByID returns a subscription scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, subscriptionID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[subscriptionID]
	if !ok || sub.UserID != userID {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}

// ListByUser returns the user's subscriptions, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []Subscription
	for _, sub := range r.byID {
		if sub.UserID == userID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	if offset >= len(subs) {
		return []Subscription{}, nil
	}
	subs = subs[offset:]
	if limit > 0 && limit < len(subs) {
		subs = subs[:limit]
	}
	return subs, nil
}

// UpdateHealth records a finished analysis on the subscription.
func (r *MemoryRepo) UpdateHealth(ctx context.Context, subscriptionID string, healthScore int, analyzedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[subscriptionID]
	if !ok {
		return ErrNotFound
	}
	sub.HealthScore = healthScore
	sub.LastAnalyzedAt = &analyzedAt
	sub.UpdatedAt = time.Now().UTC()
	r.byID[subscriptionID] = sub
	return nil
}

// ReplaceResources swaps the full resource set of a subscription.
func (r *MemoryRepo) ReplaceResources(ctx context.Context, subscriptionID string, resources []ResourceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[subscriptionID]; !ok {
		return ErrNotFound
	}
	r.resources[subscriptionID] = append([]ResourceRecord(nil), resources...)
	return nil
}

// AppendCostHistory adds daily spend points.
func (r *MemoryRepo) AppendCostHistory(ctx context.Context, points []CostPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range points {
		if _, ok := r.byID[p.SubscriptionID]; !ok {
			return ErrNotFound
		}
		r.history[p.SubscriptionID] = append(r.history[p.SubscriptionID], p)
	}
	return nil
}

// Snapshot returns the subscription with its resources and history, history
// ordered by date ascending.
func (r *MemoryRepo) Snapshot(ctx context.Context, userID, subscriptionID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[subscriptionID]
	if !ok || sub.UserID != userID {
		return Snapshot{}, ErrNotFound
	}
	history := append([]CostPoint(nil), r.history[subscriptionID]...)
	sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	return Snapshot{
		Subscription: sub,
		Resources:    append([]ResourceRecord(nil), r.resources[subscriptionID]...),
		CostHistory:  history,
	}, nil
}

var _ Repo = (*MemoryRepo)(nil)
