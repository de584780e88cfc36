package subscriptions

import (
	"context"
	"time"
)

// Repo defines persistence operations for subscriptions and their inputs.
type Repo interface {
	Create(ctx context.Context, sub Subscription) error
	GetByID(ctx context.Context, userID, subscriptionID string) (Subscription, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Subscription, error)
	UpdateHealth(ctx context.Context, subscriptionID string, healthScore int, analyzedAt time.Time) error

	ReplaceResources(ctx context.Context, subscriptionID string, resources []ResourceRecord) error
	AppendCostHistory(ctx context.Context, points []CostPoint) error
	Snapshot(ctx context.Context, userID, subscriptionID string) (Snapshot, error)
}
