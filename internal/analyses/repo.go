package analyses

import "context"

// Repo defines persistence operations for analysis summaries.
type Repo interface {
	Upsert(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, userID, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]Analysis, error)
}
