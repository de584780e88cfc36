package recommendations

import "context"

// Repo defines persistence operations for recommendation rows.
type Repo interface {
	UpsertBatch(ctx context.Context, rows []Row) error
	GetByID(ctx context.Context, userID, id string) (Row, error)
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Row, error)
	UpdateStatus(ctx context.Context, id, status string) error
}
