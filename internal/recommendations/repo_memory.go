package recommendations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores recommendation rows in memory and is safe for concurrent
// use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Row
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Row)}
}

// UpsertBatch stores or replaces rows.
func (r *MemoryRepo) UpsertBatch(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.byID[row.ID] = row
	}
	return nil
}

// GetByID returns a row scoped to its owner.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.byID[id]
	if !ok || row.UserID != userID {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// ListByUser returns rows for the user, optionally filtered by status,
// largest savings first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows []Row
	for _, row := range r.byID {
		if row.UserID != userID {
			continue
		}
		if status != "" && row.Status != status {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EstimatedSavings != rows[j].EstimatedSavings {
			return rows[i].EstimatedSavings > rows[j].EstimatedSavings
		}
		return rows[i].ID < rows[j].ID
	})
	if offset >= len(rows) {
		return []Row{}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

// UpdateStatus changes a row's status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = time.Now().UTC()
	r.byID[id] = row
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
