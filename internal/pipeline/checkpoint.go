package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when no checkpoint exists for an analysis ID.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a paused or finished run snapshot held by a CheckpointStore.
type Checkpoint struct {
	AnalysisID string
	Node       Node
	Record     *Record
}

// CheckpointStore persists run state across the HITL pause. Implementations
// must deep-copy records on both write and read so callers never share state
// with the store.
type CheckpointStore interface {
	Put(ctx context.Context, cp Checkpoint) error
	Get(ctx context.Context, analysisID string) (Checkpoint, error)
	Delete(ctx context.Context, analysisID string) error
	PendingReview(ctx context.Context) ([]Checkpoint, error)
}

// MemoryCheckpointStore is the in-process store used by the API server and
// by tests.
type MemoryCheckpointStore struct {
	mu    sync.RWMutex
	items map[string]Checkpoint
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{items: make(map[string]Checkpoint)}
}

func (s *MemoryCheckpointStore) Put(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.AnalysisID == "" {
		return errors.New("checkpoint requires analysis id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.Record = cp.Record.Clone()
	s.items[cp.AnalysisID] = cp
	return nil
}

func (s *MemoryCheckpointStore) Get(ctx context.Context, analysisID string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.items[analysisID]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	cp.Record = cp.Record.Clone()
	return cp, nil
}

func (s *MemoryCheckpointStore) Delete(ctx context.Context, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[analysisID]; !ok {
		return ErrNotFound
	}
	delete(s.items, analysisID)
	return nil
}

// PendingReview returns checkpoints whose record is paused for human review,
// ordered by start time so the oldest request is reviewed first.
func (s *MemoryCheckpointStore) PendingReview(ctx context.Context) ([]Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Checkpoint
	for _, cp := range s.items {
		if cp.Record != nil && cp.Record.Status == StatusPendingReview {
			cp.Record = cp.Record.Clone()
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Record.StartedAt.Before(out[j].Record.StartedAt)
	})
	return out, nil
}

var _ CheckpointStore = (*MemoryCheckpointStore)(nil)
