package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCheckpointStorePutGetCopies(t *testing.T) {
	store := NewMemoryCheckpointStore()
	rec := NewRecord(quietInput())
	rec.Status = StatusPendingReview

	if err := store.Put(context.Background(), Checkpoint{AnalysisID: rec.AnalysisID, Node: NodeHITL, Record: rec}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the original must not leak into the stored snapshot.
	rec.Status = StatusRejected
	rec.Resources[0].MonthlyCost = 0

	got, err := store.Get(context.Background(), rec.AnalysisID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Node != NodeHITL {
		t.Fatalf("expected node hitl, got %s", got.Node)
	}
	if got.Record.Status != StatusPendingReview {
		t.Fatalf("stored status mutated: %s", got.Record.Status)
	}
	if got.Record.Resources[0].MonthlyCost != 400 {
		t.Fatalf("stored resources mutated: %v", got.Record.Resources[0].MonthlyCost)
	}

	// And mutating a read copy must not change the store.
	got.Record.Status = StatusCompleted
	again, err := store.Get(context.Background(), rec.AnalysisID)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Record.Status != StatusPendingReview {
		t.Fatalf("read copy aliased the store: %s", again.Record.Status)
	}
}

func TestMemoryCheckpointStoreGetMissing(t *testing.T) {
	store := NewMemoryCheckpointStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCheckpointStoreDelete(t *testing.T) {
	store := NewMemoryCheckpointStore()
	rec := NewRecord(quietInput())
	if err := store.Put(context.Background(), Checkpoint{AnalysisID: rec.AnalysisID, Node: NodeDone, Record: rec}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(context.Background(), rec.AnalysisID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(context.Background(), rec.AnalysisID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryCheckpointStorePendingReviewOrder(t *testing.T) {
	store := NewMemoryCheckpointStore()
	base := time.Now().UTC()

	mk := func(id string, status Status, started time.Time) {
		rec := NewRecord(quietInput())
		rec.AnalysisID = id
		rec.Status = status
		rec.StartedAt = started
		if err := store.Put(context.Background(), Checkpoint{AnalysisID: id, Node: NodeHITL, Record: rec}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	mk("newer", StatusPendingReview, base.Add(time.Minute))
	mk("done", StatusCompleted, base.Add(-time.Hour))
	mk("older", StatusPendingReview, base)

	pending, err := store.PendingReview(context.Background())
	if err != nil {
		t.Fatalf("pending review: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].AnalysisID != "older" || pending[1].AnalysisID != "newer" {
		t.Fatalf("expected oldest first, got %s then %s", pending[0].AnalysisID, pending[1].AnalysisID)
	}
}

func TestMemoryCheckpointStoreCancelledContext(t *testing.T) {
	store := NewMemoryCheckpointStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Put(ctx, Checkpoint{AnalysisID: "x", Record: NewRecord(quietInput())}); err == nil {
		t.Fatalf("expected context error")
	}
}
