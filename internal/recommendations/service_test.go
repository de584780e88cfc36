package recommendations

import (
	"context"
	"errors"
	"testing"

	"costopt-backend/internal/gamification"
	"costopt-backend/internal/pipeline"
)

func newTestService() (*Service, *gamification.Service) {
	gam := gamification.NewService(gamification.NewMemoryRepo())
	return NewService(NewMemoryRepo(), gam), gam
}

func seedRow(t *testing.T, svc *Service, id string, savings float64, status pipeline.RecommendationStatus) {
	t.Helper()
	rec := &pipeline.Record{
		AnalysisID:     "a-1",
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		Recommendations: []pipeline.Recommendation{
			{ID: id, ResourceName: "vm-1", Action: pipeline.ActionRightSize, EstimatedSavings: savings, Confidence: 0.7, RiskLevel: pipeline.RiskLow, Status: status},
		},
	}
	if err := svc.Ingest(context.Background(), rec); err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

func TestReviewApproveCountsAdoption(t *testing.T) {
	svc, gam := newTestService()
	seedRow(t, svc, "r-1", 600, pipeline.RecPending)

	row, err := svc.Review(context.Background(), "user-1", "r-1", ActionApprove)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if row.Status != string(pipeline.RecApproved) {
		t.Fatalf("expected approved, got %s", row.Status)
	}

	stats, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AdoptedCount != 1 || stats.TotalSavings != 600 {
		t.Fatalf("adoption not recorded: %+v", stats)
	}
	if !stats.HasBadge(pipeline.BadgeFirstSave) || !stats.HasBadge(pipeline.BadgeBigSaver) {
		t.Fatalf("retro badges missing: %v", stats.Badges)
	}
}

func TestReviewRejectDoesNotCountAdoption(t *testing.T) {
	svc, gam := newTestService()
	seedRow(t, svc, "r-1", 600, pipeline.RecPending)

	if _, err := svc.Review(context.Background(), "user-1", "r-1", ActionReject); err != nil {
		t.Fatalf("review: %v", err)
	}
	stats, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AdoptedCount != 0 || stats.Points != 0 {
		t.Fatalf("reject must not credit the user: %+v", stats)
	}
}

func TestReviewIsFinal(t *testing.T) {
	svc, _ := newTestService()
	seedRow(t, svc, "r-1", 100, pipeline.RecPending)

	if _, err := svc.Review(context.Background(), "user-1", "r-1", ActionReject); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.Review(context.Background(), "user-1", "r-1", ActionApprove); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestImplementAfterApproveDoesNotDoubleCount(t *testing.T) {
	svc, gam := newTestService()
	seedRow(t, svc, "r-1", 100, pipeline.RecPending)

	if _, err := svc.Review(context.Background(), "user-1", "r-1", ActionApprove); err != nil {
		t.Fatalf("approve: %v", err)
	}
	row, err := svc.Review(context.Background(), "user-1", "r-1", ActionImplement)
	if err != nil {
		t.Fatalf("implement: %v", err)
	}
	if row.Status != string(pipeline.RecImplemented) {
		t.Fatalf("expected implemented, got %s", row.Status)
	}
	stats, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.AdoptedCount != 1 {
		t.Fatalf("adoption counted twice: %+v", stats)
	}
}

func TestReviewUnknownAction(t *testing.T) {
	svc, _ := newTestService()
	seedRow(t, svc, "r-1", 100, pipeline.RecPending)
	if _, err := svc.Review(context.Background(), "user-1", "r-1", "snooze"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestReviewScopedToOwner(t *testing.T) {
	svc, _ := newTestService()
	seedRow(t, svc, "r-1", 100, pipeline.RecPending)
	if _, err := svc.Review(context.Background(), "intruder", "r-1", ActionApprove); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	svc, _ := newTestService()
	seedRow(t, svc, "r-1", 500, pipeline.RecPending)
	seedRow(t, svc, "r-2", 900, pipeline.RecApproved)

	pending, err := svc.List(context.Background(), "user-1", string(pipeline.RecPending), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r-1" {
		t.Fatalf("unexpected pending rows: %+v", pending)
	}

	all, err := svc.List(context.Background(), "user-1", "", 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "r-2" {
		t.Fatalf("expected savings-ordered rows, got %+v", all)
	}
}
