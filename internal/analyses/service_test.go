package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"costopt-backend/internal/gamification"
	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/recommendations"
	"costopt-backend/internal/shared/storage/object/local"
	"costopt-backend/internal/subscriptions"
)

func newTestService(t *testing.T) (*Service, *subscriptions.Service, *gamification.Service) {
	t.Helper()
	subs := subscriptions.NewService(subscriptions.NewMemoryRepo())
	gam := gamification.NewService(gamification.NewMemoryRepo())
	orch := pipeline.NewOrchestrator(nil, pipeline.NewMemoryCheckpointStore(), time.Second)
	recs := recommendations.NewService(recommendations.NewMemoryRepo(), gam)
	svc := NewService(NewMemoryRepo(), orch, subs, gam, recs, local.New(t.TempDir()))
	return svc, subs, gam
}

func seedSubscription(t *testing.T, subs *subscriptions.Service, userID string) subscriptions.Subscription {
	t.Helper()
	sub, err := subs.Create(context.Background(), userID, subscriptions.CreateInput{
		Name:                "Production",
		CurrentMonthlySpend: 5000,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	cpu := 10.0
	if err := subs.SetResources(context.Background(), userID, sub.ID, []subscriptions.ResourceRecord{
		{Name: "vm-batch", Type: "virtual_machine", MonthlyCost: 400, CPUUsagePct: &cpu},
	}); err != nil {
		t.Fatalf("set resources: %v", err)
	}
	return sub
}

func TestStartPersistsSummaryAndSideEffects(t *testing.T) {
	svc, subs, gam := newTestService(t)
	sub := seedSubscription(t, subs, "user-1")

	rec, err := svc.Start(context.Background(), "user-1", sub.ID, "30d")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s", rec.Status)
	}

	summary, err := svc.Get(context.Background(), "user-1", rec.AnalysisID)
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary.Status != string(pipeline.StatusCompleted) {
		t.Fatalf("summary status %s", summary.Status)
	}
	if summary.AnomalyCount != 1 || summary.StateKey == "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Health score lands on the subscription.
	got, err := subs.Get(context.Background(), "user-1", sub.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if got.HealthScore != rec.HealthScore || got.LastAnalyzedAt == nil {
		t.Fatalf("subscription not updated: %+v", got)
	}

	// Points land on the user.
	stats, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Points != rec.PointsEarned || stats.AnalysesRun != 1 {
		t.Fatalf("gamification not updated: %+v", stats)
	}

	// Full state is retrievable from the archive path too.
	state, err := svc.State(context.Background(), "user-1", rec.AnalysisID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.AnalysisID != rec.AnalysisID || len(state.Decisions) == 0 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestStartUnknownSubscription(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Start(context.Background(), "user-1", "missing", ""); !errors.Is(err, subscriptions.ErrNotFound) {
		t.Fatalf("expected subscriptions.ErrNotFound, got %v", err)
	}
}

func TestResumeScopedToOwner(t *testing.T) {
	svc, subs, _ := newTestService(t)
	sub := seedSubscription(t, subs, "user-1")
	rec, err := svc.Start(context.Background(), "user-1", sub.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = svc.Resume(context.Background(), "intruder", rec.AnalysisID, pipeline.ReviewDecision{Decision: pipeline.DecisionApproveAll})
	if !errors.Is(err, pipeline.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}

func TestResumeCompletedDoesNotDoubleCount(t *testing.T) {
	svc, subs, gam := newTestService(t)
	sub := seedSubscription(t, subs, "user-1")
	rec, err := svc.Start(context.Background(), "user-1", sub.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	before, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if _, err := svc.Resume(context.Background(), "user-1", rec.AnalysisID, pipeline.ReviewDecision{Decision: pipeline.DecisionApproveAll}); err != nil {
		t.Fatalf("idempotent resume: %v", err)
	}
	after, err := gam.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if after.Points != before.Points || after.AnalysesRun != before.AnalysesRun {
		t.Fatalf("idempotent resume changed stats: %+v vs %+v", before, after)
	}
}

func TestStartStreamDeliversTerminalEvent(t *testing.T) {
	svc, subs, _ := newTestService(t)
	sub := seedSubscription(t, subs, "user-1")

	stream, err := svc.StartStream(context.Background(), "user-1", sub.ID, "30d")
	if err != nil {
		t.Fatalf("start stream: %v", err)
	}

	sawTerminal := false
	for {
		ev, ok := stream.Next(2 * time.Second)
		if !ok {
			break
		}
		if ev.Terminal() {
			sawTerminal = true
			break
		}
	}
	if !sawTerminal {
		t.Fatalf("stream never delivered a terminal event")
	}
}
