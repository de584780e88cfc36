package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateDefaultsProvider(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	sub, err := svc.Create(context.Background(), "user-1", CreateInput{Name: "  Production  ", CurrentMonthlySpend: 5000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Provider != "azure" {
		t.Fatalf("expected default provider azure, got %q", sub.Provider)
	}
	if sub.Name != "Production" {
		t.Fatalf("expected trimmed name, got %q", sub.Name)
	}
	if sub.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestGetScopedToOwner(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	sub, err := svc.Create(context.Background(), "user-1", CreateInput{Name: "Prod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-2", sub.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-1", sub.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestSnapshotOrdersHistory(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	sub, err := svc.Create(context.Background(), "user-1", CreateInput{Name: "Prod", CurrentMonthlySpend: 3000})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cpu := 12.0
	if err := svc.SetResources(context.Background(), "user-1", sub.ID, []ResourceRecord{
		{Name: "vm-1", Type: "virtual_machine", MonthlyCost: 400, CPUUsagePct: &cpu},
	}); err != nil {
		t.Fatalf("set resources: %v", err)
	}
	if err := svc.IngestCosts(context.Background(), "user-1", sub.ID, []CostPoint{
		{Date: "2026-08-03", TotalCost: 120},
		{Date: "2026-08-01", TotalCost: 100},
		{Date: "2026-08-02", TotalCost: 110},
	}); err != nil {
		t.Fatalf("ingest costs: %v", err)
	}

	snap, err := svc.Snapshot(context.Background(), "user-1", sub.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Resources) != 1 || snap.Resources[0].ID == "" {
		t.Fatalf("expected one resource with generated id, got %+v", snap.Resources)
	}
	dates := []string{snap.CostHistory[0].Date, snap.CostHistory[1].Date, snap.CostHistory[2].Date}
	if dates[0] != "2026-08-01" || dates[2] != "2026-08-03" {
		t.Fatalf("history not ordered by date: %v", dates)
	}

	history := snap.PipelineHistory()
	if len(history) != 3 || history[0].TotalCost != 100 {
		t.Fatalf("pipeline history conversion wrong: %+v", history)
	}
	resources := snap.PipelineResources()
	if resources[0].CPUUsagePct == nil || *resources[0].CPUUsagePct != 12.0 {
		t.Fatalf("pipeline resource conversion wrong: %+v", resources[0])
	}
}

func TestRecordAnalysisUpdatesHealth(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	sub, err := svc.Create(context.Background(), "user-1", CreateInput{Name: "Prod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().UTC()
	if err := svc.RecordAnalysis(context.Background(), sub.ID, 72, at); err != nil {
		t.Fatalf("record analysis: %v", err)
	}
	got, err := svc.Get(context.Background(), "user-1", sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HealthScore != 72 {
		t.Fatalf("expected health 72, got %d", got.HealthScore)
	}
	if got.LastAnalyzedAt == nil || !got.LastAnalyzedAt.Equal(at) {
		t.Fatalf("expected last_analyzed_at %v, got %v", at, got.LastAnalyzedAt)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Now().UTC()
	for i, name := range []string{"a", "b", "c"} {
		if err := repo.Create(context.Background(), Subscription{
			ID: name, UserID: "user-1", Name: name, CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	subs, err := svc.List(context.Background(), "user-1", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 || subs[0].ID != "c" || subs[1].ID != "b" {
		t.Fatalf("expected newest first with limit, got %+v", subs)
	}
}
