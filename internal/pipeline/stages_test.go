package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestDetectAnomaliesRulesSpike(t *testing.T) {
	r := &Record{
		CostHistory: []CostHistoryEntry{
			{Date: "2026-08-01", TotalCost: 100},
			{Date: "2026-08-02", TotalCost: 100},
			{Date: "2026-08-03", TotalCost: 100},
			{Date: "2026-08-04", TotalCost: 200},
		},
	}
	anomalies := detectAnomaliesRules(r)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 spike, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.Type != AnomalySpike {
		t.Fatalf("expected spike, got %s", a.Type)
	}
	// avg 125, 200 > 1.5x avg
	if a.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", a.Severity)
	}
	if want := 200.0 / 125.0 / 2.0; math.Abs(a.Score-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, a.Score)
	}
	if a.BaselineCost != 125 {
		t.Fatalf("expected baseline 125, got %v", a.BaselineCost)
	}
}

func TestDetectAnomaliesRulesIgnoresUnknownCPU(t *testing.T) {
	r := &Record{Resources: []Resource{
		{Name: "no-metrics", Type: "storage_account", MonthlyCost: 50},
		{Name: "busy", Type: "virtual_machine", MonthlyCost: 200, CPUUsagePct: floatPtr(80)},
	}}
	if anomalies := detectAnomaliesRules(r); len(anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %+v", anomalies)
	}
}

func TestOverallSeverityBands(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0.9, SeverityCritical},
		{0.8, SeverityCritical},
		{0.7, SeverityHigh},
		{0.5, SeverityMedium},
		{0.1, SeverityLow},
		{0, SeverityNone},
	}
	for _, tc := range cases {
		got := overallSeverity([]Anomaly{{Score: tc.score}})
		if got != tc.want {
			t.Fatalf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
	if got := overallSeverity(nil); got != SeverityNone {
		t.Fatalf("no anomalies: expected none, got %s", got)
	}
}

func TestRecommendRulesMapping(t *testing.T) {
	anomalies := []Anomaly{
		{ResourceName: "vm-1", Type: AnomalyUnderutilized, AffectedCost: 1000},
		{ResourceName: "sub", Type: AnomalySpike, AffectedCost: 500},
		{ResourceName: "disk-9", Type: AnomalyOrphaned, AffectedCost: 80},
		{ResourceName: "sub", Type: AnomalyDip, AffectedCost: 300},
	}
	recs := recommendRules(anomalies)
	if len(recs) != 3 {
		t.Fatalf("dip must not produce a recommendation: got %d", len(recs))
	}
	if recs[0].Action != ActionRightSize || recs[0].EstimatedSavings != 400 {
		t.Fatalf("underutilized mapping wrong: %+v", recs[0])
	}
	if recs[1].Action != ActionScheduleShutdown || recs[1].EstimatedSavings != 100 {
		t.Fatalf("spike mapping wrong: %+v", recs[1])
	}
	if recs[2].Action != ActionDeleteUnused || recs[2].EstimatedSavings != 80 {
		t.Fatalf("orphaned mapping wrong: %+v", recs[2])
	}
}

func TestEvaluateHITLTriggers(t *testing.T) {
	r := &Record{
		Recommendations: []Recommendation{
			{Confidence: 0.55, RiskLevel: RiskLow, EstimatedSavings: 100},
			{Confidence: 0.58, RiskLevel: RiskLow, EstimatedSavings: 100},
		},
		TotalPotentialSavings: 200,
	}
	dec := evaluateHITL(r)
	if !r.HITLRequired || !dec.RequiresHumanReview {
		t.Fatalf("low confidence should pause the run")
	}
	if len(r.HITLTriggerReasons) != 1 || r.HITLTriggerReasons[0] != TriggerLowConfidence {
		t.Fatalf("reasons must be deduplicated: %v", r.HITLTriggerReasons)
	}
	if r.HITLPriority != PriorityMedium {
		t.Fatalf("low confidence alone is medium priority, got %s", r.HITLPriority)
	}
}

func TestEvaluateHITLHighSavings(t *testing.T) {
	r := &Record{
		Recommendations:       []Recommendation{{Confidence: 0.9, RiskLevel: RiskLow, EstimatedSavings: 2500}},
		TotalPotentialSavings: 2500,
	}
	evaluateHITL(r)
	if !r.HITLRequired {
		t.Fatalf("savings above 2000 should pause the run")
	}
	if r.HITLPriority != PriorityMedium {
		t.Fatalf("expected medium priority, got %s", r.HITLPriority)
	}
}

func TestEvaluateHITLBoundaryValues(t *testing.T) {
	r := &Record{
		Recommendations:       []Recommendation{{Confidence: 0.60, RiskLevel: RiskMedium, EstimatedSavings: 2000}},
		TotalPotentialSavings: 2000,
	}
	evaluateHITL(r)
	if r.HITLRequired {
		t.Fatalf("confidence at 0.60 and savings at 2000 are inside limits: %v", r.HITLTriggerReasons)
	}
}

func TestApplyHumanDecisionRejectAll(t *testing.T) {
	r := &Record{
		Status: StatusPendingReview,
		Recommendations: []Recommendation{
			{ID: "a", Status: RecPending},
			{ID: "b", Status: RecApproved},
		},
	}
	next := applyHumanDecision(r, ReviewDecision{Decision: DecisionRejectAll, Reviewer: "ops"})
	if next != NodeForecast {
		t.Fatalf("expected forecast next, got %s", next)
	}
	if r.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", r.Status)
	}
	if r.Recommendations[0].Status != RecRejected {
		t.Fatalf("pending must be rejected")
	}
	if r.Recommendations[1].Status != RecApproved {
		t.Fatalf("already approved must stay approved")
	}
}

func TestApplyHumanDecisionReanalysis(t *testing.T) {
	r := &Record{Status: StatusPendingReview, Recommendations: []Recommendation{{ID: "a", Status: RecPending}}}
	next := applyHumanDecision(r, ReviewDecision{Decision: DecisionRequestReanalysis})
	if next != NodeForecast {
		t.Fatalf("expected forecast next, got %s", next)
	}
	if r.Status != StatusAnalyzing {
		t.Fatalf("expected analyzing, got %s", r.Status)
	}
	if r.Recommendations[0].Status != RecPending {
		t.Fatalf("reanalysis must not decide recommendations")
	}
}

func TestForecastRulesNinetyDays(t *testing.T) {
	history := make([]CostHistoryEntry, 30)
	for i := range history {
		history[i] = CostHistoryEntry{Date: fmt.Sprintf("2026-08-%02d", i+1), TotalCost: 100}
	}
	r := &Record{CostHistory: history, TotalPotentialSavings: 500}
	payload := forecastRules(r)

	if math.Abs(payload.Forecast30d-3000*1.03) > 1e-6 {
		t.Fatalf("expected 30d %v, got %v", 3000*1.03, payload.Forecast30d)
	}
	want90 := 3000*1.03 + 3000*1.03*1.03 + 3000*1.03*1.03*1.03
	if math.Abs(payload.Forecast90d-want90) > 1e-6 {
		t.Fatalf("expected 90d %v, got %v", want90, payload.Forecast90d)
	}
	if math.Abs(payload.ForecastWithOptimization-(3000*1.03-500)) > 1e-6 {
		t.Fatalf("expected optimized %v, got %v", 3000*1.03-500, payload.ForecastWithOptimization)
	}
}

func TestForecastOptimizationNeverNegative(t *testing.T) {
	r := &Record{CurrentMonthlySpend: 100, TotalPotentialSavings: 10000}
	payload := forecastRules(r)
	if payload.ForecastWithOptimization != 0 {
		t.Fatalf("optimized forecast must clamp at zero, got %v", payload.ForecastWithOptimization)
	}
}

func TestHistoryTrend(t *testing.T) {
	grow := make([]CostHistoryEntry, 20)
	flat := make([]CostHistoryEntry, 20)
	drop := make([]CostHistoryEntry, 20)
	short := make([]CostHistoryEntry, 10)
	for i := 0; i < 20; i++ {
		grow[i] = CostHistoryEntry{TotalCost: 100 + float64(i)*10}
		flat[i] = CostHistoryEntry{TotalCost: 100}
		drop[i] = CostHistoryEntry{TotalCost: 300 - float64(i)*10}
	}
	for i := range short {
		short[i] = CostHistoryEntry{TotalCost: 100 + float64(i)*50}
	}
	if got := historyTrend(grow); got != "increasing" {
		t.Fatalf("expected increasing, got %s", got)
	}
	if got := historyTrend(flat); got != "stable" {
		t.Fatalf("expected stable, got %s", got)
	}
	if got := historyTrend(drop); got != "decreasing" {
		t.Fatalf("expected decreasing, got %s", got)
	}
	if got := historyTrend(short); got != "stable" {
		t.Fatalf("short history must read stable, got %s", got)
	}
}

func TestHistoryTrendComparesHalfTotals(t *testing.T) {
	// Odd-length flat history: the second half holds one more day, so its
	// total spend is higher even though the daily rate never moved.
	flatOdd := make([]CostHistoryEntry, 15)
	for i := range flatOdd {
		flatOdd[i] = CostHistoryEntry{TotalCost: 10}
	}
	if got := historyTrend(flatOdd); got != "increasing" {
		t.Fatalf("15 flat days split 7/8 must read increasing, got %s", got)
	}
}

func TestForecastFallbackReportsRecommendedSavings(t *testing.T) {
	o := NewOrchestrator(nil, NewMemoryCheckpointStore(), time.Second)
	r := &Record{CurrentMonthlySpend: 100, TotalPotentialSavings: 500}

	dec := o.runForecastStage(context.Background(), r)

	if !hasFlag(dec.Flags, FlagLLMFallback) {
		t.Fatalf("no model configured, stage should have fallen back")
	}
	if r.SavingsIfAdopted != 500 {
		t.Fatalf("fallback savings must carry the recommendation total, got %v", r.SavingsIfAdopted)
	}
}

func TestForecastModelMayRefineSavings(t *testing.T) {
	llmClient := &fakeLLM{responses: map[string]json.RawMessage{
		"forecaster": json.RawMessage(`{
			"forecast_30d": 5100, "forecast_90d": 15600, "forecast_with_optimization": 2700,
			"savings_if_adopted": 2400, "trend": "increasing", "summary": "s", "confidence": 0.85
		}`),
	}}
	o := NewOrchestrator(llmClient, NewMemoryCheckpointStore(), time.Second)
	r := &Record{CurrentMonthlySpend: 5000, TotalPotentialSavings: 3000}

	dec := o.runForecastStage(context.Background(), r)

	if hasFlag(dec.Flags, FlagLLMFallback) {
		t.Fatalf("valid payload should not fall back")
	}
	if r.SavingsIfAdopted != 2400 {
		t.Fatalf("model-supplied savings must win, got %v", r.SavingsIfAdopted)
	}
}

func TestDetectAnomaliesDefaultsOmittedFields(t *testing.T) {
	llmClient := &fakeLLM{responses: map[string]json.RawMessage{
		"cost analyst": json.RawMessage(`{
			"anomalies": [{"resource_name": "vm-1", "resource_type": "virtual_machine", "description": "spend drifting up", "affected_cost": 100, "baseline_cost": 80}],
			"overall_severity": "low", "summary": "one finding", "confidence": 0.8
		}`),
	}}
	o := NewOrchestrator(llmClient, NewMemoryCheckpointStore(), time.Second)
	r := NewRecord(quietInput())

	dec := o.runAnomalyStage(context.Background(), r)

	if hasFlag(dec.Flags, FlagLLMFallback) {
		t.Fatalf("omitted fields must be defaulted, not rejected: %v", dec.Flags)
	}
	if len(r.Anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(r.Anomalies))
	}
	a := r.Anomalies[0]
	if a.Type != AnomalySpike {
		t.Fatalf("omitted type must default to spike, got %s", a.Type)
	}
	if a.Severity != SeverityLow {
		t.Fatalf("omitted severity must default to low, got %s", a.Severity)
	}
	if a.Score != 0.5 {
		t.Fatalf("omitted score must default to 0.5, got %v", a.Score)
	}
}

func TestRecommendDefaultsOmittedFields(t *testing.T) {
	llmClient := &fakeLLM{responses: map[string]json.RawMessage{
		"optimization expert": json.RawMessage(`{
			"recommendations": [{"resource_name": "vm-1", "resource_type": "virtual_machine", "description": "trim it", "estimated_savings": 120}],
			"summary": "one action", "confidence": 0.8
		}`),
	}}
	o := NewOrchestrator(llmClient, NewMemoryCheckpointStore(), time.Second)
	r := NewRecord(quietInput())

	dec := o.runRecommendationStage(context.Background(), r)

	if hasFlag(dec.Flags, FlagLLMFallback) {
		t.Fatalf("omitted fields must be defaulted, not rejected: %v", dec.Flags)
	}
	if len(r.Recommendations) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(r.Recommendations))
	}
	rec := r.Recommendations[0]
	if rec.Action != ActionRightSize {
		t.Fatalf("omitted action must default to right_size, got %s", rec.Action)
	}
	if rec.Confidence != 0.5 {
		t.Fatalf("omitted confidence must default to 0.5, got %v", rec.Confidence)
	}
	if rec.RiskLevel != RiskMedium {
		t.Fatalf("omitted risk must default to medium, got %s", rec.RiskLevel)
	}
}

func TestGamificationPointsAndHealth(t *testing.T) {
	r := &Record{
		Resources: []Resource{
			{Name: "a", CPUUsagePct: floatPtr(40)},
			{Name: "b", CPUUsagePct: floatPtr(60)},
		},
		Anomalies: []Anomaly{{}, {}},
		Recommendations: []Recommendation{
			{Status: RecApproved, EstimatedSavings: 200},
			{Status: RecRejected, EstimatedSavings: 100},
		},
	}
	dec := runGamificationStage(r)
	if dec.Stage != StageGamification {
		t.Fatalf("unexpected stage %s", dec.Stage)
	}

	// 10 + 2*75 + 2*25 = 210, plus First Save (50) for the adopted rec.
	if r.PointsEarned != 260 {
		t.Fatalf("expected 260 points, got %d", r.PointsEarned)
	}
	// cost_efficiency 80 * .30 + utilization 50 * .25 + adoption 50 * .25 +
	// anomaly_frequency 70 * .20 = 63
	if r.HealthScore != 63 {
		t.Fatalf("expected health 63, got %d", r.HealthScore)
	}
	if len(r.BadgesUnlocked) != 1 || r.BadgesUnlocked[0] != BadgeFirstSave {
		t.Fatalf("expected First Save, got %v", r.BadgesUnlocked)
	}
}

func TestGamificationHealthFloor(t *testing.T) {
	anomalies := make([]Anomaly, 20)
	r := &Record{Anomalies: anomalies}
	runGamificationStage(r)
	if r.HealthScore < 1 || r.HealthScore > 100 {
		t.Fatalf("health out of range: %d", r.HealthScore)
	}
}

func TestBadgesNeverReawarded(t *testing.T) {
	r := &Record{
		Recommendations: []Recommendation{{Status: RecApproved, EstimatedSavings: 600}},
		UserStats: UserStats{
			Badges:       []string{BadgeFirstSave, BadgeBigSaver},
			AdoptedCount: 3,
			TotalSavings: 900,
		},
	}
	runGamificationStage(r)
	for _, b := range r.BadgesUnlocked {
		if b == BadgeFirstSave || b == BadgeBigSaver {
			t.Fatalf("held badge re-awarded: %s", b)
		}
	}
	// 900 prior + 600 adopted now crosses the Cost Crusher line.
	if !hasFlag(r.BadgesUnlocked, BadgeCostCrusher) {
		t.Fatalf("expected Cost Crusher, got %v", r.BadgesUnlocked)
	}
}

func TestStreakMasterNotAutoAwarded(t *testing.T) {
	r := &Record{UserStats: UserStats{AdoptedCount: 50, TotalSavings: 100000, MaxSingleSavings: 5000}}
	runGamificationStage(r)
	if hasFlag(r.BadgesUnlocked, BadgeStreakMaster) {
		t.Fatalf("streak master needs history the pipeline does not track")
	}
}
