package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const underutilizedCPUThreshold = 15.0

type anomalyPayload struct {
	Anomalies []struct {
		ResourceName string   `json:"resource_name"`
		ResourceType string   `json:"resource_type"`
		AnomalyType  string   `json:"anomaly_type"`
		Severity     string   `json:"severity"`
		Score        *float64 `json:"score"`
		Description  string   `json:"description"`
		AffectedCost float64  `json:"affected_cost"`
		BaselineCost float64  `json:"baseline_cost"`
	} `json:"anomalies"`
	OverallSeverity string  `json:"overall_severity"`
	Summary         string  `json:"summary"`
	Confidence      float64 `json:"confidence"`
}

// runAnomalyStage populates r.Anomalies. LLM output is used when it parses
// and validates; anything else falls back to the rule-based detector so the
// stage never fails the run.
func (o *Orchestrator) runAnomalyStage(ctx context.Context, r *Record) StageDecision {
	start := time.Now()
	dec := StageDecision{Stage: StageAnomaly}

	anomalies, summary, confidence, err := o.detectAnomaliesLLM(ctx, r)
	if err != nil {
		anomalies = detectAnomaliesRules(r)
		summary = fmt.Sprintf("rule-based detection found %d anomalies", len(anomalies))
		confidence = 0.75
		dec.Flags = append(dec.Flags, FlagLLMFallback)
		o.fellBack(StageAnomaly, err)
	}

	r.Anomalies = anomalies
	r.AnomalyCount = len(anomalies)
	r.AnomalySeverity = overallSeverity(anomalies)

	dec.Summary = summary
	dec.Confidence = confidence
	dec.Reasoning = fmt.Sprintf("evaluated %d resources and %d history points", len(r.Resources), len(r.CostHistory))
	dec.RequiresHumanReview = r.AnomalySeverity == SeverityHigh || r.AnomalySeverity == SeverityCritical
	dec.ExtractedData = map[string]any{
		"anomaly_count":    r.AnomalyCount,
		"overall_severity": string(r.AnomalySeverity),
	}
	dec.ProcessingTime = time.Since(start).Seconds()
	return dec
}

func (o *Orchestrator) detectAnomaliesLLM(ctx context.Context, r *Record) ([]Anomaly, string, float64, error) {
	raw, err := o.complete(ctx, anomalyPrompt(r))
	if err != nil {
		return nil, "", 0, err
	}
	var payload anomalyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, "", 0, fmt.Errorf("anomaly payload: %w", err)
	}

	now := time.Now().UTC()
	anomalies := make([]Anomaly, 0, len(payload.Anomalies))
	for _, a := range payload.Anomalies {
		// Models omit fields more often than they invent values; fill the
		// gaps conservatively and only reject values that are present but
		// outside the vocabulary.
		typ := AnomalySpike
		if a.AnomalyType != "" {
			parsed, ok := parseAnomalyType(a.AnomalyType)
			if !ok {
				return nil, "", 0, fmt.Errorf("anomaly payload: unknown type %q", a.AnomalyType)
			}
			typ = parsed
		}
		sev := SeverityLow
		if a.Severity != "" {
			parsed, ok := parseSeverity(a.Severity)
			if !ok {
				return nil, "", 0, fmt.Errorf("anomaly payload: unknown severity %q", a.Severity)
			}
			sev = parsed
		}
		score := 0.5
		if a.Score != nil {
			score = clamp01(*a.Score)
		}
		anomalies = append(anomalies, Anomaly{
			ResourceName: a.ResourceName,
			ResourceType: a.ResourceType,
			Type:         typ,
			Severity:     sev,
			Score:        score,
			Description:  a.Description,
			AffectedCost: a.AffectedCost,
			BaselineCost: a.BaselineCost,
			DetectedAt:   now,
		})
	}
	return anomalies, payload.Summary, clamp01(payload.Confidence), nil
}

// detectAnomaliesRules is the deterministic detector: sustained low CPU on a
// billed resource, and daily spend spiking above 1.3x the period average.
func detectAnomaliesRules(r *Record) []Anomaly {
	now := time.Now().UTC()
	var anomalies []Anomaly

	for _, res := range r.Resources {
		if res.CPUUsagePct == nil || *res.CPUUsagePct >= underutilizedCPUThreshold {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			ResourceName: res.Name,
			ResourceType: res.Type,
			Type:         AnomalyUnderutilized,
			Severity:     SeverityMedium,
			Score:        0.6,
			Description:  fmt.Sprintf("%s runs at %.1f%% CPU while costing %.2f/month", res.Name, *res.CPUUsagePct, res.MonthlyCost),
			AffectedCost: res.MonthlyCost,
			BaselineCost: res.MonthlyCost,
			DetectedAt:   now,
		})
	}

	if avg := averageDailyCost(r.CostHistory); avg > 0 {
		for _, day := range r.CostHistory {
			if day.TotalCost <= avg*1.3 {
				continue
			}
			sev := SeverityMedium
			if day.TotalCost > avg*1.5 {
				sev = SeverityHigh
			}
			anomalies = append(anomalies, Anomaly{
				ResourceName: "subscription",
				ResourceType: "subscription",
				Type:         AnomalySpike,
				Severity:     sev,
				Score:        min(day.TotalCost/avg/2, 1.0),
				Description:  fmt.Sprintf("daily spend %.2f on %s exceeds period average %.2f", day.TotalCost, day.Date, avg),
				AffectedCost: day.TotalCost,
				BaselineCost: avg,
				DetectedAt:   now,
			})
		}
	}
	return anomalies
}

// overallSeverity grades the run from the highest anomaly score.
func overallSeverity(anomalies []Anomaly) Severity {
	maxScore := 0.0
	for _, a := range anomalies {
		if a.Score > maxScore {
			maxScore = a.Score
		}
	}
	switch {
	case maxScore >= 0.8:
		return SeverityCritical
	case maxScore >= 0.6:
		return SeverityHigh
	case maxScore >= 0.4:
		return SeverityMedium
	case maxScore > 0:
		return SeverityLow
	default:
		return SeverityNone
	}
}

func averageDailyCost(history []CostHistoryEntry) float64 {
	if len(history) == 0 {
		return 0
	}
	total := 0.0
	for _, day := range history {
		total += day.TotalCost
	}
	return total / float64(len(history))
}

func parseAnomalyType(s string) (AnomalyType, bool) {
	switch AnomalyType(s) {
	case AnomalySpike, AnomalyDip, AnomalyUnderutilized, AnomalyOrphaned:
		return AnomalyType(s), true
	}
	return "", false
}

func parseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), true
	}
	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
