package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type recommendationPayload struct {
	Recommendations []struct {
		ResourceName      string   `json:"resource_name"`
		ResourceType      string   `json:"resource_type"`
		Action            string   `json:"action"`
		Description       string   `json:"description"`
		EstimatedSavings  float64  `json:"estimated_savings"`
		Confidence        *float64 `json:"confidence"`
		RiskLevel         string   `json:"risk_level"`
		CurrentConfig     string   `json:"current_config"`
		RecommendedConfig string   `json:"recommended_config"`
	} `json:"recommendations"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// runRecommendationStage turns detected anomalies into actionable
// recommendations and aggregates their savings and confidence.
func (o *Orchestrator) runRecommendationStage(ctx context.Context, r *Record) StageDecision {
	start := time.Now()
	dec := StageDecision{Stage: StageRecommendation}

	recs, summary, confidence, err := o.recommendLLM(ctx, r)
	if err != nil {
		recs = recommendRules(r.Anomalies)
		summary = fmt.Sprintf("rule-based mapping produced %d recommendations", len(recs))
		confidence = 0.75
		dec.Flags = append(dec.Flags, FlagLLMFallback)
		o.fellBack(StageRecommendation, err)
	}

	total := 0.0
	confSum := 0.0
	lowConfidence := false
	for i := range recs {
		recs[i].ID = uuid.NewString()
		recs[i].Status = RecPending
		total += recs[i].EstimatedSavings
		confSum += recs[i].Confidence
		if recs[i].Confidence < ThresholdRequiresReview {
			lowConfidence = true
		}
	}

	r.Recommendations = recs
	r.TotalPotentialSavings = total
	if len(recs) > 0 {
		r.OptimizationConfidence = confSum / float64(len(recs))
	} else {
		r.OptimizationConfidence = 0
	}

	dec.Summary = summary
	dec.Confidence = confidence
	dec.Reasoning = fmt.Sprintf("mapped %d anomalies to %d recommendations worth %.2f/month", len(r.Anomalies), len(recs), total)
	dec.RequiresHumanReview = lowConfidence
	if lowConfidence {
		dec.Flags = append(dec.Flags, TriggerLowConfidence)
	}
	dec.ExtractedData = map[string]any{
		"recommendation_count":    len(recs),
		"total_potential_savings": total,
	}
	dec.ProcessingTime = time.Since(start).Seconds()
	return dec
}

func (o *Orchestrator) recommendLLM(ctx context.Context, r *Record) ([]Recommendation, string, float64, error) {
	raw, err := o.complete(ctx, recommendationPrompt(r))
	if err != nil {
		return nil, "", 0, err
	}
	var payload recommendationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, "", 0, fmt.Errorf("recommendation payload: %w", err)
	}

	recs := make([]Recommendation, 0, len(payload.Recommendations))
	for _, rec := range payload.Recommendations {
		// Same discipline as the anomaly stage: default omitted fields,
		// reject only values that are present but outside the vocabulary.
		action := ActionRightSize
		if rec.Action != "" {
			parsed, ok := parseAction(rec.Action)
			if !ok {
				return nil, "", 0, fmt.Errorf("recommendation payload: unknown action %q", rec.Action)
			}
			action = parsed
		}
		risk := RiskMedium
		if rec.RiskLevel != "" {
			parsed, ok := parseRiskLevel(rec.RiskLevel)
			if !ok {
				return nil, "", 0, fmt.Errorf("recommendation payload: unknown risk %q", rec.RiskLevel)
			}
			risk = parsed
		}
		conf := 0.5
		if rec.Confidence != nil {
			conf = clamp01(*rec.Confidence)
		}
		if rec.EstimatedSavings < 0 {
			return nil, "", 0, fmt.Errorf("recommendation payload: negative savings %.2f", rec.EstimatedSavings)
		}
		recs = append(recs, Recommendation{
			ResourceName:      rec.ResourceName,
			ResourceType:      rec.ResourceType,
			Action:            action,
			Description:       rec.Description,
			EstimatedSavings:  rec.EstimatedSavings,
			Confidence:        conf,
			RiskLevel:         risk,
			CurrentConfig:     rec.CurrentConfig,
			RecommendedConfig: rec.RecommendedConfig,
		})
	}
	return recs, payload.Summary, clamp01(payload.Confidence), nil
}

// recommendRules maps each anomaly type to a fixed action with a
// conservative savings estimate.
func recommendRules(anomalies []Anomaly) []Recommendation {
	var recs []Recommendation
	for _, a := range anomalies {
		switch a.Type {
		case AnomalyUnderutilized:
			recs = append(recs, Recommendation{
				ResourceName:     a.ResourceName,
				ResourceType:     a.ResourceType,
				Action:           ActionRightSize,
				Description:      fmt.Sprintf("Right-size %s to match observed utilization", a.ResourceName),
				EstimatedSavings: a.AffectedCost * 0.4,
				Confidence:       0.7,
				RiskLevel:        RiskLow,
			})
		case AnomalySpike:
			recs = append(recs, Recommendation{
				ResourceName:     a.ResourceName,
				ResourceType:     a.ResourceType,
				Action:           ActionScheduleShutdown,
				Description:      fmt.Sprintf("Schedule off-hours shutdown for %s to cap spikes", a.ResourceName),
				EstimatedSavings: a.AffectedCost * 0.2,
				Confidence:       0.5,
				RiskLevel:        RiskMedium,
			})
		case AnomalyOrphaned:
			recs = append(recs, Recommendation{
				ResourceName:     a.ResourceName,
				ResourceType:     a.ResourceType,
				Action:           ActionDeleteUnused,
				Description:      fmt.Sprintf("Delete unused resource %s", a.ResourceName),
				EstimatedSavings: a.AffectedCost,
				Confidence:       0.8,
				RiskLevel:        RiskLow,
			})
		}
	}
	return recs
}

func parseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionRightSize, ActionReservedInstance, ActionDeleteUnused,
		ActionTierDowngrade, ActionScheduleShutdown, ActionSwitchRegion:
		return Action(s), true
	}
	return "", false
}

func parseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	}
	return "", false
}
