package pipeline

import (
	"fmt"
	"math"
	"time"
)

// Points awarded per pipeline activity.
const (
	PointsAnalysisTriggered     = 10
	PointsPerAnomaly            = 75
	PointsPerRecommendation     = 25
	PointsRecommendationAdopted = 100
	PointsHealthImproved        = 50
)

// Health score component weights.
const (
	weightCostEfficiency      = 0.30
	weightResourceUtilization = 0.25
	weightOptimizationAdopt   = 0.25
	weightAnomalyFrequency    = 0.20
)

// runGamificationStage is deterministic: it awards run points, scores
// subscription health and evaluates badges. No LLM involved.
func runGamificationStage(r *Record) StageDecision {
	start := time.Now()
	dec := StageDecision{Stage: StageGamification}

	points := PointsAnalysisTriggered
	points += PointsPerAnomaly * len(r.Anomalies)
	points += PointsPerRecommendation * len(r.Recommendations)

	r.HealthScore = healthScore(r)

	adoptedRun, maxSingleRun := adoptedInRun(r)
	progress := badgeProgress{
		AdoptedCount:     r.UserStats.AdoptedCount + adoptedRun,
		TotalSavings:     r.UserStats.TotalSavings + adoptedSavings(r),
		MaxSingleSavings: math.Max(r.UserStats.MaxSingleSavings, maxSingleRun),
		HealthScore:      r.HealthScore,
	}
	unlocked := evaluateBadges(progress, r.UserStats.Badges)
	for _, name := range unlocked {
		points += BadgePoints(name)
	}

	r.PointsEarned = points
	r.BadgesUnlocked = unlocked

	dec.Summary = fmt.Sprintf("awarded %d points, health score %d", points, r.HealthScore)
	dec.Confidence = 1.0
	dec.Reasoning = fmt.Sprintf("%d anomalies, %d recommendations, %d new badges", len(r.Anomalies), len(r.Recommendations), len(unlocked))
	dec.ExtractedData = map[string]any{
		"points_earned":   points,
		"badges_unlocked": unlocked,
		"health_score":    r.HealthScore,
	}
	dec.ProcessingTime = time.Since(start).Seconds()
	return dec
}

// healthScore blends four 0-100 components into one weighted score,
// rounded and clamped to [1, 100].
func healthScore(r *Record) int {
	costEfficiency := clamp100(100 - float64(len(r.Anomalies))*10)

	utilization := 50.0
	var known []float64
	for _, res := range r.Resources {
		if res.CPUUsagePct != nil {
			known = append(known, *res.CPUUsagePct)
		}
	}
	if len(known) > 0 {
		sum := 0.0
		for _, v := range known {
			sum += v
		}
		utilization = sum / float64(len(known))
	}

	adoption := 0.0
	if len(r.Recommendations) > 0 {
		adopted, _ := adoptedInRun(r)
		adoption = 100 * float64(adopted) / float64(len(r.Recommendations))
	}

	anomalyFrequency := clamp100(100 - float64(len(r.Anomalies))*15)

	score := costEfficiency*weightCostEfficiency +
		utilization*weightResourceUtilization +
		adoption*weightOptimizationAdopt +
		anomalyFrequency*weightAnomalyFrequency

	rounded := int(math.Round(score))
	if rounded < 1 {
		return 1
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func adoptedInRun(r *Record) (count int, maxSingle float64) {
	for _, rec := range r.Recommendations {
		if rec.Status == RecApproved || rec.Status == RecImplemented {
			count++
			if rec.EstimatedSavings > maxSingle {
				maxSingle = rec.EstimatedSavings
			}
		}
	}
	return count, maxSingle
}

func adoptedSavings(r *Record) float64 {
	total := 0.0
	for _, rec := range r.Recommendations {
		if rec.Status == RecApproved || rec.Status == RecImplemented {
			total += rec.EstimatedSavings
		}
	}
	return total
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
