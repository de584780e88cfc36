package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const monthlyGrowthRate = 0.03

type forecastPayload struct {
	Forecast30d              float64  `json:"forecast_30d"`
	Forecast90d              float64  `json:"forecast_90d"`
	ForecastWithOptimization float64  `json:"forecast_with_optimization"`
	SavingsIfAdopted         *float64 `json:"savings_if_adopted"`
	Trend                    string   `json:"trend"`
	Summary                  string   `json:"summary"`
	Confidence               float64  `json:"confidence"`
}

// runForecastStage projects 30 and 90 day spend with and without the
// proposed optimizations.
func (o *Orchestrator) runForecastStage(ctx context.Context, r *Record) StageDecision {
	start := time.Now()
	dec := StageDecision{Stage: StageForecast}

	payload, err := o.forecastLLM(ctx, r)
	if err != nil {
		payload = forecastRules(r)
		dec.Flags = append(dec.Flags, FlagLLMFallback)
		o.fellBack(StageForecast, err)
	}

	r.Forecast30d = payload.Forecast30d
	r.Forecast90d = payload.Forecast90d
	r.ForecastWithOptimization = payload.ForecastWithOptimization
	// The recommendation stage already priced the savings; the model may
	// refine that figure but silence means "take it as is".
	r.SavingsIfAdopted = r.TotalPotentialSavings
	if payload.SavingsIfAdopted != nil {
		r.SavingsIfAdopted = *payload.SavingsIfAdopted
	}
	r.ForecastTrend = payload.Trend

	dec.Summary = payload.Summary
	dec.Confidence = payload.Confidence
	dec.Reasoning = fmt.Sprintf("projected from %d history points, trend %s", len(r.CostHistory), r.ForecastTrend)
	dec.ExtractedData = map[string]any{
		"forecast_30d":               r.Forecast30d,
		"forecast_90d":               r.Forecast90d,
		"forecast_with_optimization": r.ForecastWithOptimization,
		"savings_if_adopted":         r.SavingsIfAdopted,
		"trend":                      r.ForecastTrend,
	}
	dec.ProcessingTime = time.Since(start).Seconds()
	return dec
}

func (o *Orchestrator) forecastLLM(ctx context.Context, r *Record) (forecastPayload, error) {
	raw, err := o.complete(ctx, forecastPrompt(r))
	if err != nil {
		return forecastPayload{}, err
	}
	var payload forecastPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return forecastPayload{}, fmt.Errorf("forecast payload: %w", err)
	}
	if payload.Forecast30d < 0 || payload.Forecast90d < 0 || payload.ForecastWithOptimization < 0 {
		return forecastPayload{}, fmt.Errorf("forecast payload: negative projection")
	}
	if payload.SavingsIfAdopted != nil && *payload.SavingsIfAdopted < 0 {
		return forecastPayload{}, fmt.Errorf("forecast payload: negative savings")
	}
	switch payload.Trend {
	case "increasing", "stable", "decreasing":
	default:
		return forecastPayload{}, fmt.Errorf("forecast payload: unknown trend %q", payload.Trend)
	}
	payload.Confidence = clamp01(payload.Confidence)
	return payload, nil
}

// forecastRules extrapolates average daily spend with a fixed 3% monthly
// growth assumption.
func forecastRules(r *Record) forecastPayload {
	avgDaily := averageDailyCost(r.CostHistory)
	if avgDaily == 0 && r.CurrentMonthlySpend > 0 {
		avgDaily = r.CurrentMonthlySpend / 30
	}

	monthly := avgDaily * 30
	forecast30 := monthly * (1 + monthlyGrowthRate)
	forecast90 := 0.0
	for k := 1; k <= 3; k++ {
		forecast90 += monthly * math.Pow(1+monthlyGrowthRate, float64(k))
	}

	return forecastPayload{
		Forecast30d:              forecast30,
		Forecast90d:              forecast90,
		ForecastWithOptimization: math.Max(forecast30-r.TotalPotentialSavings, 0),
		Trend:                    historyTrend(r.CostHistory),
		Summary:                  fmt.Sprintf("trend extrapolation projects %.2f over the next 30 days", forecast30),
		Confidence:               0.7,
	}
}

// historyTrend compares total spend in the two halves of the history
// window. Fewer than 14 points is too noisy to call anything but stable.
func historyTrend(history []CostHistoryEntry) string {
	if len(history) < 14 {
		return "stable"
	}
	mid := len(history) / 2
	first := 0.0
	for _, day := range history[:mid] {
		first += day.TotalCost
	}
	second := 0.0
	for _, day := range history[mid:] {
		second += day.TotalCost
	}

	switch {
	case first == 0:
		return "stable"
	case second > first*1.05:
		return "increasing"
	case second < first*0.95:
		return "decreasing"
	default:
		return "stable"
	}
}
