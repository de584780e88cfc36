package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt builders. Every prompt instructs the model to answer with a single
// JSON object so responses can be parsed without heuristics.

func anomalyPrompt(r *Record) string {
	resources, _ := json.Marshal(r.Resources)
	history, _ := json.Marshal(recentHistory(r.CostHistory, 30))
	var b strings.Builder
	b.WriteString("You are a cloud cost analyst. Detect cost anomalies in the subscription below.\n\n")
	fmt.Fprintf(&b, "Subscription: %s\nCurrent monthly spend: %.2f\n\n", r.SubscriptionName, r.CurrentMonthlySpend)
	fmt.Fprintf(&b, "Resources:\n%s\n\n", resources)
	fmt.Fprintf(&b, "Daily cost history (most recent last):\n%s\n\n", history)
	b.WriteString(`Look for: usage spikes, sustained underutilization (low CPU on costly resources), orphaned resources, and unusual dips.

Respond with exactly one JSON object:
{
  "anomalies": [
    {
      "resource_name": "...",
      "resource_type": "...",
      "anomaly_type": "spike|dip|underutilized|orphaned",
      "severity": "low|medium|high|critical",
      "score": 0.0,
      "description": "...",
      "affected_cost": 0.0,
      "baseline_cost": 0.0
    }
  ],
  "overall_severity": "none|low|medium|high|critical",
  "summary": "...",
  "confidence": 0.0
}`)
	return b.String()
}

func recommendationPrompt(r *Record) string {
	anomalies, _ := json.Marshal(r.Anomalies)
	resources, _ := json.Marshal(r.Resources)
	var b strings.Builder
	b.WriteString("You are a cloud cost optimization expert. Propose concrete savings actions for the anomalies below.\n\n")
	fmt.Fprintf(&b, "Subscription: %s\nMonthly spend: %.2f\n\n", r.SubscriptionName, r.CurrentMonthlySpend)
	fmt.Fprintf(&b, "Detected anomalies:\n%s\n\n", anomalies)
	fmt.Fprintf(&b, "Resources:\n%s\n\n", resources)
	b.WriteString(`Allowed actions: right_size, reserved_instance, delete_unused, tier_downgrade, schedule_shutdown, switch_region.

Respond with exactly one JSON object:
{
  "recommendations": [
    {
      "resource_name": "...",
      "resource_type": "...",
      "action": "right_size",
      "description": "...",
      "estimated_savings": 0.0,
      "confidence": 0.0,
      "risk_level": "low|medium|high",
      "current_config": "...",
      "recommended_config": "..."
    }
  ],
  "summary": "...",
  "confidence": 0.0
}`)
	return b.String()
}

func forecastPrompt(r *Record) string {
	history, _ := json.Marshal(recentHistory(r.CostHistory, 90))
	var b strings.Builder
	b.WriteString("You are a cloud spend forecaster. Project future costs for the subscription below.\n\n")
	fmt.Fprintf(&b, "Subscription: %s\nCurrent monthly spend: %.2f\n", r.SubscriptionName, r.CurrentMonthlySpend)
	fmt.Fprintf(&b, "Potential monthly savings if all recommendations are adopted: %.2f\n\n", r.TotalPotentialSavings)
	fmt.Fprintf(&b, "Daily cost history (most recent last):\n%s\n\n", history)
	b.WriteString(`Respond with exactly one JSON object:
{
  "forecast_30d": 0.0,
  "forecast_90d": 0.0,
  "forecast_with_optimization": 0.0,
  "savings_if_adopted": 0.0,
  "trend": "increasing|stable|decreasing",
  "summary": "...",
  "confidence": 0.0
}`)
	return b.String()
}

func recentHistory(history []CostHistoryEntry, n int) []CostHistoryEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
