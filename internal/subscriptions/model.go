package subscriptions

import (
	"time"

	"costopt-backend/internal/pipeline"
)

// Subscription is a monitored cloud subscription.
type Subscription struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	Name                string     `json:"name"`
	Provider            string     `json:"provider"`
	CurrentMonthlySpend float64    `json:"current_monthly_spend"`
	HealthScore         int        `json:"health_score"`
	LastAnalyzedAt      *time.Time `json:"last_analyzed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ResourceRecord is a stored resource row belonging to a subscription.
type ResourceRecord struct {
	ID             string   `json:"id"`
	SubscriptionID string   `json:"subscription_id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Region         string   `json:"region,omitempty"`
	MonthlyCost    float64  `json:"monthly_cost"`
	CPUUsagePct    *float64 `json:"cpu_usage_pct,omitempty"`
	MemoryUsagePct *float64 `json:"memory_usage_pct,omitempty"`
}

// CostPoint is one stored day of subscription spend.
type CostPoint struct {
	SubscriptionID string             `json:"subscription_id"`
	Date           string             `json:"date"`
	TotalCost      float64            `json:"total_cost"`
	Breakdown      map[string]float64 `json:"breakdown,omitempty"`
}

// Snapshot is everything the analysis pipeline needs about a subscription.
type Snapshot struct {
	Subscription Subscription
	Resources    []ResourceRecord
	CostHistory  []CostPoint
}

// PipelineResources converts stored resources to pipeline inputs.
func (s Snapshot) PipelineResources() []pipeline.Resource {
	out := make([]pipeline.Resource, len(s.Resources))
	for i, r := range s.Resources {
		out[i] = pipeline.Resource{
			Name:           r.Name,
			Type:           r.Type,
			MonthlyCost:    r.MonthlyCost,
			CPUUsagePct:    r.CPUUsagePct,
			MemoryUsagePct: r.MemoryUsagePct,
		}
	}
	return out
}

// PipelineHistory converts stored cost points to pipeline inputs, assuming
// repo ordering by date ascending.
func (s Snapshot) PipelineHistory() []pipeline.CostHistoryEntry {
	out := make([]pipeline.CostHistoryEntry, len(s.CostHistory))
	for i, p := range s.CostHistory {
		out[i] = pipeline.CostHistoryEntry{
			Date:      p.Date,
			TotalCost: p.TotalCost,
			Breakdown: p.Breakdown,
		}
	}
	return out
}
