package recommendations

import (
	"errors"
	"time"

	"costopt-backend/internal/pipeline"
)

// ErrNotFound indicates the recommendation does not exist or belongs to
// another user.
var ErrNotFound = errors.New("recommendation not found")

// ErrAlreadyDecided indicates the recommendation left the pending state
// earlier.
var ErrAlreadyDecided = errors.New("recommendation already decided")

// Row is a persisted recommendation, reviewable after its run finished.
type Row struct {
	ID               string    `json:"id"`
	AnalysisID       string    `json:"analysis_id"`
	SubscriptionID   string    `json:"subscription_id"`
	UserID           string    `json:"user_id"`
	ResourceName     string    `json:"resource_name"`
	ResourceType     string    `json:"resource_type"`
	Action           string    `json:"action"`
	Description      string    `json:"description"`
	EstimatedSavings float64   `json:"estimated_savings"`
	Confidence       float64   `json:"confidence"`
	RiskLevel        string    `json:"risk_level"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// fromRecord flattens a run's recommendations into rows.
func fromRecord(rec *pipeline.Record) []Row {
	now := time.Now().UTC()
	rows := make([]Row, len(rec.Recommendations))
	for i, r := range rec.Recommendations {
		rows[i] = Row{
			ID:               r.ID,
			AnalysisID:       rec.AnalysisID,
			SubscriptionID:   rec.SubscriptionID,
			UserID:           rec.UserID,
			ResourceName:     r.ResourceName,
			ResourceType:     r.ResourceType,
			Action:           string(r.Action),
			Description:      r.Description,
			EstimatedSavings: r.EstimatedSavings,
			Confidence:       r.Confidence,
			RiskLevel:        string(r.RiskLevel),
			Status:           string(r.Status),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}
	return rows
}
