package analyses

import (
	"errors"
	"time"

	"costopt-backend/internal/pipeline"
)

// ErrNotFound indicates the analysis does not exist or belongs to another
// user.
var ErrNotFound = errors.New("analysis not found")

// Analysis is the persisted summary row of a pipeline run. The full record
// lives in the checkpoint store while the run is active and in the object
// archive once it completes.
type Analysis struct {
	ID                    string     `json:"id"`
	SubscriptionID        string     `json:"subscription_id"`
	UserID                string     `json:"user_id"`
	Status                string     `json:"status"`
	AnalysisPeriod        string     `json:"analysis_period"`
	AnomalyCount          int        `json:"anomaly_count"`
	AnomalySeverity       string     `json:"anomaly_severity"`
	RecommendationCount   int        `json:"recommendation_count"`
	TotalPotentialSavings float64    `json:"total_potential_savings"`
	Forecast30d           float64    `json:"forecast_30d"`
	HealthScore           int        `json:"health_score"`
	PointsEarned          int        `json:"points_earned"`
	ReviewPriority        string     `json:"review_priority,omitempty"`
	ReviewReasons         []string   `json:"review_reasons,omitempty"`
	StateKey              string     `json:"state_key,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// summarize projects a pipeline record onto the persisted row.
func summarize(rec *pipeline.Record) Analysis {
	a := Analysis{
		ID:                    rec.AnalysisID,
		SubscriptionID:        rec.SubscriptionID,
		UserID:                rec.UserID,
		Status:                string(rec.Status),
		AnalysisPeriod:        rec.AnalysisPeriod,
		AnomalyCount:          rec.AnomalyCount,
		AnomalySeverity:       string(rec.AnomalySeverity),
		RecommendationCount:   len(rec.Recommendations),
		TotalPotentialSavings: rec.TotalPotentialSavings,
		Forecast30d:           rec.Forecast30d,
		HealthScore:           rec.HealthScore,
		PointsEarned:          rec.PointsEarned,
		ReviewPriority:        rec.HITLPriority,
		ReviewReasons:         append([]string(nil), rec.HITLTriggerReasons...),
		CreatedAt:             rec.StartedAt,
		UpdatedAt:             time.Now().UTC(),
	}
	if !rec.CompletedAt.IsZero() {
		done := rec.CompletedAt
		a.CompletedAt = &done
	}
	return a
}
