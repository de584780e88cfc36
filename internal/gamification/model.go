package gamification

import (
	"errors"
	"time"

	"costopt-backend/internal/pipeline"
)

// ErrNotFound indicates no stats row exists for the user.
var ErrNotFound = errors.New("gamification stats not found")

// Stats is a user's cumulative gamification state.
type Stats struct {
	UserID           string    `json:"user_id"`
	Points           int       `json:"points"`
	Badges           []string  `json:"badges"`
	AnalysesRun      int       `json:"analyses_run"`
	AdoptedCount     int       `json:"adopted_count"`
	TotalSavings     float64   `json:"total_savings"`
	MaxSingleSavings float64   `json:"max_single_savings"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PipelineStats converts stored stats into the run input form.
func (s Stats) PipelineStats() pipeline.UserStats {
	return pipeline.UserStats{
		Points:           s.Points,
		Badges:           append([]string(nil), s.Badges...),
		AdoptedCount:     s.AdoptedCount,
		TotalSavings:     s.TotalSavings,
		MaxSingleSavings: s.MaxSingleSavings,
	}
}

// HasBadge reports whether the user already holds a badge.
func (s Stats) HasBadge(name string) bool {
	for _, b := range s.Badges {
		if b == name {
			return true
		}
	}
	return false
}
