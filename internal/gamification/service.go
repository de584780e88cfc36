package gamification

import (
	"context"
	"errors"
	"time"

	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/shared/telemetry"
)

// Service applies pipeline outcomes and review actions to user stats. All
// updates are additive: points and badges are never taken away.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Stats returns the user's stats, zero-valued when none exist yet.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	stats, err := s.Repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Stats{UserID: userID, Badges: []string{}}, nil
	}
	return stats, err
}

// StatsForRun loads the user's stats in the form the pipeline consumes.
func (s *Service) StatsForRun(ctx context.Context, userID string) (pipeline.UserStats, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return pipeline.UserStats{}, err
	}
	return stats.PipelineStats(), nil
}

// ApplyRunResult folds a finished analysis into the user's stats: run points,
// newly unlocked badges, and adoption counters for recommendations approved
// during the review pause.
func (s *Service) ApplyRunResult(ctx context.Context, rec *pipeline.Record) (Stats, error) {
	stats, err := s.Stats(ctx, rec.UserID)
	if err != nil {
		return Stats{}, err
	}

	stats.Points += rec.PointsEarned
	stats.AnalysesRun++
	for _, badge := range rec.BadgesUnlocked {
		if !stats.HasBadge(badge) {
			stats.Badges = append(stats.Badges, badge)
		}
	}
	for _, r := range rec.Recommendations {
		if r.Status != pipeline.RecApproved && r.Status != pipeline.RecImplemented {
			continue
		}
		stats.AdoptedCount++
		stats.TotalSavings += r.EstimatedSavings
		if r.EstimatedSavings > stats.MaxSingleSavings {
			stats.MaxSingleSavings = r.EstimatedSavings
		}
	}
	stats.UpdatedAt = time.Now().UTC()

	if err := s.Repo.Upsert(ctx, stats); err != nil {
		return Stats{}, err
	}
	telemetry.Info("gamification updated", map[string]any{
		"user_id":     rec.UserID,
		"points":      stats.Points,
		"new_badges":  rec.BadgesUnlocked,
		"analysis_id": rec.AnalysisID,
	})
	return stats, nil
}

// RecordAdoption credits the user for adopting one recommendation outside a
// run, then re-checks the badge registry against the new totals.
func (s *Service) RecordAdoption(ctx context.Context, userID string, savings float64) (Stats, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	stats.Points += pipeline.PointsRecommendationAdopted
	stats.AdoptedCount++
	stats.TotalSavings += savings
	if savings > stats.MaxSingleSavings {
		stats.MaxSingleSavings = savings
	}
	stats = s.awardRetroBadges(stats)
	stats.UpdatedAt = time.Now().UTC()

	if err := s.Repo.Upsert(ctx, stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// awardRetroBadges re-runs the cumulative badge checks so adoptions made in
// the review UI count exactly like ones made during a run.
func (s *Service) awardRetroBadges(stats Stats) Stats {
	checks := []struct {
		name string
		met  bool
	}{
		{pipeline.BadgeFirstSave, stats.AdoptedCount >= 1},
		{pipeline.BadgeCostCrusher, stats.TotalSavings > 1000},
		{pipeline.BadgeOptimizationHero, stats.AdoptedCount >= 10},
		{pipeline.BadgeBigSaver, stats.MaxSingleSavings > 500},
	}
	for _, check := range checks {
		if check.met && !stats.HasBadge(check.name) {
			stats.Badges = append(stats.Badges, check.name)
			stats.Points += pipeline.BadgePoints(check.name)
		}
	}
	return stats
}

// Leaderboard returns the top users by points.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Stats, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.Repo.Leaderboard(ctx, limit)
}
