package subscriptions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"costopt-backend/internal/shared/telemetry"
)

// Service wraps subscription persistence with input normalization.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// CreateInput is the caller-provided part of a new subscription.
type CreateInput struct {
	Name                string
	Provider            string
	CurrentMonthlySpend float64
}

// Create registers a subscription for the user.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Subscription, error) {
	now := time.Now().UTC()
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		provider = "azure"
	}
	sub := Subscription{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                strings.TrimSpace(in.Name),
		Provider:            provider,
		CurrentMonthlySpend: in.CurrentMonthlySpend,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.Repo.Create(ctx, sub); err != nil {
		return Subscription{}, err
	}
	telemetry.Info("subscription created", map[string]any{
		"subscription_id": sub.ID,
		"user_id":         userID,
		"provider":        provider,
	})
	return sub, nil
}

// Get returns one subscription scoped to the user.
func (s *Service) Get(ctx context.Context, userID, subscriptionID string) (Subscription, error) {
	return s.Repo.GetByID(ctx, userID, subscriptionID)
}

// List returns the user's subscriptions.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Subscription, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Snapshot loads the full pipeline input view of a subscription.
func (s *Service) Snapshot(ctx context.Context, userID, subscriptionID string) (Snapshot, error) {
	return s.Repo.Snapshot(ctx, userID, subscriptionID)
}

// SetResources replaces the subscription's resource inventory.
func (s *Service) SetResources(ctx context.Context, userID, subscriptionID string, resources []ResourceRecord) error {
	if _, err := s.Repo.GetByID(ctx, userID, subscriptionID); err != nil {
		return err
	}
	for i := range resources {
		if resources[i].ID == "" {
			resources[i].ID = uuid.NewString()
		}
		resources[i].SubscriptionID = subscriptionID
	}
	return s.Repo.ReplaceResources(ctx, subscriptionID, resources)
}

// IngestCosts appends daily spend points.
func (s *Service) IngestCosts(ctx context.Context, userID, subscriptionID string, points []CostPoint) error {
	if _, err := s.Repo.GetByID(ctx, userID, subscriptionID); err != nil {
		return err
	}
	for i := range points {
		points[i].SubscriptionID = subscriptionID
	}
	return s.Repo.AppendCostHistory(ctx, points)
}

// RecordAnalysis stores the outcome of a completed analysis on the
// subscription.
func (s *Service) RecordAnalysis(ctx context.Context, subscriptionID string, healthScore int, analyzedAt time.Time) error {
	return s.Repo.UpdateHealth(ctx, subscriptionID, healthScore, analyzedAt)
}
