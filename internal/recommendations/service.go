package recommendations

import (
	"context"
	"fmt"

	"costopt-backend/internal/gamification"
	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/shared/telemetry"
)

// Review actions accepted on a single recommendation.
const (
	ActionApprove   = "approve"
	ActionReject    = "reject"
	ActionImplement = "implement"
)

// ErrInvalidAction is returned for an unrecognized review action.
var ErrInvalidAction = fmt.Errorf("invalid review action")

// Service exposes post-run review of individual recommendations. Approving
// or implementing a pending recommendation counts as adoption and feeds
// gamification.
type Service struct {
	Repo Repo
	Gam  *gamification.Service
}

// NewService constructs a Service.
func NewService(repo Repo, gam *gamification.Service) *Service {
	return &Service{Repo: repo, Gam: gam}
}

// Ingest persists all recommendations of a finished run.
func (s *Service) Ingest(ctx context.Context, rec *pipeline.Record) error {
	rows := fromRecord(rec)
	if len(rows) == 0 {
		return nil
	}
	return s.Repo.UpsertBatch(ctx, rows)
}

// Get returns one recommendation scoped to the user.
func (s *Service) Get(ctx context.Context, userID, id string) (Row, error) {
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns the user's recommendations, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID, status string, limit, offset int) ([]Row, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, status, limit, offset)
}

// Review applies one action to a pending recommendation. Decisions are
// final: re-reviewing returns ErrAlreadyDecided.
func (s *Service) Review(ctx context.Context, userID, id, action string) (Row, error) {
	var target string
	adoption := false
	switch action {
	case ActionApprove:
		target = string(pipeline.RecApproved)
		adoption = true
	case ActionImplement:
		target = string(pipeline.RecImplemented)
		adoption = true
	case ActionReject:
		target = string(pipeline.RecRejected)
	default:
		return Row{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	row, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return Row{}, err
	}
	switch row.Status {
	case string(pipeline.RecPending):
	case string(pipeline.RecApproved):
		// Marking an approved recommendation implemented is allowed and does
		// not count adoption twice.
		if action != ActionImplement {
			return Row{}, ErrAlreadyDecided
		}
		adoption = false
	default:
		return Row{}, ErrAlreadyDecided
	}

	if err := s.Repo.UpdateStatus(ctx, id, target); err != nil {
		return Row{}, err
	}
	row.Status = target

	if adoption {
		if _, err := s.Gam.RecordAdoption(ctx, userID, row.EstimatedSavings); err != nil {
			return Row{}, err
		}
	}
	telemetry.Info("recommendation reviewed", map[string]any{
		"recommendation_id": id,
		"user_id":           userID,
		"action":            action,
	})
	return row, nil
}
