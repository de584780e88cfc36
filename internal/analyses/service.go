package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"costopt-backend/internal/gamification"
	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/queue"
	"costopt-backend/internal/recommendations"
	"costopt-backend/internal/shared/storage/object"
	"costopt-backend/internal/shared/telemetry"
	"costopt-backend/internal/subscriptions"
)

// ErrQueueUnavailable is returned for async runs when no queue is configured.
var ErrQueueUnavailable = errors.New("queue not configured")

// Service runs the analysis pipeline against subscriptions and persists the
// outcomes.
type Service struct {
	Repo    Repo
	Orch    *pipeline.Orchestrator
	Subs    *subscriptions.Service
	Gam     *gamification.Service
	Recs    *recommendations.Service
	Archive object.Store

	// Queue, when set, enables async analysis dispatch to workers.
	Queue queue.Client
}

// NewService constructs a Service.
func NewService(repo Repo, orch *pipeline.Orchestrator, subs *subscriptions.Service, gam *gamification.Service, recs *recommendations.Service, archive object.Store) *Service {
	return &Service{Repo: repo, Orch: orch, Subs: subs, Gam: gam, Recs: recs, Archive: archive}
}

// Start runs a full analysis synchronously and returns the final record,
// which is either completed or paused for review.
func (s *Service) Start(ctx context.Context, userID, subscriptionID, period string) (*pipeline.Record, error) {
	in, err := s.buildInput(ctx, userID, subscriptionID, period)
	if err != nil {
		return nil, err
	}
	rec, err := s.Orch.Invoke(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// StartStream validates the subscription, then runs the analysis in the
// background and returns the event stream for it. The run owns a detached
// context so a dropped consumer cannot abort it.
func (s *Service) StartStream(ctx context.Context, userID, subscriptionID, period string) (*pipeline.Stream, error) {
	in, err := s.buildInput(ctx, userID, subscriptionID, period)
	if err != nil {
		return nil, err
	}

	stream := pipeline.NewStream()
	runCtx := context.WithoutCancel(ctx)
	go func() {
		rec, err := s.Orch.Invoke(runCtx, in, stream)
		if err != nil {
			return
		}
		if err := s.finalize(runCtx, rec); err != nil {
			telemetry.Error("finalize after stream failed", map[string]any{
				"analysis_id": rec.AnalysisID,
				"error":       err.Error(),
			})
		}
	}()
	return stream, nil
}

// Enqueue validates the subscription and hands the run to a queue worker.
func (s *Service) Enqueue(ctx context.Context, userID, subscriptionID, period, requestID string) error {
	if s.Queue == nil {
		return ErrQueueUnavailable
	}
	if _, err := s.Subs.Get(ctx, userID, subscriptionID); err != nil {
		return err
	}
	msg := queue.Message{
		SubscriptionID: subscriptionID,
		UserID:         userID,
		AnalysisPeriod: period,
		RequestID:      requestID,
		EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
		Version:        1,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue analysis: %w", err)
	}
	telemetry.Info("analysis enqueued", map[string]any{
		"subscription_id": subscriptionID,
		"user_id":         userID,
		"request_id":      requestID,
	})
	return nil
}

// Resume applies a review decision to a paused run and persists the
// continuation.
func (s *Service) Resume(ctx context.Context, userID, analysisID string, verdict pipeline.ReviewDecision) (*pipeline.Record, error) {
	current, err := s.Orch.GetState(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, pipeline.ErrNotFound
	}

	wasCompleted := current.Status == pipeline.StatusCompleted
	rec, err := s.Orch.Resume(ctx, analysisID, verdict, nil)
	if err != nil {
		return nil, err
	}
	if wasCompleted {
		return rec, nil
	}
	if err := s.finalize(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the persisted summary of one analysis.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	return s.Repo.GetByID(ctx, userID, analysisID)
}

// List returns the user's analyses.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// State returns the full pipeline record of an analysis: from the checkpoint
// store while the run is live, from the archive afterwards.
func (s *Service) State(ctx context.Context, userID, analysisID string) (*pipeline.Record, error) {
	rec, err := s.Orch.GetState(ctx, analysisID)
	if err == nil {
		if rec.UserID != userID {
			return nil, pipeline.ErrNotFound
		}
		return rec, nil
	}

	summary, err := s.Repo.GetByID(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}
	if summary.StateKey == "" || s.Archive == nil {
		return nil, pipeline.ErrNotFound
	}
	data, err := s.Archive.Get(ctx, summary.StateKey)
	if err != nil {
		return nil, err
	}
	var archived pipeline.Record
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("archived state: %w", err)
	}
	return &archived, nil
}

// PendingReview lists paused runs awaiting a reviewer, oldest first.
func (s *Service) PendingReview(ctx context.Context) ([]*pipeline.Record, error) {
	return s.Orch.PendingReview(ctx)
}

func (s *Service) buildInput(ctx context.Context, userID, subscriptionID, period string) (pipeline.Input, error) {
	snap, err := s.Subs.Snapshot(ctx, userID, subscriptionID)
	if err != nil {
		return pipeline.Input{}, err
	}
	stats, err := s.Gam.StatsForRun(ctx, userID)
	if err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{
		SubscriptionID:      snap.Subscription.ID,
		SubscriptionName:    snap.Subscription.Name,
		UserID:              userID,
		AnalysisPeriod:      period,
		Resources:           snap.PipelineResources(),
		CostHistory:         snap.PipelineHistory(),
		CurrentMonthlySpend: snap.Subscription.CurrentMonthlySpend,
		UserStats:           stats,
	}, nil
}

// finalize persists the run outcome. Completed runs are archived and folded
// into gamification and subscription health; paused runs only get a summary
// row so they show up in listings.
func (s *Service) finalize(ctx context.Context, rec *pipeline.Record) error {
	summary := summarize(rec)

	if rec.Status == pipeline.StatusCompleted {
		if s.Archive != nil {
			key := fmt.Sprintf("analyses/%s/state.json", rec.AnalysisID)
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := s.Archive.Put(ctx, key, data); err != nil {
				telemetry.Error("state archive failed", map[string]any{
					"analysis_id": rec.AnalysisID,
					"error":       err.Error(),
				})
			} else {
				summary.StateKey = key
			}
		}
		if s.Recs != nil {
			if err := s.Recs.Ingest(ctx, rec); err != nil {
				return fmt.Errorf("persist recommendations: %w", err)
			}
		}
		if _, err := s.Gam.ApplyRunResult(ctx, rec); err != nil {
			return fmt.Errorf("apply gamification: %w", err)
		}
		if err := s.Subs.RecordAnalysis(ctx, rec.SubscriptionID, rec.HealthScore, rec.CompletedAt); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
	}

	return s.Repo.Upsert(ctx, summary)
}
