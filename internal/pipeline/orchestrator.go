package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"costopt-backend/internal/llm"
	"costopt-backend/internal/shared/metrics"
	"costopt-backend/internal/shared/telemetry"
)

// Stage names in execution order.
const (
	StageAnomaly        = "anomaly_detection"
	StageRecommendation = "recommendation"
	StageHITL           = "hitl_review"
	StageForecast       = "forecast"
	StageGamification   = "gamification"
)

// FlagLLMFallback marks a stage decision produced by rules after the model
// call failed.
const FlagLLMFallback = "llm_fallback"

// Node identifies a position in the fixed pipeline graph.
type Node string

const (
	NodeAnomaly        Node = "anomaly"
	NodeRecommendation Node = "recommendation"
	NodeHITL           Node = "hitl"
	NodeForecast       Node = "forecast"
	NodeGamification   Node = "gamification"
	NodeDone           Node = "done"
)

const totalSteps = 4

var stageNames = []string{StageAnomaly, StageRecommendation, StageForecast, StageGamification}

// Orchestrator drives analysis runs through the fixed graph
//
//	anomaly -> recommendation -> (hitl?) -> forecast -> gamification
//
// pausing at the HITL node when review triggers fire and resuming from the
// checkpoint store once a reviewer decides.
type Orchestrator struct {
	LLM         llm.Client
	Checkpoints CheckpointStore
	LLMTimeout  time.Duration
}

// NewOrchestrator wires an orchestrator. A nil client is allowed: every
// stage then uses its rule-based path.
func NewOrchestrator(client llm.Client, store CheckpointStore, llmTimeout time.Duration) *Orchestrator {
	if store == nil {
		store = NewMemoryCheckpointStore()
	}
	if llmTimeout <= 0 {
		llmTimeout = 30 * time.Second
	}
	return &Orchestrator{LLM: client, Checkpoints: store, LLMTimeout: llmTimeout}
}

// Invoke starts a new analysis run. If the run pauses for review the
// returned record has status pending_review; otherwise it is completed.
// Events are published to stream when non-nil.
func (o *Orchestrator) Invoke(ctx context.Context, in Input, stream *Stream) (*Record, error) {
	r := NewRecord(in)
	r.Status = StatusAnalyzing
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis started", map[string]any{
		"analysis_id":     r.AnalysisID,
		"subscription_id": r.SubscriptionID,
		"resources":       len(r.Resources),
	})

	events := newSink(stream)
	events.emit(Event{
		Type:       EventPipelineStart,
		AnalysisID: r.AnalysisID,
		Payload:    map[string]any{"stage_names": stageNames},
	})
	return o.run(ctx, r, NodeAnomaly, events)
}

// Resume continues a paused run with the reviewer's verdict. Resuming a run
// that already completed is idempotent: the stored record is returned
// unchanged. An unrecognized decision string is rejected before any state
// changes.
func (o *Orchestrator) Resume(ctx context.Context, analysisID string, verdict ReviewDecision, stream *Stream) (*Record, error) {
	if !validDecision(verdict.Decision) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, verdict.Decision)
	}
	cp, err := o.Checkpoints.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	r := cp.Record
	if r.Status == StatusCompleted {
		events := newSink(stream)
		events.emit(completeEvent(r))
		return r, nil
	}
	if r.Status != StatusPendingReview {
		return nil, fmt.Errorf("analysis %s is %s, not awaiting review", analysisID, r.Status)
	}

	metrics.IncAnalysisResumed()
	telemetry.Info("analysis resumed", map[string]any{
		"analysis_id": r.AnalysisID,
		"decision":    verdict.Decision,
		"reviewer":    verdict.Reviewer,
	})

	next := applyHumanDecision(r, verdict)
	events := newSink(stream)
	return o.run(ctx, r, next, events)
}

// GetState returns the checkpointed record for an analysis.
func (o *Orchestrator) GetState(ctx context.Context, analysisID string) (*Record, error) {
	cp, err := o.Checkpoints.Get(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return cp.Record, nil
}

// PendingReview lists paused runs, oldest first.
func (o *Orchestrator) PendingReview(ctx context.Context) ([]*Record, error) {
	cps, err := o.Checkpoints.PendingReview(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(cps))
	for i, cp := range cps {
		records[i] = cp.Record
	}
	return records, nil
}

// run is the graph interpreter. Stages never fail; the only errors out of
// here are context cancellation and checkpoint store failures.
func (o *Orchestrator) run(ctx context.Context, r *Record, node Node, events *sink) (*Record, error) {
	for node != NodeDone {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(ctx, r, events, err)
		}

		switch node {
		case NodeAnomaly:
			o.runStage(ctx, r, events, StageAnomaly, 1, o.runAnomalyStage)
			node = NodeRecommendation

		case NodeRecommendation:
			o.runStage(ctx, r, events, StageRecommendation, 2, o.runRecommendationStage)
			node = o.routeAfterRecommendation(r)

		case NodeHITL:
			return o.pause(ctx, r, events)

		case NodeForecast:
			o.runStage(ctx, r, events, StageForecast, 3, o.runForecastStage)
			node = NodeGamification

		case NodeGamification:
			o.runStage(ctx, r, events, StageGamification, 4, func(_ context.Context, rec *Record) StageDecision {
				return runGamificationStage(rec)
			})
			node = NodeDone

		default:
			return nil, o.fail(ctx, r, events, fmt.Errorf("unknown pipeline node %q", node))
		}
	}
	return o.finish(ctx, r, events)
}

// routeAfterRecommendation evaluates the HITL triggers and picks the next
// node. The trigger evaluation itself is recorded as a stage decision either
// way.
func (o *Orchestrator) routeAfterRecommendation(r *Record) Node {
	dec := evaluateHITL(r)
	r.Decisions = append(r.Decisions, dec)
	if r.HITLRequired {
		return NodeHITL
	}
	return NodeForecast
}

type stageFunc func(ctx context.Context, r *Record) StageDecision

func (o *Orchestrator) runStage(ctx context.Context, r *Record, events *sink, stage string, step int, fn stageFunc) {
	events.emit(Event{
		Type:       EventStageStart,
		AnalysisID: r.AnalysisID,
		Stage:      stage,
		Step:       step,
		TotalSteps: totalSteps,
	})
	start := time.Now()
	dec := fn(ctx, r)
	r.Decisions = append(r.Decisions, dec)
	metrics.ObserveStageDurationMs(float64(time.Since(start).Milliseconds()))
	events.emit(Event{
		Type:       EventStageComplete,
		AnalysisID: r.AnalysisID,
		Stage:      stage,
		Step:       step,
		TotalSteps: totalSteps,
		Decision:   &dec,
	})
}

func (o *Orchestrator) pause(ctx context.Context, r *Record, events *sink) (*Record, error) {
	r.Status = StatusPendingReview
	if err := o.Checkpoints.Put(ctx, Checkpoint{AnalysisID: r.AnalysisID, Node: NodeHITL, Record: r}); err != nil {
		return nil, o.fail(ctx, r, events, fmt.Errorf("checkpoint: %w", err))
	}
	metrics.IncAnalysisPaused()
	telemetry.Info("analysis paused for review", map[string]any{
		"analysis_id": r.AnalysisID,
		"priority":    r.HITLPriority,
		"triggers":    r.HITLTriggerReasons,
	})
	events.emit(Event{
		Type:       EventComplete,
		AnalysisID: r.AnalysisID,
		Payload: map[string]any{
			"status":          string(StatusPendingReview),
			"trigger_reasons": r.HITLTriggerReasons,
			"priority":        r.HITLPriority,
		},
	})
	return r, nil
}

func (o *Orchestrator) finish(ctx context.Context, r *Record, events *sink) (*Record, error) {
	r.Status = StatusCompleted
	r.CompletedAt = time.Now().UTC()
	r.OverallConfidence = meanConfidence(r.Decisions)

	if err := o.Checkpoints.Put(ctx, Checkpoint{AnalysisID: r.AnalysisID, Node: NodeDone, Record: r}); err != nil {
		return nil, o.fail(ctx, r, events, fmt.Errorf("checkpoint: %w", err))
	}
	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis completed", map[string]any{
		"analysis_id":       r.AnalysisID,
		"anomalies":         r.AnomalyCount,
		"recommendations":   len(r.Recommendations),
		"potential_savings": r.TotalPotentialSavings,
		"points":            r.PointsEarned,
	})
	events.emit(completeEvent(r))
	return r, nil
}

func (o *Orchestrator) fail(ctx context.Context, r *Record, events *sink, err error) error {
	metrics.IncAnalysisFailed()
	telemetry.Error("analysis failed", map[string]any{
		"analysis_id": r.AnalysisID,
		"error":       err.Error(),
	})
	events.emit(Event{
		Type:       EventError,
		AnalysisID: r.AnalysisID,
		Message:    err.Error(),
	})
	return err
}

func completeEvent(r *Record) Event {
	return Event{
		Type:       EventComplete,
		AnalysisID: r.AnalysisID,
		Payload: map[string]any{
			"status":                  string(r.Status),
			"anomaly_count":           r.AnomalyCount,
			"recommendation_count":    len(r.Recommendations),
			"total_potential_savings": r.TotalPotentialSavings,
			"forecast_30d":            r.Forecast30d,
			"points_earned":           r.PointsEarned,
			"badges_unlocked":         r.BadgesUnlocked,
			"health_score":            r.HealthScore,
		},
	}
}

// complete runs one model call under the configured timeout. A nil client
// means rules-only mode.
func (o *Orchestrator) complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	if o.LLM == nil {
		return nil, llm.ErrUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, o.LLMTimeout)
	defer cancel()
	return o.LLM.Complete(callCtx, prompt)
}

func (o *Orchestrator) fellBack(stage string, err error) {
	metrics.IncLLMFallback()
	if errors.Is(err, llm.ErrUnavailable) {
		return
	}
	telemetry.Warn("stage fell back to rules", map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
}

func meanConfidence(decisions []StageDecision) float64 {
	if len(decisions) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range decisions {
		sum += d.Confidence
	}
	return sum / float64(len(decisions))
}
