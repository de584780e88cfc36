package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Human review decisions accepted by Resume.
const (
	DecisionApproveAll        = "approve_all"
	DecisionRejectAll         = "reject_all"
	DecisionApproveSelected   = "approve_selected"
	DecisionRequestReanalysis = "request_reanalysis"
)

// ErrInvalidDecision is returned by Resume for a decision string it does not
// recognize.
var ErrInvalidDecision = errors.New("invalid review decision")

// savings above this monthly amount always get a human in the loop.
const highSavingsThreshold = 2000.0

// ReviewDecision is a reviewer's verdict on a paused run.
type ReviewDecision struct {
	Decision    string   `json:"decision"`
	ApprovedIDs []string `json:"approved_ids,omitempty"`
	Reviewer    string   `json:"reviewer,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

func validDecision(d string) bool {
	switch d {
	case DecisionApproveAll, DecisionRejectAll, DecisionApproveSelected, DecisionRequestReanalysis:
		return true
	}
	return false
}

// evaluateHITL decides whether the run pauses for human review and records
// the trigger reasons. Reasons are deduplicated so re-evaluation after a
// reanalysis never stacks duplicates.
func evaluateHITL(r *Record) StageDecision {
	start := time.Now()
	dec := StageDecision{Stage: StageHITL}

	var reasons []string
	for _, rec := range r.Recommendations {
		if rec.Confidence < ThresholdRequiresReview {
			reasons = appendUnique(reasons, TriggerLowConfidence)
		}
		if rec.RiskLevel == RiskHigh {
			reasons = appendUnique(reasons, TriggerHighRiskAction)
		}
	}
	if r.TotalPotentialSavings > highSavingsThreshold {
		reasons = appendUnique(reasons, TriggerHighSavings)
	}

	r.HITLRequired = len(reasons) > 0
	r.HITLTriggerReasons = reasons
	r.HITLPriority = reviewPriority(reasons)

	dec.Confidence = 1.0
	dec.RequiresHumanReview = r.HITLRequired
	if r.HITLRequired {
		dec.Summary = fmt.Sprintf("paused for human review (%s priority)", r.HITLPriority)
		dec.Reasoning = fmt.Sprintf("triggers: %v", reasons)
		dec.Flags = append([]string(nil), reasons...)
	} else {
		dec.Summary = "no review triggers, continuing automatically"
		dec.Reasoning = "all recommendations within confidence, risk and savings limits"
	}
	dec.ProcessingTime = time.Since(start).Seconds()
	return dec
}

// reviewPriority ranks the queue entry. High risk dominates, then large
// savings, then shaky confidence.
func reviewPriority(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	has := func(want string) bool {
		for _, reason := range reasons {
			if reason == want {
				return true
			}
		}
		return false
	}
	switch {
	case has(TriggerHighRiskAction):
		return PriorityHigh
	case has(TriggerHighSavings):
		return PriorityMedium
	case has(TriggerLowConfidence):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// applyHumanDecision mutates the record per the reviewer's verdict and
// returns the node execution continues from. Resume has already validated
// the decision string; an unknown one here rejects everything pending rather
// than approving by accident.
func applyHumanDecision(r *Record, verdict ReviewDecision) Node {
	r.HumanDecision = verdict.Decision
	r.Reviewer = verdict.Reviewer
	r.ReviewNotes = verdict.Notes

	switch verdict.Decision {
	case DecisionApproveAll:
		setAllRecommendationStatus(r, RecApproved)
		r.Status = StatusApproved
		return NodeForecast
	case DecisionRejectAll:
		setAllRecommendationStatus(r, RecRejected)
		r.Status = StatusRejected
		return NodeForecast
	case DecisionApproveSelected:
		approved := make(map[string]bool, len(verdict.ApprovedIDs))
		for _, id := range verdict.ApprovedIDs {
			approved[id] = true
		}
		for i := range r.Recommendations {
			if r.Recommendations[i].Status != RecPending {
				continue
			}
			if approved[r.Recommendations[i].ID] {
				r.Recommendations[i].Status = RecApproved
			} else {
				r.Recommendations[i].Status = RecRejected
			}
		}
		r.Status = StatusApproved
		return NodeForecast
	case DecisionRequestReanalysis:
		r.Status = StatusAnalyzing
		return NodeForecast
	default:
		setAllRecommendationStatus(r, RecRejected)
		r.Status = StatusRejected
		return NodeForecast
	}
}

func setAllRecommendationStatus(r *Record, status RecommendationStatus) {
	for i := range r.Recommendations {
		if r.Recommendations[i].Status == RecPending {
			r.Recommendations[i].Status = status
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
