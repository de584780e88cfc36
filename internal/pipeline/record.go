package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an analysis run. Transitions only move
// forward: submitted -> analyzing -> (pending_review -> analyzing/approved/
// rejected) -> completed.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusAnalyzing     Status = "analyzing"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCompleted     Status = "completed"
)

// Severity grades an anomaly or the overall anomaly picture of a run.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnomalyType classifies what kind of cost anomaly was detected.
type AnomalyType string

const (
	AnomalySpike         AnomalyType = "spike"
	AnomalyDip           AnomalyType = "dip"
	AnomalyUnderutilized AnomalyType = "underutilized"
	AnomalyOrphaned      AnomalyType = "orphaned"
)

// Action is the optimization a recommendation proposes.
type Action string

const (
	ActionRightSize        Action = "right_size"
	ActionReservedInstance Action = "reserved_instance"
	ActionDeleteUnused     Action = "delete_unused"
	ActionTierDowngrade    Action = "tier_downgrade"
	ActionScheduleShutdown Action = "schedule_shutdown"
	ActionSwitchRegion     Action = "switch_region"
)

// RiskLevel rates the potential negative impact of applying an action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RecommendationStatus tracks the review state of a recommendation.
type RecommendationStatus string

const (
	RecPending     RecommendationStatus = "pending"
	RecApproved    RecommendationStatus = "approved"
	RecRejected    RecommendationStatus = "rejected"
	RecImplemented RecommendationStatus = "implemented"
)

// HITL trigger reasons and priorities.
const (
	TriggerLowConfidence  = "low_confidence"
	TriggerHighRiskAction = "high_risk_action"
	TriggerHighSavings    = "high_savings"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Confidence thresholds loaded once at process start. The recommendation
// stage only uses RequiresReview.
const (
	ThresholdAutoApprove    = 0.85
	ThresholdRequiresReview = 0.60
	ThresholdAutoFlag       = 0.40
)

// Resource is a read-only input describing one cloud resource.
type Resource struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	MonthlyCost    float64  `json:"monthly_cost"`
	CPUUsagePct    *float64 `json:"cpu_usage_pct,omitempty"`
	MemoryUsagePct *float64 `json:"memory_usage_pct,omitempty"`
}

// CostHistoryEntry is one day of historical spend.
type CostHistoryEntry struct {
	Date      string             `json:"date"`
	TotalCost float64            `json:"total_cost"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// Anomaly is immutable once created by the anomaly stage.
type Anomaly struct {
	ResourceName string      `json:"resource_name"`
	ResourceType string      `json:"resource_type"`
	Type         AnomalyType `json:"anomaly_type"`
	Severity     Severity    `json:"severity"`
	Score        float64     `json:"score"`
	Description  string      `json:"description"`
	AffectedCost float64     `json:"affected_cost"`
	BaselineCost float64     `json:"baseline_cost"`
	DetectedAt   time.Time   `json:"detected_at"`
}

// Recommendation is a proposed cost-saving action. Status is only mutated by
// the HITL checkpoint or an external review action.
type Recommendation struct {
	ID                string               `json:"id"`
	ResourceName      string               `json:"resource_name"`
	ResourceType      string               `json:"resource_type"`
	Action            Action               `json:"action"`
	Description       string               `json:"description"`
	EstimatedSavings  float64              `json:"estimated_savings"`
	Confidence        float64              `json:"confidence"`
	RiskLevel         RiskLevel            `json:"risk_level"`
	CurrentConfig     string               `json:"current_config,omitempty"`
	RecommendedConfig string               `json:"recommended_config,omitempty"`
	Status            RecommendationStatus `json:"status"`
}

// StageDecision is an append-only audit entry written by each stage.
type StageDecision struct {
	Stage               string         `json:"stage"`
	Summary             string         `json:"summary"`
	Confidence          float64        `json:"confidence"`
	Reasoning           string         `json:"reasoning"`
	Flags               []string       `json:"flags,omitempty"`
	ExtractedData       map[string]any `json:"extracted_data,omitempty"`
	RequiresHumanReview bool           `json:"requires_human_review"`
	ProcessingTime      float64        `json:"processing_time"`
}

// UserStats carries the requesting user's cumulative gamification state into
// a run so badge evaluation never re-awards an already-held badge.
type UserStats struct {
	Points           int      `json:"points"`
	Badges           []string `json:"badges,omitempty"`
	AdoptedCount     int      `json:"adopted_count"`
	TotalSavings     float64  `json:"total_savings"`
	MaxSingleSavings float64  `json:"max_single_savings"`
}

// Input is the subscription snapshot an analysis run starts from.
type Input struct {
	SubscriptionID      string
	SubscriptionName    string
	UserID              string
	AnalysisPeriod      string
	Resources           []Resource
	CostHistory         []CostHistoryEntry
	CurrentMonthlySpend float64
	UserStats           UserStats
}

// Record is the single mutable analysis state threaded through every stage.
type Record struct {
	AnalysisID       string `json:"analysis_id"`
	SubscriptionID   string `json:"subscription_id"`
	SubscriptionName string `json:"subscription_name"`
	UserID           string `json:"user_id"`
	AnalysisPeriod   string `json:"analysis_period"`

	Resources           []Resource         `json:"resources"`
	CostHistory         []CostHistoryEntry `json:"cost_history"`
	CurrentMonthlySpend float64            `json:"current_monthly_spend"`
	UserStats           UserStats          `json:"user_stats"`

	Anomalies       []Anomaly `json:"anomalies"`
	AnomalyCount    int       `json:"anomaly_count"`
	AnomalySeverity Severity  `json:"anomaly_severity"`

	Recommendations        []Recommendation `json:"recommendations"`
	TotalPotentialSavings  float64          `json:"total_potential_savings"`
	OptimizationConfidence float64          `json:"optimization_confidence"`

	Forecast30d              float64 `json:"forecast_30d"`
	Forecast90d              float64 `json:"forecast_90d"`
	ForecastWithOptimization float64 `json:"forecast_with_optimization"`
	SavingsIfAdopted         float64 `json:"savings_if_adopted"`
	ForecastTrend            string  `json:"forecast_trend"`

	PointsEarned   int      `json:"points_earned"`
	BadgesUnlocked []string `json:"badges_unlocked"`
	HealthScore    int      `json:"health_score"`

	Decisions []StageDecision `json:"stage_decisions"`

	HITLRequired       bool     `json:"hitl_required"`
	HITLTriggerReasons []string `json:"hitl_trigger_reasons,omitempty"`
	HITLPriority       string   `json:"hitl_priority,omitempty"`
	HumanDecision      string   `json:"hitl_human_decision,omitempty"`
	Reviewer           string   `json:"hitl_reviewer,omitempty"`
	ReviewNotes        string   `json:"hitl_notes,omitempty"`

	Status            Status    `json:"status"`
	OverallConfidence float64   `json:"overall_confidence"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at,omitempty"`
}

// NewRecord builds the initial record for a run with a fresh analysis ID.
func NewRecord(in Input) *Record {
	period := in.AnalysisPeriod
	if period == "" {
		period = "30d"
	}
	return &Record{
		AnalysisID:          uuid.NewString(),
		SubscriptionID:      in.SubscriptionID,
		SubscriptionName:    in.SubscriptionName,
		UserID:              in.UserID,
		AnalysisPeriod:      period,
		Resources:           in.Resources,
		CostHistory:         in.CostHistory,
		CurrentMonthlySpend: in.CurrentMonthlySpend,
		UserStats:           in.UserStats,
		AnomalySeverity:     SeverityNone,
		Status:              StatusSubmitted,
		StartedAt:           time.Now().UTC(),
	}
}

// Clone returns a deep copy so checkpointed state cannot alias live state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Resources = append([]Resource(nil), r.Resources...)
	out.CostHistory = make([]CostHistoryEntry, len(r.CostHistory))
	for i, e := range r.CostHistory {
		out.CostHistory[i] = e
		if e.Breakdown != nil {
			bd := make(map[string]float64, len(e.Breakdown))
			for k, v := range e.Breakdown {
				bd[k] = v
			}
			out.CostHistory[i].Breakdown = bd
		}
	}
	out.UserStats.Badges = append([]string(nil), r.UserStats.Badges...)
	out.Anomalies = append([]Anomaly(nil), r.Anomalies...)
	out.Recommendations = append([]Recommendation(nil), r.Recommendations...)
	out.BadgesUnlocked = append([]string(nil), r.BadgesUnlocked...)
	out.HITLTriggerReasons = append([]string(nil), r.HITLTriggerReasons...)
	out.Decisions = make([]StageDecision, len(r.Decisions))
	for i, d := range r.Decisions {
		out.Decisions[i] = d
		out.Decisions[i].Flags = append([]string(nil), d.Flags...)
		if d.ExtractedData != nil {
			data := make(map[string]any, len(d.ExtractedData))
			for k, v := range d.ExtractedData {
				data[k] = v
			}
			out.Decisions[i].ExtractedData = data
		}
	}
	return &out
}
