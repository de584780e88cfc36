package analyses

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/shared/server/middleware"
	"costopt-backend/internal/shared/server/respond"
	"costopt-backend/internal/subscriptions"
)

// streamIdleTimeout bounds how long an SSE consumer waits between events
// before the stream is closed with an error event.
const streamIdleTimeout = 120 * time.Second

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscriptions/:id/analyze", h.startAnalysis)
	rg.GET("/subscriptions/:id/analyze/stream", h.streamAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/state", h.getAnalysisState)
	rg.GET("/reviews", h.listPendingReviews)
	rg.POST("/analyses/:id/review", h.reviewAnalysis)
}

type analyzeRequest struct {
	AnalysisPeriod string `json:"analysis_period"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	if c.Query("async") == "true" {
		err := h.Svc.Enqueue(c.Request.Context(), userID, subscriptionID, req.AnalysisPeriod, middleware.RequestIDFromContext(c))
		if err != nil {
			switch {
			case errors.Is(err, subscriptions.ErrNotFound):
				respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
			case errors.Is(err, ErrQueueUnavailable):
				respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "async analysis is not configured", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue analysis", nil)
			}
			return
		}
		respond.Accepted(c, gin.H{"queued": true, "subscription_id": subscriptionID})
		return
	}

	rec, err := h.Svc.Start(c.Request.Context(), userID, subscriptionID, req.AnalysisPeriod)
	if err != nil {
		switch {
		case errors.Is(err, subscriptions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to run analysis", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, recordResponse(rec))
}

func (h *Handler) streamAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	var period string
	if v := c.Query("analysis_period"); v != "" {
		period = v
	}

	stream, err := h.Svc.StartStream(c.Request.Context(), userID, subscriptionID, period)
	if err != nil {
		switch {
		case errors.Is(err, subscriptions.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	for {
		ev, ok := stream.Next(streamIdleTimeout)
		if !ok {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		if canFlush {
			flusher.Flush()
		}
		if ev.Terminal() {
			return
		}
	}
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	analysis, err := h.Svc.Get(c.Request.Context(), userID, analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, analysis)
}

func (h *Handler) getAnalysisState(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	rec, err := h.Svc.State(c.Request.Context(), userID, analysisID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis state", nil)
		}
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	all, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"analyses": all})
}

func (h *Handler) listPendingReviews(c *gin.Context) {
	records, err := h.Svc.PendingReview(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list reviews", nil)
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, rec := range records {
		items = append(items, gin.H{
			"analysis_id":             rec.AnalysisID,
			"subscription_id":         rec.SubscriptionID,
			"subscription_name":       rec.SubscriptionName,
			"priority":                rec.HITLPriority,
			"trigger_reasons":         rec.HITLTriggerReasons,
			"total_potential_savings": rec.TotalPotentialSavings,
			"recommendations":         rec.Recommendations,
			"started_at":              rec.StartedAt,
		})
	}
	respond.OK(c, gin.H{"reviews": items})
}

type reviewRequest struct {
	Decision    string   `json:"decision" binding:"required"`
	ApprovedIDs []string `json:"approved_ids"`
	Notes       string   `json:"notes"`
}

func (h *Handler) reviewAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "decision is required", nil)
		return
	}

	rec, err := h.Svc.Resume(c.Request.Context(), userID, analysisID, pipeline.ReviewDecision{
		Decision:    req.Decision,
		ApprovedIDs: req.ApprovedIDs,
		Reviewer:    userID,
		Notes:       req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrInvalidDecision):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown review decision", nil)
		case errors.Is(err, pipeline.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to apply review", nil)
		}
		return
	}
	respond.OK(c, recordResponse(rec))
}

// recordResponse is the compact run view returned by analyze and review.
func recordResponse(rec *pipeline.Record) gin.H {
	resp := gin.H{
		"analysis_id":             rec.AnalysisID,
		"subscription_id":         rec.SubscriptionID,
		"status":                  rec.Status,
		"anomaly_count":           rec.AnomalyCount,
		"anomaly_severity":        rec.AnomalySeverity,
		"recommendations":         rec.Recommendations,
		"total_potential_savings": rec.TotalPotentialSavings,
		"forecast_30d":            rec.Forecast30d,
		"forecast_90d":            rec.Forecast90d,
		"forecast_trend":          rec.ForecastTrend,
		"points_earned":           rec.PointsEarned,
		"badges_unlocked":         rec.BadgesUnlocked,
		"health_score":            rec.HealthScore,
		"overall_confidence":      rec.OverallConfidence,
	}
	if rec.Status == pipeline.StatusPendingReview {
		resp["review_priority"] = rec.HITLPriority
		resp["trigger_reasons"] = rec.HITLTriggerReasons
	}
	return resp
}
