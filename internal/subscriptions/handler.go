package subscriptions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/shared/server/middleware"
	"costopt-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the subscriptions service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches subscription routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscriptions", h.createSubscription)
	rg.GET("/subscriptions", h.listSubscriptions)
	rg.GET("/subscriptions/:id", h.getSubscription)
	rg.PUT("/subscriptions/:id/resources", h.setResources)
	rg.POST("/subscriptions/:id/costs", h.ingestCosts)
}

type createSubscriptionRequest struct {
	Name                string  `json:"name" binding:"required"`
	Provider            string  `json:"provider"`
	CurrentMonthlySpend float64 `json:"current_monthly_spend"`
}

func (h *Handler) createSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}
	if req.CurrentMonthlySpend < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "current_monthly_spend must be non-negative", nil)
		return
	}

	sub, err := h.Svc.Create(c.Request.Context(), userID, CreateInput{
		Name:                req.Name,
		Provider:            req.Provider,
		CurrentMonthlySpend: req.CurrentMonthlySpend,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create subscription", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, sub)
}

func (h *Handler) getSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	sub, err := h.Svc.Get(c.Request.Context(), userID, subscriptionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch subscription", nil)
		}
		return
	}
	respond.OK(c, sub)
}

func (h *Handler) listSubscriptions(c *gin.Context) {
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

	subs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list subscriptions", nil)
		return
	}
	respond.OK(c, gin.H{"subscriptions": subs})
}

type resourceRequest struct {
	Name           string   `json:"name" binding:"required"`
	Type           string   `json:"type" binding:"required"`
	Region         string   `json:"region"`
	MonthlyCost    float64  `json:"monthly_cost"`
	CPUUsagePct    *float64 `json:"cpu_usage_pct"`
	MemoryUsagePct *float64 `json:"memory_usage_pct"`
}

func (h *Handler) setResources(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	var req struct {
		Resources []resourceRequest `json:"resources" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "resources are required", nil)
		return
	}

	records := make([]ResourceRecord, len(req.Resources))
	for i, r := range req.Resources {
		if r.MonthlyCost < 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "monthly_cost must be non-negative", nil)
			return
		}
		records[i] = ResourceRecord{
			Name:           r.Name,
			Type:           r.Type,
			Region:         r.Region,
			MonthlyCost:    r.MonthlyCost,
			CPUUsagePct:    r.CPUUsagePct,
			MemoryUsagePct: r.MemoryUsagePct,
		}
	}

	if err := h.Svc.SetResources(c.Request.Context(), userID, subscriptionID, records); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store resources", nil)
		}
		return
	}
	respond.OK(c, gin.H{"count": len(records)})
}

type costPointRequest struct {
	Date      string             `json:"date" binding:"required"`
	TotalCost float64            `json:"total_cost"`
	Breakdown map[string]float64 `json:"breakdown"`
}

func (h *Handler) ingestCosts(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	subscriptionID := c.Param("id")

	var req struct {
		Points []costPointRequest `json:"points" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "points are required", nil)
		return
	}

	points := make([]CostPoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = CostPoint{
			Date:      p.Date,
			TotalCost: p.TotalCost,
			Breakdown: p.Breakdown,
		}
	}

	if err := h.Svc.IngestCosts(c.Request.Context(), userID, subscriptionID, points); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "subscription not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to ingest costs", nil)
		}
		return
	}
	respond.OK(c, gin.H{"count": len(points)})
}
