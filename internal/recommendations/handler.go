package recommendations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/shared/server/middleware"
	"costopt-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the recommendations service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches recommendation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/recommendations", h.listRecommendations)
	rg.POST("/recommendations/:id/review", h.reviewRecommendation)
}

func (h *Handler) listRecommendations(c *gin.Context) {
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

	rows, err := h.Svc.List(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list recommendations", nil)
		return
	}
	respond.OK(c, gin.H{"recommendations": rows})
}

type reviewRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) reviewRecommendation(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "action is required", nil)
		return
	}

	row, err := h.Svc.Review(c.Request.Context(), userID, id, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAction):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown review action", nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "recommendation not found", nil)
		case errors.Is(err, ErrAlreadyDecided):
			respond.Error(c, http.StatusConflict, "conflict", "recommendation already decided", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to review recommendation", nil)
		}
		return
	}
	respond.OK(c, row)
}
