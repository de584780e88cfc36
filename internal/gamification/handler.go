package gamification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/pipeline"
	"costopt-backend/internal/shared/server/middleware"
	"costopt-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the gamification service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches gamification routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/gamification/stats", h.getStats)
	rg.GET("/gamification/leaderboard", h.getLeaderboard)
	rg.GET("/gamification/badges", h.listBadges)
}

func (h *Handler) getStats(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	stats, err := h.Svc.Stats(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) getLeaderboard(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	board, err := h.Svc.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch leaderboard", nil)
		return
	}
	respond.OK(c, gin.H{"leaderboard": board})
}

// listBadges returns the badge catalog so clients can render locked badges.
func (h *Handler) listBadges(c *gin.Context) {
	catalog := make([]gin.H, 0, len(pipeline.BadgeRegistry))
	for _, b := range pipeline.BadgeRegistry {
		catalog = append(catalog, gin.H{
			"name":        b.Name,
			"description": b.Description,
			"points":      b.Points,
		})
	}
	respond.OK(c, gin.H{"badges": catalog})
}
