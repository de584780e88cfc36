package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"costopt-backend/internal/analyses"
	googleauth "costopt-backend/internal/auth"
	"costopt-backend/internal/gamification"
	"costopt-backend/internal/recommendations"
	"costopt-backend/internal/shared/config"
	"costopt-backend/internal/shared/metrics"
	"costopt-backend/internal/shared/server/middleware"
	"costopt-backend/internal/shared/server/respond"
	"costopt-backend/internal/subscriptions"
)

// Deps holds the handlers wired into the HTTP router.
type Deps struct {
	Subscriptions   *subscriptions.Handler
	Analyses        *analyses.Handler
	Recommendations *recommendations.Handler
	Gamification    *gamification.Handler
	GoogleAuth      *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		middleware.RateLimit(rateLimits()),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	registerMeRoutes(api)
	if deps.Subscriptions != nil {
		deps.Subscriptions.RegisterRoutes(api)
	}
	if deps.Analyses != nil {
		deps.Analyses.RegisterRoutes(api)
	}
	if deps.Recommendations != nil {
		deps.Recommendations.RegisterRoutes(api)
	}
	if deps.Gamification != nil {
		deps.Gamification.RegisterRoutes(api)
	}

	return r
}

// rateLimits throttles analysis kick-off, which fans out into LLM calls.
// Reads and review actions stay unlimited.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"ANALYZE": {Rate: 0.1, Burst: 3},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && strings.HasSuffix(c.Request.URL.Path, "/analyze") {
				return "ANALYZE"
			}
			if c.Request.Method == http.MethodGet && strings.HasSuffix(c.Request.URL.Path, "/analyze/stream") {
				return "ANALYZE"
			}
			return ""
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
