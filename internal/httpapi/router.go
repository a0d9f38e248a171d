package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stocks-watcher/internal/broadcast"
	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/proximity"
	"stocks-watcher/internal/service"
	"stocks-watcher/internal/storage"
)

// StatusProvider serves the derived views behind /status and /info.
type StatusProvider interface {
	Statuses(ctx context.Context, force bool) ([]proximity.View, error)
	Info(ctx context.Context) (service.Info, error)
}

// Deps bundles the collaborators the API needs.
type Deps struct {
	Watches        storage.WatchStore
	Validator      fetcher.TickerValidator
	History        fetcher.HistoryFetcher
	Status         StatusProvider
	Hub            *broadcast.Hub
	AllowedOrigins []string
	// BaseContext outlives individual requests; websocket sessions end when it is cancelled.
	BaseContext context.Context
	Debug       bool
}

// NewRouter assembles the gin engine with every route registered.
func NewRouter(deps Deps, logger zerolog.Logger) *gin.Engine {
	if deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger = logger.With().Str("component", "http").Logger()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware(deps.AllowedOrigins))

	(&HealthHandler{}).Register(engine)
	(&WatchHandler{Watches: deps.Watches, Validator: deps.Validator, Logger: logger}).Register(engine)
	(&StatusHandler{Status: deps.Status, Logger: logger}).Register(engine)
	(&HistoryHandler{History: deps.History, Logger: logger}).Register(engine)
	(&StreamHandler{Hub: deps.Hub, AllowedOrigins: deps.AllowedOrigins, BaseContext: deps.BaseContext, Logger: logger}).Register(engine)
	return engine
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || wildcard {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": message})
}

// HealthHandler serves liveness probes.
type HealthHandler struct{}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
