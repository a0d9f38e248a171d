package httpapi

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/storage"
)

// WatchHandler exposes watch CRUD.
type WatchHandler struct {
	Watches   storage.WatchStore
	Validator fetcher.TickerValidator
	Logger    zerolog.Logger
}

func (h *WatchHandler) Register(r *gin.Engine) {
	r.GET("/watches", h.list)
	r.POST("/watches", h.upsert)
	r.DELETE("/watches/:ticker", h.remove)
}

type watchRequest struct {
	Ticker  string    `json:"ticker"`
	Levels  []float64 `json:"levels"`
	Enabled *bool     `json:"enabled"`
}

func (h *WatchHandler) list(c *gin.Context) {
	watches, err := h.Watches.ListWatches(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to list watches")
		writeError(c, http.StatusInternalServerError, "failed to list watches")
		return
	}
	if watches == nil {
		watches = []storage.Watch{}
	}
	c.JSON(http.StatusOK, watches)
}

func (h *WatchHandler) upsert(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(c, http.StatusUnprocessableEntity, "ticker is required")
		return
	}
	for _, level := range req.Levels {
		if level <= 0 || math.IsNaN(level) || math.IsInf(level, 0) {
			writeError(c, http.StatusUnprocessableEntity, fmt.Sprintf("level %v must be a positive number", level))
			return
		}
	}

	if h.Validator != nil {
		if err := h.Validator.ValidateTicker(c.Request.Context(), ticker); err != nil {
			h.Logger.Warn().Err(err).Str("ticker", ticker).Msg("ticker validation failed")
			writeError(c, http.StatusBadRequest, fmt.Sprintf("Ticker '%s' not found on Yahoo Finance", ticker))
			return
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	levels := req.Levels
	if levels == nil {
		levels = []float64{}
	}

	saved, err := h.Watches.UpsertWatch(c.Request.Context(), storage.Watch{Ticker: ticker, Levels: levels, Enabled: enabled})
	if err != nil {
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("failed to save watch")
		writeError(c, http.StatusInternalServerError, "failed to save watch")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *WatchHandler) remove(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	deleted, err := h.Watches.DeleteWatch(c.Request.Context(), ticker)
	if err != nil {
		h.Logger.Error().Err(err).Str("ticker", ticker).Msg("failed to delete watch")
		writeError(c, http.StatusInternalServerError, "failed to delete watch")
		return
	}
	if !deleted {
		writeError(c, http.StatusNotFound, fmt.Sprintf("Watch '%s' not found", ticker))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Watch '%s' deleted successfully", ticker)})
}
