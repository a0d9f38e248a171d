package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stocks-watcher/internal/proximity"
)

// StatusHandler serves derived status views and scheduler info.
type StatusHandler struct {
	Status StatusProvider
	Logger zerolog.Logger
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/status", h.status)
	r.GET("/info", h.info)
}

func (h *StatusHandler) status(c *gin.Context) {
	force := false
	if raw := c.Query("forceRefresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, http.StatusUnprocessableEntity, "forceRefresh must be a boolean")
			return
		}
		force = parsed
	}

	views, err := h.Status.Statuses(c.Request.Context(), force)
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to build statuses")
		writeError(c, http.StatusInternalServerError, "failed to build statuses")
		return
	}
	if views == nil {
		views = []proximity.View{}
	}
	c.JSON(http.StatusOK, views)
}

func (h *StatusHandler) info(c *gin.Context) {
	info, err := h.Status.Info(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to build info")
		writeError(c, http.StatusInternalServerError, "failed to build info")
		return
	}
	c.JSON(http.StatusOK, info)
}
