package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stocks-watcher/internal/fetcher"
)

// HistoryHandler serves price history for charting.
type HistoryHandler struct {
	History fetcher.HistoryFetcher
	Logger  zerolog.Logger
}

func (h *HistoryHandler) Register(r *gin.Engine) {
	r.GET("/stocks/:ticker/history", h.history)
}

func (h *HistoryHandler) history(c *gin.Context) {
	if h.History == nil {
		writeError(c, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	period := c.DefaultQuery("period", fetcher.DefaultHistoryPeriod)
	interval := c.DefaultQuery("interval", fetcher.DefaultHistoryInterval)

	bars, err := h.History.History(c.Request.Context(), ticker, period, interval)
	switch {
	case errors.Is(err, fetcher.ErrInvalidRange):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.Logger.Warn().Err(err).Str("ticker", ticker).Msg("history fetch failed")
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if bars == nil {
		bars = []fetcher.Bar{}
	}
	c.JSON(http.StatusOK, bars)
}
