package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tokenpilot/internal/portfolio"
	"tokenpilot/internal/repository"
	"tokenpilot/internal/risk"
	"tokenpilot/internal/service"
	"tokenpilot/internal/signal"
)

// AdvisorHandler exposes the decision engine's read surface and a manual
// cycle trigger.
type AdvisorHandler struct {
	Advisor    *service.Advisor
	Ledger     *portfolio.Ledger
	Tracker    *risk.Tracker
	Metrics    *risk.MetricsTracker
	Aggregator *signal.Aggregator
	Repo       repository.Repository
}

func (h *AdvisorHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/recommendations", h.recommendations)
	group.GET("/portfolio", h.portfolio)
	group.GET("/portfolio/history", h.portfolioHistory)
	group.GET("/progress", h.progress)
	group.GET("/signals", h.signals)
	group.GET("/signals/history", h.signalHistory)
	group.GET("/signals/sources", h.signalSources)
	group.GET("/risk/report", h.riskReport)
	group.POST("/cycle/run", h.runCycle)
}

func (h *AdvisorHandler) recommendations(c *gin.Context) {
	if h.Advisor == nil {
		Error(c, http.StatusInternalServerError, "advisor unavailable", nil)
		return
	}
	Ok(c, h.Advisor.GetRecommendedActions(c.Request.Context()), nil)
}

func (h *AdvisorHandler) portfolio(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	Ok(c, h.Ledger.Snapshot(), nil)
}

func (h *AdvisorHandler) portfolioHistory(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 168)
	var sinceTime time.Time
	if since := sinceQuery(c); since != nil {
		sinceTime = *since
	}
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), sinceTime, limit)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *AdvisorHandler) progress(c *gin.Context) {
	if h.Ledger == nil || h.Tracker == nil {
		Error(c, http.StatusInternalServerError, "tracker unavailable", nil)
		return
	}
	snap := h.Ledger.Snapshot()
	Ok(c, h.Tracker.Measure(snap.TotalValue, time.Now().UTC()), nil)
}

func (h *AdvisorHandler) signals(c *gin.Context) {
	if h.Aggregator == nil {
		Error(c, http.StatusInternalServerError, "aggregator unavailable", nil)
		return
	}
	items := h.Aggregator.Signals(c.Request.Context())
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *AdvisorHandler) signalHistory(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var sourcePtr, tokenPtr *string
	if source := strings.TrimSpace(c.Query("source")); source != "" {
		sourcePtr = &source
	}
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		tokenPtr = &token
	}

	items, err := h.Repo.ListSignals(c.Request.Context(), repository.ListSignalsParams{
		Limit:   limit,
		Offset:  offset,
		Source:  sourcePtr,
		Token:   tokenPtr,
		Since:   sinceQuery(c),
		OrderBy: "emitted_at",
		Asc:     boolPtr(false),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, items, meta)
}

func (h *AdvisorHandler) signalSources(c *gin.Context) {
	if h.Aggregator == nil {
		Error(c, http.StatusInternalServerError, "aggregator unavailable", nil)
		return
	}
	Ok(c, h.Aggregator.SourceHealth(), nil)
}

func (h *AdvisorHandler) riskReport(c *gin.Context) {
	if h.Ledger == nil || h.Metrics == nil {
		Error(c, http.StatusInternalServerError, "metrics unavailable", nil)
		return
	}
	snap := h.Ledger.Snapshot()
	Ok(c, h.Metrics.Report(snap.TotalValue, snap.AvailableCapital, time.Now().UTC()), nil)
}

func (h *AdvisorHandler) runCycle(c *gin.Context) {
	if h.Advisor == nil {
		Error(c, http.StatusInternalServerError, "advisor unavailable", nil)
		return
	}
	if err := h.Advisor.RunCycle(c.Request.Context()); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"status": "completed"}, nil)
}

func sinceQuery(c *gin.Context) *time.Time {
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		if parsed, err := time.Parse(time.RFC3339, since); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
