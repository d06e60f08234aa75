package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"riskbook/internal/advisor"
	"riskbook/internal/analytics"
	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/preset"
	"riskbook/internal/store"
	"riskbook/internal/store/advisorylog"
)

const userHeader = "X-User-ID"

// Router holds the handler dependencies. One instance serves all users; the
// user is resolved per request.
type Router struct {
	backend     string
	defaultUser string
	defaults    journal.DefaultSettings

	journal     store.JournalStore
	settings    store.SettingsStore
	advisor     *advisor.Service
	presets     *preset.Registry
	advisoryLog *advisorylog.Log
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		backend:     cfg.Backend,
		defaultUser: cfg.DefaultUser,
		defaults:    cfg.Defaults,
		journal:     cfg.Journal,
		settings:    cfg.Settings,
		advisor:     cfg.Advisor,
		presets:     cfg.Presets,
		advisoryLog: cfg.AdvisoryLog,
	}
}

// Register mounts the REST routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/sizing/preview", r.handleSizingPreview)
	group.POST("/sizing/atr", r.handleATR)
	group.POST("/trades", r.handleConfirmTrade)
	group.GET("/trades", r.handleListTrades)
	group.PATCH("/trades/:id", r.handleUpdateResult)
	group.DELETE("/trades/:id", r.handleDeleteTrade)
	group.GET("/analytics", r.handleAnalytics)
	group.GET("/sentiment/:ticker", r.handleSentiment)
	group.GET("/settings", r.handleGetSettings)
	group.PUT("/settings", r.handlePutSettings)
	group.GET("/presets", r.handleListPresets)
	group.POST("/settings/preset", r.handleApplyPreset)
	group.GET("/status", r.handleStatus)
	group.GET("/advisory-log", r.handleAdvisoryLog)
}

func (r *Router) userID(c *gin.Context) string {
	if uid := strings.TrimSpace(c.GetHeader(userHeader)); uid != "" {
		return uid
	}
	return r.defaultUser
}

// userSettings resolves the effective account defaults: the user's saved
// snapshot when present, the configured baseline otherwise.
func (r *Router) userSettings(c *gin.Context) (journal.DefaultSettings, bool, error) {
	saved, ok, err := r.settings.Get(c.Request.Context(), r.userID(c))
	if err != nil {
		return journal.DefaultSettings{}, false, err
	}
	if ok {
		return saved, true, nil
	}
	return r.defaults, false, nil
}

func (r *Router) handleSizingPreview(c *gin.Context) {
	var params journal.AccountParameters
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed parameters: " + err.Error()})
		return
	}
	sizing, err := analytics.ComputeSizing(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sizing)
}

// handleATR derives a stop distance from user-supplied OHLC bars, so the form
// can be filled without a market data feed.
func (r *Router) handleATR(c *gin.Context) {
	var req struct {
		Bars   []analytics.Bar `json:"bars"`
		Period int             `json:"period"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	atr, err := analytics.ATRFromBars(req.Bars, req.Period)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"atr": atr, "period": periodOrDefault(req.Period)})
}

func periodOrDefault(period int) int {
	if period <= 0 {
		return analytics.DefaultATRPeriod
	}
	return period
}

type confirmRequest struct {
	Ticker    string                    `json:"ticker"`
	Params    journal.AccountParameters `json:"params"`
	Sentiment *sentimentSnapshot        `json:"sentiment"`
}

type sentimentSnapshot struct {
	Summary string              `json:"summary"`
	Sources []journal.SourceRef `json:"sources"`
}

func (r *Router) handleConfirmTrade(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}
	sizing, err := analytics.ComputeSizing(req.Params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prefer the client-held snapshot; otherwise ask the advisory service.
	// Advisory failure never blocks the confirm, the record carries the
	// sentinel text instead.
	sentiment := ""
	var sources []journal.SourceRef
	switch {
	case req.Sentiment != nil:
		sentiment = strings.TrimSpace(req.Sentiment.Summary)
		sources = req.Sentiment.Sources
	case r.advisor != nil:
		snap, aerr := r.advisor.Sentiment(c.Request.Context(), r.userID(c), req.Ticker)
		if aerr == nil {
			sentiment = snap.Summary
			sources = snap.Sources
		}
	}

	rec, err := analytics.NewTradeRecord(req.Params, req.Ticker, sizing, sentiment, sources)
	if errors.Is(err, analytics.ErrZeroShares) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := r.journal.Create(c.Request.Context(), r.userID(c), rec)
	if err != nil {
		logger.Errorf("[api] creating trade failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving the trade failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (r *Router) handleListTrades(c *gin.Context) {
	records, err := r.journal.List(c.Request.Context(), r.userID(c))
	if err != nil {
		logger.Errorf("[api] listing trades failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading the journal failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (r *Router) handleUpdateResult(c *gin.Context) {
	var body struct {
		Result string `json:"result"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	result, err := journal.ParseResult(body.Result)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := r.journal.Update(c.Request.Context(), r.userID(c), c.Param("id"), journal.RecordPatch{Result: &result})
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("[api] updating trade failed user=%s id=%s err=%v", r.userID(c), c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "updating the trade failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *Router) handleDeleteTrade(c *gin.Context) {
	err := r.journal.Delete(c.Request.Context(), r.userID(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("[api] deleting trade failed user=%s id=%s err=%v", r.userID(c), c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deleting the trade failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) handleAnalytics(c *gin.Context) {
	settings, _, err := r.userSettings(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading settings failed"})
		return
	}
	accountSize := settings.AccountSize
	if raw := strings.TrimSpace(c.Query("account_size")); raw != "" {
		override, perr := decimal.NewFromString(raw)
		if perr != nil || !override.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "account_size must be a positive number"})
			return
		}
		accountSize = override
	}
	records, err := r.journal.List(c.Request.Context(), r.userID(c))
	if err != nil {
		logger.Errorf("[api] analytics list failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading the journal failed"})
		return
	}
	c.JSON(http.StatusOK, analytics.BuildReport(records, accountSize))
}

func (r *Router) handleSentiment(c *gin.Context) {
	if r.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": journal.SentimentUnavailable})
		return
	}
	snap, err := r.advisor.Sentiment(c.Request.Context(), r.userID(c), c.Param("ticker"))
	if err != nil {
		// An open circuit is a degraded-state 503; a failed fetch after
		// retries is a 502 for this request only.
		status := http.StatusBadGateway
		if r.advisor.Degraded() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleGetSettings(c *gin.Context) {
	settings, saved, err := r.userSettings(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading settings failed"})
		return
	}
	source := "default"
	if saved {
		source = "saved"
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings, "source": source})
}

func (r *Router) handlePutSettings(c *gin.Context) {
	var patch journal.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed settings: " + err.Error()})
		return
	}
	if err := validateSettingsPatch(patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	merged, err := r.settings.Upsert(c.Request.Context(), r.userID(c), patch)
	if err != nil {
		logger.Errorf("[api] saving settings failed user=%s err=%v", r.userID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": merged, "source": "saved"})
}

func (r *Router) handleListPresets(c *gin.Context) {
	if r.presets == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "presets": []preset.Preset{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "presets": r.presets.Snapshot().List()})
}

func (r *Router) handleApplyPreset(c *gin.Context) {
	if r.presets == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presets are not enabled"})
		return
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request: " + err.Error()})
		return
	}
	p, ok := r.presets.Preset(body.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown preset: " + body.ID})
		return
	}
	merged, err := r.settings.Upsert(c.Request.Context(), r.userID(c), p.Patch())
	if err != nil {
		logger.Errorf("[api] applying preset failed user=%s preset=%s err=%v", r.userID(c), p.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": merged, "preset": p.ID})
}

// handleStatus is the persistent-banner surface: the client polls it to show
// degraded upstreams without blocking any local workflow.
func (r *Router) handleStatus(c *gin.Context) {
	advisorStatus := gin.H{"enabled": false}
	degraded := false
	if r.advisor != nil {
		state, failures := r.advisor.BreakerState()
		degraded = r.advisor.Degraded()
		advisorStatus = gin.H{"enabled": true, "breaker": state, "failures": failures}
	}
	c.JSON(http.StatusOK, gin.H{
		"store":    gin.H{"backend": r.backend},
		"advisor":  advisorStatus,
		"presets":  gin.H{"enabled": r.presets != nil},
		"degraded": gin.H{"advisor": degraded},
	})
}

func (r *Router) handleAdvisoryLog(c *gin.Context) {
	if r.advisoryLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisory log is not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	entries, err := r.advisoryLog.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] advisory log query failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading the advisory log failed"})
		return
	}
	if entries == nil {
		entries = []advisorylog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// validateSettingsPatch applies the same bounds the config layer enforces on
// the baseline.
func validateSettingsPatch(p journal.SettingsPatch) error {
	if p.AccountSize != nil && !p.AccountSize.IsPositive() {
		return errors.New("accountSize must be positive")
	}
	if p.RiskPercent != nil {
		if !p.RiskPercent.IsPositive() || p.RiskPercent.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("riskPercent must be in (0, 100]")
		}
	}
	if p.TargetRMultiple != nil && p.TargetRMultiple.LessThan(journal.MinTargetRMultiple) {
		return errors.New("targetRMultiple must be at least " + journal.MinTargetRMultiple.String())
	}
	if p.TotalTradeCost != nil && p.TotalTradeCost.IsNegative() {
		return errors.New("totalTradeCost must not be negative")
	}
	return nil
}
