// Package apihttp serves the risk calculator and trade journal API.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"riskbook/internal/advisor"
	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/preset"
	"riskbook/internal/store"
	"riskbook/internal/store/advisorylog"
)

// Server hosts the REST API, the live stream and the dashboard.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig carries the server's dependencies. Advisor, Presets and
// AdvisoryLog are optional; the matching endpoints degrade when absent.
type ServerConfig struct {
	Addr        string
	Backend     string
	DefaultUser string
	Defaults    journal.DefaultSettings

	Journal     store.JournalStore
	Settings    store.SettingsStore
	Advisor     *advisor.Service
	Presets     *preset.Registry
	AdvisoryLog *advisorylog.Log
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Journal == nil || cfg.Settings == nil {
		return nil, errors.New("api server requires journal and settings stores")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8780"
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = "local"
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r := NewRouter(cfg)
	r.Register(engine.Group("/api/v1"))
	engine.GET("/stream", r.handleStream)
	engine.GET("/dashboard", r.handleDashboard)
	engine.GET("/dashboard/snapshot.png", r.handleSnapshot)

	return &Server{addr: cfg.Addr, router: engine}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[api] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// corsMiddleware is deliberately permissive: the browser client may be served
// from anywhere.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
