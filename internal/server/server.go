package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/orbcast/orbcast/internal/clientevent"
	"github.com/orbcast/orbcast/internal/common/config"
	"github.com/orbcast/orbcast/internal/session"
	"github.com/orbcast/orbcast/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the engine's operational HTTP surface: health, metrics, and
// read-only registry introspection. It is not the platform's REST API.
type Server struct {
	logger   *zap.Logger
	port     int
	router   *gin.Engine
	service  *clientevent.Service
	sessions session.Store
	http     *http.Server
}

// NewServer creates the operational HTTP server.
func NewServer(logger *zap.Logger, cfg *config.ServerConfig, service *clientevent.Service, sessions session.Store, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if m != nil {
		router.Use(m.Middleware())
	}

	s := &Server{
		logger:   logger.Named("server"),
		port:     cfg.Port,
		router:   router,
		service:  service,
		sessions: sessions,
	}

	router.GET("/healthz", s.handleHealth)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	router.GET("/api/sessions", s.handleSessions)

	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSessions reports the current registry shape: connected sessions and
// their subscriptions, timestamps included so an operator can spot stale
// entries.
func (s *Server) handleSessions(c *gin.Context) {
	connections, err := s.sessions.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}

	sessionCount, subscriptionCount := s.service.Registry().Stats()
	c.JSON(http.StatusOK, gin.H{
		"connections":   len(connections),
		"sessions":      sessionCount,
		"subscriptions": subscriptionCount,
		"registry":      s.service.Registry().Describe(),
	})
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start server", zap.Error(err))
		}
	}()
	s.logger.Info("operational server listening", zap.Int("port", s.port))
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
