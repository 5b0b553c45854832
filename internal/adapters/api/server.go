// Package api serves the HTTP interface the browser extension talks to.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/adapters/notify"
	"github.com/mikey/phish-alert/internal/adapters/watcher"
	"github.com/mikey/phish-alert/internal/core"
	"github.com/mikey/phish-alert/internal/logging"
	"github.com/mikey/phish-alert/internal/presentation"
)

const shutdownTimeout = 10 * time.Second

// HealthFunc reports whether the classification backend is reachable
type HealthFunc func(ctx context.Context) error

// Dependencies are the components the API exposes
type Dependencies struct {
	Pipeline   *core.Pipeline
	Navigation *watcher.NavigationWatcher
	Content    *watcher.ContentWatcher
	Presenter  *presentation.Presenter
	Inbox      *notify.Inbox
	Health     HealthFunc
}

// Server is the extension-facing HTTP API
type Server struct {
	engine        *gin.Engine
	logger        *zap.Logger
	listenAddress string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates the API server and registers its routes
func NewServer(deps Dependencies, listenAddress string, allowedOrigins []string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), logging.GinLogger(logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	h := &handlers{deps: deps, logger: logger}

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.POST("/events/navigation", h.navigation)

		scan := api.Group("/scan")
		{
			scan.POST("/url", h.scanURL)
			scan.POST("/email", h.scanEmail)
		}

		lists := api.Group("/lists")
		{
			lists.GET("", h.lists)
			lists.GET("/stream", h.streamLists)
		}

		records := api.Group("/records")
		{
			records.GET("/lookup", h.lookup)
			records.DELETE("", h.clearRecords)
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.notifications)
			notifications.POST("/:id/click", h.clickNotification)
		}
	}

	return &Server{
		engine:        router,
		logger:        logger,
		listenAddress: listenAddress,
	}
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:           []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:          []string{"Content-Length"},
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			return cfg
		}
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	// Extension pages are always admitted, so an empty list means extension only
	cfg.AllowOriginFunc = isExtensionOrigin
	return cfg
}

var extensionSchemes = []string{"chrome-extension://", "moz-extension://", "safari-web-extension://"}

func isExtensionOrigin(origin string) bool {
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) && len(origin) > len(scheme) {
			return true
		}
	}
	return false
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddress, err)
	}

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = l
	s.done = make(chan struct{})

	s.logger.Info("API server starting", zap.String("address", l.Addr().String()))

	server, done := s.server, s.done
	go func() {
		defer close(done)
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the address the server listens on, once started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.listenAddress
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting for open requests up to a timeout
func (s *Server) Stop() error {
	s.mu.Lock()
	server, done := s.server, s.done
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(ctx)
	<-done
	return err
}
