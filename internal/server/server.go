package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/autodiscovery"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/metrics"
	"github.com/openskies-io/alpacahub/internal/proxy"
	"github.com/openskies-io/alpacahub/internal/registry"
)

const shutdownTimeout = 10 * time.Second

// Config holds the gateway server configuration
type Config struct {
	Host     string
	Port     int
	LogLevel string
}

// Deps are the collaborators the gateway serves.
type Deps struct {
	Registry     *registry.Registry
	Discoverer   *discovery.Discoverer
	Orchestrator *autodiscovery.Orchestrator
	Metrics      *metrics.Metrics
}

// Server is the alpacahub gateway: discovery control surface, device proxy,
// registry REST API, and websocket event stream on one listener.
type Server struct {
	config  *Config
	deps    Deps
	router  *chi.Mux
	gateway *proxy.Gateway
	hub     *eventHub
	httpSrv *http.Server
}

// New creates a new Server instance
func New(config *Config, deps Deps) (*Server, error) {
	// Initialize logging
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if deps.Registry == nil || deps.Discoverer == nil || deps.Orchestrator == nil {
		return nil, fmt.Errorf("server requires registry, discoverer, and orchestrator")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	s := &Server{
		config:  config,
		deps:    deps,
		router:  chi.NewRouter(),
		gateway: proxy.New(),
		hub:     newEventHub(),
	}

	s.wireMetrics()
	s.hub.attach(deps.Registry.Events())
	s.setupRoutes()
	return s, nil
}

// wireMetrics keeps the registry gauges and counters in step with bus events
// and discovery replies.
func (s *Server) wireMetrics() {
	m := s.deps.Metrics
	reg := s.deps.Registry
	s.deps.Discoverer.OnReply = func(*discovery.DiscoveredServer) {
		m.ResponsesTotal.Inc()
	}
	reg.Events().AddListener(func(event registry.Event) {
		switch event.Type {
		case registry.EventDeviceAdded:
			m.DevicesRegistered.Inc()
			m.Devices.Set(float64(reg.Len()))
		case registry.EventDeviceRemoved:
			m.Devices.Set(float64(reg.Len()))
		case registry.EventDeviceConnectionError:
			m.ConnectErrorsTotal.Inc()
		}
	})
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting alpacahub gateway",
		zap.String("addr", addr),
		zap.String("log_level", s.config.LogLevel),
	)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	logging.Info("Gateway listening", zap.String("addr", addr))

	// Wait for shutdown signal or listener error
	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping gateway...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown gracefully stops the server, the event stream, and the discovery
// socket.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.hub.close()
	if err := s.deps.Discoverer.Close(); err != nil {
		logging.Warn("Failed to close discovery socket", zap.Error(err))
	}

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	logging.Info("Gateway stopped")
	logging.Sync()
	return nil
}
