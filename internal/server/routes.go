package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/alpaca"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/proxy"
	"github.com/openskies-io/alpacahub/internal/registry"
)

// defaultTransitionTimeout bounds connect/disconnect side effects when the
// caller does not supply a timeout.
const defaultTransitionTimeout = 30 * time.Second

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	// Discovery control surface
	r.Post("/discovery/scan", s.handleScan)
	r.Get("/discovery/devices", s.handleDiscoveredServers)

	// Device proxy (any method)
	r.Handle(proxy.RoutePattern, s.instrumentProxy(s.gateway))

	// Registry REST surface
	r.Route("/api/devices", func(r chi.Router) {
		r.Get("/", s.handleListDevices)
		r.Post("/", s.handleAddManualDevice)
		r.Get("/{id}", s.handleGetDevice)
		r.Delete("/{id}", s.handleRemoveDevice)
		r.Post("/{id}/connect", s.handleConnect)
		r.Post("/{id}/disconnect", s.handleDisconnect)
	})

	// Websocket event stream
	r.Get("/events", s.hub.handleWebsocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScan triggers a discovery cycle and returns immediately; the cycle
// completes in the background and its outcome arrives via events.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Discoverer.Scanning() {
		s.deps.Metrics.ScanFailures.Inc()
		writeError(w, http.StatusConflict, "scan in progress", discovery.ErrScanInProgress.Error())
		return
	}

	s.deps.Metrics.ScansTotal.Inc()
	go func() {
		result, err := s.deps.Orchestrator.DiscoverAndRegister(context.Background())
		if err != nil {
			s.deps.Metrics.ScanFailures.Inc()
			logging.Warn("Background discovery cycle failed", zap.Error(err))
			return
		}
		s.deps.Metrics.ServersDiscovered.Set(float64(len(s.deps.Discoverer.Servers())))
		logging.Debug("Background discovery cycle done",
			zap.Int("added", len(result.Added)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
}

func (s *Server) handleDiscoveredServers(w http.ResponseWriter, r *http.Request) {
	servers := s.deps.Discoverer.Servers()
	s.deps.Metrics.ServersDiscovered.Set(float64(len(servers)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": servers})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": s.deps.Registry.List()})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.deps.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

type manualDeviceRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

func (s *Server) handleAddManualDevice(w http.ResponseWriter, r *http.Request) {
	var req manualDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	added, err := s.deps.Orchestrator.AddManualDevice(r.Context(), req.Address, req.Port)
	if err != nil {
		if alpaca.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, "invalid device", err.Error())
			return
		}
		// Unreachable target: nothing was registered
		writeError(w, http.StatusBadGateway, "device unreachable", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"devices": added})
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Registry.Remove(chi.URLParam(r, "id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.deps.Registry.Connect)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.deps.Registry.Disconnect)
}

// handleTransition runs a connect or disconnect with a caller-supplied or
// default timeout and returns the resulting device snapshot.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	id := chi.URLParam(r, "id")

	timeout := defaultTransitionTimeout
	if raw := r.URL.Query().Get("timeoutSeconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 1 {
			writeError(w, http.StatusBadRequest, "invalid timeout", fmt.Sprintf("invalid timeoutSeconds %q", raw))
			return
		}
		timeout = time.Duration(seconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := op(ctx, id); err != nil {
		writeRegistryError(w, err)
		return
	}

	device, err := s.deps.Registry.Get(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// instrumentProxy counts forwarded requests by status class.
func (s *Server) instrumentProxy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		class := fmt.Sprintf("%dxx", recorder.status/100)
		s.deps.Metrics.ProxyRequests.WithLabelValues(class).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeRegistryError maps registry and transition errors to status codes.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "device not found", err.Error())
	case errors.Is(err, registry.ErrTransitionInProgress):
		writeError(w, http.StatusConflict, "transition in progress", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed", err.Error())
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, errorBody{Error: errText, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn("Failed to encode response", zap.Error(err))
	}
}
