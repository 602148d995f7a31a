// Package bridge is the loopback IPC surface between the webview shell
// process and the enforcement engine. Every endpoint resolves to a
// synchronous verdict from the session controller; the bridge itself
// decides nothing.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/understandly/lockdownd/internal/metrics"
	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/session"
)

// Server carries shell events into the session controller over loopback
// HTTP.
type Server struct {
	ctrl    *session.Controller
	metrics *metrics.Metrics
	logger  *zap.Logger
	httpSrv *http.Server
}

// New creates a bridge Server listening on addr. Non-loopback addresses
// are rejected: the bridge is an IPC channel, not a network service.
func New(addr string, ctrl *session.Controller, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: invalid address %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return nil, fmt.Errorf("bridge: address %q is not loopback", addr)
	}

	s := &Server{ctrl: ctrl, metrics: m, logger: logger}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Router builds the chi router. Exposed for httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/navigation", s.handleNavigation)
		r.Post("/window", s.handleWindow)
		r.Post("/window/close", s.handleWindowClose)
		r.Post("/activation", s.handleActivation)
		r.Post("/exit", s.handleExit)
		r.Get("/audit", s.handleAudit)
	})

	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("bridge listening", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type navigationRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type windowRequest struct {
	Capabilities []string `json:"capabilities"`
}

type windowCloseRequest struct {
	Handle uint64 `json:"handle"`
}

type activationRequest struct {
	URI string `json:"uri"`
}

type verdictResponse struct {
	model.Verdict
	Handle uint64 `json:"handle,omitempty"`
	Phase  string `json:"phase"`
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if !decode(w, r, &req) {
		return
	}
	kind := model.KindNavigation
	if strings.TrimSpace(req.Kind) != "" {
		var err error
		kind, err = model.ParseRequestKind(req.Kind)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	writeVerdict(w, s.ctrl.RequestNavigation(req.URL, kind), 0, s.ctrl.Phase())
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if !decode(w, r, &req) {
		return
	}
	caps := make([]model.Capability, 0, len(req.Capabilities))
	for _, c := range req.Capabilities {
		parsed, err := model.ParseCapability(c)
		if err != nil {
			// Unknown capability identifiers go through the controller
			// so the denial is recorded, not swallowed at the edge.
			parsed = model.Capability(c)
		}
		caps = append(caps, parsed)
	}
	handle, verdict := s.ctrl.RequestWindow(caps)
	writeVerdict(w, verdict, uint64(handle), s.ctrl.Phase())
}

func (s *Server) handleWindowClose(w http.ResponseWriter, r *http.Request) {
	var req windowCloseRequest
	if !decode(w, r, &req) {
		return
	}
	writeVerdict(w, s.ctrl.NotifyWindowClosed(model.Handle(req.Handle)), 0, s.ctrl.Phase())
}

func (s *Server) handleActivation(w http.ResponseWriter, r *http.Request) {
	var req activationRequest
	if !decode(w, r, &req) {
		return
	}
	writeVerdict(w, s.ctrl.Activate(req.URI), 0, s.ctrl.Phase())
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	writeVerdict(w, s.ctrl.RequestExit(), 0, s.ctrl.Phase())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	records := s.ctrl.ExportViolations()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": s.ctrl.SessionID(),
		"violations": records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"session_id": s.ctrl.SessionID(),
		"phase":      s.ctrl.Phase().String(),
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeVerdict(w http.ResponseWriter, v model.Verdict, handle uint64, phase model.Phase) {
	status := http.StatusOK
	if !v.OK() {
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(verdictResponse{Verdict: v, Handle: handle, Phase: phase.String()})
}
