// Package api serves the websocket endpoints, the push subscription API and
// the admin notification routes.
package api

import (
	"context"
	"net/http"
	"time"

	"cakeshop-notifier/internal/audit"
	"cakeshop-notifier/internal/common/auth"
	"cakeshop-notifier/internal/common/config"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/push"
	"cakeshop-notifier/internal/realtime"
	notifyneworder "cakeshop-notifier/internal/workers/notification/notify-new-order"
	notifyorderassignment "cakeshop-notifier/internal/workers/notification/notify-order-assignment"
	notifyorderupdate "cakeshop-notifier/internal/workers/notification/notify-order-update"
	"cakeshop-notifier/pkg/registry"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the API needs. Audit and Checks may be nil.
type Deps struct {
	Server     config.ServerConfig
	Realtime   config.RealtimeConfig
	Verifier   *auth.Verifier
	Registry   *realtime.Registry
	Push       *push.Service
	Activities *registry.ActivityRegistry
	Audit      audit.Recorder
	Checks     map[string]HealthCheck

	OrderAssignment *notifyorderassignment.Handler
	OrderUpdate     *notifyorderupdate.Handler
	NewOrder        *notifyneworder.Handler

	Logger logger.Logger
}

type Server struct {
	deps     Deps
	upgrader websocket.Upgrader
	wsOpts   realtime.WSOptions
	started  time.Time
	logger   logger.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}

	s := &Server{
		deps:    deps,
		started: time.Now(),
		logger:  logger.ForComponent(deps.Logger, "api"),
		wsOpts: realtime.WSOptions{
			WriteTimeout:   config.GetDuration(deps.Realtime.WriteTimeout),
			PingInterval:   config.GetDuration(deps.Realtime.PingInterval),
			PongTimeout:    config.GetDuration(deps.Realtime.PongTimeout),
			MaxMessageSize: deps.Realtime.MaxMessageSize,
		},
	}
	if s.wsOpts.WriteTimeout <= 0 || s.wsOpts.PingInterval <= 0 || s.wsOpts.PongTimeout <= 0 || s.wsOpts.MaxMessageSize <= 0 {
		s.wsOpts = realtime.DefaultWSOptions
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Routes returns the full route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/delivery", s.handleWS(realtime.PoolDelivery, auth.RoleDelivery))
	mux.HandleFunc("GET /ws/admin", s.handleWS(realtime.PoolAdmin, auth.RoleAdmin))

	mux.Handle("POST /api/delivery/push/subscribe", s.requireRole(auth.RoleDelivery, s.handleSubscribe))
	mux.Handle("DELETE /api/delivery/push/unsubscribe", s.requireRole(auth.RoleDelivery, s.handleUnsubscribe))
	mux.HandleFunc("GET /api/delivery/push/vapid-key", s.handleVAPIDKey)

	mux.Handle("POST /api/admin/notifications/order-assigned", s.requireRole(auth.RoleAdmin, s.handleOrderAssigned))
	mux.Handle("POST /api/admin/notifications/order-updated", s.requireRole(auth.RoleAdmin, s.handleOrderUpdated))
	mux.Handle("POST /api/admin/notifications/new-order", s.requireRole(auth.RoleAdmin, s.handleNewOrder))
	mux.Handle("GET /api/admin/notifications/recent", s.requireRole(auth.RoleAdmin, s.handleRecent))
	mux.Handle("GET /api/realtime/status", s.requireRole(auth.RoleAdmin, s.handleStatus))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.recoverer(mux)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.deps.Server.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.deps.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

const healthCheckTimeout = 2 * time.Second

// handleHealth reports 503 when any backing service check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}
