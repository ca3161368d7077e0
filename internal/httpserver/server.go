package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/config"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// Dependencies are the services the HTTP surface exposes.
type Dependencies struct {
	Health    storage.HealthChecker
	Webhook   WebhookCore
	Campaigns CampaignCore
	Stages    StageCore
	Messaging MessagingCore
	Broker    BrokerStatus // nil when NATS is not configured
	Hub       *realtime.Hub
	Metrics   http.Handler // nil disables /metrics
}

// BrokerStatus reports message broker connectivity.
type BrokerStatus interface {
	IsConnected() bool
}

// Server is the public HTTP server: provider webhook, operator API, probes and websocket.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	deps       Dependencies
	logger     *zap.Logger
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// NewServer creates the server and registers every route.
func NewServer(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Server {
	router := chi.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			ErrorLog:     zap.NewStdLog(logger.Named("http")),
		},
		router: router,
		deps:   deps,
		logger: logger,
	}

	router.Use(middleware.RealIP)
	router.Use(requestID)
	router.Use(accessLog(logger))
	router.Use(middleware.Recoverer)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, fmt.Errorf("%w: no route for %s %s", apperrors.ErrNotFound, r.Method, r.URL.Path))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, ErrorResponse{Error: "method_not_allowed", Message: r.Method + " is not supported on " + r.URL.Path})
	})

	router.Get("/health", s.handleHealth)
	router.Get("/ready", s.handleReady)
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}
	if deps.Hub != nil {
		router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			realtime.ServeWs(deps.Hub, w, r)
		})
	}

	router.Route("/webhook", func(r chi.Router) {
		r.Get("/", VerifyWebhook(cfg.WhatsApp.VerifyToken))
		r.Post("/", ReceiveWebhook(logger, cfg.WhatsApp.AppSecret, deps.Webhook))
	})

	router.Route("/api", func(api chi.Router) {
		api.Use(render.SetContentType(render.ContentTypeJSON))
		api.Use(operatorActor)

		api.Route("/campaigns/{id}", func(r chi.Router) {
			r.Get("/", GetCampaign(deps.Campaigns))
			r.Post("/launch", LaunchCampaign(logger, deps.Campaigns))
		})
		api.Route("/contacts", func(r chi.Router) {
			r.Put("/bulk-stage-update", BulkUpdateStage(deps.Stages))
			r.Put("/{id}", UpdateStage(deps.Stages))
			r.Put("/{id}/stage", UpdateStage(deps.Stages))
			r.Get("/{id}/activities", ListActivities(deps.Stages))
		})
		api.Route("/whatsapp", func(r chi.Router) {
			r.Post("/send-message", SendMessage(deps.Messaging))
			r.Post("/send-property", SendProperty(deps.Messaging))
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, HealthResponse{Status: "UP", Version: "1.0.0"})
}

// handleReady reports ready only while the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "READY",
		Details: map[string]string{
			"timestamp": utils.FormatISO8601(utils.Now()),
			"database":  "ok",
		},
	}
	status := http.StatusOK

	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			resp.Status = "NOT_READY"
			resp.Details["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Broker != nil {
		resp.Details["nats"] = "connected"
		if !s.deps.Broker.IsConnected() {
			resp.Status = "NOT_READY"
			resp.Details["nats"] = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Hub != nil {
		resp.Details["websocket_clients"] = fmt.Sprintf("%d", s.deps.Hub.ClientCount())
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
