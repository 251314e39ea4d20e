// Package http provides the HTTP API for genetix: creating messages, which
// starts a code agent run, and listing a project's messages.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/genetix/internal/codeagent"
	"github.com/fyrsmithlabs/genetix/internal/logging"
	"github.com/fyrsmithlabs/genetix/internal/store"
	"github.com/fyrsmithlabs/genetix/internal/workflows"
)

// Server provides the HTTP endpoints.
type Server struct {
	echo       *echo.Echo
	store      store.Store
	dispatcher workflows.Dispatcher
	logger     *logging.Logger
	config     *Config
	limiters   *ipLimiters
	registry   *prometheus.Registry
	created    *prometheus.CounterVec
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RatePerMinute bounds message creation per client IP. Zero disables limiting.
	RatePerMinute int
	// Meter receives the HTTP metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(st store.Store, dispatcher workflows.Dispatcher, logger *logging.Logger, cfg *Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 3001}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "genetix_http_messages_created_total",
		Help: "Messages created through the API, by dispatch result.",
	}, []string{"result"})
	registry.MustRegister(created)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	e.Use(NewHTTPMetrics(meter, logger).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:       e,
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		config:     cfg,
		limiters:   newIPLimiters(cfg.RatePerMinute),
		registry:   registry,
		created:    created,
	}
	s.registerRoutes()
	return s, nil
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status below is final.
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/messages", s.handleListMessages)
	v1.POST("/messages", s.handleCreateMessage, s.rateLimit)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CreateMessageRequest is the request body for POST /api/v1/messages.
type CreateMessageRequest struct {
	Value     string `json:"value"`
	ProjectID string `json:"projectId"`
}

// CreateMessageResponse is the response body for POST /api/v1/messages.
type CreateMessageResponse struct {
	Message *store.Message `json:"message"`
	RunID   string         `json:"runId"`
}

// ListMessagesResponse is the response body for GET /api/v1/messages.
type ListMessagesResponse struct {
	Messages []store.Message `json:"messages"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCreateMessage stores the user's message and starts a run for it.
func (s *Server) handleCreateMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid create message request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ev := codeagent.NewEvent(req.Value, req.ProjectID)
	if err := ev.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}

	msg, err := s.store.CreateMessage(ctx, store.NewMessage{
		ProjectID: req.ProjectID,
		Content:   req.Value,
		Role:      store.RoleUser,
		Type:      store.TypeResult,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to create message", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create message")
	}

	runID, err := s.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		s.created.WithLabelValues("dispatch_failed").Inc()
		s.logger.Error(ctx, "failed to dispatch run", zap.String("message.id", msg.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to start run")
	}
	s.created.WithLabelValues("dispatched").Inc()

	s.logger.Info(logging.WithRun(ctx, runID, req.ProjectID), "run dispatched", zap.String("message.id", msg.ID))
	return c.JSON(http.StatusCreated, CreateMessageResponse{Message: msg, RunID: runID})
}

func (s *Server) handleListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	msgs, err := s.store.ListMessages(ctx, c.QueryParam("projectId"))
	if err != nil {
		s.logger.Error(ctx, "failed to list messages", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list messages")
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return c.JSON(http.StatusOK, ListMessagesResponse{Messages: msgs})
}

// validationMessage strips the sentinel prefix from an event validation error.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), codeagent.ErrInvalidEvent.Error()+": ")
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
