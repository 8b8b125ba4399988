// Package server exposes the problem store and the completion proxy over
// HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/problem"
	"github.com/abhisek/codecoach/internal/store"
)

// DefaultSystemPrompt frames the completion model for every chat request.
const DefaultSystemPrompt = "You are a professional programming teacher. You ask questions that make the learner think for themselves."

// Config configures the HTTP server.
type Config struct {
	Addr         string
	Version      string
	SystemPrompt string

	// ChatTimeout bounds a non-streaming chat request. Zero means no limit.
	ChatTimeout time.Duration

	// MaxTokens and Temperature are applied to every completion request.
	MaxTokens   int
	Temperature float64

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// Server wires the routes onto an echo instance.
type Server struct {
	cfg       Config
	echo      *echo.Echo
	problems  store.ProblemRepo
	provider  llm.Provider
	validator *validator
	logger    *slog.Logger
}

// New builds a server. provider may be nil, in which case the chat routes
// answer with the not-configured diagnostic.
func New(cfg Config, problems store.ProblemRepo, provider llm.Provider, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		echo:      echo.New(),
		problems:  problems,
		provider:  provider,
		validator: v,
		logger:    logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(middleware.CORS())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	}))

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.health)

	api.GET("/problem", s.listProblems)
	api.POST("/problem", s.createProblem)
	api.PUT("/problem/reorder", s.reorderProblems)
	api.GET("/problem/:id", s.getProblem)
	api.PUT("/problem/:id", s.updateProblem)
	api.DELETE("/problem/:id", s.deleteProblem)

	api.POST("/chat", s.chat)
	api.POST("/chat/stream", s.chatStream)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr, "version", s.cfg.Version)
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// handleError maps handler errors onto status codes and bodies.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status = http.StatusInternalServerError
		body   any
		he     *echo.HTTPError
		ve     *validationError
	)
	switch {
	case errors.As(err, &he):
		status = he.Code
		body = errorBody{Error: http.StatusText(he.Code)}
		if msg, ok := he.Message.(string); ok {
			body = errorBody{Error: msg}
		}
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body = errorBody{Error: ve.Error()}
	case errors.Is(err, problem.ErrNotFound):
		status = http.StatusNotFound
		body = errorBody{Error: "Problem not found"}
	case errors.Is(err, llm.ErrNotConfigured):
		s.respond(c, c.String(http.StatusInternalServerError, llm.ErrNotConfigured.Error()))
		return
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		body = errorBody{Error: "Internal Server Error"}
	}

	if c.Request().Method == http.MethodHead {
		s.respond(c, c.NoContent(status))
		return
	}
	s.respond(c, c.JSON(status, body))
}

func (s *Server) respond(c echo.Context, err error) {
	if err != nil {
		s.logger.Warn("write error response", "path", c.Path(), "error", err)
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: s.cfg.Version})
}
