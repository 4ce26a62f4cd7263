// Package http provides the HTTP API for foldd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/foldd/internal/editor"
	"github.com/fyrsmithlabs/foldd/internal/folding"
	"github.com/fyrsmithlabs/foldd/internal/logging"
	"github.com/fyrsmithlabs/foldd/internal/syntax"
	"github.com/fyrsmithlabs/foldd/internal/telemetry"
	"github.com/fyrsmithlabs/foldd/internal/textbuf"
)

// Server serves documents and their fold regions over HTTP.
type Server struct {
	echo      *echo.Echo
	workspace *editor.Workspace
	logger    *zap.Logger
	config    *Config
	metrics   *apiMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit caps request bodies, e.g. "2M".
	BodyLimit string
	// Telemetry supplies the meter for API metrics and the health shown on
	// /health. Nil uses the global meter and reports telemetry as off.
	Telemetry *telemetry.Telemetry
}

// NewServer creates a server over ws.
func NewServer(ws *editor.Workspace, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		workspace: ws,
		logger:    logger,
		config:    cfg,
		metrics:   newAPIMetrics(cfg.Telemetry.Meter(InstrumentationName), logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(s.metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return err
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/documents", s.handleListDocuments)
	v1.POST("/documents", s.handleOpenDocument)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.PUT("/documents/:id", s.handleSetText)
	v1.DELETE("/documents/:id", s.handleCloseDocument)
	v1.POST("/documents/:id/edits", s.handleEdit)
	v1.GET("/documents/:id/outline", s.handleOutline)
	v1.GET("/documents/:id/folds", s.handleFolds)
	v1.POST("/documents/:id/folds/:handle/toggle", s.handleToggle)
	v1.PUT("/documents/:id/folding", s.handleSetFolding)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string           `json:"status"`
	Documents int              `json:"documents"`
	Telemetry telemetry.Health `json:"telemetry"`
}

// OpenRequest is the request body for POST /api/v1/documents.
type OpenRequest struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// DocumentResponse describes a document with its folds.
type DocumentResponse struct {
	editor.Summary
	Text  string        `json:"text,omitempty"`
	Items []editor.Fold `json:"items"`
}

// SetTextRequest is the request body for PUT /api/v1/documents/:id.
type SetTextRequest struct {
	Text string `json:"text"`
}

// EditRequest is the request body for POST /api/v1/documents/:id/edits.
type EditRequest struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Text   string `json:"text"`
}

// ChangeResponse is the result of an edit.
type ChangeResponse struct {
	editor.Change
	Items []editor.Fold `json:"items"`
}

// ToggleResponse is the response body for a fold toggle.
type ToggleResponse struct {
	Handle    folding.Handle `json:"handle"`
	Collapsed bool           `json:"collapsed"`
}

// FoldingRequest is the request body for PUT /api/v1/documents/:id/folding.
type FoldingRequest struct {
	Enabled *bool `json:"enabled"`
}

// FoldingResponse is the response body for PUT /api/v1/documents/:id/folding.
type FoldingResponse struct {
	Enabled bool          `json:"enabled"`
	Batch   folding.Batch `json:"batch"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Documents: s.workspace.Len(),
		Telemetry: s.config.Telemetry.Health(),
	})
}

func (s *Server) handleListDocuments(c echo.Context) error {
	return c.JSON(http.StatusOK, s.workspace.List())
}

func (s *Server) handleOpenDocument(c echo.Context) error {
	var req OpenRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid open request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" && req.Language == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path or language is required")
	}

	doc, err := s.workspace.Open(c.Request().Context(), req.Path, req.Language, []byte(req.Text))
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, documentResponse(doc, false))
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, documentResponse(doc, true))
}

func (s *Server) handleSetText(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	var req SetTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	change, err := doc.SetText(c.Request().Context(), []byte(req.Text))
	if err != nil {
		return s.toHTTPError(err)
	}
	s.metrics.recordBatch(c.Request().Context(), c.Path(), change.Batch)
	return c.JSON(http.StatusOK, ChangeResponse{Change: change, Items: doc.Folds()})
}

func (s *Server) handleEdit(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	var req EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	change, err := doc.Replace(c.Request().Context(), req.Offset, req.Length, []byte(req.Text))
	if err != nil {
		return s.toHTTPError(err)
	}
	s.metrics.recordBatch(c.Request().Context(), c.Path(), change.Batch)
	return c.JSON(http.StatusOK, ChangeResponse{Change: change, Items: doc.Folds()})
}

func (s *Server) handleCloseDocument(c echo.Context) error {
	if err := s.workspace.Close(c.Request().Context(), c.Param("id")); err != nil {
		return s.toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleOutline(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, editor.FlattenOutline(doc.Outline()))
}

func (s *Server) handleFolds(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc.Folds())
}

func (s *Server) handleToggle(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	handle, err := strconv.ParseUint(c.Param("handle"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "handle must be a positive integer")
	}

	collapsed, err := doc.Toggle(folding.Handle(handle))
	if err != nil {
		return s.toHTTPError(err)
	}
	return c.JSON(http.StatusOK, ToggleResponse{Handle: folding.Handle(handle), Collapsed: collapsed})
}

func (s *Server) handleSetFolding(c echo.Context) error {
	doc, err := s.document(c)
	if err != nil {
		return err
	}
	var req FoldingRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "enabled field is required")
	}

	batch, err := doc.SetFoldingEnabled(c.Request().Context(), *req.Enabled)
	if err != nil {
		return s.toHTTPError(err)
	}
	s.metrics.recordBatch(c.Request().Context(), c.Path(), batch)
	return c.JSON(http.StatusOK, FoldingResponse{Enabled: doc.FoldingEnabled(), Batch: batch})
}

func (s *Server) document(c echo.Context) (*editor.Document, error) {
	doc, err := s.workspace.Get(c.Param("id"))
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return doc, nil
}

// toHTTPError maps domain errors to HTTP status codes.
func (s *Server) toHTTPError(err error) error {
	switch {
	case errors.Is(err, editor.ErrDocumentNotFound), errors.Is(err, folding.ErrRegionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, editor.ErrDocumentClosed):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, editor.ErrNoLanguage),
		errors.Is(err, syntax.ErrUnsupportedLanguage),
		errors.Is(err, textbuf.ErrInvalidRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, folding.ErrNotInstalled):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func documentResponse(doc *editor.Document, withText bool) DocumentResponse {
	resp := DocumentResponse{Summary: doc.Summarize(), Items: doc.Folds()}
	if withText {
		resp.Text = string(doc.Text())
	}
	return resp
}
