// Package server exposes the research assistant over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
	"github.com/mohammad-safakhou/researchbot/internal/document"
	"github.com/mohammad-safakhou/researchbot/models"
)

// Assistant answers chat turns and manages conversations.
type Assistant interface {
	HandleTurn(ctx context.Context, sessionID, message string) (core.TurnResponse, error)
	NewSession(ctx context.Context) (string, error)
	History(ctx context.Context, sessionID string) ([]models.Turn, error)
	Suggestions(ctx context.Context, sessionID, lastQuery, lastAnswer string) []string
}

// Documents renders and searches a session's research document.
type Documents interface {
	Preview(ctx context.Context, sessionID string) (string, error)
	DOCX(ctx context.Context, sessionID string) ([]byte, error)
	Search(ctx context.Context, sessionID, q string, k int) ([]document.Hit, error)
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

func Quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

type Server struct {
	Echo   *echo.Echo
	chat   Assistant
	docs   Documents
	logger *log.Logger
}

// New builds the echo instance with every route registered. docs may be nil,
// in which case document routes answer as if no document exists.
func New(chat Assistant, docs Documents, opts ...Option) *Server {
	s := &Server{chat: chat, docs: docs}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	registerDocs(e)

	api := e.Group("/api")
	api.POST("/chat", s.chatTurn)
	api.POST("/new-chat", s.newChat)
	api.GET("/history", s.history)
	api.POST("/suggestions", s.suggestions)
	api.GET("/document/preview", s.preview)
	api.GET("/document/search", s.search)
	api.GET("/download-document", s.download)

	s.Echo = e
	return s
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(shutdownCtx)
}
