package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
	"github.com/mohammad-safakhou/researchbot/models"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type suggestionsRequest struct {
	SessionID  string `json:"session_id"`
	LastQuery  string `json:"last_query"`
	LastAnswer string `json:"last_answer"`
}

func (s *Server) chatTurn(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := s.chat.HandleTurn(c.Request().Context(), req.SessionID, req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, core.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "Empty message")
	case errors.Is(err, core.ErrEmptyDeepQuery):
		return c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, core.ErrUnknownCommand):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrTurnFailed):
		s.logger.Printf("turn failed for session %q: %v", req.SessionID, err)
		return c.JSON(http.StatusInternalServerError, resp)
	default:
		return err
	}
}

func (s *Server) newChat(c echo.Context) error {
	id, err := s.chat.NewSession(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) history(c echo.Context) error {
	turns, err := s.chat.History(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": turns})
}

func (s *Server) suggestions(c echo.Context) error {
	var req suggestionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out := s.chat.Suggestions(c.Request().Context(), req.SessionID, req.LastQuery, req.LastAnswer)
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": out})
}

func (s *Server) preview(c echo.Context) error {
	id := c.QueryParam("session_id")
	if s.docs == nil || id == "" {
		return c.JSON(http.StatusOK, map[string]string{"content": core.NoDocumentMessage})
	}
	html, err := s.docs.Preview(c.Request().Context(), id)
	if errors.Is(err, models.ErrNoDocument) {
		return c.JSON(http.StatusOK, map[string]string{"content": core.NoDocumentMessage})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"content": html})
}

func (s *Server) download(c echo.Context) error {
	id := c.QueryParam("session_id")
	if s.docs == nil || id == "" {
		return echo.NewHTTPError(http.StatusNotFound, "No document available")
	}
	data, err := s.docs.DOCX(c.Request().Context(), id)
	if errors.Is(err, models.ErrNoDocument) {
		return echo.NewHTTPError(http.StatusNotFound, "No document available")
	}
	if err != nil {
		return err
	}
	name := "research_report_" + first8(id) + ".docx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", data)
}

func (s *Server) search(c echo.Context) error {
	id := c.QueryParam("session_id")
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))
	if s.docs == nil || id == "" {
		return echo.NewHTTPError(http.StatusNotFound, "No document available")
	}
	hits, err := s.docs.Search(c.Request().Context(), id, q, k)
	if errors.Is(err, models.ErrNoDocument) {
		return echo.NewHTTPError(http.StatusNotFound, "No document available")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"hits": hits})
}

func first8(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
