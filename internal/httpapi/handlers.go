package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fintrustlabs/modeld/internal/pipeline"
	"github.com/fintrustlabs/modeld/internal/session"
)

func (s *Server) handleRoot(c echo.Context) error {
	version := s.config.Version
	if version == "" {
		version = "dev"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"name":    "modeld",
		"version": version,
	})
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Sessions: s.store.Len()})
}

// NewSessionResponse is the response body for POST /api/session/new.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleNewSession(c echo.Context) error {
	ses := s.store.New()
	s.logger.Debug("session created", zap.String("session_id", ses.ID()))
	return c.JSON(http.StatusOK, NewSessionResponse{SessionID: ses.ID()})
}

// ResearchRequest is the request body for POST /api/research.
type ResearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// ResearchResponse is the response body for POST /api/research.
type ResearchResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

func (s *Server) handleResearch(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	ses := s.store.GetOrCreate(req.SessionID)
	if err := s.orch.StartResearch(ses, req.Query); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusAccepted, ResearchResponse{
		SessionID: ses.ID(),
		Phase:     string(ses.Phase()),
	})
}

// ConfirmRequest is the request body for POST /api/confirm-model. A missing
// confirmed flag counts as acceptance.
type ConfirmRequest struct {
	SessionID string `json:"session_id"`
	ModelType string `json:"model_type"`
	Confirmed *bool  `json:"confirmed"`
}

func (s *Server) handleConfirmModel(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ses, err := s.store.Get(req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	confirmed := req.Confirmed == nil || *req.Confirmed
	if err := s.orch.Confirm(ses, req.ModelType, confirmed); err != nil {
		if errors.Is(err, pipeline.ErrRunInFlight) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, ResearchResponse{
		SessionID: ses.ID(),
		Phase:     string(ses.Phase()),
	})
}

// ProvideDataRequest is the request body for POST /api/provide-data.
type ProvideDataRequest struct {
	SessionID string  `json:"session_id"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
}

func (s *Server) handleProvideData(c echo.Context) error {
	var req ProvideDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Field == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "field is required")
	}
	ses, err := s.store.Get(req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	s.orch.ProvideData(ses, req.Field, req.Value)
	return c.JSON(http.StatusOK, map[string]any{
		"session_id":     ses.ID(),
		"missing_fields": ses.MissingFields(),
	})
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	ses, err := s.store.Get(req.SessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	reply := s.orch.Chat(c.Request().Context(), ses, req.Message)
	return c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

func (s *Server) handleStatus(c echo.Context) error {
	ses, err := s.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, ses.Snapshot(s.orch.LogWindow()))
}

// LogsResponse is the response body for GET /api/logs/:id.
type LogsResponse struct {
	Logs   []session.LogEntry `json:"logs"`
	Cursor int                `json:"cursor"`
	Phase  string             `json:"phase"`
}

func (s *Server) handleLogs(c echo.Context) error {
	ses, err := s.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	cursor := 0
	if raw := c.QueryParam("cursor"); raw != "" {
		cursor, err = strconv.Atoi(raw)
		if err != nil || cursor < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "cursor must be a non-negative integer")
		}
	}
	logs, next := ses.LogsAfter(cursor)
	return c.JSON(http.StatusOK, LogsResponse{
		Logs:   logs,
		Cursor: next,
		Phase:  string(ses.Phase()),
	})
}

// handleLogStream streams log entries over server-sent events until the
// session reaches a terminal phase and the log is drained.
func (s *Server) handleLogStream(c echo.Context) error {
	ses, err := s.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	cursor := 0
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		logs, next := ses.LogsAfter(cursor)
		for _, entry := range logs {
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
				return nil
			}
		}
		if len(logs) > 0 {
			resp.Flush()
		}
		cursor = next

		// The stream ends once the session parks for confirmation or
		// reaches a terminal phase; the client reconnects after acting.
		if phase := ses.Phase(); phase.Terminal() || phase == session.PhaseAwaitingConfirmation {
			fmt.Fprintf(resp, "event: done\ndata: {\"phase\": %q}\n\n", phase)
			resp.Flush()
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Server) handleDownload(c echo.Context) error {
	ses, err := s.store.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	path := ses.Artifact()
	if path == "" {
		return echo.NewHTTPError(http.StatusConflict, "the workbook is not ready yet")
	}
	return c.Attachment(path, filepath.Base(path))
}
