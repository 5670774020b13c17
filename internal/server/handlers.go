package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/tally"
	"github.com/frewsxcv/template-tally/internal/types"
	"github.com/frewsxcv/template-tally/internal/version"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   version.GetShortVersion(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleRendered(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(report.Rendered))
}

func (s *Server) handleUnrendered(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(report.Unrendered))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	report, ok := s.report(w, r)
	if !ok {
		return
	}
	templ.Handler(ReportPage(report)).ServeHTTP(w, r)
}

// handleView renders a view through the host renderer. Tracking happens as a
// side effect of the render events it publishes.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")

	data := map[string]any{
		"path":  "/" + strings.TrimPrefix(name, "/"),
		"query": r.URL.Query(),
	}

	var buf bytes.Buffer
	if err := s.views.RenderView(r.Context(), name, data, &buf); err != nil {
		s.logger.Warn(r.Context(), err, "View render failed", "view", name)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug(r.Context(), "Failed to write view", "view", name, "error", err.Error())
	}
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) (*tally.Report, bool) {
	report, err := s.reporter.Report(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), err, "Report failed", errors.ContextFields(err)...)

		status := http.StatusInternalServerError
		if errors.IsConnectivityError(err) {
			status = http.StatusServiceUnavailable
		}
		resp := errorResponse{Error: "report unavailable"}
		if te, ok := errors.AsTallyError(err); ok {
			resp.Code = te.Code
		}
		s.writeJSON(w, r, status, resp)
		return nil, false
	}
	return report, true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug(r.Context(), "Failed to encode response", "error", err.Error())
	}
}

func nonNil(ids []types.TemplateID) []types.TemplateID {
	if ids == nil {
		return []types.TemplateID{}
	}
	return ids
}
