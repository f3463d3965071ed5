package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/couchcryptid/phu-heatmap/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultSource reports readiness and exposes the most recent pipeline result.
type ResultSource interface {
	CheckReadiness(ctx context.Context) error
	LastResult() (*pipeline.Result, bool)
}

// Server exposes the rendered heatmap, the aggregated tables as JSON, and
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	source     ResultSource
	renderer   pipeline.Renderer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /, /api/dates, /api/dates/{date},
// /api/totals, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, source ResultSource, renderer pipeline.Renderer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source:   source,
		renderer: renderer,
		logger:   logger,
	}

	mux.HandleFunc("GET /{$}", s.handleHeatmap)
	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("GET /api/dates/{date}", s.handleDay)
	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(source))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleHeatmap renders the last heatmap. ?date= swaps in that date's counts.
func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lastResult(w)
	if !ok {
		return
	}

	h := res.Heatmap
	if date := r.URL.Query().Get("date"); date != "" {
		counts, err := res.Aggregation.Day(date)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.Date = date
		h.Points = domain.Points(counts)
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, h); err != nil {
		s.logger.Error("render heatmap", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

type datesResponse struct {
	RunID   string   `json:"run_id"`
	Records int      `json:"records"`
	Dates   []string `json:"dates"`
}

func (s *Server) handleDates(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.lastResult(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, datesResponse{
		RunID:   res.RunID,
		Records: res.Aggregation.Records,
		Dates:   res.Aggregation.Dates(),
	})
}

type countsResponse struct {
	Date   string             `json:"date,omitempty"`
	Total  int                `json:"total"`
	Counts []domain.UnitCount `json:"counts"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lastResult(w)
	if !ok {
		return
	}
	date := r.PathValue("date")
	counts, err := res.Aggregation.Day(date)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse{Date: date, Total: domain.SumCounts(counts), Counts: counts})
}

func (s *Server) handleTotals(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.lastResult(w)
	if !ok {
		return
	}
	totals := res.Aggregation.Totals
	writeJSON(w, http.StatusOK, countsResponse{Total: domain.SumCounts(totals), Counts: totals})
}

// lastResult writes a 503 and returns false when no run has completed.
func (s *Server) lastResult(w http.ResponseWriter) (*pipeline.Result, bool) {
	res, ok := s.source.LastResult()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, errors.New("no heatmap has been generated yet"))
		return nil, false
	}
	return res, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ResultSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
