package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pauljones0/brick-resale-tracker/internal/processor"
	"github.com/pauljones0/brick-resale-tracker/internal/query"
)

const ingestTimeout = 10 * time.Minute

type Server struct {
	processor processor.Processor
	engine    *query.Engine
	now       func() time.Time
	// baseCtx parents every ingestion run; cancelling it aborts runs in flight.
	baseCtx  context.Context
	inflight sync.WaitGroup
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /deals/search", s.SearchDealsHandler)
	mux.HandleFunc("GET /deals/{id}", s.GetDealHandler)
	mux.HandleFunc("GET /sales/search", s.SearchSalesHandler)
	mux.HandleFunc("GET /sales/recent", s.RecentSalesHandler)
	mux.HandleFunc("GET /sales/indicators", s.SaleIndicatorsHandler)
	mux.HandleFunc("POST /ingest", s.IngestHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) SearchDealsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := s.engine.SearchDeals(r.Context(), query.ParseDealSearch(r.URL.Query()))
	if err != nil {
		writeError(w, "search deals", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) GetDealHandler(w http.ResponseWriter, r *http.Request) {
	deal, err := s.engine.GetDeal(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "get deal", err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (s *Server) SearchSalesHandler(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultSalesLimit)
	sales, err := s.engine.SearchSales(r.Context(), r.URL.Query().Get("legoId"), limit)
	if err != nil {
		writeError(w, "search sales", err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) RecentSalesHandler(w http.ResponseWriter, r *http.Request) {
	days := intParam(r, "days", int(query.DefaultRecentWindow/(24*time.Hour)))
	sales, err := s.engine.RecentSales(r.Context(), s.now(), time.Duration(days)*24*time.Hour)
	if err != nil {
		writeError(w, "recent sales", err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (s *Server) SaleIndicatorsHandler(w http.ResponseWriter, r *http.Request) {
	indicators, err := s.engine.SaleIndicators(r.Context(), r.URL.Query().Get("legoId"))
	if err != nil {
		writeError(w, "sale indicators", err)
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}

func (s *Server) IngestHandler(w http.ResponseWriter, r *http.Request) {
	// Run asynchronously so the HTTP response isn't blocked by fetching
	// every source.
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.runIngest()
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ingestion started"})
}

func (s *Server) runIngest() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in ingestion run", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(s.baseCtx, ingestTimeout)
	defer cancel()

	res, err := s.processor.Run(ctx)
	switch {
	case errors.Is(err, processor.ErrRunInProgress):
		slog.Info("Ingestion already running, request ignored")
	case err != nil:
		slog.Error("Error running ingestion", "error", err)
	case res.Skipped:
		slog.Warn("Ingestion skipped, no source document fetched", "failed_fetches", res.FailedFetches)
	}
}

// waitForRuns blocks until ingestion runs started over HTTP have returned.
// It reports false if ctx ends first.
func (s *Server) waitForRuns(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func intParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		slog.Warn("Invalid query parameter, using default", "param", name, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, query.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, query.ErrMissingCatalogID):
		status = http.StatusBadRequest
	default:
		slog.Error("Request failed", "operation", op, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
