package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/processor"
	"github.com/pauljones0/brick-resale-tracker/internal/query"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

type mockProcessor struct {
	runs  chan struct{}
	err   error
	block bool
	// ctxErr is the run context's error when Run returned.
	ctxErr error
}

func (m *mockProcessor) Run(ctx context.Context) (processor.Result, error) {
	if m.block {
		<-ctx.Done()
	}
	m.ctxErr = ctx.Err()
	m.runs <- struct{}{}
	return processor.Result{}, m.err
}

func floatPtr(f float64) *float64 { return &f }

func newTestServer(t *testing.T) (*Server, *mockProcessor) {
	t.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()

	deals := []models.Deal{
		{ID: "75192", Title: "Falcon", Link: "https://example.com/75192", Price: 649.99},
		{ID: "10300", Title: "DeLorean", Link: "https://example.com/10300", Price: 149.99},
		{ID: "21330", Title: "Home Alone", Link: "https://example.com/21330", Price: 199.99},
	}
	var dealDocs []storage.Document
	for _, d := range deals {
		dealDocs = append(dealDocs, d.Document())
	}
	store.ReplaceAll(ctx, storage.CollectionDeals, dealDocs)

	sales := []models.Sale{
		{CatalogID: "75192", Title: "a", URL: "https://v.example/a", Price: floatPtr(500), PublishedAt: "10/01/2025"},
		{CatalogID: "75192", Title: "b", URL: "https://v.example/b", Price: floatPtr(600), PublishedAt: "15/01/2025"},
	}
	var saleDocs []storage.Document
	for _, s := range sales {
		saleDocs = append(saleDocs, s.Document())
	}
	store.ReplaceAll(ctx, storage.CollectionSales, saleDocs)

	proc := &mockProcessor{runs: make(chan struct{}, 1)}
	return &Server{
		processor: proc,
		engine:    query.NewEngine(store, nil, nil),
		now:       func() time.Time { return time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC) },
		baseCtx:   context.Background(),
	}, proc
}

func TestHandlers(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.routes()

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"search deals", http.MethodGet, "/deals/search?price=200&filterBy=price-asc", http.StatusOK, `"total":2`},
		{"search deals uses legoId", http.MethodGet, "/deals/search?limit=1&page=2&filterBy=price-desc", http.StatusOK, `"legoId":"21330"`},
		{"get deal", http.MethodGet, "/deals/10300", http.StatusOK, `"title":"DeLorean"`},
		{"get missing deal", http.MethodGet, "/deals/99999", http.StatusNotFound, `"error"`},
		{"search sales", http.MethodGet, "/sales/search?legoId=75192&limit=1", http.StatusOK, `"url":"https://v.example/b"`},
		{"recent sales", http.MethodGet, "/sales/recent?days=7", http.StatusOK, `"title":"b"`},
		{"indicators", http.MethodGet, "/sales/indicators?legoId=75192", http.StatusOK, `"p50":600`},
		{"indicators without id", http.MethodGet, "/sales/indicators", http.StatusBadRequest, `catalog id is required`},
		{"health", http.MethodGet, "/health", http.StatusOK, `"status":"ok"`},
		{"wrong method", http.MethodPost, "/deals/search", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body %s does not contain %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSearchDealsHandler_PageShape(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/deals/search?limit=2&filterBy=price-asc", nil)
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	var page struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
		Page    int              `json:"page"`
		Limit   int              `json:"limit"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if page.Total != 3 || page.Page != 1 || page.Limit != 2 || len(page.Results) != 2 {
		t.Errorf("Unexpected page %+v", page)
	}
	if page.Results[0]["legoId"] != "10300" {
		t.Errorf("Expected cheapest deal first, got %v", page.Results[0]["legoId"])
	}
}

func TestIngestHandler(t *testing.T) {
	srv, proc := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", rr.Code)
	}

	select {
	case <-proc.runs:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected ingestion to run in the background")
	}
}

func TestRunIngest_InProgressIsNotAnError(t *testing.T) {
	srv, proc := newTestServer(t)
	proc.err = processor.ErrRunInProgress

	srv.runIngest()
	<-proc.runs
}

func TestIngestHandler_ShutdownCancelsRun(t *testing.T) {
	srv, proc := newTestServer(t)
	proc.block = true
	baseCtx, stopRuns := context.WithCancel(context.Background())
	srv.baseCtx = baseCtx

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	srv.routes().ServeHTTP(httptest.NewRecorder(), req)

	stopRuns()
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !srv.waitForRuns(waitCtx) {
		t.Fatal("Expected the in-flight run to stop after cancellation")
	}
	<-proc.runs
	if !errors.Is(proc.ctxErr, context.Canceled) {
		t.Errorf("Run context error = %v, want context.Canceled", proc.ctxErr)
	}
}

func TestWaitForRuns_GivesUpWithContext(t *testing.T) {
	srv, proc := newTestServer(t)
	proc.block = true
	baseCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()
	srv.baseCtx = baseCtx

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	srv.routes().ServeHTTP(httptest.NewRecorder(), req)

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if srv.waitForRuns(waitCtx) {
		t.Error("Expected waitForRuns to report a run still in flight")
	}
}

func TestWriteError_StoreFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, "search deals", errors.New("store unavailable"))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
