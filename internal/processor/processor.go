package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/brick-resale-tracker/internal/config"
	"github.com/pauljones0/brick-resale-tracker/internal/metrics"
	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/scraper"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

// ErrRunInProgress is returned by Run while another run is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

type Processor interface {
	Run(ctx context.Context) (Result, error)
}

// Document is one fetched listing page.
type Document struct {
	HTML    string
	BaseURL string
}

// Result summarizes one ingestion.
type Result struct {
	RunID         string `json:"runId"`
	Documents     int    `json:"documents"`
	FailedFetches int    `json:"failedFetches"`
	DealsInserted int    `json:"dealsInserted"`
	SalesInserted int    `json:"salesInserted"`
	Dropped       int    `json:"dropped"`
	// Skipped is set when no document could be fetched and the stored
	// collections were left untouched.
	Skipped bool `json:"skipped"`
}

type IngestProcessor struct {
	store   RecordWriter
	parser  DocumentParser
	fetcher scraper.Fetcher
	cache   CacheInvalidator
	metrics *metrics.Metrics
	config  *config.Config
	running atomic.Bool
}

// New builds an IngestProcessor. cache and m may be nil.
func New(store RecordWriter, parser DocumentParser, fetcher scraper.Fetcher, cache CacheInvalidator, m *metrics.Metrics, cfg *config.Config) *IngestProcessor {
	return &IngestProcessor{
		store:   store,
		parser:  parser,
		fetcher: fetcher,
		cache:   cache,
		metrics: m,
		config:  cfg,
	}
}

// Run fetches every configured source and ingests whatever was retrieved.
// A failed fetch contributes no records and does not stop the others. When
// every fetch fails the stored collections are kept as they are.
func (p *IngestProcessor) Run(ctx context.Context) (Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	started := time.Now()
	urls := p.config.SourceURLs
	fetched := make([]*Document, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(max(1, p.config.FetchConcurrency))
	for i, u := range urls {
		g.Go(func() error {
			html, err := p.fetcher.Fetch(ctx, u)
			if err != nil {
				slog.Warn("Failed to fetch source document", "url", u, "error", err)
				p.metrics.IncDocumentFetch("error")
				return nil
			}
			p.metrics.IncDocumentFetch("ok")
			fetched[i] = &Document{HTML: html, BaseURL: u}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		p.metrics.ObserveIngest("error", started)
		return Result{}, fmt.Errorf("ingestion run cancelled: %w", err)
	}

	var docs []Document
	for _, d := range fetched {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	failed := len(urls) - len(docs)

	if len(docs) == 0 {
		slog.Warn("No source document fetched, keeping stored records", "sources", len(urls))
		p.metrics.ObserveIngest("skipped", started)
		return Result{FailedFetches: failed, Skipped: true}, nil
	}

	res, err := p.Ingest(ctx, docs)
	res.FailedFetches = failed
	if err != nil {
		p.metrics.ObserveIngest("error", started)
		return res, err
	}
	p.metrics.ObserveIngest("ok", started)
	return res, nil
}

// Ingest parses docs and replaces the deals and sales collections with the
// result. Deals sharing an id keep their first occurrence. Store failures
// abort the ingestion and are returned.
func (p *IngestProcessor) Ingest(ctx context.Context, docs []Document) (Result, error) {
	res := Result{RunID: uuid.NewString(), Documents: len(docs)}
	logger := slog.With("run_id", res.RunID)

	var deals []models.Deal
	var sales []models.Sale
	seen := make(map[string]bool)
	for _, doc := range docs {
		parsed := p.parser.Parse(doc.HTML, doc.BaseURL)
		if parsed.Listings == 0 {
			logger.Warn("Document produced no listings, selectors may be stale", "url", doc.BaseURL)
		}
		for _, d := range parsed.Deals {
			if seen[d.ID] {
				logger.Debug("Skipping duplicate deal", "id", d.ID, "url", doc.BaseURL)
				continue
			}
			seen[d.ID] = true
			deals = append(deals, d)
		}
		sales = append(sales, parsed.Sales...)
		res.Dropped += parsed.Dropped
	}
	p.metrics.AddDropped(res.Dropped)

	dealDocs := make([]storage.Document, len(deals))
	for i, d := range deals {
		dealDocs[i] = d.Document()
	}
	if err := p.store.ReplaceAll(ctx, storage.CollectionDeals, dealDocs); err != nil {
		return res, fmt.Errorf("failed to replace deals: %w", err)
	}
	res.DealsInserted = len(dealDocs)
	p.metrics.AddIngested(storage.CollectionDeals, res.DealsInserted)

	saleDocs := make([]storage.Document, len(sales))
	for i, s := range sales {
		saleDocs[i] = s.Document()
	}
	if err := p.store.ReplaceAll(ctx, storage.CollectionSales, saleDocs); err != nil {
		return res, fmt.Errorf("failed to replace sales: %w", err)
	}
	res.SalesInserted = len(saleDocs)
	p.metrics.AddIngested(storage.CollectionSales, res.SalesInserted)

	if p.cache != nil {
		if err := p.cache.Invalidate(ctx); err != nil {
			logger.Warn("Failed to invalidate indicator cache", "error", err)
		}
	}

	logger.Info("Finished ingestion",
		"documents", res.Documents,
		"deals", res.DealsInserted,
		"sales", res.SalesInserted,
		"dropped", res.Dropped)
	return res, nil
}
