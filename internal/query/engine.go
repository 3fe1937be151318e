package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/metrics"
	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/normalize"
	"github.com/pauljones0/brick-resale-tracker/internal/stats"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

const (
	DefaultPageSize     = 30
	DefaultSalesLimit   = 12
	DefaultRecentWindow = 21 * 24 * time.Hour
)

var (
	ErrNotFound         = errors.New("not found")
	ErrMissingCatalogID = errors.New("catalog id is required")
)

// IndicatorCache stores computed indicators per catalog id. Get reports the
// cache generation it read from; Set writes into that generation.
type IndicatorCache interface {
	Get(ctx context.Context, catalogID string) (stats.Stats, int64, bool, error)
	Set(ctx context.Context, catalogID string, generation int64, s stats.Stats) error
}

// Page is one page of results plus the count of all matching records.
type Page[T any] struct {
	Results  []T `json:"results"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"limit"`
}

// Engine is a read-only projection over a RecordStore.
type Engine struct {
	store   storage.RecordStore
	cache   IndicatorCache
	metrics *metrics.Metrics
}

// NewEngine builds an Engine. cache and m may be nil.
func NewEngine(store storage.RecordStore, cache IndicatorCache, m *metrics.Metrics) *Engine {
	return &Engine{store: store, cache: cache, metrics: m}
}

// Search runs filters and preset against collection and returns page page
// of size pageSize. Out-of-range paging falls back to page 1 and the default
// size; an unknown preset keeps the store's insertion order. Total is counted
// independently of paging.
func (e *Engine) Search(ctx context.Context, collection string, filters []storage.Filter, preset SortPreset, page, pageSize int) (Page[storage.Document], error) {
	defer e.metrics.ObserveQuery("search", time.Now())

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	sort, ok := preset.Sort()
	if !ok && preset != "" {
		slog.Warn("Unknown sort preset, using natural order", "preset", preset)
	}

	total, err := e.store.Count(ctx, collection, filters)
	if err != nil {
		return Page[storage.Document]{}, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	// A page whose offset does not fit in an int lies past any total.
	if page-1 > math.MaxInt/pageSize {
		return Page[storage.Document]{Results: []storage.Document{}, Total: total, Page: page, PageSize: pageSize}, nil
	}
	docs, err := e.store.Find(ctx, collection, storage.Query{
		Filters: filters,
		Sort:    sort,
		Skip:    (page - 1) * pageSize,
		Limit:   pageSize,
	})
	if err != nil {
		return Page[storage.Document]{}, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	return Page[storage.Document]{Results: docs, Total: total, Page: page, PageSize: pageSize}, nil
}

// SearchDeals searches the deals collection.
func (e *Engine) SearchDeals(ctx context.Context, s DealSearch) (Page[models.Deal], error) {
	res, err := e.Search(ctx, storage.CollectionDeals, s.Filters.storeFilters(), s.Sort, s.Page, s.PageSize)
	if err != nil {
		return Page[models.Deal]{}, err
	}
	return Page[models.Deal]{
		Results:  decodeAll(res.Results, models.DealFromDocument),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	}, nil
}

// GetDeal returns the deal whose catalog id is id.
func (e *Engine) GetDeal(ctx context.Context, id string) (models.Deal, error) {
	defer e.metrics.ObserveQuery("get_deal", time.Now())

	docs, err := e.store.Find(ctx, storage.CollectionDeals, storage.Query{
		Filters: []storage.Filter{{Field: "id", Op: storage.OpEq, Value: id}},
		Limit:   1,
	})
	if err != nil {
		return models.Deal{}, fmt.Errorf("failed to get deal %s: %w", id, err)
	}
	if len(docs) == 0 {
		return models.Deal{}, fmt.Errorf("deal %s: %w", id, ErrNotFound)
	}
	deal, err := models.DealFromDocument(docs[0])
	if err != nil {
		return models.Deal{}, fmt.Errorf("deal %s: %w", id, err)
	}
	return deal, nil
}

// SearchSales returns up to limit sales for catalogID, most recently
// published first; an empty catalogID matches every sale. Sales whose date
// does not parse keep their stored order after the dated ones.
func (e *Engine) SearchSales(ctx context.Context, catalogID string, limit int) ([]models.Sale, error) {
	defer e.metrics.ObserveQuery("search_sales", time.Now())

	if limit < 1 {
		limit = DefaultSalesLimit
	}
	var filters []storage.Filter
	if catalogID = strings.TrimSpace(catalogID); catalogID != "" {
		filters = append(filters, storage.Filter{Field: "catalogId", Op: storage.OpEq, Value: catalogID})
	}

	sales, err := e.loadSales(ctx, filters)
	if err != nil {
		return nil, err
	}
	sortByPublishedDesc(sales)
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

// RecentSales returns sales published within window before now, newest first.
func (e *Engine) RecentSales(ctx context.Context, now time.Time, window time.Duration) ([]models.Sale, error) {
	defer e.metrics.ObserveQuery("recent_sales", time.Now())

	if window <= 0 {
		window = DefaultRecentWindow
	}
	sales, err := e.loadSales(ctx, nil)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-window)
	recent := make([]models.Sale, 0, len(sales))
	for _, s := range sales {
		t, ok := normalize.ParseLocaleDate(s.PublishedAt)
		if ok && !t.Before(cutoff) && !t.After(now) {
			recent = append(recent, s)
		}
	}
	sortByPublishedDesc(recent)
	return recent, nil
}

// SaleIndicators computes price and lifetime indicators for the priced sales
// of catalogID, serving from the cache when one is configured.
func (e *Engine) SaleIndicators(ctx context.Context, catalogID string) (stats.Stats, error) {
	defer e.metrics.ObserveQuery("sale_indicators", time.Now())

	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return stats.Stats{}, ErrMissingCatalogID
	}

	// Only a clean miss is written back; after a read error the generation
	// is unknown.
	var generation int64
	writeBack := false
	if e.cache != nil {
		cached, gen, ok, err := e.cache.Get(ctx, catalogID)
		switch {
		case err != nil:
			e.metrics.IncCacheLookup("error")
			slog.Warn("Indicator cache read failed", "catalog_id", catalogID, "error", err)
		case ok:
			e.metrics.IncCacheLookup("hit")
			return cached, nil
		default:
			e.metrics.IncCacheLookup("miss")
			generation, writeBack = gen, true
		}
	}

	sales, err := e.loadSales(ctx, []storage.Filter{
		{Field: "catalogId", Op: storage.OpEq, Value: catalogID},
		{Field: "price", Op: storage.OpNotNull},
	})
	if err != nil {
		return stats.Stats{}, err
	}
	result := stats.Compute(sales)

	if writeBack {
		if err := e.cache.Set(ctx, catalogID, generation, result); err != nil {
			slog.Warn("Indicator cache write failed", "catalog_id", catalogID, "error", err)
		}
	}
	return result, nil
}

func (e *Engine) loadSales(ctx context.Context, filters []storage.Filter) ([]models.Sale, error) {
	docs, err := e.store.Find(ctx, storage.CollectionSales, storage.Query{Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return decodeAll(docs, models.SaleFromDocument), nil
}

// decodeAll converts documents with decode, skipping any that fail.
func decodeAll[T any](docs []storage.Document, decode func(map[string]any) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode(doc)
		if err != nil {
			slog.Warn("Skipping undecodable record", "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortByPublishedDesc(sales []models.Sale) {
	type dated struct {
		sale models.Sale
		at   time.Time
		ok   bool
	}
	items := make([]dated, len(sales))
	for i, s := range sales {
		at, ok := normalize.ParseLocaleDate(s.PublishedAt)
		items[i] = dated{s, at, ok}
	}
	slices.SortStableFunc(items, func(a, b dated) int {
		if a.ok != b.ok {
			if a.ok {
				return -1
			}
			return 1
		}
		return b.at.Compare(a.at)
	})
	for i, it := range items {
		sales[i] = it.sale
	}
}
