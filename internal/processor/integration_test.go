//go:build integration

package processor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/config"
	"github.com/pauljones0/brick-resale-tracker/internal/query"
	"github.com/pauljones0/brick-resale-tracker/internal/scraper"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

// Integration test that wires up the real HTTP fetcher against a test server,
// the real extractor, the in-memory store and the query engine.

func TestIntegration_FullPipeline(t *testing.T) {
	dealsPage := `<!DOCTYPE html>
<html><body>
<div class="prods">
	<a href="/lego-75192" title="LEGO Star Wars 75192 Faucon Millenium" data-id="75192">
		<img src="/img/75192.jpg" />
		<span class="prodl-prix"><span>649,99 €</span></span>
		<span class="prodl-reduc">-15%</span>
	</a>
	<a href="/lego-10300" title="LEGO Icons 10300 DeLorean" data-id="10300">
		<span class="prodl-prix"><span>149,99 €</span></span>
		<span class="prodl-reduc">-25%</span>
	</a>
	<a href="/lego-21330" title="LEGO Ideas 21330 Home Alone" data-id="21330">
		<span class="prodl-prix"><span>199,99 €</span></span>
	</a>
</div>
</body></html>`

	salesPage := `<!DOCTYPE html>
<html><body>
<div class="feed-grid">
	<div class="feed-grid__item">
		<a class="new-item-box__overlay" href="/items/1" title="Lego 75192 Faucon complet"></a>
		<p data-testid="item-price">500,00 €</p>
		<time datetime="01/01/2025 10:00:00"></time>
	</div>
	<div class="feed-grid__item">
		<a class="new-item-box__overlay" href="/items/2" title="Millennium Falcon 75192 sans boite"></a>
		<p data-testid="item-price">450,00 €</p>
		<time datetime="11/01/2025 10:00:00"></time>
	</div>
	<div class="feed-grid__item" data-catalog-id="75192">
		<a class="new-item-box__overlay" href="/items/3" title="Faucon UCS"></a>
		<p data-testid="item-price">600,00 €</p>
		<time datetime="05/01/2025"></time>
	</div>
</div>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/promotions":
			fmt.Fprint(w, dealsPage)
		case "/catalog":
			fmt.Fprint(w, salesPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := &config.Config{
		SourceURLs:       []string{srv.URL + "/promotions", srv.URL + "/catalog", srv.URL + "/missing"},
		AllowedDomains:   []string{"127.0.0.1"},
		FetchConcurrency: 2,
		FetchTimeout:     5 * time.Second,
		FetchMaxRetries:  1,
	}

	store := storage.NewMemoryStore()
	p := New(store, scraper.NewExtractor(scraper.DefaultSelectors()), scraper.NewHTTPFetcher(cfg), nil, nil, cfg)

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FailedFetches != 1 || res.DealsInserted != 3 || res.SalesInserted != 3 {
		t.Errorf("Unexpected run result %+v", res)
	}

	engine := query.NewEngine(store, nil, nil)

	page, err := engine.SearchDeals(context.Background(), query.DealSearch{
		Filters:  query.DealFilters{MaxPrice: floatPtr(200)},
		Sort:     query.SortBestDiscount,
		Page:     1,
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("SearchDeals() error = %v", err)
	}
	if page.Total != 2 || page.Results[0].ID != "10300" || page.Results[1].ID != "21330" {
		t.Errorf("Unexpected deal page %+v", page)
	}
	if page.Results[0].Link != srv.URL+"/lego-10300" {
		t.Errorf("Link = %q, want it resolved against the test server", page.Results[0].Link)
	}

	indicators, err := engine.SaleIndicators(context.Background(), "75192")
	if err != nil {
		t.Fatalf("SaleIndicators() error = %v", err)
	}
	if indicators.Count != 3 || indicators.Average != 516.67 || indicators.P50 != 500 || indicators.LifetimeDays != 10 {
		t.Errorf("Unexpected indicators %+v", indicators)
	}

	// --- Second run replaces rather than appends ---
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Second Run() error = %v", err)
	}
	if n, _ := store.Count(context.Background(), storage.CollectionDeals, nil); n != 3 {
		t.Errorf("Expected 3 deals after resync, got %d", n)
	}
}

func floatPtr(f float64) *float64 { return &f }
