package processor

import (
	"context"

	"github.com/pauljones0/brick-resale-tracker/internal/scraper"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

// RecordWriter abstracts the storage layer for ingestion.
type RecordWriter interface {
	ReplaceAll(ctx context.Context, collection string, docs []storage.Document) error
}

// DocumentParser turns one listing document into canonical records.
type DocumentParser interface {
	Parse(html, baseURL string) scraper.Result
}

// CacheInvalidator drops data derived from the previous ingestion.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}
