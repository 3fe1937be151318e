package scraper

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/normalize"
	"github.com/pauljones0/brick-resale-tracker/internal/validator"
)

var errUnparsedPrice = errors.New("price missing or unparsable")

// Result holds the canonical records extracted from one document.
type Result struct {
	Deals []models.Deal
	Sales []models.Sale
	// Listings counts every listing node that produced a raw record.
	Listings int
	// Dropped counts raw records rejected by validation.
	Dropped int
}

// Parse extracts, normalizes and validates every listing in html. Records
// failing validation are dropped whole; the rest keep document order.
func (e *Extractor) Parse(html, baseURL string) Result {
	var res Result
	for raw := range e.Extract(html, baseURL) {
		res.Listings++
		switch raw.Kind {
		case models.KindDeal:
			deal, err := e.toDeal(raw)
			if err != nil {
				res.Dropped++
				slog.Warn("Dropping deal", "title", raw.Title, "link", raw.Link, "reason", validator.FailedFields(err))
				continue
			}
			res.Deals = append(res.Deals, deal)
		case models.KindSale:
			sale, err := e.toSale(raw)
			if err != nil {
				res.Dropped++
				slog.Warn("Dropping sale", "title", raw.Title, "url", raw.Link, "reason", validator.FailedFields(err))
				continue
			}
			res.Sales = append(res.Sales, sale)
		}
	}
	return res
}

func (e *Extractor) toDeal(raw models.RawRecord) (models.Deal, error) {
	if raw.Price == nil {
		return models.Deal{}, fmt.Errorf("%w: %q", errUnparsedPrice, raw.PriceText)
	}
	deal := models.Deal{
		ID:            raw.CatalogID,
		Title:         raw.Title,
		Link:          raw.Link,
		Image:         raw.Image,
		Price:         *raw.Price,
		Discount:      raw.Discount,
		CommentsCount: raw.CommentsCount,
		Temperature:   raw.Temperature,
		PostedAt:      raw.Date,
	}
	if err := e.validator.ValidateStruct(deal); err != nil {
		return models.Deal{}, err
	}
	return deal, nil
}

func (e *Extractor) toSale(raw models.RawRecord) (models.Sale, error) {
	sale := models.Sale{
		CatalogID:   raw.CatalogID,
		Title:       raw.Title,
		URL:         raw.Link,
		Price:       raw.Price,
		Currency:    raw.Currency,
		PublishedAt: raw.Date,
	}
	normalize.BackfillCatalogID(&sale)
	if err := e.validator.ValidateStruct(sale); err != nil {
		return models.Sale{}, err
	}
	return sale, nil
}
