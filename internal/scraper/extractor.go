package scraper

import (
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/normalize"
	"github.com/pauljones0/brick-resale-tracker/internal/util"
	"github.com/pauljones0/brick-resale-tracker/internal/validator"
)

// Extractor turns marketplace HTML into raw listing records.
type Extractor struct {
	selectors SelectorConfig
	validator *validator.Validator
}

func NewExtractor(selectors SelectorConfig) *Extractor {
	return &Extractor{
		selectors: selectors,
		validator: validator.New(),
	}
}

// Extract yields one RawRecord per listing node of html, deal nodes first,
// each group in document order. Nodes missing a title or link are skipped.
// Relative links are resolved against the origin of baseURL.
//
// The returned sequence is single-use: ranging over it a second time yields
// nothing.
func (e *Extractor) Extract(html, baseURL string) iter.Seq[models.RawRecord] {
	var consumed atomic.Bool
	return func(yield func(models.RawRecord) bool) {
		if consumed.Swap(true) {
			return
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			slog.Warn("Failed to parse listing document", "base_url", baseURL, "error", err)
			return
		}
		if !e.extractDeals(doc, baseURL, yield) {
			return
		}
		e.extractSales(doc, baseURL, yield)
	}
}

func (e *Extractor) extractDeals(doc *goquery.Document, baseURL string, yield func(models.RawRecord) bool) bool {
	sel := e.selectors.Deals
	if sel.Container.Item == "" {
		return true
	}
	el := sel.Elements

	keepGoing := true
	doc.Find(sel.Container.Item).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if sel.Container.IgnoreModifier != "" && s.Is(sel.Container.IgnoreModifier) {
			return true
		}

		raw := models.RawRecord{Kind: models.KindDeal}
		var parseErrors []string

		raw.Title, _ = el.Title.read(s)
		if href, ok := el.Link.read(s); ok {
			raw.Link = util.ResolveLink(href, baseURL)
		}
		if raw.Title == "" || raw.Link == "" {
			slog.Warn("Skipping deal node without title or link", "index", i, "base_url", baseURL)
			return true
		}

		if text, ok := el.Price.read(s); ok {
			raw.PriceText = text
			if v, ok := normalize.ParsePrice(text); ok {
				raw.Price = &v
			} else {
				parseErrors = append(parseErrors, "unparsed price '"+text+"'")
			}
		} else {
			parseErrors = append(parseErrors, "price element not found")
		}

		if text, ok := el.Discount.read(s); ok && text != "" {
			if v, ok := normalize.ParseDiscount(text); ok {
				raw.Discount = &v
			} else {
				parseErrors = append(parseErrors, "unparsed discount '"+text+"'")
			}
		}

		if src, ok := el.Image.read(s); ok && src != "" {
			raw.Image = util.ResolveLink(src, baseURL)
		}
		if text, ok := el.CommentCount.read(s); ok {
			raw.CommentsCount = util.ParseCount(text)
		}
		if text, ok := el.Temperature.read(s); ok {
			raw.Temperature = util.ParseScore(text)
		}
		if text, ok := el.PostedAt.read(s); ok {
			raw.Date = normalize.LocaleDate(text)
		}

		raw.CatalogID, _ = el.CatalogID.read(s)
		if raw.CatalogID == "" {
			raw.CatalogID = normalize.InferCatalogID(raw.Title)
		}
		if raw.CatalogID == "" {
			raw.CatalogID = normalize.InferCatalogID(raw.Link)
		}

		if len(parseErrors) > 0 {
			slog.Debug("Parsing issues for deal node", "title", raw.Title, "link", raw.Link, "issues", strings.Join(parseErrors, "; "))
		}

		keepGoing = yield(raw)
		return keepGoing
	})
	return keepGoing
}

func (e *Extractor) extractSales(doc *goquery.Document, baseURL string, yield func(models.RawRecord) bool) {
	sel := e.selectors.Sales
	if sel.Container.Item == "" {
		return
	}
	el := sel.Elements

	doc.Find(sel.Container.Item).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if sel.Container.IgnoreModifier != "" && s.Is(sel.Container.IgnoreModifier) {
			return true
		}

		raw := models.RawRecord{Kind: models.KindSale}
		raw.Title, _ = el.Title.read(s)
		if href, ok := el.Link.read(s); ok {
			raw.Link = util.ResolveLink(href, baseURL)
		}
		if raw.Title == "" || raw.Link == "" {
			slog.Warn("Skipping sale node without title or link", "index", i, "base_url", baseURL)
			return true
		}

		if text, ok := el.Price.read(s); ok {
			raw.PriceText = text
			raw.Currency = normalize.DetectCurrency(text)
			if v, ok := normalize.ParsePrice(text); ok {
				raw.Price = &v
			}
		}
		if text, ok := el.PublishedAt.read(s); ok {
			raw.Date = normalize.LocaleDate(text)
		}
		raw.CatalogID, _ = el.CatalogID.read(s)

		return yield(raw)
	})
}
