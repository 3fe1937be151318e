package query

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/pauljones0/brick-resale-tracker/internal/normalize"
	"github.com/pauljones0/brick-resale-tracker/internal/storage"
)

// DealFilters are AND-ed together; zero values are not applied.
type DealFilters struct {
	MaxPrice  *float64
	CatalogID string
	// DatePrefix matches postedAt values starting with it, e.g. "16/01/2025".
	DatePrefix string
}

func (f DealFilters) storeFilters() []storage.Filter {
	var filters []storage.Filter
	if f.MaxPrice != nil {
		filters = append(filters, storage.Filter{Field: "price", Op: storage.OpLTE, Value: *f.MaxPrice})
	}
	if f.CatalogID != "" {
		filters = append(filters, storage.Filter{Field: "id", Op: storage.OpEq, Value: f.CatalogID})
	}
	if f.DatePrefix != "" {
		filters = append(filters, storage.Filter{Field: "postedAt", Op: storage.OpPrefix, Value: f.DatePrefix})
	}
	return filters
}

type DealSearch struct {
	Filters  DealFilters
	Sort     SortPreset
	Page     int
	PageSize int
}

// ParseDealSearch reads a deal search from query parameters:
// limit, page, price (max price), legoId, date (YYYY-MM-DD or DD/MM/YYYY)
// and filterBy (sort preset). Invalid values are logged and replaced by
// their defaults.
func ParseDealSearch(values url.Values) DealSearch {
	s := DealSearch{
		Page:     1,
		PageSize: DefaultPageSize,
		Sort:     SortPreset(strings.TrimSpace(values.Get("filterBy"))),
	}

	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			s.PageSize = n
		} else {
			slog.Warn("Invalid limit, using default", "limit", v, "default", DefaultPageSize)
		}
	}
	if v := values.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			s.Page = n
		} else {
			slog.Warn("Invalid page, using first page", "page", v)
		}
	}
	if v := values.Get("price"); v != "" {
		if price, ok := normalize.ParsePrice(v); ok {
			s.Filters.MaxPrice = &price
		} else {
			slog.Warn("Invalid price filter ignored", "price", v)
		}
	}
	if v := values.Get("date"); v != "" {
		if prefix, ok := normalize.ParseDateFilter(v); ok {
			s.Filters.DatePrefix = prefix
		} else {
			slog.Warn("Invalid date filter ignored", "date", v)
		}
	}
	s.Filters.CatalogID = strings.TrimSpace(values.Get("legoId"))

	return s
}
