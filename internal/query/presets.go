package query

import "github.com/pauljones0/brick-resale-tracker/internal/storage"

// SortPreset is a named sort order exposed to callers.
type SortPreset string

const (
	SortBestDiscount  SortPreset = "best-discount"
	SortMostCommented SortPreset = "most-commented"
	SortHotDeals      SortPreset = "hot-deals"
	SortPriceAsc      SortPreset = "price-asc"
	SortPriceDesc     SortPreset = "price-desc"
	SortDateAsc       SortPreset = "date-asc"
	SortDateDesc      SortPreset = "date-desc"
)

var presetSorts = map[SortPreset]storage.Sort{
	SortBestDiscount:  {Field: "discount", Direction: storage.Desc},
	SortMostCommented: {Field: "commentsCount", Direction: storage.Desc},
	SortHotDeals:      {Field: "temperature", Direction: storage.Desc},
	SortPriceAsc:      {Field: "price", Direction: storage.Asc},
	SortPriceDesc:     {Field: "price", Direction: storage.Desc},
	SortDateAsc:       {Field: "postedAt", Direction: storage.Asc},
	SortDateDesc:      {Field: "postedAt", Direction: storage.Desc},
}

// Sort returns the store sort for p. Unknown presets report false and mean
// natural order.
func (p SortPreset) Sort() (*storage.Sort, bool) {
	s, ok := presetSorts[p]
	if !ok {
		return nil, false
	}
	return &s, true
}
