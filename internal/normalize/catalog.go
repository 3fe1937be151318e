package normalize

import (
	"regexp"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
)

// catalogIDPattern matches the set-number ranges seen on listings:
// 10xxx (creator expert), 21xxx (ideas/minecraft), 75xxx (star wars).
var catalogIDPattern = regexp.MustCompile(`\b(10\d{3}|75\d{3}|21\d{3})\b`)

// InferCatalogID returns the first catalog id found in text, or "".
func InferCatalogID(text string) string {
	return catalogIDPattern.FindString(text)
}

// BackfillCatalogID fills in a missing CatalogID from the sale title.
// It reports whether the sale now carries a catalog id.
func BackfillCatalogID(s *models.Sale) bool {
	if s.CatalogID != "" {
		return true
	}
	s.CatalogID = InferCatalogID(s.Title)
	return s.CatalogID != ""
}
