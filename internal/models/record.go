package models

// RecordKind tells which entity a raw listing node was extracted as.
type RecordKind string

const (
	KindDeal RecordKind = "deal"
	KindSale RecordKind = "sale"
)

// RawRecord is one listing node as read from a marketplace page, before
// validation. Price and Discount are nil when the text could not be parsed.
type RawRecord struct {
	Kind          RecordKind
	CatalogID     string
	Title         string
	Link          string
	Image         string
	PriceText     string
	Price         *float64
	Currency      string
	Discount      *int
	CommentsCount int
	Temperature   int
	Date          string
}
