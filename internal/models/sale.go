package models

// Sale is a resale listing observed on a secondary marketplace.
type Sale struct {
	CatalogID string   `json:"legoId,omitempty" mapstructure:"catalogId"`
	Title     string   `json:"title" mapstructure:"title" validate:"required"`
	URL       string   `json:"url" mapstructure:"url" validate:"required,url"`
	Price     *float64 `json:"price,omitempty" mapstructure:"price" validate:"omitempty,gte=0"`
	Currency  string   `json:"currency,omitempty" mapstructure:"currency"`
	// PublishedAt is formatted dd/mm/yyyy[ HH:MM:SS] by the marketplace.
	PublishedAt string `json:"publishedAt,omitempty" mapstructure:"publishedAt"`
}

// Document returns the store representation of the sale.
func (s Sale) Document() map[string]any {
	var price any
	if s.Price != nil {
		price = *s.Price
	}
	return map[string]any{
		"catalogId":   s.CatalogID,
		"title":       s.Title,
		"url":         s.URL,
		"price":       price,
		"currency":    s.Currency,
		"publishedAt": s.PublishedAt,
	}
}

// SaleFromDocument decodes a stored document back into a Sale.
func SaleFromDocument(doc map[string]any) (Sale, error) {
	var s Sale
	if err := decodeDocument(doc, &s); err != nil {
		return Sale{}, err
	}
	return s, nil
}
