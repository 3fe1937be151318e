package models

// Deal is a catalog listing scraped from a deals site.
type Deal struct {
	ID            string  `json:"legoId" mapstructure:"id" validate:"required"`
	Title         string  `json:"title" mapstructure:"title" validate:"required"`
	Link          string  `json:"link" mapstructure:"link" validate:"required,url"`
	Image         string  `json:"image,omitempty" mapstructure:"image" validate:"omitempty,url"`
	Price         float64 `json:"price" mapstructure:"price" validate:"gte=0"`
	Discount      *int    `json:"discount,omitempty" mapstructure:"discount" validate:"omitempty,gte=0,lte=100"`
	CommentsCount int     `json:"commentsCount" mapstructure:"commentsCount" validate:"gte=0"`
	Temperature   int     `json:"temperature" mapstructure:"temperature"`
	// PostedAt keeps the source's dd/mm/yyyy string; it is normalized on demand.
	PostedAt string `json:"postedAt,omitempty" mapstructure:"postedAt"`
}

// Document returns the store representation of the deal. Every field is
// present so that backends sorting on a field never skip a record.
func (d Deal) Document() map[string]any {
	var discount any
	if d.Discount != nil {
		discount = *d.Discount
	}
	return map[string]any{
		"id":            d.ID,
		"title":         d.Title,
		"link":          d.Link,
		"image":         d.Image,
		"price":         d.Price,
		"discount":      discount,
		"commentsCount": d.CommentsCount,
		"temperature":   d.Temperature,
		"postedAt":      d.PostedAt,
	}
}

// DealFromDocument decodes a stored document back into a Deal.
func DealFromDocument(doc map[string]any) (Deal, error) {
	var d Deal
	if err := decodeDocument(doc, &d); err != nil {
		return Deal{}, err
	}
	return d, nil
}
