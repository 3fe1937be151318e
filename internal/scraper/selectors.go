package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type SelectorConfig struct {
	Deals DealSelectors `json:"deals"`
	Sales SaleSelectors `json:"sales"`
}

type ListContainer struct {
	Item           string `json:"item"`            // e.g., "div.prods a"
	IgnoreModifier string `json:"ignore_modifier"` // e.g., ".sponsored"
}

// Field locates one value inside a listing node. An empty Selector means the
// node itself; an empty Attr means the element text. A Field with neither set
// is not configured.
type Field struct {
	Selector string `json:"selector,omitempty"`
	Attr     string `json:"attr,omitempty"`
}

type DealSelectors struct {
	Container ListContainer `json:"container"`
	Elements  DealElements  `json:"elements"`
}

type DealElements struct {
	CatalogID    Field `json:"catalog_id"`
	Title        Field `json:"title"`
	Link         Field `json:"link"`
	Image        Field `json:"image"`
	Price        Field `json:"price"`
	Discount     Field `json:"discount"`
	CommentCount Field `json:"comment_count"`
	Temperature  Field `json:"temperature"`
	PostedAt     Field `json:"posted_at"`
}

type SaleSelectors struct {
	Container ListContainer `json:"container"`
	Elements  SaleElements  `json:"elements"`
}

type SaleElements struct {
	CatalogID   Field `json:"catalog_id"`
	Title       Field `json:"title"`
	Link        Field `json:"link"`
	Price       Field `json:"price"`
	PublishedAt Field `json:"published_at"`
}

func (f Field) configured() bool {
	return f.Selector != "" || f.Attr != ""
}

// read returns the trimmed value of f within s and whether it was found.
func (f Field) read(s *goquery.Selection) (string, bool) {
	if !f.configured() {
		return "", false
	}
	node := s
	if f.Selector != "" {
		node = s.Find(f.Selector).First()
		if node.Length() == 0 {
			return "", false
		}
	}
	if f.Attr != "" {
		v, ok := node.Attr(f.Attr)
		return strings.TrimSpace(v), ok
	}
	return strings.TrimSpace(node.Text()), true
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.Deals.Container.Item == "" && config.Sales.Container.Item == "" {
		return SelectorConfig{}, fmt.Errorf("selector config defines no listing container")
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// It mirrors the embedded selectors.json.
//
// Date fields may hold either the displayed DD/MM/YYYY[ HH:MM:SS] text or an
// ISO-8601 timestamp such as a <time datetime> attribute; the extractor
// stores both as DD/MM/YYYY HH:MM:SS in UTC.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Deals: DealSelectors{
			Container: ListContainer{
				Item: "div.prods a",
			},
			Elements: DealElements{
				CatalogID: Field{Attr: "data-id"},
				Title:     Field{Attr: "title"},
				Link:      Field{Attr: "href"},
				Image:     Field{Selector: "img", Attr: "src"},
				Price:     Field{Selector: "span.prodl-prix span"},
				Discount:  Field{Selector: "span.prodl-reduc"},
			},
		},
		Sales: SaleSelectors{
			Container: ListContainer{
				Item: "div.feed-grid__item",
			},
			Elements: SaleElements{
				CatalogID:   Field{Attr: "data-catalog-id"},
				Title:       Field{Selector: "a.new-item-box__overlay", Attr: "title"},
				Link:        Field{Selector: "a.new-item-box__overlay", Attr: "href"},
				Price:       Field{Selector: "[data-testid=\"item-price\"]"},
				PublishedAt: Field{Selector: "time", Attr: "datetime"},
			},
		},
	}
}
