package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Document is the store-agnostic shape of one record.
type Document = map[string]any

const (
	CollectionDeals = "deals"
	CollectionSales = "sales"
)

var (
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrInvalidField      = errors.New("invalid field name")
)

type Op int

const (
	// OpEq matches records whose field equals Value.
	OpEq Op = iota
	// OpLTE matches numeric fields less than or equal to Value.
	OpLTE
	// OpPrefix matches string fields starting with Value.
	OpPrefix
	// OpNotNull matches records whose field is present and not null.
	OpNotNull
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpLTE:
		return "lte"
	case OpPrefix:
		return "prefix"
	case OpNotNull:
		return "notnull"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

type Sort struct {
	Field     string
	Direction Direction
}

// Query describes a find over one collection. Filters are AND-ed. A nil Sort
// keeps insertion order. Limit 0 means no limit.
type Query struct {
	Filters []Filter
	Sort    *Sort
	Skip    int
	Limit   int
}

// RecordStore is the capability the pipeline needs from a backend.
//
// ReplaceAll swaps the entire collection for docs. Whether readers can
// observe the collection half-replaced depends on the backend.
type RecordStore interface {
	ReplaceAll(ctx context.Context, collection string, docs []Document) error
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, filters []Filter) (int, error)
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validateCollection(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func validateQuery(collection string, filters []Filter, sort *Sort) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	for _, f := range filters {
		if !namePattern.MatchString(f.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
	}
	if sort != nil && !namePattern.MatchString(sort.Field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, sort.Field)
	}
	return nil
}
