package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps collections in process memory. ReplaceAll swaps the
// collection under a lock, so readers see either the old or the new set.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Document)}
}

func (m *MemoryStore) ReplaceAll(ctx context.Context, collection string, docs []Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	next := make([]Document, len(docs))
	for i, d := range docs {
		next[i] = maps.Clone(d)
	}

	m.mu.Lock()
	m.collections[collection] = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q.Filters, q.Sort); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := m.match(collection, q.Filters)
	m.mu.RUnlock()

	if q.Sort != nil {
		field, desc := q.Sort.Field, q.Sort.Direction == Desc
		slices.SortStableFunc(matched, func(a, b Document) int {
			c := compareValues(a[field], b[field])
			if desc {
				return -c
			}
			return c
		})
	}

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []Document{}, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]Document, len(matched))
	for i, d := range matched {
		out[i] = maps.Clone(d)
	}
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context, collection string, filters []Filter) (int, error) {
	if err := validateQuery(collection, filters, nil); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.match(collection, filters)), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// match returns the documents of collection satisfying every filter, in
// insertion order. Callers hold the read lock.
func (m *MemoryStore) match(collection string, filters []Filter) []Document {
	var out []Document
	for _, doc := range m.collections[collection] {
		if matchesAll(doc, filters) {
			out = append(out, doc)
		}
	}
	return out
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matches(doc[f.Field], f) {
			return false
		}
	}
	return true
}

func matches(v any, f Filter) bool {
	switch f.Op {
	case OpEq:
		if v == nil || f.Value == nil {
			return v == nil && f.Value == nil
		}
		return compareValues(v, f.Value) == 0
	case OpLTE:
		a, ok := toFloat(v)
		b, okb := toFloat(f.Value)
		return ok && okb && a <= b
	case OpPrefix:
		s, ok := v.(string)
		p, okp := f.Value.(string)
		return ok && okp && strings.HasPrefix(s, p)
	case OpNotNull:
		return v != nil
	default:
		return false
	}
}

// compareValues orders nil first, then bool, number and string, then by
// value within a type. Nil sorting lowest matches Firestore and JSONB.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 4
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
