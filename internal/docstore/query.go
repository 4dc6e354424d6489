package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Collection starts a query over a collection path.
func Collection(path string) Query {
	return Query{Collection: path}
}

// Eq adds an equality filter.
func (q Query) Eq(field string, value any) Query {
	q.Where = append(append([]Filter{}, q.Where...), Filter{Field: field, Value: value})
	return q
}

// Order sets the sort field and direction.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy, q.Desc = field, desc
	return q
}

// Take limits the number of results. Zero means no limit.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Validate reports malformed queries.
func (q Query) Validate() error {
	parts := strings.Split(q.Collection, "/")
	if q.Collection == "" || len(parts)%2 != 1 {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, q.Collection)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Matches reports whether a document at path with data satisfies q.
func (q Query) Matches(path string, data Data) bool {
	coll, _, err := Split(path)
	if err != nil || coll != q.Collection {
		return false
	}
	for _, f := range q.Where {
		if !equal(data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// Apply sorts and limits docs that already match q.
func (q Query) Apply(docs []Doc) []Doc {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := Compare(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// Compare orders two field values. Missing values sort first, RFC 3339
// strings compare as instants and numbers numerically.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		ta, errA := time.Parse(time.RFC3339Nano, sa)
		tb, errB := time.Parse(time.RFC3339Nano, sb)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		return strings.Compare(sa, sb)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
