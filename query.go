package formstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// QueryVars is the declarative request accepted by Manager.Query.
type QueryVars struct {
	// Number is the page size. -1 (or 0) means unlimited; anything below -1
	// short-circuits to an empty collection without touching the store.
	Number int
	// Offset skips leading rows. Negative offsets are treated as 0.
	Offset int
	// OrderBy lists sort terms in priority order. If any term names a column
	// outside the schema whitelist the whole clause falls back to the
	// manager's default order; it never reaches the store.
	OrderBy []Order
	// OrderByIDs switches to explicit-order mode: rows follow this exact id
	// sequence. Takes precedence over OrderBy. Ids must be positive.
	OrderByIDs []int64
	// Filters maps declared column names (or schema filter-join names) to a
	// scalar for equality or a slice for membership. Unknown keys are
	// ignored so callers can pass vars meant for newer schemas.
	Filters map[string]any
}

// query compiles QueryVars for one manager. It carries no state of its own.
type query struct {
	mgr *Manager
}

func newQuery(m *Manager) *query {
	return &query{mgr: m}
}

type cachedQueryResult struct {
	IDs   []int64 `json:"ids"`
	Total int64   `json:"total"`
}

// Run compiles the vars, consults the query cache and falls back to the row
// store. Results are id lists; hydration happens later through the collection.
func (q *query) Run(ctx context.Context, vars QueryVars) (*Collection, error) {
	if vars.Number < -1 {
		return newIDCollection(q.mgr, nil, 0), nil
	}
	crit, err := q.compile(vars)
	if err != nil {
		return nil, err
	}
	group := q.mgr.schema.CacheGroup

	cacheKey := ""
	if q.mgr.cache != nil {
		hash, hashErr := hashCriteria(crit)
		generation := q.mgr.generation(ctx)
		if hashErr == nil && generation != "" {
			cacheKey = queryKey(generation, hash)
			if raw, err := q.mgr.cache.Get(ctx, group, cacheKey); err == nil {
				var cached cachedQueryResult
				if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
					logger.Debug().Str("group", group).Str("key", cacheKey).Msg("query cache hit")
					return newIDCollection(q.mgr, cached.IDs, cached.Total), nil
				}
				_ = q.mgr.cache.Delete(ctx, group, cacheKey)
			} else if !errors.Is(err, ErrNotFound) {
				logger.Warn().Err(err).Str("group", group).Msg("query cache read failed")
			}
		}
	}

	rows, total, err := q.mgr.store.Select(ctx, q.mgr.schema.Table, crit)
	if err != nil {
		return nil, fmt.Errorf("formstore: querying %s: %w", q.mgr.schema.Kind, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if id := toInt64(row[q.mgr.schema.Primary]); id > 0 {
			ids = append(ids, id)
		}
	}
	if cacheKey != "" {
		if raw, err := json.Marshal(cachedQueryResult{IDs: ids, Total: total}); err == nil {
			if err := q.mgr.cache.Set(ctx, group, cacheKey, string(raw), q.mgr.ttl); err != nil {
				logger.Warn().Err(err).Str("group", group).Msg("query cache write failed")
			}
		}
	}
	return newIDCollection(q.mgr, ids, total), nil
}

// compile translates vars into store criteria. Filters are processed in key
// order so equivalent maps compile (and hash) identically.
func (q *query) compile(vars QueryVars) (Criteria, error) {
	s := q.mgr.schema
	crit := Criteria{
		Limit:  vars.Number,
		Offset: vars.Offset,
	}
	if crit.Offset < 0 {
		crit.Offset = 0
	}

	names := make([]string, 0, len(vars.Filters))
	for name := range vars.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		column := ""
		switch {
		case name == s.Primary || s.hasColumn(name):
			column = name
		default:
			jf, ok := s.FilterJoins[name]
			if !ok {
				continue
			}
			column = jf.Column
			crit.Joins = appendJoin(crit.Joins, jf.Join)
		}
		values, err := filterValues(name, vars.Filters[name])
		if err != nil {
			return Criteria{}, err
		}
		crit.Where = append(crit.Where, Condition{Column: column, Values: values})
	}

	if len(vars.OrderByIDs) > 0 {
		for _, id := range vars.OrderByIDs {
			if id <= 0 {
				return Criteria{}, fmt.Errorf("%w: orderby id list contains %d", ErrInvalidFilter, id)
			}
		}
		crit.OrderByIDs = vars.OrderByIDs
		crit.IDColumn = s.Primary
	} else {
		crit.OrderBy = q.orderTerms(vars.OrderBy)
	}

	selectColumn := s.Primary
	if len(crit.Joins) > 0 {
		// Base-table columns must be qualified once other tables are in play.
		for i := range crit.Where {
			crit.Where[i].Column = q.qualify(crit.Where[i].Column)
		}
		for i := range crit.OrderBy {
			crit.OrderBy[i].Column = q.qualify(crit.OrderBy[i].Column)
		}
		crit.IDColumn = q.qualify(crit.IDColumn)
		selectColumn = q.qualify(selectColumn)
	}
	crit.Columns = []string{selectColumn}
	return crit, nil
}

// orderTerms validates the requested sort against the schema whitelist. A
// single unknown column rejects the whole request in favor of the default
// order; a broken sort never becomes a store error.
func (q *query) orderTerms(requested []Order) []Order {
	s := q.mgr.schema
	if len(requested) > 0 {
		valid := true
		for _, term := range requested {
			if !s.orderable(term.Column) {
				logger.Debug().Str("kind", string(s.Kind)).Str("column", term.Column).
					Msg("orderby column not whitelisted, using default order")
				valid = false
				break
			}
		}
		if valid {
			return append([]Order(nil), requested...)
		}
	}
	if s.SortColumn != "" {
		return []Order{{Column: s.SortColumn}}
	}
	return []Order{{Column: s.Primary}}
}

func (q *query) qualify(column string) string {
	if column == "" || strings.Contains(column, ".") {
		return column
	}
	return q.mgr.schema.Table + "." + column
}

func appendJoin(joins []Join, j Join) []Join {
	for _, existing := range joins {
		if existing == j {
			return joins
		}
	}
	return append(joins, j)
}

// filterValues normalizes one filter value: scalars become a single-element
// equality, slices become membership lists. Structured values cannot be
// compiled and are rejected.
func filterValues(name string, value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: filter %q is nil", ErrInvalidFilter, name)
	case []any:
		return append([]any(nil), v...), nil
	case []int64:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = int64(item)
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, nil
	case map[string]any:
		return nil, fmt.Errorf("%w: filter %q is a map", ErrInvalidFilter, name)
	case int:
		return []any{int64(v)}, nil
	case string, int64, bool, float64:
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("%w: filter %q has unsupported type %T", ErrInvalidFilter, name, value)
	}
}
