package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vitalk/apistub/core/storage"
)

// GetByID returns the record with the given identifier.
//
// The identifier may be any integer kind, a float (truncated), or a string of
// decimal digits. Any other value, including non-numeric strings, yields a nil
// record without querying. A missing record is also nil; err is reserved for
// storage failures.
func (m *Model[T]) GetByID(ctx context.Context, q storage.Querier, identifier any) (T, error) {
	id, ok := coerceID(identifier)
	if !ok {
		var zero T
		return zero, nil
	}
	return m.queryOne(ctx, q, "id = ?", id)
}

// FindBy returns the first record whose fields equal the given values,
// keyed by external field name. A missing record is nil.
func (m *Model[T]) FindBy(ctx context.Context, q storage.Querier, values map[string]any) (T, error) {
	var (
		conds []string
		args  []any
	)
	for _, f := range m.fields {
		value, ok := values[f.Name]
		if !ok {
			continue
		}
		v, err := f.Decode(value)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("find %s by %s: %w", m.name, f.Name, err)
		}
		conds = append(conds, f.Column+" = ?")
		args = append(args, v.Interface())
	}
	if len(conds) != len(values) {
		var zero T
		return zero, fmt.Errorf("%w: %s filter %v", ErrUnknownField, m.name, values)
	}
	if len(conds) == 0 {
		conds = append(conds, "1 = 1")
	}
	return m.queryOne(ctx, q, strings.Join(conds, " AND "), args...)
}

func coerceID(identifier any) (int64, bool) {
	switch v := identifier.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		return parseDigits(v)
	case json.Number:
		return parseDigits(string(v))
	default:
		return 0, false
	}
}

func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Page is one page of records with its pagination metadata.
type Page[T Record] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

// Pages returns the total number of pages, zero when there are no records.
func (p *Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// HasNext reports whether a page follows this one.
func (p *Page[T]) HasNext() bool {
	return p.Page < p.Pages()
}

// HasPrev reports whether a page precedes this one.
func (p *Page[T]) HasPrev() bool {
	return p.Page > 1
}

// Query narrows and orders paginated queries.
type Query struct {
	where []string
	args  []any
	order []string
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// Where keeps records whose column equals value.
func Where(column string, value any) QueryOption {
	return func(q *Query) {
		q.where = append(q.where, column)
		q.args = append(q.args, value)
	}
}

// OrderBy sorts by column; records are always ordered by id last.
func OrderBy(column string, desc bool) QueryOption {
	return func(q *Query) {
		if desc {
			column += " DESC"
		}
		q.order = append(q.order, column)
	}
}

// Paginate returns the given 1-based page of records ordered by id.
// A page past the last one returns ErrPageOutOfRange, except the first page
// of an empty result.
func (m *Model[T]) Paginate(ctx context.Context, q storage.Querier, page, perPage int, opts ...QueryOption) (*Page[T], error) {
	if page < 1 || perPage < 1 {
		return nil, fmt.Errorf("%w: page %d, per page %d", ErrPageOutOfRange, page, perPage)
	}

	var query Query
	for _, opt := range opts {
		opt(&query)
	}

	where := ""
	if len(query.where) > 0 {
		conds := make([]string, len(query.where))
		for i, column := range query.where {
			if !m.hasColumn(column) {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, column)
			}
			conds[i] = column + " = ?"
		}
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	order := []string{}
	for _, o := range query.order {
		column, _, _ := strings.Cut(o, " ")
		if !m.hasColumn(column) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, column)
		}
		order = append(order, o)
	}
	order = append(order, "id")

	var total int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", m.table, where)
	if err := q.QueryRowContext(ctx, countSQL, query.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", m.table, err)
	}
	// Checked before the offset is computed so a huge page cannot overflow it.
	if pages := (total + int64(perPage) - 1) / int64(perPage); page > 1 && int64(page) > pages {
		return nil, fmt.Errorf("%w: page %d of %s", ErrPageOutOfRange, page, m.table)
	}

	listSQL := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?",
		m.columns, m.table, where, strings.Join(order, ", "))
	args := append(append([]any(nil), query.args...), perPage, (page-1)*perPage)

	rows, err := q.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.table, err)
	}
	defer rows.Close()

	items := make([]T, 0, perPage)
	for rows.Next() {
		rec, err := m.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.table, err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", m.table, err)
	}

	if len(items) == 0 && page != 1 {
		return nil, fmt.Errorf("%w: page %d of %s", ErrPageOutOfRange, page, m.table)
	}

	return &Page[T]{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}, nil
}

func (m *Model[T]) hasColumn(column string) bool {
	for _, f := range m.fields {
		if f.Column == column {
			return true
		}
	}
	return false
}
