package schema

import "github.com/vitalk/apistub/core/entity"

// PageMeta is the pagination metadata of a dumped page.
type PageMeta struct {
	Page    int   `json:"page"`
	Pages   int   `json:"pages"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

// PageEnvelope is a dumped page.
type PageEnvelope struct {
	Meta  PageMeta         `json:"meta"`
	Items []map[string]any `json:"items"`
}

// PagedSchema dumps pages of records through an item schema.
type PagedSchema[T entity.Record] struct {
	items *Schema[T]
}

// Paged wraps s so whole pages can be dumped.
func Paged[T entity.Record](s *Schema[T]) *PagedSchema[T] {
	return &PagedSchema[T]{items: s}
}

// Name returns <ItemSchema>Paging.
func (p *PagedSchema[T]) Name() string {
	return p.items.Name() + "Paging"
}

// Dump moves the page metadata under meta and dumps the items.
func (p *PagedSchema[T]) Dump(page *entity.Page[T]) PageEnvelope {
	if page == nil {
		return PageEnvelope{Items: []map[string]any{}}
	}
	return PageEnvelope{
		Meta: PageMeta{
			Page:    page.Page,
			Pages:   page.Pages(),
			PerPage: page.PerPage,
			Total:   page.Total,
		},
		Items: p.items.DumpMany(page.Items),
	}
}
