package jsonapi

import (
	"net/url"
	"strconv"
)

// ParsePageParams extracts the 1-based page and the page size from the page
// and per_page query parameters. Missing, unparsable or non-positive values
// fall back to page 1 and defaultPerPage; perPage is capped at maxPerPage.
func ParsePageParams(query url.Values, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage

	if v := query.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := query.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perPage = n
		}
	}

	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}

	return page, perPage
}
