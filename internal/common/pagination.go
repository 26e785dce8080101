package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps the page size a client may request.
const MaxPerPage = 200

// Pagination is the list metadata returned next to "data".
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// Page is a parsed page request.
type Page struct {
	Number  int
	PerPage int
}

// ParsePage reads ?page= and ?limit=. Missing or invalid values fall back to
// page 1 and defaultPerPage; the size is capped at MaxPerPage.
func ParsePage(r *http.Request, defaultPerPage int) Page {
	if defaultPerPage <= 0 {
		defaultPerPage = 50
	}
	p := Page{Number: 1, PerPage: defaultPerPage}
	q := r.URL.Query()
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.PerPage = n
	}
	p.PerPage = min(p.PerPage, MaxPerPage)
	return p
}

// Offset is the number of items skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

// Meta builds the response metadata for a collection of total items.
func (p Page) Meta(total int64) Pagination {
	return Pagination{Page: p.Number, PerPage: p.PerPage, TotalItems: int(total)}
}
