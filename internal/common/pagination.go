package common

import (
	"net/http"
	"strconv"
)

// Pagination is the page metadata returned beside list data.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// PageFrom reads ?page= and ?limit=, falling back to page 1 and def items.
// The limit is capped at ceiling.
func PageFrom(r *http.Request, def, ceiling int) Pagination {
	q := r.URL.Query()
	p := Pagination{Page: 1, PerPage: def}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		p.PerPage = min(n, ceiling)
	}
	return p
}

// Offset is the number of rows to skip for the current page.
func (p Pagination) Offset() int { return (p.Page - 1) * p.PerPage }

// WithTotal returns p with the total item count filled in.
func (p Pagination) WithTotal(total int) Pagination {
	p.TotalItems = total
	return p
}
