// Package shared holds list plumbing common to the compliance modules.
package shared

import (
	"net/http"
	"strconv"
)

// DefaultLimit caps list responses when the client does not page explicitly.
const DefaultLimit = 50

// ListFilters carries pagination, search and ordering for list queries.
type ListFilters struct {
	Search  string
	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

// ParseFilters reads filters from query parameters. sortable whitelists the
// column names a client may order by; anything else falls back to def.
func ParseFilters(r *http.Request, sortable map[string]bool, def string) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		Search:  q.Get("search"),
		Page:    1,
		Limit:   DefaultLimit,
		SortBy:  def,
		SortDir: "ASC",
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 200 {
		f.Limit = limit
	}
	if sortBy := q.Get("sort_by"); sortable[sortBy] {
		f.SortBy = sortBy
	}
	if q.Get("sort_dir") == "desc" {
		f.SortDir = "DESC"
	}
	return f
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}

// OrderBy returns the ORDER BY fragment. SortBy is already whitelisted, so
// embedding it is safe.
func (f ListFilters) OrderBy() string {
	return f.SortBy + " " + f.SortDir
}
