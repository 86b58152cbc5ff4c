package common

import (
	"net/http"
	"strconv"
)

// MaxPage bounds the page number so offsets stay well inside int range.
const MaxPage = 100000

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
// perPage is capped at maxPerPage and page at MaxPage.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = min(p, MaxPage)
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if maxPerPage > 0 {
		perPage = min(perPage, maxPerPage)
	}
	return
}

// Offset returns the row offset of the page.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}
