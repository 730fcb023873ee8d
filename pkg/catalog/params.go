package catalog

import (
	"net/url"
	"strconv"
)

// DefaultPerPage is the page size used when ListParams.PerPage is zero.
const DefaultPerPage = 20

// ListParams holds the common filters for the paginated list endpoints.
// The zero value requests the first page with default size and no filters.
type ListParams struct {
	// Page number, 1-based. Zero means page 1.
	Page int

	// PerPage is the page size. Zero means DefaultPerPage.
	PerPage int

	// Search is a free-text query.
	Search string

	// CategoryID filters services by category. Zero means all.
	CategoryID int64

	// City filters specialists and teams by location.
	City string

	// Status filters orders by lifecycle state. Empty means all.
	Status OrderStatus
}

// WithPage returns a copy of the params targeting the given page.
func (p ListParams) WithPage(page int) ListParams {
	p.Page = page
	return p
}

// Encode renders the params as a URL query string (with leading "?"),
// omitting zero-valued filters. The page number is always included so
// cache keys stay distinct per page.
func (p ListParams) Encode() string {
	values := url.Values{}

	page := p.Page
	if page <= 0 {
		page = 1
	}
	values.Set("page", strconv.Itoa(page))

	if p.PerPage > 0 {
		values.Set("perPage", strconv.Itoa(p.PerPage))
	}
	if p.Search != "" {
		values.Set("search", p.Search)
	}
	if p.CategoryID > 0 {
		values.Set("categoryId", strconv.FormatInt(p.CategoryID, 10))
	}
	if p.City != "" {
		values.Set("city", p.City)
	}
	if p.Status != "" {
		values.Set("status", string(p.Status))
	}

	return "?" + values.Encode()
}
