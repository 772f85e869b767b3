package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts pagination parameters from the echo context. Clients
// send page/limit; an explicit offset is converted to the page containing it.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset > 0 {
			page = offset/limit + 1
		}
	}
	if page <= 0 {
		page = 1
	}

	return Params{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit), or 0 when there are no rows.
func (p Params) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Limit < total
}

// Meta is the pagination block that accompanies every list response.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// Meta builds the pagination block for a result set of the given size.
func (p Params) Meta(total int) Meta {
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: p.TotalPages(total),
		HasMore:    p.HasNext(total),
	}
}
