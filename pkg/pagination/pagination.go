// Package pagination clamps page/limit query parameters and builds list
// envelopes with navigation links.
package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage keeps Offset inside a 32-bit SQL OFFSET at any limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Params is a clamped page request.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip. It never goes negative.
func (p Params) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt32/p.Limit {
		return math.MaxInt32
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the pagination block of a list response.
type Meta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	Pages       int   `json:"pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// Links holds navigation URLs. Links that do not apply are omitted.
type Links struct {
	Self     string `json:"self"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	First    string `json:"first,omitempty"`
	Last     string `json:"last,omitempty"`
}

// Response is the list envelope {data, pagination, links}.
type Response[T any] struct {
	Data       []T   `json:"data"`
	Pagination Meta  `json:"pagination"`
	Links      Links `json:"links"`
}

// ParseParams reads page and limit. Invalid values are clamped, never rejected.
func ParseParams(q url.Values) Params {
	page := parseInt(q.Get("page"), DefaultPage)
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}

	limit := parseInt(q.Get("limit"), DefaultLimit)
	switch {
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}

	return Params{Page: page, Limit: limit}
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// BuildResponse wraps items with metadata and links derived from baseURL.
// baseURL is the caller's request URL; its page and limit parameters are replaced.
func BuildResponse[T any](items []T, baseURL string, page, limit int, total int64) Response[T] {
	if items == nil {
		items = []T{}
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = 1
	}

	pages := int((total + int64(limit) - 1) / int64(limit))

	meta := Meta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		Pages:       pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}

	links := Links{Self: pageURL(baseURL, page, limit)}
	if meta.HasPrevious {
		prev := page - 1
		if pages > 0 && page > pages {
			prev = pages
		}
		links.Previous = pageURL(baseURL, prev, limit)
		links.First = pageURL(baseURL, 1, limit)
	}
	if meta.HasNext {
		links.Next = pageURL(baseURL, page+1, limit)
		links.Last = pageURL(baseURL, pages, limit)
	}

	return Response[T]{Data: items, Pagination: meta, Links: links}
}

func pageURL(baseURL string, page, limit int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String()
}
