package models

// DefaultPageSize is used when a caller does not set one
const DefaultPageSize = 100

// PageLink addresses one page of a paginated listing
type PageLink struct {
	PageSize int
	Page     int
}

// NewPageLink returns a link to the first page
func NewPageLink(pageSize int) PageLink {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return PageLink{PageSize: pageSize}
}

// Next returns the link to the following page
func (p PageLink) Next() PageLink {
	return PageLink{PageSize: p.PageSize, Page: p.Page + 1}
}

// Offset returns the row offset for SQL paging
func (p PageLink) Offset() int {
	return p.Page * p.PageSize
}

// PageData is one page of results
type PageData[T any] struct {
	Data          []T
	TotalPages    int
	TotalElements int64
	HasNext       bool
}

// NewPageData builds a page from the rows of the current page and the total count
func NewPageData[T any](data []T, total int64, link PageLink) *PageData[T] {
	totalPages := 0
	if link.PageSize > 0 {
		totalPages = int((total + int64(link.PageSize) - 1) / int64(link.PageSize))
	}
	return &PageData[T]{
		Data:          data,
		TotalPages:    totalPages,
		TotalElements: total,
		HasNext:       link.Page+1 < totalPages,
	}
}
