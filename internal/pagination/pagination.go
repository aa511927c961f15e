package pagination

import (
	"math"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort orders a listing by its time columns.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
)

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int  `form:"page" binding:"omitempty,min=1"`
	PageSize int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	Sort     Sort `form:"sort" binding:"omitempty,oneof=newest oldest"`
}

// Defaults fills in page 1, DefaultPageSize and newest-first for missing
// values and caps the page size at MaxPageSize.
func (p *PageRequest) Defaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.Sort != SortOldest {
		p.Sort = SortNewest
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps one page of items with its position in the full list.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
// Data is never nil so an empty page encodes as [].
func NewPageResponse[T any](data []T, page, pageSize int, totalItems int64) PageResponse[T] {
	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}

// OrderBy returns a GORM scope ordering by columns in the request's sort
// direction, then paginating. Columns should be time columns, most
// significant first.
func OrderBy(req PageRequest, columns ...string) func(db *gorm.DB) *gorm.DB {
	dir := " DESC"
	if req.Sort == SortOldest {
		dir = " ASC"
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + dir
	}
	order := strings.Join(parts, ", ")

	return func(db *gorm.DB) *gorm.DB {
		if order != "" {
			db = db.Order(order)
		}
		return Paginate(req)(db)
	}
}
