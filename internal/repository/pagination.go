package repository

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page window. Zero values select the defaults.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize clamps the window to [1, MaxPageSize].
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.PageSize < 1:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the row offset of a normalized request.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

func newPage[T any](req PageRequest, total int64, items []T) PageResult[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := 0
	if total > 0 {
		size := int64(req.PageSize)
		pages = int((total + size - 1) / size)
	}
	return PageResult[T]{Items: items, Page: req.Page, PageSize: req.PageSize, Total: total, TotalPages: pages}
}
