// Package domain holds types shared by the ledger's domain packages.
package domain

// Page is the limit/offset window of a list query.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default limit and clamps to max.
func (p Page) Normalize(defaultLimit, max int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// TotalPages returns the number of pages of Limit items.
func (r ListResult[T]) TotalPages() int64 {
	if r.Limit <= 0 {
		return 0
	}
	return (r.TotalCount + int64(r.Limit) - 1) / int64(r.Limit)
}
