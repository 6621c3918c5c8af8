// Package pagination carries the offset paging contract shared by list
// endpoints and repositories.
package pagination

const DefaultLimit = 20

// Pagination is embedded in list request bindings. Pages are 1-based.
type Pagination struct {
	Page  int `form:"page" json:"page"`
	Limit int `form:"limit" json:"limit"`
}

// Normalize coerces out-of-range values instead of failing the request:
// page < 1 becomes 1, limit < 1 becomes DefaultLimit.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// PageInfo describes one returned page. TotalCount is the match count after
// filtering and before pagination.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"total_count"`
}
