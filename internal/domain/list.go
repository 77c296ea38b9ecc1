// Package domain holds types shared by the domain packages.
package domain

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Page contains common pagination options for list operations.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps limit and offset into the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
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

// Paginate slices an already filtered and ordered set. Used by stores that
// filter in memory.
func Paginate[T any](all []T, p Page) ListResult[T] {
	p = p.Normalize()
	res := ListResult[T]{TotalCount: int64(len(all)), Limit: p.Limit, Offset: p.Offset, Items: []T{}}
	if p.Offset >= len(all) {
		return res
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	res.Items = append(res.Items, all[p.Offset:end]...)
	return res
}
