package dto

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// PageRequest is 1-based page pagination.
type PageRequest struct {
	Page    int `form:"page" json:"page" validate:"gte=0"`
	PerPage int `form:"per_page" json:"per_page" validate:"gte=0"`
}

// Normalize fills defaults and caps per_page.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

// Limit is the SQL limit of a normalized request.
func (p PageRequest) Limit() int {
	return p.PerPage
}

// Offset calculates SQL offset.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageInfo contains pagination metadata.
type PageInfo struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPageInfo creates pagination response.
func NewPageInfo(p PageRequest, total int64) PageInfo {
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		pages++
	}
	return PageInfo{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: pages,
	}
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items []T      `json:"items"`
	Meta  PageInfo `json:"meta"`
}
