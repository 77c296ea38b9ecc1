// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockflow/internal/core/id"
	"stockflow/internal/domain"
)

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain list result item by item.
func NewListResponse[S, T any](res domain.ListResult[S], mapFn func(S) T) ListResponse[T] {
	items := make([]T, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, mapFn(item))
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
