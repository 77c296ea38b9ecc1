package ledger

import (
	"context"

	"stockflow/internal/core/apperror"
	"stockflow/internal/domain"
)

// Service exposes read-only ledger queries.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns entries matching filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[Entry], error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return domain.ListResult[Entry]{}, apperror.NewValidation("unknown ledger action").
			WithDetail("action", filter.Action)
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.ListResult[Entry]{}, apperror.NewValidation("time range is inverted")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}
