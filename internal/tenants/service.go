package tenants

import (
	"context"
	"strings"

	"github.com/zapflow/zapflow/internal/shared"
)

// Service exposes tenant reads.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of tenants.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Tenant, shared.Pagination, error) {
	p := shared.NewPagination(filters.Page, filters.PerPage, 0)
	filters.Page, filters.PerPage = p.Page, p.PerPage
	filters.Search = strings.TrimSpace(filters.Search)
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if list == nil {
		list = []Tenant{}
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Get returns a single tenant.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.Get(ctx, id)
}
