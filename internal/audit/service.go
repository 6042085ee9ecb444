package audit

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository is the read side of a Store.
type Repository interface {
	Search(ctx context.Context, f Filters, limit, offset int) ([]Record, error)
}

// Service coordinates reading the audit trail.
type Service struct {
	repo Repository
}

// NewService builds the audit read service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of records, newest first.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Search(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []Record{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Records: rows, Paging: paging}, nil
}

// Export returns every record matching filters, ignoring paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Record, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Search(ctx, filters, 0, 0)
}
