package suppliers

import (
	"context"
	"errors"
	"strings"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Supplier, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if strings.TrimSpace(supplier.Code) == "" {
		return Supplier{}, errors.New("supplier code is required")
	}
	if strings.TrimSpace(supplier.Name) == "" {
		return Supplier{}, errors.New("supplier name is required")
	}
	return s.repo.Create(ctx, supplier)
}
