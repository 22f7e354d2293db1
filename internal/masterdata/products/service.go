package products

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Product, error) {
	if code == "" {
		return Product{}, errors.New("product code required")
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, code string, product Product) error {
	if code == "" {
		return errors.New("product code required")
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, code, product)
}

// UpdatePurchasePrice overwrites the moving-average purchase price.
func (s *Service) UpdatePurchasePrice(ctx context.Context, code string, price decimal.Decimal) error {
	if code == "" {
		return errors.New("product code required")
	}
	if price.IsNegative() {
		return errors.New("purchase price cannot be negative")
	}
	return s.repo.UpdatePurchasePrice(ctx, code, price)
}
