package packaging

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]PackageType, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) GetByName(ctx context.Context, name string) (PackageType, error) {
	if name == "" {
		return PackageType{}, errors.New("package name required")
	}
	return s.repo.GetByName(ctx, name)
}

func (s *Service) Create(ctx context.Context, pkg PackageType) (PackageType, error) {
	if strings.TrimSpace(pkg.Name) == "" {
		return PackageType{}, errors.New("package name is required")
	}
	if pkg.Amount.IsNegative() {
		return PackageType{}, errors.New("package amount cannot be negative")
	}
	return s.repo.Create(ctx, pkg)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid package type ID")
	}
	return s.repo.Delete(ctx, id)
}
