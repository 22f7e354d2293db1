package warehouses

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) GetLocation(ctx context.Context, code string) (Location, error) {
	if code == "" {
		return Location{}, errors.New("location code required")
	}
	return s.repo.GetLocation(ctx, code)
}

func (s *Service) ListLocations(ctx context.Context, warehouseName string) ([]Location, error) {
	return s.repo.ListLocations(ctx, warehouseName)
}

func (s *Service) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if strings.TrimSpace(warehouse.Name) == "" {
		return Warehouse{}, errors.New("warehouse name is required")
	}
	return s.repo.CreateWarehouse(ctx, warehouse)
}

func (s *Service) CreateLocation(ctx context.Context, location Location) (Location, error) {
	if strings.TrimSpace(location.Code) == "" {
		return Location{}, errors.New("location code is required")
	}
	if strings.TrimSpace(location.Warehouse) == "" {
		return Location{}, errors.New("location warehouse is required")
	}
	return s.repo.CreateLocation(ctx, location)
}
