package products

import (
	"errors"
	"strings"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return errors.New("product code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if p.UnitOfMeasure.Name == "" {
		return errors.New("product unit of measure is required")
	}
	if p.PurchasePrice.IsNegative() || p.BasePrice.IsNegative() {
		return errors.New("product prices cannot be negative")
	}
	return nil
}
