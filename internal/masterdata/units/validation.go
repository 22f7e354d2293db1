package units

import (
	"errors"
	"strings"
)

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("unit name is required")
	}
	if u.HasBase() && !u.AmountOfBaseUoM.IsPositive() {
		return errors.New("derived unit requires a positive amount of base units")
	}
	if u.BaseUoM == u.Name {
		return errors.New("unit cannot derive from itself")
	}
	return nil
}
