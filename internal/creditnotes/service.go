package creditnotes

import (
	"context"
	"fmt"
	"time"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	GetByCode(ctx context.Context, code string) (CreditNote, error)
	GetByOrderCode(ctx context.Context, orderCode string) (CreditNote, error)
	List(ctx context.Context, filters shared.ListFilters) ([]CreditNote, int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Service exposes read access and code generation. Mutations run inside
// the receiving transaction.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the credit note service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the note with its lines.
func (s *Service) Get(ctx context.Context, code string) (CreditNote, error) {
	return s.repo.GetByCode(ctx, code)
}

// GetByOrder returns the note owned by the given purchase order.
func (s *Service) GetByOrder(ctx context.Context, orderCode string) (CreditNote, error) {
	return s.repo.GetByOrderCode(ctx, orderCode)
}

// List returns notes matching the filters.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]CreditNote, int, error) {
	return s.repo.List(ctx, filters)
}

// NextCode produces the next note code: CN{yyyy}{mm}{seq:04d} with the
// sequence counted from notes created this calendar month.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountCreatedBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CN%d%02d%04d", now.Year(), int(now.Month()), count+1), nil
}
