package creditnotes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

type memoryNoteRepo struct {
	notes            []CreditNote
	createdThisMonth int
}

func (r *memoryNoteRepo) GetByCode(ctx context.Context, code string) (CreditNote, error) {
	for _, note := range r.notes {
		if note.Code == code {
			return note, nil
		}
	}
	return CreditNote{}, fmt.Errorf("creditnotes: %q: %w", code, internalShared.ErrNotFound)
}

func (r *memoryNoteRepo) GetByOrderCode(ctx context.Context, orderCode string) (CreditNote, error) {
	for _, note := range r.notes {
		if note.OrderCode == orderCode {
			return note, nil
		}
	}
	return CreditNote{}, fmt.Errorf("creditnotes: order %q: %w", orderCode, internalShared.ErrNotFound)
}

func (r *memoryNoteRepo) List(ctx context.Context, filters shared.ListFilters) ([]CreditNote, int, error) {
	return r.notes, len(r.notes), nil
}

func (r *memoryNoteRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.createdThisMonth, nil
}

func TestNextCodeResetsMonthly(t *testing.T) {
	repo := &memoryNoteRepo{createdThisMonth: 7}
	svc := NewService(repo)
	svc.now = func() time.Time { return time.Date(2025, 11, 20, 8, 0, 0, 0, time.UTC) }

	code, err := svc.NextCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CN2025110008", code)

	repo.createdThisMonth = 0
	svc.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }
	code, err = svc.NextCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CN2025120001", code)
}

func TestGetByOrder(t *testing.T) {
	repo := &memoryNoteRepo{notes: []CreditNote{
		{ID: 1, Code: "CN2025110001", OrderCode: "OV2025110003", State: StateDraft},
	}}
	svc := NewService(repo)

	note, err := svc.GetByOrder(context.Background(), "OV2025110003")
	require.NoError(t, err)
	require.Equal(t, "CN2025110001", note.Code)

	_, err = svc.GetByOrder(context.Background(), "OV2025110099")
	require.ErrorIs(t, err, internalShared.ErrNotFound)
}
