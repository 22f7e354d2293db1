package creditnotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// Repository provides PostgreSQL backed read access. All writes to credit
// notes happen inside the receiving transaction so carve-outs and
// lifecycle cascades commit atomically with the item ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectNote = `SELECT id, code, order_code, state, created_at FROM credit_notes`

// GetByCode returns the note with its lines.
func (r *Repository) GetByCode(ctx context.Context, code string) (CreditNote, error) {
	note, err := scanNote(r.pool.QueryRow(ctx, selectNote+` WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditNote{}, fmt.Errorf("creditnotes: %q: %w", code, internalShared.ErrNotFound)
		}
		return CreditNote{}, err
	}
	note.Lines, err = r.queryLines(ctx, note.ID)
	return note, err
}

// GetByOrderCode returns the note owned by the given purchase order.
func (r *Repository) GetByOrderCode(ctx context.Context, orderCode string) (CreditNote, error) {
	note, err := scanNote(r.pool.QueryRow(ctx, selectNote+` WHERE order_code=$1`, orderCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditNote{}, fmt.Errorf("creditnotes: order %q: %w", orderCode, internalShared.ErrNotFound)
		}
		return CreditNote{}, err
	}
	note.Lines, err = r.queryLines(ctx, note.ID)
	return note, err
}

// List returns notes matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters shared.ListFilters) ([]CreditNote, int, error) {
	query := selectNote + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR order_code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM credit_notes WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND (code ILIKE $1 OR order_code ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []CreditNote
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, note)
	}
	return result, total, rows.Err()
}

// CountCreatedBetween counts notes created in [from, to).
func (r *Repository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM credit_notes WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&count)
	return count, err
}

func (r *Repository) queryLines(ctx context.Context, noteID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, note_id, product_code, amount, unit_price
FROM credit_note_lines WHERE note_id=$1 ORDER BY id`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.NoteID, &line.Product, &line.Amount, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (CreditNote, error) {
	var note CreditNote
	if err := row.Scan(&note.ID, &note.Code, &note.OrderCode, &note.State, &note.CreatedAt); err != nil {
		return CreditNote{}, err
	}
	return note, nil
}
