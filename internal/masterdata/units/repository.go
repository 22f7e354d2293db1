package units

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error)
	GetByName(ctx context.Context, name string) (Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
	Update(ctx context.Context, id int64, unit Unit) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Unit, int, error) {
	query := `SELECT id, name, COALESCE(base_uom, ''), amount_of_base_uom FROM units WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM units WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND name ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
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

	var result []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

func (r *repository) GetByName(ctx context.Context, name string) (Unit, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(base_uom, ''), amount_of_base_uom FROM units WHERE name=$1`, name)
	u, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, fmt.Errorf("units: %q: %w", name, internalShared.ErrNotFound)
		}
		return Unit{}, err
	}
	return u, nil
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO units (name, base_uom, amount_of_base_uom, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, NOW(), NOW()) RETURNING id`,
		unit.Name, unit.BaseUoM, baseAmount(unit)).Scan(&unit.ID)
	if err != nil {
		return Unit{}, err
	}
	return unit, nil
}

func (r *repository) Update(ctx context.Context, id int64, unit Unit) error {
	_, err := r.pool.Exec(ctx, `UPDATE units SET name=$1, base_uom=NULLIF($2, ''), amount_of_base_uom=$3, updated_at=NOW() WHERE id=$4`,
		unit.Name, unit.BaseUoM, baseAmount(unit), id)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM units WHERE id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (Unit, error) {
	var u Unit
	var amount decimal.NullDecimal
	if err := row.Scan(&u.ID, &u.Name, &u.BaseUoM, &amount); err != nil {
		return Unit{}, err
	}
	if amount.Valid {
		u.AmountOfBaseUoM = amount.Decimal
	}
	return u, nil
}

func baseAmount(u Unit) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: u.AmountOfBaseUoM, Valid: u.HasBase()}
}
