package packaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]PackageType, int, error)
	GetByName(ctx context.Context, name string) (PackageType, error)
	Create(ctx context.Context, pkg PackageType) (PackageType, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectPackage = `SELECT p.id, p.name, COALESCE(p.description, ''), p.amount,
	u.id, u.name, COALESCE(u.base_uom, ''), u.amount_of_base_uom
FROM package_types p
LEFT JOIN units u ON u.name = p.unit_of_measure`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]PackageType, int, error) {
	query := selectPackage + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND p.name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM package_types WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND name ILIKE $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY p.name ASC`
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

	var result []PackageType
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, pkg)
	}
	return result, total, rows.Err()
}

func (r *repository) GetByName(ctx context.Context, name string) (PackageType, error) {
	row := r.pool.QueryRow(ctx, selectPackage+` WHERE p.name=$1`, name)
	pkg, err := scanPackage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackageType{}, fmt.Errorf("packaging: %q: %w", name, internalShared.ErrNotFound)
		}
		return PackageType{}, err
	}
	return pkg, nil
}

func (r *repository) Create(ctx context.Context, pkg PackageType) (PackageType, error) {
	var uomName *string
	if pkg.UnitOfMeasure != nil {
		uomName = &pkg.UnitOfMeasure.Name
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO package_types (name, description, amount, unit_of_measure, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, NOW(), NOW()) RETURNING id`,
		pkg.Name, pkg.Description, pkg.Amount, uomName).Scan(&pkg.ID)
	if err != nil {
		return PackageType{}, err
	}
	return pkg, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM package_types WHERE id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (PackageType, error) {
	var pkg PackageType
	var uomID *int64
	var uomName, uomBase *string
	var uomAmount decimal.NullDecimal
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Description, &pkg.Amount, &uomID, &uomName, &uomBase, &uomAmount); err != nil {
		return PackageType{}, err
	}
	if uomID != nil && uomName != nil {
		uom := units.Unit{ID: *uomID, Name: *uomName}
		if uomBase != nil {
			uom.BaseUoM = *uomBase
		}
		if uomAmount.Valid {
			uom.AmountOfBaseUoM = uomAmount.Decimal
		}
		pkg.UnitOfMeasure = &uom
	}
	return pkg, nil
}
