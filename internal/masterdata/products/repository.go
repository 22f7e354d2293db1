package products

import (
	"context"
	"encoding/json"
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
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, code string, product Product) error
	UpdatePurchasePrice(ctx context.Context, code string, price decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectProduct = `SELECT p.id, p.code, p.name, p.type, COALESCE(p.product_group, ''),
	p.unit_weight, p.currency, p.purchase_price, p.base_price, p.attributes,
	u.id, u.name, COALESCE(u.base_uom, ''), u.amount_of_base_uom
FROM products p
JOIN units u ON u.name = p.unit_of_measure`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := selectProduct + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (p.name ILIKE $` + strconv.Itoa(argCount) + ` OR p.code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY p.code ASC`
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

	var result []Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, product)
	}
	return result, total, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (Product, error) {
	row := r.pool.QueryRow(ctx, selectProduct+` WHERE p.code=$1`, code)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("products: %q: %w", code, internalShared.ErrNotFound)
		}
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	attrs, err := json.Marshal(product.Attributes)
	if err != nil {
		return Product{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO products
	(code, name, type, product_group, unit_of_measure, unit_weight, currency, purchase_price, base_price, attributes, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING id`,
		product.Code, product.Name, product.Type, product.Group, product.UnitOfMeasure.Name,
		product.UnitWeight, product.Currency, product.PurchasePrice, product.BasePrice, attrs).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, code string, product Product) error {
	attrs, err := json.Marshal(product.Attributes)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name=$1, type=$2, product_group=NULLIF($3, ''), unit_of_measure=$4,
	unit_weight=$5, currency=$6, purchase_price=$7, base_price=$8, attributes=$9, updated_at=NOW()
WHERE code=$10`,
		product.Name, product.Type, product.Group, product.UnitOfMeasure.Name,
		product.UnitWeight, product.Currency, product.PurchasePrice, product.BasePrice, attrs, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: %q: %w", code, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) UpdatePurchasePrice(ctx context.Context, code string, price decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET purchase_price=$1, updated_at=NOW() WHERE code=$2`, price, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("products: %q: %w", code, internalShared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var attrs []byte
	var uomBase string
	var uomAmount decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Type, &p.Group,
		&p.UnitWeight, &p.Currency, &p.PurchasePrice, &p.BasePrice, &attrs,
		&p.UnitOfMeasure.ID, &p.UnitOfMeasure.Name, &uomBase, &uomAmount); err != nil {
		return Product{}, err
	}
	p.UnitOfMeasure.BaseUoM = uomBase
	if uomAmount.Valid {
		p.UnitOfMeasure.AmountOfBaseUoM = uomAmount.Decimal
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &p.Attributes)
	}
	return p, nil
}
