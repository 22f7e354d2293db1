package warehouses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

type Repository interface {
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetLocation(ctx context.Context, code string) (Location, error)
	ListLocations(ctx context.Context, warehouseName string) ([]Location, error)
	CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	CreateLocation(ctx context.Context, location Location) (Location, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, '') FROM warehouses ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Description); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *repository) GetLocation(ctx context.Context, code string) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT l.id, l.code, w.name, l.is_putaway
FROM warehouse_locations l
JOIN warehouses w ON w.id = l.warehouse_id
WHERE l.code=$1`, code).Scan(&loc.ID, &loc.Code, &loc.Warehouse, &loc.IsPutaway)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, fmt.Errorf("warehouses: location %q: %w", code, internalShared.ErrNotFound)
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *repository) ListLocations(ctx context.Context, warehouseName string) ([]Location, error) {
	query := `SELECT l.id, l.code, w.name, l.is_putaway
FROM warehouse_locations l
JOIN warehouses w ON w.id = l.warehouse_id`
	args := []interface{}{}
	if warehouseName != "" {
		query += ` WHERE w.name=$1`
		args = append(args, warehouseName)
	}
	query += ` ORDER BY l.code ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Code, &loc.Warehouse, &loc.IsPutaway); err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}

func (r *repository) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (name, description, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), NOW(), NOW()) RETURNING id`, warehouse.Name, warehouse.Description).Scan(&warehouse.ID)
	if err != nil {
		return Warehouse{}, err
	}
	return warehouse, nil
}

func (r *repository) CreateLocation(ctx context.Context, location Location) (Location, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouse_locations (code, warehouse_id, is_putaway, created_at, updated_at)
SELECT $1, w.id, $2, NOW(), NOW() FROM warehouses w WHERE w.name=$3 RETURNING id`,
		location.Code, location.IsPutaway, location.Warehouse).Scan(&location.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, fmt.Errorf("warehouses: %q: %w", location.Warehouse, internalShared.ErrNotFound)
		}
		return Location{}, err
	}
	return location, nil
}
