package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	GetOrderForUpdate(ctx context.Context, code string) (PurchaseOrder, error)
	UpdateOrderHeader(ctx context.Context, po PurchaseOrder) error
	InsertLine(ctx context.Context, line Line) error
	DeleteLinesByProduct(ctx context.Context, orderID int64, product string) (int64, error)
	DeleteLines(ctx context.Context, orderID int64) error
	UpdateState(ctx context.Context, code string, state State) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const selectOrder = `SELECT id, code, supplier_code, currency, state, COALESCE(metadata, '{}'), created_at
FROM purchase_orders`

// GetByCode returns the order with its lines.
func (r *Repository) GetByCode(ctx context.Context, code string) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("orders: %q: %w", code, internalShared.ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	lines, err := queryLines(ctx, r.pool, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines
	return po, nil
}

// List returns orders matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters shared.ListFilters) ([]PurchaseOrder, int, error) {
	query := selectOrder + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR supplier_code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM purchase_orders WHERE 1=1`
	countArgs := []interface{}{}
	if filters.Search != "" {
		countArgs = append(countArgs, "%"+filters.Search+"%")
		countQuery += ` AND (code ILIKE $1 OR supplier_code ILIKE $1)`
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

	var result []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, po)
	}
	return result, total, rows.Err()
}

// CountCreatedBetween counts orders created in [from, to). The code
// generator derives the monthly sequence number from it.
func (r *Repository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM purchase_orders WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&count)
	return count, err
}

func (tx *txRepo) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	meta, err := json.Marshal(po.Metadata)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders (code, supplier_code, currency, state, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
		po.Code, po.Supplier, po.Currency, po.State, meta).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return 0, fmt.Errorf("orders: code %q already taken: %w", po.Code, internalShared.ErrConflict)
	}
	return id, err
}

func (tx *txRepo) GetOrderForUpdate(ctx context.Context, code string) (PurchaseOrder, error) {
	po, err := scanOrder(tx.tx.QueryRow(ctx, selectOrder+` WHERE code=$1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("orders: %q: %w", code, internalShared.ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	lines, err := queryLines(ctx, tx.tx, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines
	return po, nil
}

func (tx *txRepo) UpdateOrderHeader(ctx context.Context, po PurchaseOrder) error {
	meta, err := json.Marshal(po.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.tx.Exec(ctx, `UPDATE purchase_orders SET supplier_code=$1, currency=$2, metadata=$3, updated_at=NOW() WHERE id=$4`,
		po.Supplier, po.Currency, meta, po.ID)
	return err
}

func (tx *txRepo) InsertLine(ctx context.Context, line Line) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO purchase_order_lines (order_id, product_code, amount, unit_price)
VALUES ($1,$2,$3,$4)`, line.OrderID, line.Product, line.Amount, line.UnitPrice)
	return err
}

func (tx *txRepo) DeleteLinesByProduct(ctx context.Context, orderID int64, product string) (int64, error) {
	tag, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1 AND product_code=$2`, orderID, product)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (tx *txRepo) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, orderID)
	return err
}

func (tx *txRepo) UpdateState(ctx context.Context, code string, state State) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET state=$1, updated_at=NOW() WHERE code=$2`, state, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: %q: %w", code, internalShared.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var po PurchaseOrder
	var meta []byte
	if err := row.Scan(&po.ID, &po.Code, &po.Supplier, &po.Currency, &po.State, &meta, &po.CreatedAt); err != nil {
		return PurchaseOrder{}, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &po.Metadata)
	}
	return po, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_code, amount, unit_price
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.Product, &line.Amount, &line.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
