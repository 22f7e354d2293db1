package receiving

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/creditnotes"
	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/orders"
	"github.com/stockyard-wms/stockyard/internal/platform/db"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// Repository provides PostgreSQL backed persistence for receiving orders
// and the warehouse item ledger. Cross-aggregate writes (purchase order
// state, credit notes, product prices) live on the same TxRepository so
// every cascade commits in a single transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	// Receiving order.
	CreateOrder(ctx context.Context, order ReceivingOrder) (int64, error)
	GetOrderForUpdate(ctx context.Context, code string) (ReceivingOrder, error)
	OrderExistsForPurchase(ctx context.Context, orderCode string) (bool, error)
	UpdateOrderState(ctx context.Context, code string, state State) error

	// Warehouse item ledger.
	GetItemForUpdate(ctx context.Context, orderCode, itemCode string) (WarehouseItem, error)
	GetItemForUpdateByCode(ctx context.Context, itemCode string) (WarehouseItem, error)
	CreateItem(ctx context.Context, item WarehouseItem) (int64, error)
	UpdateItemAmount(ctx context.Context, id int64, amount decimal.Decimal) error
	UpdateItemLocation(ctx context.Context, id int64, location string) error
	DeleteItem(ctx context.Context, id int64) error
	FindUnpackagedSibling(ctx context.Context, orderCode, product, location string, excludeID int64) (WarehouseItem, bool, error)
	FindMergeTarget(ctx context.Context, itemCode, location string, excludeID int64) (WarehouseItem, bool, error)
	CountStagedItems(ctx context.Context, orderCode string) (int, error)
	InsertMovement(ctx context.Context, movement Movement) error
	SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error)

	// Purchase order cascade.
	UpdatePurchaseOrderState(ctx context.Context, code string, state orders.State) error
	GetPurchaseOrderLine(ctx context.Context, orderCode, product string) (orders.Line, error)

	// Credit note cascade.
	GetCreditNoteForUpdate(ctx context.Context, orderCode string) (creditnotes.CreditNote, bool, error)
	CreateCreditNote(ctx context.Context, note creditnotes.CreditNote) (int64, error)
	UpsertCreditNoteLine(ctx context.Context, noteID int64, line creditnotes.Line) error
	UpdateCreditNoteState(ctx context.Context, noteID int64, state creditnotes.State) error

	// Product price cascade.
	GetProductPurchasePrice(ctx context.Context, product string) (decimal.Decimal, error)
	UpdateProductPurchasePrice(ctx context.Context, product string, price decimal.Decimal) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. The rollback
// is deferred inside db.WithTx so a panicking callback cannot leak the
// pooled connection.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const selectReceivingOrder = `SELECT id, code, order_code, state, created_at FROM receiving_orders`

const selectItem = `SELECT id, code, product_code, tracking_level, amount, location_code,
	COALESCE(order_code, ''), COALESCE(package_type, ''), COALESCE(batch, '')
FROM warehouse_items`

// GetOrder returns the order with its items.
func (r *Repository) GetOrder(ctx context.Context, code string) (ReceivingOrder, error) {
	order, err := scanReceivingOrder(r.pool.QueryRow(ctx, selectReceivingOrder+` WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceivingOrder{}, fmt.Errorf("receiving: %q: %w", code, internalShared.ErrNotFound)
		}
		return ReceivingOrder{}, err
	}
	order.Items, err = queryItems(ctx, r.pool, order.Code)
	return order, err
}

// GetOrderByPurchaseOrder returns the order owned by the given purchase
// order.
func (r *Repository) GetOrderByPurchaseOrder(ctx context.Context, orderCode string) (ReceivingOrder, error) {
	order, err := scanReceivingOrder(r.pool.QueryRow(ctx, selectReceivingOrder+` WHERE order_code=$1`, orderCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceivingOrder{}, fmt.Errorf("receiving: purchase order %q: %w", orderCode, internalShared.ErrNotFound)
		}
		return ReceivingOrder{}, err
	}
	order.Items, err = queryItems(ctx, r.pool, order.Code)
	return order, err
}

// GetItem returns one ledger item by its code.
func (r *Repository) GetItem(ctx context.Context, itemCode string) (WarehouseItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, selectItem+` WHERE code=$1`, itemCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseItem{}, fmt.Errorf("receiving: item %q: %w", itemCode, internalShared.ErrNotFound)
		}
		return WarehouseItem{}, err
	}
	return item, nil
}

// List returns orders matching the filters, newest first.
func (r *Repository) List(ctx context.Context, filters shared.ListFilters) ([]ReceivingOrder, int, error) {
	query := selectReceivingOrder + ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR order_code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM receiving_orders WHERE 1=1`
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

	var result []ReceivingOrder
	for rows.Next() {
		order, err := scanReceivingOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, order)
	}
	return result, total, rows.Err()
}

// CountCreatedBetween counts orders created in [from, to).
func (r *Repository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM receiving_orders WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&count)
	return count, err
}

// SumAmountByProduct totals live item amounts for one product across the
// whole warehouse.
func (r *Repository) SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM warehouse_items WHERE product_code=$1`, product).Scan(&total)
	return total, err
}

// ListMovements returns the relocation trail of one receiving order.
func (r *Repository) ListMovements(ctx context.Context, orderCode string) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.item_code, m.order_code, m.product_code, m.amount, m.from_location, m.to_location, m.moved_at
FROM warehouse_movements m WHERE m.order_code=$1 ORDER BY m.moved_at ASC, m.id ASC`, orderCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemCode, &m.OrderCode, &m.Product, &m.Amount, &m.FromLocation, &m.ToLocation, &m.MovedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (tx *txRepo) CreateOrder(ctx context.Context, order ReceivingOrder) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO receiving_orders (code, order_code, state, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`, order.Code, order.OrderCode, order.State).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("receiving: %q or its purchase order already taken: %w", order.Code, internalShared.ErrConflict)
	}
	return id, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (tx *txRepo) GetOrderForUpdate(ctx context.Context, code string) (ReceivingOrder, error) {
	order, err := scanReceivingOrder(tx.tx.QueryRow(ctx, selectReceivingOrder+` WHERE code=$1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceivingOrder{}, fmt.Errorf("receiving: %q: %w", code, internalShared.ErrNotFound)
		}
		return ReceivingOrder{}, err
	}
	order.Items, err = queryItems(ctx, tx.tx, order.Code)
	return order, err
}

func (tx *txRepo) OrderExistsForPurchase(ctx context.Context, orderCode string) (bool, error) {
	var exists bool
	err := tx.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM receiving_orders WHERE order_code=$1)`, orderCode).Scan(&exists)
	return exists, err
}

func (tx *txRepo) UpdateOrderState(ctx context.Context, code string, state State) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE receiving_orders SET state=$1, updated_at=NOW() WHERE code=$2`, state, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receiving: %q: %w", code, internalShared.ErrNotFound)
	}
	return nil
}

func (tx *txRepo) GetItemForUpdate(ctx context.Context, orderCode, itemCode string) (WarehouseItem, error) {
	item, err := scanItem(tx.tx.QueryRow(ctx, selectItem+` WHERE order_code=$1 AND code=$2 FOR UPDATE`, orderCode, itemCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseItem{}, fmt.Errorf("receiving: item %q: %w", itemCode, internalShared.ErrNotFound)
		}
		return WarehouseItem{}, err
	}
	return item, nil
}

func (tx *txRepo) GetItemForUpdateByCode(ctx context.Context, itemCode string) (WarehouseItem, error) {
	item, err := scanItem(tx.tx.QueryRow(ctx, selectItem+` WHERE code=$1 FOR UPDATE`, itemCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseItem{}, fmt.Errorf("receiving: item %q: %w", itemCode, internalShared.ErrNotFound)
		}
		return WarehouseItem{}, err
	}
	return item, nil
}

func (tx *txRepo) CreateItem(ctx context.Context, item WarehouseItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO warehouse_items
	(code, product_code, tracking_level, amount, location_code, order_code, package_type, batch, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),NOW(),NOW()) RETURNING id`,
		item.Code, item.Product, item.TrackingLevel, item.Amount, item.Location,
		item.OrderCode, item.PackageType, item.Batch).Scan(&id)
	return id, err
}

func (tx *txRepo) UpdateItemAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx, `UPDATE warehouse_items SET amount=$1, updated_at=NOW() WHERE id=$2`, amount, id)
	return err
}

func (tx *txRepo) UpdateItemLocation(ctx context.Context, id int64, location string) error {
	_, err := tx.tx.Exec(ctx, `UPDATE warehouse_items SET location_code=$1, updated_at=NOW() WHERE id=$2`, location, id)
	return err
}

func (tx *txRepo) DeleteItem(ctx context.Context, id int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM warehouse_items WHERE id=$1`, id)
	return err
}

// FindUnpackagedSibling locates the fungible, package-less item of the
// same product at the same location on the same order, the dissolve
// merge target. Quantity must never migrate to another location here.
func (tx *txRepo) FindUnpackagedSibling(ctx context.Context, orderCode, product, location string, excludeID int64) (WarehouseItem, bool, error) {
	item, err := scanItem(tx.tx.QueryRow(ctx, selectItem+`
WHERE order_code=$1 AND product_code=$2 AND location_code=$3 AND package_type IS NULL AND tracking_level=$4 AND id <> $5
ORDER BY id LIMIT 1 FOR UPDATE`, orderCode, product, location, TrackingFungible, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseItem{}, false, nil
		}
		return WarehouseItem{}, false, err
	}
	return item, true, nil
}

// FindMergeTarget locates an item at the destination carrying the same
// code as the moved item.
func (tx *txRepo) FindMergeTarget(ctx context.Context, itemCode, location string, excludeID int64) (WarehouseItem, bool, error) {
	item, err := scanItem(tx.tx.QueryRow(ctx, selectItem+`
WHERE code=$1 AND location_code=$2 AND id <> $3 LIMIT 1 FOR UPDATE`, itemCode, location, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseItem{}, false, nil
		}
		return WarehouseItem{}, false, err
	}
	return item, true, nil
}

// CountStagedItems counts items of the order still resident at a putaway
// (staging) location.
func (tx *txRepo) CountStagedItems(ctx context.Context, orderCode string) (int, error) {
	var count int
	err := tx.tx.QueryRow(ctx, `SELECT COUNT(*) FROM warehouse_items i
JOIN warehouse_locations l ON l.code = i.location_code
WHERE i.order_code=$1 AND l.is_putaway`, orderCode).Scan(&count)
	return count, err
}

func (tx *txRepo) InsertMovement(ctx context.Context, movement Movement) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO warehouse_movements
	(item_code, order_code, product_code, amount, from_location, to_location, moved_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		movement.ItemCode, movement.OrderCode, movement.Product, movement.Amount,
		movement.FromLocation, movement.ToLocation, movement.MovedAt)
	return err
}

func (tx *txRepo) SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM warehouse_items WHERE product_code=$1`, product).Scan(&total)
	return total, err
}

func (tx *txRepo) UpdatePurchaseOrderState(ctx context.Context, code string, state orders.State) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE purchase_orders SET state=$1, updated_at=NOW() WHERE code=$2`, state, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receiving: purchase order %q: %w", code, internalShared.ErrNotFound)
	}
	return nil
}

func (tx *txRepo) GetPurchaseOrderLine(ctx context.Context, orderCode, product string) (orders.Line, error) {
	var line orders.Line
	err := tx.tx.QueryRow(ctx, `SELECT l.id, l.order_id, l.product_code, l.amount, l.unit_price
FROM purchase_order_lines l
JOIN purchase_orders o ON o.id = l.order_id
WHERE o.code=$1 AND l.product_code=$2 ORDER BY l.id LIMIT 1`, orderCode, product).
		Scan(&line.ID, &line.OrderID, &line.Product, &line.Amount, &line.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.Line{}, fmt.Errorf("receiving: order %q has no line for %q: %w", orderCode, product, internalShared.ErrNotFound)
		}
		return orders.Line{}, err
	}
	return line, nil
}

func (tx *txRepo) GetCreditNoteForUpdate(ctx context.Context, orderCode string) (creditnotes.CreditNote, bool, error) {
	var note creditnotes.CreditNote
	err := tx.tx.QueryRow(ctx, `SELECT id, code, order_code, state, created_at FROM credit_notes WHERE order_code=$1 FOR UPDATE`, orderCode).
		Scan(&note.ID, &note.Code, &note.OrderCode, &note.State, &note.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return creditnotes.CreditNote{}, false, nil
		}
		return creditnotes.CreditNote{}, false, err
	}
	return note, true, nil
}

func (tx *txRepo) CreateCreditNote(ctx context.Context, note creditnotes.CreditNote) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO credit_notes (code, order_code, state, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id`, note.Code, note.OrderCode, note.State).Scan(&id)
	return id, err
}

// UpsertCreditNoteLine merges amounts into an existing line of the same
// product or inserts a new one.
func (tx *txRepo) UpsertCreditNoteLine(ctx context.Context, noteID int64, line creditnotes.Line) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE credit_note_lines SET amount = amount + $1
WHERE note_id=$2 AND product_code=$3`, line.Amount, noteID, line.Product)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = tx.tx.Exec(ctx, `INSERT INTO credit_note_lines (note_id, product_code, amount, unit_price)
VALUES ($1,$2,$3,$4)`, noteID, line.Product, line.Amount, line.UnitPrice)
	return err
}

func (tx *txRepo) UpdateCreditNoteState(ctx context.Context, noteID int64, state creditnotes.State) error {
	_, err := tx.tx.Exec(ctx, `UPDATE credit_notes SET state=$1, updated_at=NOW() WHERE id=$2`, state, noteID)
	return err
}

func (tx *txRepo) GetProductPurchasePrice(ctx context.Context, product string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := tx.tx.QueryRow(ctx, `SELECT purchase_price FROM products WHERE code=$1`, product).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, fmt.Errorf("receiving: product %q: %w", product, internalShared.ErrNotFound)
		}
		return decimal.Decimal{}, err
	}
	return price, nil
}

func (tx *txRepo) UpdateProductPurchasePrice(ctx context.Context, product string, price decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx, `UPDATE products SET purchase_price=$1, updated_at=NOW() WHERE code=$2`, price, product)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceivingOrder(row rowScanner) (ReceivingOrder, error) {
	var order ReceivingOrder
	if err := row.Scan(&order.ID, &order.Code, &order.OrderCode, &order.State, &order.CreatedAt); err != nil {
		return ReceivingOrder{}, err
	}
	return order, nil
}

func scanItem(row rowScanner) (WarehouseItem, error) {
	var item WarehouseItem
	if err := row.Scan(&item.ID, &item.Code, &item.Product, &item.TrackingLevel, &item.Amount,
		&item.Location, &item.OrderCode, &item.PackageType, &item.Batch); err != nil {
		return WarehouseItem{}, err
	}
	return item, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, orderCode string) ([]WarehouseItem, error) {
	rows, err := q.Query(ctx, selectItem+` WHERE order_code=$1 ORDER BY id`, orderCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WarehouseItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
