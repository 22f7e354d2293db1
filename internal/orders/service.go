package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByCode(ctx context.Context, code string) (PurchaseOrder, error)
	List(ctx context.Context, filters shared.ListFilters) ([]PurchaseOrder, int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// SuppliersPort exposes the supplier lookup the service requires.
type SuppliersPort interface {
	SupplierExists(ctx context.Context, code string) (bool, error)
}

// ProductsPort exposes the product lookup used when adding lines.
type ProductsPort interface {
	ProductExists(ctx context.Context, code string) (bool, error)
}

// AuditPort records domain events after commit.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service drives the purchase order lifecycle.
type Service struct {
	repo      RepositoryPort
	suppliers SuppliersPort
	products  ProductsPort
	audit     AuditPort
	now       func() time.Time
}

// NewService constructs the order service.
func NewService(repo RepositoryPort, suppliers SuppliersPort, products ProductsPort, audit AuditPort) *Service {
	return &Service{repo: repo, suppliers: suppliers, products: products, audit: audit, now: time.Now}
}

// UpsertInput describes a draft create-or-update payload. An empty Code
// creates a new order; a non-empty Code updates the existing draft.
type UpsertInput struct {
	Code     string
	Supplier string
	Currency string
	Metadata map[string]any
	Lines    []LineInput
}

// LineInput describes one ordered position.
type LineInput struct {
	Product   string
	Amount    decimal.Decimal
	UnitPrice decimal.Decimal
}

// UpdateOrCreate upserts a draft order. New orders get a generated code
// immediately, while still in DRAFT.
func (s *Service) UpdateOrCreate(ctx context.Context, input UpsertInput) (PurchaseOrder, error) {
	if input.Supplier != "" {
		ok, err := s.suppliers.SupplierExists(ctx, input.Supplier)
		if err != nil {
			return PurchaseOrder{}, err
		}
		if !ok {
			return PurchaseOrder{}, fmt.Errorf("orders: supplier %q: %w", input.Supplier, internalShared.ErrNotFound)
		}
	}
	for _, line := range input.Lines {
		if err := s.validateLine(ctx, line); err != nil {
			return PurchaseOrder{}, err
		}
	}

	if input.Code == "" {
		return s.create(ctx, input)
	}
	return s.update(ctx, input)
}

func (s *Service) create(ctx context.Context, input UpsertInput) (PurchaseOrder, error) {
	code, err := s.NextCode(ctx)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po := PurchaseOrder{
		Code:     code,
		Supplier: input.Supplier,
		Currency: input.Currency,
		State:    StateDraft,
		Metadata: input.Metadata,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		for _, line := range input.Lines {
			l := Line{OrderID: id, Product: line.Product, Amount: line.Amount, UnitPrice: line.UnitPrice}
			if err := tx.InsertLine(ctx, l); err != nil {
				return err
			}
			po.Lines = append(po.Lines, l)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "ORDER_CREATE", po.Code, map[string]any{"supplier": po.Supplier, "lines": len(po.Lines)})
	return po, nil
}

func (s *Service) update(ctx context.Context, input UpsertInput) (PurchaseOrder, error) {
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, input.Code)
		if err != nil {
			return err
		}
		if po.State != StateDraft {
			return fmt.Errorf("orders: %q in state %s: %w", po.Code, po.State, internalShared.ErrNotEditable)
		}
		po.Supplier = input.Supplier
		po.Currency = input.Currency
		po.Metadata = input.Metadata
		if err := tx.UpdateOrderHeader(ctx, po); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, po.ID); err != nil {
			return err
		}
		po.Lines = nil
		for _, line := range input.Lines {
			l := Line{OrderID: po.ID, Product: line.Product, Amount: line.Amount, UnitPrice: line.UnitPrice}
			if err := tx.InsertLine(ctx, l); err != nil {
				return err
			}
			po.Lines = append(po.Lines, l)
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "ORDER_UPDATE", updated.Code, map[string]any{"lines": len(updated.Lines)})
	return updated, nil
}

// AddItem appends a line to a draft order.
func (s *Service) AddItem(ctx context.Context, code string, input LineInput) (PurchaseOrder, error) {
	if err := s.validateLine(ctx, input); err != nil {
		return PurchaseOrder{}, err
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if po.State != StateDraft {
			return fmt.Errorf("orders: %q in state %s: %w", po.Code, po.State, internalShared.ErrNotEditable)
		}
		line := Line{OrderID: po.ID, Product: input.Product, Amount: input.Amount, UnitPrice: input.UnitPrice}
		if err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
		po.Lines = append(po.Lines, line)
		updated = po
		return nil
	})
	return updated, err
}

// RemoveItem deletes every line of the given product from a draft order.
func (s *Service) RemoveItem(ctx context.Context, code string, product string) (PurchaseOrder, error) {
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if po.State != StateDraft {
			return fmt.Errorf("orders: %q in state %s: %w", po.Code, po.State, internalShared.ErrNotEditable)
		}
		removed, err := tx.DeleteLinesByProduct(ctx, po.ID, product)
		if err != nil {
			return err
		}
		if removed == 0 {
			return fmt.Errorf("orders: %q has no line for %q: %w", code, product, internalShared.ErrNotFound)
		}
		kept := po.Lines[:0]
		for _, line := range po.Lines {
			if line.Product != product {
				kept = append(kept, line)
			}
		}
		po.Lines = kept
		updated = po
		return nil
	})
	return updated, err
}

// Get returns the order with its lines.
func (s *Service) Get(ctx context.Context, code string) (PurchaseOrder, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns orders matching the filters.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]PurchaseOrder, int, error) {
	return s.repo.List(ctx, filters)
}

// Transition moves the order to next, validated against the transition
// table. Lifecycle cascades driven by receiving bypass this and write
// state inside their own transaction.
func (s *Service) Transition(ctx context.Context, code string, next State) error {
	po, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !po.State.CanTransitionTo(next) {
		return fmt.Errorf("orders: %q cannot move %s -> %s: %w", code, po.State, next, internalShared.ErrConflict)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateState(ctx, code, next)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "ORDER_TRANSITION", code, map[string]any{"from": string(po.State), "to": string(next)})
	return nil
}

// NextCode produces the next order code: OV{yyyy}{mm}{seq:04d} with the
// sequence counted from orders created this calendar month.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountCreatedBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("OV%d%02d%04d", now.Year(), int(now.Month()), count+1), nil
}

func (s *Service) validateLine(ctx context.Context, line LineInput) error {
	if line.Product == "" || !line.Amount.IsPositive() {
		return fmt.Errorf("orders: line needs a product and a positive amount")
	}
	ok, err := s.products.ProductExists(ctx, line.Product)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("orders: product %q: %w", line.Product, internalShared.ErrNotFound)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{Action: action, Entity: "orders", EntityID: code, Meta: meta})
}
