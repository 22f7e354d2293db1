package receiving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/creditnotes"
	"github.com/stockyard-wms/stockyard/internal/masterdata/packaging"
	"github.com/stockyard-wms/stockyard/internal/masterdata/products"
	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/masterdata/warehouses"
	"github.com/stockyard-wms/stockyard/internal/orders"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, code string) (ReceivingOrder, error)
	GetOrderByPurchaseOrder(ctx context.Context, orderCode string) (ReceivingOrder, error)
	GetItem(ctx context.Context, itemCode string) (WarehouseItem, error)
	List(ctx context.Context, filters shared.ListFilters) ([]ReceivingOrder, int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error)
	ListMovements(ctx context.Context, orderCode string) ([]Movement, error)
}

// ProductsPort exposes the product lookup the orchestrator requires.
type ProductsPort interface {
	GetProduct(ctx context.Context, code string) (products.Product, error)
}

// LocationsPort exposes the location lookup.
type LocationsPort interface {
	GetLocation(ctx context.Context, code string) (warehouses.Location, error)
}

// OrdersPort exposes the purchase order lookup.
type OrdersPort interface {
	GetPurchaseOrder(ctx context.Context, code string) (orders.PurchaseOrder, error)
}

// PackagesPort exposes the package type lookup.
type PackagesPort interface {
	GetPackage(ctx context.Context, name string) (packaging.PackageType, error)
}

// CreditNotesPort supplies codes for lazily created credit notes.
type CreditNotesPort interface {
	NextCode(ctx context.Context) (string, error)
}

// AuditPort records domain events after commit.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service is the fulfillment orchestrator: it creates receiving orders
// from purchase orders, mutates the warehouse item ledger, and drives
// state transitions across all three lifecycles transactionally.
type Service struct {
	repo        RepositoryPort
	products    ProductsPort
	locations   LocationsPort
	orders      OrdersPort
	packages    PackagesPort
	creditNotes CreditNotesPort
	audit       AuditPort
	cache       *AvailabilityCache
	now         func() time.Time
}

// NewService constructs the orchestrator.
func NewService(repo RepositoryPort, products ProductsPort, locations LocationsPort, orderSvc OrdersPort, packages PackagesPort, creditNotes CreditNotesPort, audit AuditPort, cache *AvailabilityCache) *Service {
	return &Service{
		repo:        repo,
		products:    products,
		locations:   locations,
		orders:      orderSvc,
		packages:    packages,
		creditNotes: creditNotes,
		audit:       audit,
		cache:       cache,
		now:         time.Now,
	}
}

// Get returns the order with its items.
func (s *Service) Get(ctx context.Context, code string) (ReceivingOrder, error) {
	return s.repo.GetOrder(ctx, code)
}

// GetByPurchaseOrder returns the order owned by the given purchase order.
func (s *Service) GetByPurchaseOrder(ctx context.Context, orderCode string) (ReceivingOrder, error) {
	return s.repo.GetOrderByPurchaseOrder(ctx, orderCode)
}

// List returns orders matching the filters.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]ReceivingOrder, int, error) {
	return s.repo.List(ctx, filters)
}

// Movements returns the relocation trail of one order.
func (s *Service) Movements(ctx context.Context, orderCode string) ([]Movement, error) {
	return s.repo.ListMovements(ctx, orderCode)
}

// CreateFromPurchaseOrder converts a purchase order into a receiving
// order: one FUNGIBLE ledger item per order line at the staging location.
// The purchase order cascades to RECEIVING in the same transaction. A
// second call for the same purchase order returns Conflict.
func (s *Service) CreateFromPurchaseOrder(ctx context.Context, orderCode, stagingLocation string) (ReceivingOrder, error) {
	location, err := s.locations.GetLocation(ctx, stagingLocation)
	if err != nil {
		return ReceivingOrder{}, err
	}
	po, err := s.orders.GetPurchaseOrder(ctx, orderCode)
	if err != nil {
		return ReceivingOrder{}, err
	}
	code, err := s.nextCode(ctx)
	if err != nil {
		return ReceivingOrder{}, err
	}

	order := ReceivingOrder{Code: code, OrderCode: po.Code, State: StateDraft}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.OrderExistsForPurchase(ctx, po.Code)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("receiving: purchase order %q already has a receiving order: %w", po.Code, internalShared.ErrConflict)
		}
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for _, line := range po.Lines {
			item := WarehouseItem{
				Code:          uuid.NewString(),
				Product:       line.Product,
				TrackingLevel: TrackingFungible,
				Amount:        line.Amount,
				Location:      location.Code,
				OrderCode:     order.Code,
			}
			itemID, err := tx.CreateItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			order.Items = append(order.Items, item)
		}
		return tx.UpdatePurchaseOrderState(ctx, po.Code, orders.StateReceiving)
	})
	if err != nil {
		return ReceivingOrder{}, err
	}
	s.recordAudit(ctx, "RECEIVING_CREATE", order.Code, map[string]any{"purchase_order": po.Code, "items": len(order.Items)})
	s.invalidateOrderProducts(ctx, order)
	return order, nil
}

// AddOrRemoveItems deletes the given items and adds the given specs to a
// draft order.
func (s *Service) AddOrRemoveItems(ctx context.Context, orderCode string, toRemove []string, toAdd []ItemSpec) (ReceivingOrder, error) {
	for _, spec := range toAdd {
		if spec.Product == "" {
			return ReceivingOrder{}, fmt.Errorf("receiving: added item needs a product")
		}
		if _, err := s.products.GetProduct(ctx, spec.Product); err != nil {
			return ReceivingOrder{}, err
		}
		if err := s.validateSpec(ctx, spec, false); err != nil {
			return ReceivingOrder{}, err
		}
		if spec.Location == "" {
			return ReceivingOrder{}, fmt.Errorf("receiving: added item needs a location")
		}
	}

	touched := make([]string, 0, len(toRemove)+len(toAdd))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if !order.State.Editable() {
			return fmt.Errorf("receiving: %q in state %s: %w", order.Code, order.State, internalShared.ErrNotEditable)
		}
		for _, itemCode := range toRemove {
			item, err := tx.GetItemForUpdate(ctx, order.Code, itemCode)
			if err != nil {
				return err
			}
			if err := tx.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
			touched = append(touched, item.Product)
		}
		for _, spec := range toAdd {
			level := spec.TrackingLevel
			if level == "" {
				level = TrackingFungible
			}
			item := WarehouseItem{
				Code:          uuid.NewString(),
				Product:       spec.Product,
				TrackingLevel: level,
				Amount:        spec.Amount,
				Location:      spec.Location,
				OrderCode:     order.Code,
				PackageType:   spec.PackageType,
				Batch:         spec.Batch,
			}
			if _, err := tx.CreateItem(ctx, item); err != nil {
				return err
			}
			touched = append(touched, item.Product)
		}
		return nil
	})
	if err != nil {
		return ReceivingOrder{}, err
	}
	s.cache.Invalidate(ctx, touched...)
	s.recordAudit(ctx, "RECEIVING_ITEMS", orderCode, map[string]any{"removed": len(toRemove), "added": len(toAdd)})
	return s.repo.GetOrder(ctx, orderCode)
}

// SetupTracking splits a fungible item into tracked destination items.
// The destination amounts are subtracted from the source; a source left
// at exactly zero is deleted, anything else persists with the remainder.
func (s *Service) SetupTracking(ctx context.Context, orderCode, itemCode string, specs []ItemSpec) (ReceivingOrder, error) {
	if len(specs) == 0 {
		return ReceivingOrder{}, fmt.Errorf("receiving: tracking setup needs at least one destination")
	}
	for _, spec := range specs {
		if err := s.validateSpec(ctx, spec, true); err != nil {
			return ReceivingOrder{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if !order.State.Editable() {
			return fmt.Errorf("receiving: %q in state %s: %w", order.Code, order.State, internalShared.ErrNotEditable)
		}
		item, err := tx.GetItemForUpdate(ctx, order.Code, itemCode)
		if err != nil {
			return err
		}
		if item.TrackingLevel != TrackingFungible {
			return fmt.Errorf("receiving: tracking setup needs a fungible source, %q is %s: %w",
				item.Code, item.TrackingLevel, internalShared.ErrConflict)
		}

		total := decimal.Zero
		for _, spec := range specs {
			total = total.Add(spec.Amount)
		}
		if total.GreaterThan(item.Amount) {
			return fmt.Errorf("receiving: tracking setup for %s exceeds available %s: %w",
				total, item.Amount, internalShared.ErrConflict)
		}

		for _, spec := range specs {
			location := spec.Location
			if location == "" {
				location = item.Location
			}
			dest := WarehouseItem{
				Code:          uuid.NewString(),
				Product:       item.Product,
				TrackingLevel: spec.TrackingLevel,
				Amount:        spec.Amount,
				Location:      location,
				OrderCode:     order.Code,
				PackageType:   spec.PackageType,
				Batch:         spec.Batch,
			}
			if _, err := tx.CreateItem(ctx, dest); err != nil {
				return err
			}
		}

		remainder := item.Amount.Sub(total)
		if remainder.IsZero() {
			return tx.DeleteItem(ctx, item.ID)
		}
		return tx.UpdateItemAmount(ctx, item.ID, remainder)
	})
	if err != nil {
		return ReceivingOrder{}, err
	}
	s.recordAudit(ctx, "RECEIVING_TRACKING", orderCode, map[string]any{"item": itemCode, "destinations": len(specs)})
	return s.repo.GetOrder(ctx, orderCode)
}

// Dissolve merges a tracked item back into the fungible, package-less
// item of the same product at the same location on the same order,
// creating one at the dissolved item's location when no sibling exists.
func (s *Service) Dissolve(ctx context.Context, orderCode, itemCode string) (ReceivingOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if !order.State.Editable() {
			return fmt.Errorf("receiving: %q in state %s: %w", order.Code, order.State, internalShared.ErrNotEditable)
		}
		item, err := tx.GetItemForUpdate(ctx, order.Code, itemCode)
		if err != nil {
			return err
		}
		sibling, found, err := tx.FindUnpackagedSibling(ctx, order.Code, item.Product, item.Location, item.ID)
		if err != nil {
			return err
		}
		if found {
			if err := tx.UpdateItemAmount(ctx, sibling.ID, sibling.Amount.Add(item.Amount)); err != nil {
				return err
			}
		} else {
			fresh := WarehouseItem{
				Code:          uuid.NewString(),
				Product:       item.Product,
				TrackingLevel: TrackingFungible,
				Amount:        item.Amount,
				Location:      item.Location,
				OrderCode:     order.Code,
			}
			if _, err := tx.CreateItem(ctx, fresh); err != nil {
				return err
			}
		}
		return tx.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		return ReceivingOrder{}, err
	}
	s.recordAudit(ctx, "RECEIVING_DISSOLVE", orderCode, map[string]any{"item": itemCode})
	return s.repo.GetOrder(ctx, orderCode)
}

// CarveToCreditNote moves quantity from a ledger item onto the purchase
// order's credit note, creating the note in DRAFT on first use. The unit
// price comes from the owning order line; carves of the same product
// merge into one note line.
func (s *Service) CarveToCreditNote(ctx context.Context, orderCode, itemCode string, amount decimal.Decimal) (ReceivingOrder, error) {
	if !amount.IsPositive() {
		return ReceivingOrder{}, fmt.Errorf("receiving: carve amount must be positive")
	}
	noteCode, err := s.creditNotes.NextCode(ctx)
	if err != nil {
		return ReceivingOrder{}, err
	}

	var touched string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if !order.State.Editable() {
			return fmt.Errorf("receiving: %q in state %s: %w", order.Code, order.State, internalShared.ErrNotEditable)
		}
		item, err := tx.GetItemForUpdate(ctx, order.Code, itemCode)
		if err != nil {
			return err
		}
		if amount.GreaterThan(item.Amount) {
			return fmt.Errorf("receiving: carve of %s exceeds available %s: %w",
				amount, item.Amount, internalShared.ErrConflict)
		}

		note, found, err := tx.GetCreditNoteForUpdate(ctx, order.OrderCode)
		if err != nil {
			return err
		}
		if found && note.State == creditnotes.StateConfirmed {
			return fmt.Errorf("receiving: credit note %q is confirmed: %w", note.Code, internalShared.ErrConflict)
		}
		if !found {
			note = creditnotes.CreditNote{Code: noteCode, OrderCode: order.OrderCode, State: creditnotes.StateDraft}
			noteID, err := tx.CreateCreditNote(ctx, note)
			if err != nil {
				return err
			}
			note.ID = noteID
		}

		line, err := tx.GetPurchaseOrderLine(ctx, order.OrderCode, item.Product)
		if err != nil {
			if errors.Is(err, internalShared.ErrNotFound) {
				return fmt.Errorf("receiving: order %q has no line for %q: %w", order.OrderCode, item.Product, internalShared.ErrConflict)
			}
			return err
		}
		if err := tx.UpsertCreditNoteLine(ctx, note.ID, creditnotes.Line{
			Product: item.Product, Amount: amount, UnitPrice: line.UnitPrice,
		}); err != nil {
			return err
		}

		touched = item.Product
		remainder := item.Amount.Sub(amount)
		if remainder.IsZero() {
			return tx.DeleteItem(ctx, item.ID)
		}
		return tx.UpdateItemAmount(ctx, item.ID, remainder)
	})
	if err != nil {
		return ReceivingOrder{}, err
	}
	s.cache.Invalidate(ctx, touched)
	s.recordAudit(ctx, "RECEIVING_CARVE", orderCode, map[string]any{"item": itemCode, "amount": amount.String()})
	return s.repo.GetOrder(ctx, orderCode)
}

// Confirm moves a draft order to PENDING. The purchase order cascades to
// PUTAWAY and an existing credit note is confirmed, all in one
// transaction.
func (s *Service) Confirm(ctx context.Context, orderCode string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if order.State != StateDraft {
			return fmt.Errorf("receiving: confirm requires DRAFT, %q is %s: %w", order.Code, order.State, internalShared.ErrConflict)
		}
		if err := tx.UpdateOrderState(ctx, order.Code, StatePending); err != nil {
			return err
		}
		if err := tx.UpdatePurchaseOrderState(ctx, order.OrderCode, orders.StatePutaway); err != nil {
			return err
		}
		note, found, err := tx.GetCreditNoteForUpdate(ctx, order.OrderCode)
		if err != nil {
			return err
		}
		if found {
			return tx.UpdateCreditNoteState(ctx, note.ID, creditnotes.StateConfirmed)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RECEIVING_CONFIRM", orderCode, nil)
	return nil
}

// ResetToDraft is the inverse cascade: PENDING back to DRAFT, purchase
// order back to RECEIVING, credit note back to DRAFT.
func (s *Service) ResetToDraft(ctx context.Context, orderCode string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if order.State != StatePending {
			return fmt.Errorf("receiving: reset requires PENDING, %q is %s: %w", order.Code, order.State, internalShared.ErrConflict)
		}
		if err := tx.UpdateOrderState(ctx, order.Code, StateDraft); err != nil {
			return err
		}
		if err := tx.UpdatePurchaseOrderState(ctx, order.OrderCode, orders.StateReceiving); err != nil {
			return err
		}
		note, found, err := tx.GetCreditNoteForUpdate(ctx, order.OrderCode)
		if err != nil {
			return err
		}
		if found {
			return tx.UpdateCreditNoteState(ctx, note.ID, creditnotes.StateDraft)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RECEIVING_RESET", orderCode, nil)
	return nil
}

// Cancel aborts an order still in DRAFT or PENDING. Ledger items are
// left untouched for manual cleanup.
func (s *Service) Cancel(ctx context.Context, orderCode string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if order.State != StateDraft && order.State != StatePending {
			return fmt.Errorf("receiving: cannot cancel %q in state %s: %w", order.Code, order.State, internalShared.ErrConflict)
		}
		return tx.UpdateOrderState(ctx, order.Code, StateCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RECEIVING_CANCEL", orderCode, nil)
	return nil
}

// Putaway relocates one item out of staging. An item with the same code
// already resident at the destination absorbs the moved amount. After
// the move the order state is recomputed: no staged items left means
// COMPLETED, with the purchase order cascading along; otherwise STARTED.
func (s *Service) Putaway(ctx context.Context, orderCode, itemCode, destination string) error {
	dest, err := s.locations.GetLocation(ctx, destination)
	if err != nil {
		return err
	}

	var product string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderCode)
		if err != nil {
			return err
		}
		if order.State != StatePending && order.State != StateStarted {
			return fmt.Errorf("receiving: putaway requires PENDING or STARTED, %q is %s: %w",
				order.Code, order.State, internalShared.ErrConflict)
		}
		item, err := tx.GetItemForUpdate(ctx, order.Code, itemCode)
		if err != nil {
			return err
		}
		product = item.Product

		target, found, err := tx.FindMergeTarget(ctx, item.Code, dest.Code, item.ID)
		if err != nil {
			return err
		}
		if found {
			if err := tx.UpdateItemAmount(ctx, target.ID, target.Amount.Add(item.Amount)); err != nil {
				return err
			}
			if err := tx.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateItemLocation(ctx, item.ID, dest.Code); err != nil {
				return err
			}
		}

		if err := tx.InsertMovement(ctx, Movement{
			ItemCode:     item.Code,
			OrderCode:    order.Code,
			Product:      item.Product,
			Amount:       item.Amount,
			FromLocation: item.Location,
			ToLocation:   dest.Code,
			MovedAt:      s.now().UTC(),
		}); err != nil {
			return err
		}

		staged, err := tx.CountStagedItems(ctx, order.Code)
		if err != nil {
			return err
		}
		if staged == 0 {
			if err := tx.UpdateOrderState(ctx, order.Code, StateCompleted); err != nil {
				return err
			}
			return tx.UpdatePurchaseOrderState(ctx, order.OrderCode, orders.StateCompleted)
		}
		if order.State != StateStarted {
			return tx.UpdateOrderState(ctx, order.Code, StateStarted)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, product)
	s.recordAudit(ctx, "RECEIVING_PUTAWAY", orderCode, map[string]any{"item": itemCode, "to": dest.Code})
	return nil
}

// PreviewPackaging computes, without persisting anything, how an amount
// of product would be packed into the named package type. A unitless
// package, or one whose capacity is zero, swallows the full amount as a
// single vessel.
func (s *Service) PreviewPackaging(ctx context.Context, itemCode, productCode, packageName string, amount decimal.Decimal) ([]WarehouseItem, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("receiving: preview amount must be positive")
	}
	item, err := s.repo.GetItem(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.GetPackage(ctx, packageName)
	if err != nil {
		return nil, err
	}

	single := []WarehouseItem{{
		Product:       product.Code,
		TrackingLevel: TrackingSerializedPackage,
		Amount:        amount,
		Location:      item.Location,
		OrderCode:     item.OrderCode,
		PackageType:   pkg.Name,
	}}
	if pkg.IsVessel() {
		return single, nil
	}

	perPackage, ok := packaging.AmountInProductUoM(pkg, product.UnitOfMeasure)
	if !ok {
		return nil, fmt.Errorf("receiving: package %q does not convert to %q: %w",
			pkg.Name, product.UnitOfMeasure.Name, internalShared.ErrInvalidConversion)
	}
	if perPackage.IsZero() {
		return single, nil
	}
	if !amount.Mod(perPackage).IsZero() {
		return nil, fmt.Errorf("receiving: %s does not divide evenly into packages of %s: %w",
			amount, perPackage, internalShared.ErrInvalidConversion)
	}

	count := int(amount.Div(perPackage).IntPart())
	previews := make([]WarehouseItem, 0, count)
	for i := 0; i < count; i++ {
		previews = append(previews, WarehouseItem{
			Product:       product.Code,
			TrackingLevel: TrackingSerializedPackage,
			Amount:        perPackage,
			Location:      item.Location,
			OrderCode:     item.OrderCode,
			PackageType:   pkg.Name,
		})
	}
	return previews, nil
}

// RecalculateAveragePurchasePrice blends the item's originating order
// line price into the product's running average purchase price, weighted
// by quantity.
func (s *Service) RecalculateAveragePurchasePrice(ctx context.Context, itemCode string) (decimal.Decimal, error) {
	var newAvg decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdateByCode(ctx, itemCode)
		if err != nil {
			return err
		}
		if item.OrderCode == "" {
			return fmt.Errorf("receiving: item %q has no owning order: %w", itemCode, internalShared.ErrConflict)
		}
		order, err := tx.GetOrderForUpdate(ctx, item.OrderCode)
		if err != nil {
			if errors.Is(err, internalShared.ErrNotFound) {
				return fmt.Errorf("receiving: item %q: owning order missing: %w", itemCode, internalShared.ErrConflict)
			}
			return err
		}
		line, err := tx.GetPurchaseOrderLine(ctx, order.OrderCode, item.Product)
		if err != nil {
			if errors.Is(err, internalShared.ErrNotFound) {
				return fmt.Errorf("receiving: order %q has no line for %q: %w", order.OrderCode, item.Product, internalShared.ErrConflict)
			}
			return err
		}

		oldAvg, err := tx.GetProductPurchasePrice(ctx, item.Product)
		if err != nil {
			return err
		}
		total, err := tx.SumAmountByProduct(ctx, item.Product)
		if err != nil {
			return err
		}
		existing := total.Sub(item.Amount)
		if existing.IsNegative() {
			existing = decimal.Zero
		}
		denominator := existing.Add(item.Amount)
		if denominator.IsZero() {
			newAvg = oldAvg
			return nil
		}
		newAvg = existing.Mul(oldAvg).Add(item.Amount.Mul(line.UnitPrice)).Div(denominator)
		return tx.UpdateProductPurchasePrice(ctx, item.Product, newAvg)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return newAvg, nil
}

// Availability returns the warehouse-wide availability of one product,
// served from cache when possible.
func (s *Service) Availability(ctx context.Context, productCode string) (decimal.Decimal, error) {
	if cached, ok := s.cache.Get(ctx, productCode); ok {
		return cached, nil
	}
	if _, err := s.products.GetProduct(ctx, productCode); err != nil {
		return decimal.Decimal{}, err
	}
	total, err := s.repo.SumAmountByProduct(ctx, productCode)
	if err != nil {
		return decimal.Decimal{}, err
	}
	s.cache.Set(ctx, productCode, total)
	return total, nil
}

func (s *Service) nextCode(ctx context.Context) (string, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	count, err := s.repo.CountCreatedBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("P%d%02d%04d", now.Year(), int(now.Month()), count+1), nil
}

// validateSpec checks an item spec before the transaction opens. The
// source location is inherited later, so an empty location is legal when
// inherit is set.
func (s *Service) validateSpec(ctx context.Context, spec ItemSpec, inherit bool) error {
	if !spec.Amount.IsPositive() {
		return fmt.Errorf("receiving: item amount must be positive")
	}
	if spec.TrackingLevel != "" && !spec.TrackingLevel.Valid() {
		return fmt.Errorf("receiving: unknown tracking level %q", spec.TrackingLevel)
	}
	if inherit && spec.TrackingLevel == "" {
		return fmt.Errorf("receiving: destination needs a tracking level")
	}
	if spec.Location != "" {
		if _, err := s.locations.GetLocation(ctx, spec.Location); err != nil {
			return err
		}
	}
	if spec.PackageType != "" {
		if _, err := s.packages.GetPackage(ctx, spec.PackageType); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) invalidateOrderProducts(ctx context.Context, order ReceivingOrder) {
	products := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		products = append(products, item.Product)
	}
	s.cache.Invalidate(ctx, products...)
}

func (s *Service) recordAudit(ctx context.Context, action string, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{Action: action, Entity: "receiving", EntityID: code, Meta: meta})
}
