package receiving

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockyard-wms/stockyard/internal/creditnotes"
	"github.com/stockyard-wms/stockyard/internal/masterdata/packaging"
	"github.com/stockyard-wms/stockyard/internal/masterdata/products"
	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	"github.com/stockyard-wms/stockyard/internal/masterdata/warehouses"
	"github.com/stockyard-wms/stockyard/internal/orders"
	internalShared "github.com/stockyard-wms/stockyard/internal/shared"
)

type memoryRepo struct {
	orders         map[string]ReceivingOrder
	items          map[int64]WarehouseItem
	purchaseOrders map[string]orders.PurchaseOrder
	notes          map[string]creditnotes.CreditNote
	products       map[string]products.Product
	locations      map[string]warehouses.Location
	packages       map[string]packaging.PackageType
	movements      []Movement
	nextID         int64
	noteSeq        int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:         make(map[string]ReceivingOrder),
		items:          make(map[int64]WarehouseItem),
		purchaseOrders: make(map[string]orders.PurchaseOrder),
		notes:          make(map[string]creditnotes.CreditNote),
		products:       make(map[string]products.Product),
		locations:      make(map[string]warehouses.Location),
		packages:       make(map[string]packaging.PackageType),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) orderItems(code string) []WarehouseItem {
	var items []WarehouseItem
	for _, item := range r.items {
		if item.OrderCode == code {
			items = append(items, item)
		}
	}
	return items
}

func (r *memoryRepo) itemByCode(code string) (WarehouseItem, bool) {
	for _, item := range r.items {
		if item.Code == code {
			return item, true
		}
	}
	return WarehouseItem{}, false
}

func (r *memoryRepo) GetOrder(ctx context.Context, code string) (ReceivingOrder, error) {
	order, ok := r.orders[code]
	if !ok {
		return ReceivingOrder{}, fmt.Errorf("receiving: %q: %w", code, internalShared.ErrNotFound)
	}
	order.Items = r.orderItems(code)
	return order, nil
}

func (r *memoryRepo) GetOrderByPurchaseOrder(ctx context.Context, orderCode string) (ReceivingOrder, error) {
	for _, order := range r.orders {
		if order.OrderCode == orderCode {
			order.Items = r.orderItems(order.Code)
			return order, nil
		}
	}
	return ReceivingOrder{}, fmt.Errorf("receiving: purchase order %q: %w", orderCode, internalShared.ErrNotFound)
}

func (r *memoryRepo) GetItem(ctx context.Context, itemCode string) (WarehouseItem, error) {
	item, ok := r.itemByCode(itemCode)
	if !ok {
		return WarehouseItem{}, fmt.Errorf("receiving: item %q: %w", itemCode, internalShared.ErrNotFound)
	}
	return item, nil
}

func (r *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]ReceivingOrder, int, error) {
	var result []ReceivingOrder
	for _, order := range r.orders {
		result = append(result, order)
	}
	return result, len(result), nil
}

func (r *memoryRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return len(r.orders), nil
}

func (r *memoryRepo) SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range r.items {
		if item.Product == product {
			total = total.Add(item.Amount)
		}
	}
	return total, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, orderCode string) ([]Movement, error) {
	var result []Movement
	for _, m := range r.movements {
		if m.OrderCode == orderCode {
			result = append(result, m)
		}
	}
	return result, nil
}

// Port implementations backed by the same fixture maps.

func (r *memoryRepo) GetProduct(ctx context.Context, code string) (products.Product, error) {
	product, ok := r.products[code]
	if !ok {
		return products.Product{}, fmt.Errorf("products: %q: %w", code, internalShared.ErrNotFound)
	}
	return product, nil
}

func (r *memoryRepo) GetLocation(ctx context.Context, code string) (warehouses.Location, error) {
	location, ok := r.locations[code]
	if !ok {
		return warehouses.Location{}, fmt.Errorf("warehouses: location %q: %w", code, internalShared.ErrNotFound)
	}
	return location, nil
}

func (r *memoryRepo) GetPurchaseOrder(ctx context.Context, code string) (orders.PurchaseOrder, error) {
	po, ok := r.purchaseOrders[code]
	if !ok {
		return orders.PurchaseOrder{}, fmt.Errorf("orders: %q: %w", code, internalShared.ErrNotFound)
	}
	return po, nil
}

func (r *memoryRepo) GetPackage(ctx context.Context, name string) (packaging.PackageType, error) {
	pkg, ok := r.packages[name]
	if !ok {
		return packaging.PackageType{}, fmt.Errorf("packaging: %q: %w", name, internalShared.ErrNotFound)
	}
	return pkg, nil
}

func (r *memoryRepo) NextCode(ctx context.Context) (string, error) {
	r.noteSeq++
	return fmt.Sprintf("CN2025%02d%04d", 1, r.noteSeq), nil
}

func (tx *memoryTx) nextID() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) CreateOrder(ctx context.Context, order ReceivingOrder) (int64, error) {
	order.ID = tx.nextID()
	tx.repo.orders[order.Code] = order
	return order.ID, nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, code string) (ReceivingOrder, error) {
	return tx.repo.GetOrder(ctx, code)
}

func (tx *memoryTx) OrderExistsForPurchase(ctx context.Context, orderCode string) (bool, error) {
	for _, order := range tx.repo.orders {
		if order.OrderCode == orderCode {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) UpdateOrderState(ctx context.Context, code string, state State) error {
	order, ok := tx.repo.orders[code]
	if !ok {
		return fmt.Errorf("receiving: %q: %w", code, internalShared.ErrNotFound)
	}
	order.State = state
	tx.repo.orders[code] = order
	return nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, orderCode, itemCode string) (WarehouseItem, error) {
	for _, item := range tx.repo.items {
		if item.Code == itemCode && item.OrderCode == orderCode {
			return item, nil
		}
	}
	return WarehouseItem{}, fmt.Errorf("receiving: item %q: %w", itemCode, internalShared.ErrNotFound)
}

func (tx *memoryTx) GetItemForUpdateByCode(ctx context.Context, itemCode string) (WarehouseItem, error) {
	return tx.repo.GetItem(ctx, itemCode)
}

func (tx *memoryTx) CreateItem(ctx context.Context, item WarehouseItem) (int64, error) {
	item.ID = tx.nextID()
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTx) UpdateItemAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	item, ok := tx.repo.items[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	item.Amount = amount
	tx.repo.items[id] = item
	return nil
}

func (tx *memoryTx) UpdateItemLocation(ctx context.Context, id int64, location string) error {
	item, ok := tx.repo.items[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	item.Location = location
	tx.repo.items[id] = item
	return nil
}

func (tx *memoryTx) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := tx.repo.items[id]; !ok {
		return internalShared.ErrNotFound
	}
	delete(tx.repo.items, id)
	return nil
}

func (tx *memoryTx) FindUnpackagedSibling(ctx context.Context, orderCode, product, location string, excludeID int64) (WarehouseItem, bool, error) {
	for _, item := range tx.repo.items {
		if item.OrderCode == orderCode && item.Product == product && item.Location == location &&
			item.PackageType == "" && item.TrackingLevel == TrackingFungible && item.ID != excludeID {
			return item, true, nil
		}
	}
	return WarehouseItem{}, false, nil
}

func (tx *memoryTx) FindMergeTarget(ctx context.Context, itemCode, location string, excludeID int64) (WarehouseItem, bool, error) {
	for _, item := range tx.repo.items {
		if item.Code == itemCode && item.Location == location && item.ID != excludeID {
			return item, true, nil
		}
	}
	return WarehouseItem{}, false, nil
}

func (tx *memoryTx) CountStagedItems(ctx context.Context, orderCode string) (int, error) {
	count := 0
	for _, item := range tx.repo.items {
		if item.OrderCode == orderCode && tx.repo.locations[item.Location].IsPutaway {
			count++
		}
	}
	return count, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) error {
	movement.ID = tx.nextID()
	tx.repo.movements = append(tx.repo.movements, movement)
	return nil
}

func (tx *memoryTx) SumAmountByProduct(ctx context.Context, product string) (decimal.Decimal, error) {
	return tx.repo.SumAmountByProduct(ctx, product)
}

func (tx *memoryTx) UpdatePurchaseOrderState(ctx context.Context, code string, state orders.State) error {
	po, ok := tx.repo.purchaseOrders[code]
	if !ok {
		return fmt.Errorf("receiving: purchase order %q: %w", code, internalShared.ErrNotFound)
	}
	po.State = state
	tx.repo.purchaseOrders[code] = po
	return nil
}

func (tx *memoryTx) GetPurchaseOrderLine(ctx context.Context, orderCode, product string) (orders.Line, error) {
	po, ok := tx.repo.purchaseOrders[orderCode]
	if !ok {
		return orders.Line{}, fmt.Errorf("receiving: order %q: %w", orderCode, internalShared.ErrNotFound)
	}
	for _, line := range po.Lines {
		if line.Product == product {
			return line, nil
		}
	}
	return orders.Line{}, fmt.Errorf("receiving: order %q has no line for %q: %w", orderCode, product, internalShared.ErrNotFound)
}

func (tx *memoryTx) GetCreditNoteForUpdate(ctx context.Context, orderCode string) (creditnotes.CreditNote, bool, error) {
	note, ok := tx.repo.notes[orderCode]
	return note, ok, nil
}

func (tx *memoryTx) CreateCreditNote(ctx context.Context, note creditnotes.CreditNote) (int64, error) {
	note.ID = tx.nextID()
	tx.repo.notes[note.OrderCode] = note
	return note.ID, nil
}

func (tx *memoryTx) UpsertCreditNoteLine(ctx context.Context, noteID int64, line creditnotes.Line) error {
	for orderCode, note := range tx.repo.notes {
		if note.ID != noteID {
			continue
		}
		for i, existing := range note.Lines {
			if existing.Product == line.Product {
				note.Lines[i].Amount = existing.Amount.Add(line.Amount)
				tx.repo.notes[orderCode] = note
				return nil
			}
		}
		line.ID = tx.nextID()
		line.NoteID = noteID
		note.Lines = append(note.Lines, line)
		tx.repo.notes[orderCode] = note
		return nil
	}
	return internalShared.ErrNotFound
}

func (tx *memoryTx) UpdateCreditNoteState(ctx context.Context, noteID int64, state creditnotes.State) error {
	for orderCode, note := range tx.repo.notes {
		if note.ID == noteID {
			note.State = state
			tx.repo.notes[orderCode] = note
			return nil
		}
	}
	return internalShared.ErrNotFound
}

func (tx *memoryTx) GetProductPurchasePrice(ctx context.Context, product string) (decimal.Decimal, error) {
	p, ok := tx.repo.products[product]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("receiving: product %q: %w", product, internalShared.ErrNotFound)
	}
	return p.PurchasePrice, nil
}

func (tx *memoryTx) UpdateProductPurchasePrice(ctx context.Context, product string, price decimal.Decimal) error {
	p, ok := tx.repo.products[product]
	if !ok {
		return internalShared.ErrNotFound
	}
	p.PurchasePrice = price
	tx.repo.products[product] = p
	return nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newFixture(t *testing.T) (*memoryRepo, *Service) {
	t.Helper()
	repo := newMemoryRepo()

	ks := units.Unit{ID: 1, Name: "KS"}
	repo.products["P1"] = products.Product{ID: 1, Code: "P1", Name: "Widget", UnitOfMeasure: ks, PurchasePrice: dec("10")}
	repo.products["P2"] = products.Product{ID: 2, Code: "P2", Name: "Gadget", UnitOfMeasure: ks, PurchasePrice: dec("8")}

	repo.locations["L-STAGE"] = warehouses.Location{ID: 1, Code: "L-STAGE", Warehouse: "Main", IsPutaway: true}
	repo.locations["A-01"] = warehouses.Location{ID: 2, Code: "A-01", Warehouse: "Main"}
	repo.locations["A-02"] = warehouses.Location{ID: 3, Code: "A-02", Warehouse: "Main"}

	repo.packages["pallet"] = packaging.PackageType{ID: 1, Name: "pallet"}
	repo.packages["box10"] = packaging.PackageType{ID: 2, Name: "box10", Amount: dec("10"), UnitOfMeasure: &ks}

	repo.purchaseOrders["OV2025010001"] = orders.PurchaseOrder{
		ID:       1,
		Code:     "OV2025010001",
		Supplier: "SUP-1",
		Currency: "EUR",
		State:    orders.StateSubmitted,
		Lines: []orders.Line{
			{ID: 1, OrderID: 1, Product: "P1", Amount: dec("100"), UnitPrice: dec("10")},
			{ID: 2, OrderID: 1, Product: "P2", Amount: dec("50"), UnitPrice: dec("8")},
		},
	}

	svc := NewService(repo, repo, repo, repo, repo, repo, nil, NewAvailabilityCache(nil))
	return repo, svc
}

func itemByProduct(t *testing.T, order ReceivingOrder, product string) WarehouseItem {
	t.Helper()
	for _, item := range order.Items {
		if item.Product == product {
			return item
		}
	}
	t.Fatalf("no item for product %s", product)
	return WarehouseItem{}
}

func TestCreateFromPurchaseOrder(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	require.Equal(t, StateDraft, order.State)
	require.Len(t, order.Items, 2)
	for _, item := range order.Items {
		require.Equal(t, TrackingFungible, item.TrackingLevel)
		require.Equal(t, "L-STAGE", item.Location)
	}
	require.True(t, itemByProduct(t, order, "P1").Amount.Equal(dec("100")))
	require.True(t, itemByProduct(t, order, "P2").Amount.Equal(dec("50")))
	require.Equal(t, orders.StateReceiving, repo.purchaseOrders["OV2025010001"].State)

	_, err = svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.ErrorIs(t, err, internalShared.ErrConflict)
}

func TestCreateFromPurchaseOrderMissingRefs(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	_, err := svc.CreateFromPurchaseOrder(ctx, "OV9999990001", "L-STAGE")
	require.ErrorIs(t, err, internalShared.ErrNotFound)

	_, err = svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "NOWHERE")
	require.ErrorIs(t, err, internalShared.ErrNotFound)
}

func TestReceivingOrderCodeFormat(t *testing.T) {
	_, svc := newFixture(t)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }

	order, err := svc.CreateFromPurchaseOrder(context.Background(), "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	require.Equal(t, "P2025010001", order.Code)
}

func TestSetupTrackingKeepsRemainder(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	// Split 50 into ten serialized packages of 1; the source keeps 40.
	specs := make([]ItemSpec, 0, 10)
	for i := 0; i < 10; i++ {
		specs = append(specs, ItemSpec{TrackingLevel: TrackingSerializedPackage, Amount: dec("1")})
	}
	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, specs)
	require.NoError(t, err)

	total := decimal.Zero
	var remaining *WarehouseItem
	packages := 0
	for i := range updated.Items {
		item := updated.Items[i]
		if item.Product != "P2" {
			continue
		}
		total = total.Add(item.Amount)
		if item.Code == source.Code {
			remaining = &updated.Items[i]
		}
		if item.TrackingLevel == TrackingSerializedPackage {
			packages++
			require.Equal(t, "L-STAGE", item.Location)
		}
	}
	require.NotNil(t, remaining, "source item must survive a partial split")
	require.True(t, remaining.Amount.Equal(dec("40")))
	require.Equal(t, 10, packages)
	require.True(t, total.Equal(dec("50")), "conservation across the split")
}

func TestSetupTrackingExactZeroDeletesSource(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingBatch, Amount: dec("50"), Batch: "B-1"},
	})
	require.NoError(t, err)
	for _, item := range updated.Items {
		require.NotEqual(t, source.Code, item.Code, "fully split source must be deleted")
	}
}

func TestSetupTrackingOverdrawConflict(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")
	before := len(repo.items)

	_, err = svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingBatch, Amount: dec("60")},
	})
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.Len(t, repo.items, before, "failed split must not write")
	kept, ok := repo.itemByCode(source.Code)
	require.True(t, ok)
	require.True(t, kept.Amount.Equal(dec("50")))
}

func TestMutationGuardsOutsideDraft(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")
	require.NoError(t, svc.Confirm(ctx, order.Code))

	_, err = svc.SetupTracking(ctx, order.Code, item.Code, []ItemSpec{{TrackingLevel: TrackingBatch, Amount: dec("1")}})
	require.ErrorIs(t, err, internalShared.ErrNotEditable)

	_, err = svc.Dissolve(ctx, order.Code, item.Code)
	require.ErrorIs(t, err, internalShared.ErrNotEditable)

	_, err = svc.AddOrRemoveItems(ctx, order.Code, []string{item.Code}, nil)
	require.ErrorIs(t, err, internalShared.ErrNotEditable)

	_, err = svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("1"))
	require.ErrorIs(t, err, internalShared.ErrNotEditable)
}

func TestDissolveMergesIntoSibling(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingSerializedPackage, Amount: dec("10"), PackageType: "box10"},
	})
	require.NoError(t, err)

	var tracked WarehouseItem
	for _, item := range updated.Items {
		if item.TrackingLevel == TrackingSerializedPackage {
			tracked = item
		}
	}
	require.NotEmpty(t, tracked.Code)

	dissolved, err := svc.Dissolve(ctx, order.Code, tracked.Code)
	require.NoError(t, err)

	p2Items := 0
	for _, item := range dissolved.Items {
		if item.Product != "P2" {
			continue
		}
		p2Items++
		require.Equal(t, TrackingFungible, item.TrackingLevel)
		require.True(t, item.Amount.Equal(dec("50")), "dissolve restores the full amount")
	}
	require.Equal(t, 1, p2Items)
}

func TestDissolveCreatesFreshWhenNoSibling(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	// Consume the whole source so no unpackaged sibling remains.
	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingBatch, Amount: dec("50"), PackageType: "box10", Batch: "B-1"},
	})
	require.NoError(t, err)

	var tracked WarehouseItem
	for _, item := range updated.Items {
		if item.Product == "P2" {
			tracked = item
		}
	}
	dissolved, err := svc.Dissolve(ctx, order.Code, tracked.Code)
	require.NoError(t, err)

	fresh := itemByProduct(t, dissolved, "P2")
	require.Equal(t, TrackingFungible, fresh.TrackingLevel)
	require.Empty(t, fresh.PackageType)
	require.True(t, fresh.Amount.Equal(dec("50")))
	require.NotEqual(t, tracked.Code, fresh.Code)
}

func TestDissolveKeepsQuantityAtItsLocation(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	// Track 10 of 50 at a different location than the fungible source.
	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingBatch, Amount: dec("10"), Location: "A-01", Batch: "B-1"},
	})
	require.NoError(t, err)

	var tracked WarehouseItem
	for _, item := range updated.Items {
		if item.TrackingLevel == TrackingBatch {
			tracked = item
		}
	}
	require.Equal(t, "A-01", tracked.Location)

	dissolved, err := svc.Dissolve(ctx, order.Code, tracked.Code)
	require.NoError(t, err)

	// The staged sibling keeps its 40; the dissolved quantity becomes a
	// fresh fungible item at A-01 instead of migrating to L-STAGE.
	staged, ok := repo.itemByCode(source.Code)
	require.True(t, ok)
	require.True(t, staged.Amount.Equal(dec("40")))

	var atDestination *WarehouseItem
	for i := range dissolved.Items {
		item := dissolved.Items[i]
		if item.Product == "P2" && item.Location == "A-01" {
			atDestination = &dissolved.Items[i]
		}
	}
	require.NotNil(t, atDestination)
	require.Equal(t, TrackingFungible, atDestination.TrackingLevel)
	require.Empty(t, atDestination.PackageType)
	require.True(t, atDestination.Amount.Equal(dec("10")))
}

func TestSetupTrackingRequiresFungibleSource(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	source := itemByProduct(t, order, "P2")

	updated, err := svc.SetupTracking(ctx, order.Code, source.Code, []ItemSpec{
		{TrackingLevel: TrackingBatch, Amount: dec("10"), Batch: "B-1"},
	})
	require.NoError(t, err)

	var tracked WarehouseItem
	for _, item := range updated.Items {
		if item.TrackingLevel == TrackingBatch {
			tracked = item
		}
	}
	before := len(repo.items)

	_, err = svc.SetupTracking(ctx, order.Code, tracked.Code, []ItemSpec{
		{TrackingLevel: TrackingSerializedPackage, Amount: dec("5")},
	})
	require.ErrorIs(t, err, internalShared.ErrConflict)
	require.Len(t, repo.items, before, "rejected split must not write")
}

func TestCarveMergesLinesAndDeletesEmptyItem(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	_, err = svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("20"))
	require.NoError(t, err)

	note := repo.notes["OV2025010001"]
	require.Equal(t, creditnotes.StateDraft, note.State)
	require.Len(t, note.Lines, 1)
	require.True(t, note.Lines[0].Amount.Equal(dec("20")))
	require.True(t, note.Lines[0].UnitPrice.Equal(dec("10")), "unit price comes from the order line")

	updated, err := svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("80"))
	require.NoError(t, err)

	note = repo.notes["OV2025010001"]
	require.Len(t, note.Lines, 1, "carves of the same product merge into one line")
	require.True(t, note.Lines[0].Amount.Equal(dec("100")))
	for _, it := range updated.Items {
		require.NotEqual(t, item.Code, it.Code, "item carved to zero must be deleted")
	}

	// Conservation: live amounts plus carved amounts equal the line amount.
	live, err := repo.SumAmountByProduct(ctx, "P1")
	require.NoError(t, err)
	require.True(t, live.Add(note.Lines[0].Amount).Equal(dec("100")))
}

func TestCarveGuards(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	_, err = svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("120"))
	require.ErrorIs(t, err, internalShared.ErrConflict)

	// A confirmed note rejects further carves even while the order drafts.
	repo.notes["OV2025010001"] = creditnotes.CreditNote{
		ID: 99, Code: "CN2025010099", OrderCode: "OV2025010001", State: creditnotes.StateConfirmed,
	}
	_, err = svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("10"))
	require.ErrorIs(t, err, internalShared.ErrConflict)
}

func TestConfirmAndResetCascades(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")
	_, err = svc.CarveToCreditNote(ctx, order.Code, item.Code, dec("10"))
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, order.Code))
	require.Equal(t, StatePending, repo.orders[order.Code].State)
	require.Equal(t, orders.StatePutaway, repo.purchaseOrders["OV2025010001"].State)
	require.Equal(t, creditnotes.StateConfirmed, repo.notes["OV2025010001"].State)

	require.ErrorIs(t, svc.Confirm(ctx, order.Code), internalShared.ErrConflict)

	require.NoError(t, svc.ResetToDraft(ctx, order.Code))
	require.Equal(t, StateDraft, repo.orders[order.Code].State)
	require.Equal(t, orders.StateReceiving, repo.purchaseOrders["OV2025010001"].State)
	require.Equal(t, creditnotes.StateDraft, repo.notes["OV2025010001"].State)

	require.ErrorIs(t, svc.ResetToDraft(ctx, order.Code), internalShared.ErrConflict)
}

func TestCancelFromDraftAndPending(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(ctx, order.Code))
	require.NoError(t, svc.Cancel(ctx, order.Code))
	require.Equal(t, StateCancelled, repo.orders[order.Code].State)

	require.ErrorIs(t, svc.Cancel(ctx, order.Code), internalShared.ErrConflict)
}

func TestPutawayDrivesCompletion(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	first := itemByProduct(t, order, "P1")
	second := itemByProduct(t, order, "P2")
	require.NoError(t, svc.Confirm(ctx, order.Code))

	require.NoError(t, svc.Putaway(ctx, order.Code, first.Code, "A-01"))
	require.Equal(t, StateStarted, repo.orders[order.Code].State)
	moved, ok := repo.itemByCode(first.Code)
	require.True(t, ok)
	require.Equal(t, "A-01", moved.Location)

	require.NoError(t, svc.Putaway(ctx, order.Code, second.Code, "A-02"))
	require.Equal(t, StateCompleted, repo.orders[order.Code].State)
	require.Equal(t, orders.StateCompleted, repo.purchaseOrders["OV2025010001"].State)

	moves, err := svc.Movements(ctx, order.Code)
	require.NoError(t, err)
	require.Len(t, moves, 2)

	// Completion is terminal.
	err = svc.Putaway(ctx, order.Code, first.Code, "A-02")
	require.ErrorIs(t, err, internalShared.ErrConflict)
}

func TestPutawayRequiresPendingOrStarted(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	err = svc.Putaway(ctx, order.Code, item.Code, "A-01")
	require.ErrorIs(t, err, internalShared.ErrConflict)
}

func TestPutawayMergesByCode(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")
	require.NoError(t, svc.Confirm(ctx, order.Code))

	// Same logical item already resident at the destination.
	repo.nextID++
	twinID := repo.nextID
	repo.items[twinID] = WarehouseItem{
		ID: twinID, Code: item.Code, Product: "P1",
		TrackingLevel: TrackingFungible, Amount: dec("5"),
		Location: "A-01",
	}

	require.NoError(t, svc.Putaway(ctx, order.Code, item.Code, "A-01"))
	require.True(t, repo.items[twinID].Amount.Equal(dec("105")), "amounts merge at the destination")
	_, stillThere := repo.items[item.ID]
	require.False(t, stillThere, "moved item is absorbed")
}

func TestPreviewPackaging(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	// 100 KS into box10 (10 KS each) yields ten packages.
	previews, err := svc.PreviewPackaging(ctx, item.Code, "P1", "box10", dec("100"))
	require.NoError(t, err)
	require.Len(t, previews, 10)
	for _, preview := range previews {
		require.True(t, preview.Amount.Equal(dec("10")))
		require.Equal(t, "box10", preview.PackageType)
		require.Equal(t, TrackingSerializedPackage, preview.TrackingLevel)
	}

	// Non-integral fit fails.
	_, err = svc.PreviewPackaging(ctx, item.Code, "P1", "box10", dec("25"))
	require.ErrorIs(t, err, internalShared.ErrInvalidConversion)

	// A unitless vessel takes any amount as a single package.
	previews, err = svc.PreviewPackaging(ctx, item.Code, "P1", "pallet", dec("37"))
	require.NoError(t, err)
	require.Len(t, previews, 1)
	require.True(t, previews[0].Amount.Equal(dec("37")))
}

func TestPreviewPackagingIncompatibleUnits(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	liter := units.Unit{ID: 9, Name: "L"}
	repo.packages["drum"] = packaging.PackageType{ID: 9, Name: "drum", Amount: dec("200"), UnitOfMeasure: &liter}

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	_, err = svc.PreviewPackaging(ctx, item.Code, "P1", "drum", dec("100"))
	require.ErrorIs(t, err, internalShared.ErrInvalidConversion)
}

func TestRecalculateAveragePurchasePrice(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	// Pre-existing stock of 50 P1 outside this order, running average 10.
	repo.nextID++
	repo.items[repo.nextID] = WarehouseItem{
		ID: repo.nextID, Code: "legacy", Product: "P1",
		TrackingLevel: TrackingFungible, Amount: dec("50"), Location: "A-01",
	}

	// (50*10 + 100*10) / 150 = 10 when the line price equals the average.
	price, err := svc.RecalculateAveragePurchasePrice(ctx, item.Code)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("10")))

	// Bump the line price and recompute: (50*10 + 100*16) / 150 = 14.
	po := repo.purchaseOrders["OV2025010001"]
	po.Lines[0].UnitPrice = dec("16")
	repo.purchaseOrders["OV2025010001"] = po

	price, err = svc.RecalculateAveragePurchasePrice(ctx, item.Code)
	require.NoError(t, err)
	require.True(t, price.Equal(dec("14")))
	require.True(t, repo.products["P1"].PurchasePrice.Equal(dec("14")))
}

func TestRecalculateAveragePriceMissingLineConflict(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P1")

	po := repo.purchaseOrders["OV2025010001"]
	po.Lines = po.Lines[1:]
	repo.purchaseOrders["OV2025010001"] = po

	_, err = svc.RecalculateAveragePurchasePrice(ctx, item.Code)
	require.ErrorIs(t, err, internalShared.ErrConflict)
}

func TestAddOrRemoveItems(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	order, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)
	item := itemByProduct(t, order, "P2")

	updated, err := svc.AddOrRemoveItems(ctx, order.Code, []string{item.Code}, []ItemSpec{
		{Product: "P2", Amount: dec("30"), Location: "L-STAGE"},
	})
	require.NoError(t, err)

	replacement := itemByProduct(t, updated, "P2")
	require.True(t, replacement.Amount.Equal(dec("30")))
	require.Equal(t, TrackingFungible, replacement.TrackingLevel)
	require.NotEqual(t, item.Code, replacement.Code)
}

func TestAvailabilitySumsLedger(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	_, err := svc.CreateFromPurchaseOrder(ctx, "OV2025010001", "L-STAGE")
	require.NoError(t, err)

	total, err := svc.Availability(ctx, "P1")
	require.NoError(t, err)
	require.True(t, total.Equal(dec("100")))

	_, err = svc.Availability(ctx, "P-MISSING")
	require.ErrorIs(t, err, internalShared.ErrNotFound)
}
