package movement_test

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
)

var toDone = map[movement.Kind][]movement.Status{
	movement.KindReceipt:    {movement.StatusWaiting, movement.StatusReady, movement.StatusDone},
	movement.KindDelivery:   {movement.StatusWaiting, movement.StatusReady, movement.StatusPicking, movement.StatusPacking, movement.StatusDone},
	movement.KindTransfer:   {movement.StatusWaiting, movement.StatusReady, movement.StatusDone},
	movement.KindAdjustment: {movement.StatusDone},
}

func TestReceiptAppliesStock(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "sku-r", "W1", 50)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 20, Supplier: "Acme",
	})
	assert.Equal(t, movement.StatusDraft, doc.Status)
	assert.Regexp(t, regexp.MustCompile(`^REC-\d{4}-00001$`), doc.Number)

	doc = f.advance(t, doc, toDone[movement.KindReceipt]...)
	assert.Equal(t, movement.StatusDone, doc.Status)
	assert.Equal(t, "manager-1", doc.ApproverID)

	got := f.product(t, p.ID)
	assert.Equal(t, int64(70), got.Quantity)
	require.Len(t, got.StockHistory, 2)
	assert.Equal(t, int64(70), got.StockHistory[1].Quantity)

	entries := f.entries(t, ledger.Filter{ProductID: p.ID})
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ActionReceipt, entries[0].Action)
	assert.Equal(t, int64(20), entries[0].Delta)
	assert.Equal(t, int64(70), entries[0].QuantityAfter)
	assert.Equal(t, "clerk-1", entries[0].ActorID)
	assert.Equal(t, "manager-1", entries[0].ApproverID)
	assert.Equal(t, doc.ID, entries[0].DocumentID)
}

func TestTransferCreatesDestination(t *testing.T) {
	f := newFixture(t)
	src := f.register(t, "SKU-T", "W1", 70)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: src.ID, Warehouse: "W1", Quantity: 30,
		ToWarehouse: "W2", ToLocation: "B-07",
	})
	f.advance(t, doc, toDone[movement.KindTransfer]...)

	assert.Equal(t, int64(40), f.product(t, src.ID).Quantity)

	dst := f.productAt(t, "SKU-T", "W2")
	assert.Equal(t, int64(30), dst.Quantity)
	assert.Equal(t, src.Name, dst.Name)
	assert.Equal(t, src.Category, dst.Category)
	assert.Equal(t, src.Unit, dst.Unit)
	assert.Equal(t, src.ReorderLevel, dst.ReorderLevel)
	assert.Equal(t, "B-07", dst.Location)
	require.Len(t, dst.StockHistory, 2)
	assert.Equal(t, int64(0), dst.StockHistory[0].Quantity)
	assert.Equal(t, int64(30), dst.StockHistory[1].Quantity)

	entries := f.entries(t, ledger.Filter{DocumentID: doc.ID})
	require.Len(t, entries, 2)
	byAction := map[ledger.Action]ledger.Entry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	assert.Equal(t, int64(-30), byAction[ledger.ActionTransferOut].Delta)
	assert.Equal(t, "W1", byAction[ledger.ActionTransferOut].Warehouse)
	assert.Equal(t, int64(30), byAction[ledger.ActionTransferIn].Delta)
	assert.Equal(t, "W2", byAction[ledger.ActionTransferIn].Warehouse)
	assert.Zero(t, ledger.NetDelta(entries))
}

func TestTransferIntoExistingProduct(t *testing.T) {
	f := newFixture(t)
	src := f.register(t, "SKU-E", "W2", 10)
	dst := f.register(t, "SKU-E", "W1", 5)

	// Source sorts after destination, exercising the reversed lock order.
	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: src.ID, Warehouse: "W2", Quantity: 4, ToWarehouse: "W1",
	})
	f.advance(t, doc, toDone[movement.KindTransfer]...)

	assert.Equal(t, int64(6), f.product(t, src.ID).Quantity)
	got := f.product(t, dst.ID)
	assert.Equal(t, int64(9), got.Quantity)
	assert.Equal(t, "A-01", got.Location, "empty destination location leaves the product location alone")
}

func TestAdjustmentSetsPhysicalCount(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-A", "W1", 40)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindAdjustment, ProductID: p.ID, Warehouse: "W1",
		PhysicalCount: ptr[int64](35), Reason: "cycle count",
	})
	adj, ok := doc.Adjustment()
	require.True(t, ok)
	assert.Equal(t, int64(40), adj.OldStock)
	assert.Equal(t, int64(35), adj.NewStock)

	f.advance(t, doc, movement.StatusDone)

	assert.Equal(t, int64(35), f.product(t, p.ID).Quantity)
	entries := f.entries(t, ledger.Filter{ProductID: p.ID})
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ActionAdjustment, entries[0].Action)
	assert.Equal(t, int64(-5), entries[0].Delta)
}

func TestAdjustmentAppliedAfterStockMoved(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-D", "W1", 40)

	adj := f.create(t, movement.CreateInput{
		Kind: movement.KindAdjustment, ProductID: p.ID, Warehouse: "W1",
		NewStock: ptr[int64](35), Reason: "damaged",
	})
	rec := f.create(t, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 10, Supplier: "Acme",
	})
	f.advance(t, rec, toDone[movement.KindReceipt]...)
	f.advance(t, adj, movement.StatusDone)

	assert.Equal(t, int64(35), f.product(t, p.ID).Quantity)
	entries := f.entries(t, ledger.Filter{DocumentID: adj.ID})
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-5), entries[0].Delta, "delta is taken from the recorded baseline")
	assert.EqualValues(t, 10, entries[0].Context["drift"])
	assert.EqualValues(t, 50, entries[0].Context["observedStock"])
}

func TestDeliveryWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-P", "W1", 25)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindDelivery, ProductID: p.ID, Warehouse: "W1", Quantity: 10, DeliveredTo: "Customer",
	})
	doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady)

	_, err := f.docs.RecordPicked(ctx, doc.ID, 5, "")
	assert.True(t, apperror.IsInvalidTransition(err), "picking requires picking status")

	doc = f.advance(t, doc, movement.StatusPicking)

	_, err = f.docs.RecordPicked(ctx, doc.ID, 11, "")
	assert.True(t, apperror.IsValidation(err))
	_, err = f.docs.RecordPicked(ctx, doc.ID, -1, "")
	assert.True(t, apperror.IsValidation(err))

	doc, err = f.docs.RecordPicked(ctx, doc.ID, 10, "DOCK-2")
	require.NoError(t, err)
	d, _ := doc.Delivery()
	assert.Equal(t, int64(10), d.PickedQuantity)
	assert.Equal(t, "DOCK-2", doc.Location)

	_, err = f.docs.RecordPacked(ctx, doc.ID, 10)
	assert.True(t, apperror.IsInvalidTransition(err), "packing requires packing status")

	doc = f.advance(t, doc, movement.StatusPacking)
	_, err = f.docs.RecordPacked(ctx, doc.ID, 11)
	assert.True(t, apperror.IsValidation(err))
	doc, err = f.docs.RecordPacked(ctx, doc.ID, 10)
	require.NoError(t, err)

	f.advance(t, doc, movement.StatusDone)
	got := f.product(t, p.ID)
	assert.Equal(t, int64(15), got.Quantity)
	assert.Equal(t, "DOCK-2", got.Location, "document location moves the product")

	entries := f.entries(t, ledger.Filter{ProductID: p.ID, Action: ledger.ActionDelivery})
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-10), entries[0].Delta)
}

func TestRecordPickedRejectsOtherKinds(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-K", "W1", 5)
	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 1, Supplier: "Acme",
	})

	_, err := f.docs.RecordPicked(context.Background(), doc.ID, 1, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestDeliveryInsufficientStockOnApply(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-S", "W1", 5)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindDelivery, ProductID: p.ID, Warehouse: "W1", Quantity: 10, DeliveredTo: "Customer",
	})
	doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady, movement.StatusPicking, movement.StatusPacking)

	_, err := f.docs.Transition(context.Background(), doc.ID, movement.StatusDone, "manager-1")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.EqualValues(t, 5, appErr.Details["available"])
	assert.EqualValues(t, 10, appErr.Details["requested"])

	got, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, movement.StatusPacking, got.Status)
	assert.Equal(t, int64(5), f.product(t, p.ID).Quantity)
	assert.Empty(t, f.entries(t, ledger.Filter{ProductID: p.ID}))
}

func TestAdvisoryStockCheckOnCreate(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-V", "W1", 5)

	_, err := f.docs.Create(context.Background(), movement.CreateInput{
		Kind: movement.KindDelivery, ProductID: p.ID, Warehouse: "W1", Quantity: 6,
		DeliveredTo: "Customer", Status: movement.StatusReady, ActorID: "clerk-1",
	})
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = f.docs.Create(context.Background(), movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 6,
		ToWarehouse: "W2", Status: movement.StatusWaiting, ActorID: "clerk-1",
	})
	assert.True(t, apperror.IsInsufficientStock(err))

	// Drafts skip the check.
	f.create(t, movement.CreateInput{
		Kind: movement.KindDelivery, ProductID: p.ID, Warehouse: "W1", Quantity: 6, DeliveredTo: "Customer",
	})
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-I", "W1", 50)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 5, Supplier: "Acme",
	})

	_, err := f.docs.Transition(ctx, doc.ID, movement.StatusDone, "manager-1")
	assert.True(t, apperror.IsInvalidTransition(err), "draft cannot jump to done")

	_, err = f.docs.Transition(ctx, doc.ID, movement.StatusPicking, "manager-1")
	assert.True(t, apperror.IsInvalidTransition(err), "picking is not a receipt status")

	_, err = f.docs.Transition(ctx, doc.ID, "", "manager-1")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.docs.Transition(ctx, id.New(), movement.StatusWaiting, "manager-1")
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, int64(50), f.product(t, p.ID).Quantity)
}

func TestDoneIsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-O", "W1", 0)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 5, Supplier: "Acme",
	})
	f.advance(t, doc, toDone[movement.KindReceipt]...)

	for _, target := range []movement.Status{movement.StatusDone, movement.StatusCanceled, movement.StatusDraft} {
		_, err := f.docs.Transition(ctx, doc.ID, target, "manager-1")
		assert.True(t, apperror.IsInvalidTransition(err), "done -> %s", target)
	}
	assert.Equal(t, int64(5), f.product(t, p.ID).Quantity)
	assert.Len(t, f.entries(t, ledger.Filter{ProductID: p.ID}), 1)
}

func TestCancelLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-C", "W1", 12)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 2, ToWarehouse: "W2",
	})
	doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady, movement.StatusCanceled)
	assert.True(t, doc.IsTerminal())

	assert.Equal(t, int64(12), f.product(t, p.ID).Quantity)
	assert.Empty(t, f.entries(t, ledger.Filter{}))

	res, err := f.products.List(context.Background(), productFilterWarehouse("W2"))
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestTransferFailed(t *testing.T) {
	f := newFixture(t)
	p := f.register(t, "SKU-F", "W1", 12)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 2, ToWarehouse: "W2",
		Status: movement.StatusWaiting,
	})
	doc = f.advance(t, doc, movement.StatusFailed)
	assert.Equal(t, movement.StatusFailed, doc.Status)

	_, err := f.docs.Transition(context.Background(), doc.ID, movement.StatusReady, "manager-1")
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, int64(12), f.product(t, p.ID).Quantity)
}

func TestCreateProductChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-M", "W1", 12)

	_, err := f.docs.Create(ctx, movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W9", Quantity: 1, Supplier: "Acme", ActorID: "u",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeWarehouseMismatch))

	_, err = f.docs.Create(ctx, movement.CreateInput{
		Kind: movement.KindDelivery, ProductID: id.New(), Warehouse: "W1", Quantity: 1, DeliveredTo: "X", ActorID: "u",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))

	_, err = f.docs.Create(ctx, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W9", Quantity: 1, ToWarehouse: "W2", ActorID: "u",
	})
	require.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))
	assert.Contains(t, err.Error(), "Product not found in warehouse: W9")

	_, err = f.docs.Create(ctx, movement.CreateInput{
		Kind: movement.KindAdjustment, ProductID: p.ID, Warehouse: "W9", NewStock: ptr[int64](1), Reason: "x", ActorID: "u",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))

	res, err := f.docs.List(ctx, movement.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	pid := f.register(t, "SKU-X", "W1", 12).ID

	tests := []struct {
		name string
		in   movement.CreateInput
	}{
		{"unknown kind", movement.CreateInput{Kind: "return", ProductID: pid, Warehouse: "W1", Quantity: 1}},
		{"zero quantity", movement.CreateInput{Kind: movement.KindReceipt, ProductID: pid, Warehouse: "W1", Supplier: "A"}},
		{"negative quantity", movement.CreateInput{Kind: movement.KindDelivery, ProductID: pid, Warehouse: "W1", Quantity: -3, DeliveredTo: "B"}},
		{"missing product", movement.CreateInput{Kind: movement.KindReceipt, Warehouse: "W1", Quantity: 1, Supplier: "A"}},
		{"missing warehouse", movement.CreateInput{Kind: movement.KindReceipt, ProductID: pid, Quantity: 1, Supplier: "A"}},
		{"missing supplier", movement.CreateInput{Kind: movement.KindReceipt, ProductID: pid, Warehouse: "W1", Quantity: 1}},
		{"missing recipient", movement.CreateInput{Kind: movement.KindDelivery, ProductID: pid, Warehouse: "W1", Quantity: 1}},
		{"same warehouse transfer", movement.CreateInput{Kind: movement.KindTransfer, ProductID: pid, Warehouse: "W1", Quantity: 1, ToWarehouse: "W1"}},
		{"adjustment without target", movement.CreateInput{Kind: movement.KindAdjustment, ProductID: pid, Warehouse: "W1", Reason: "r"}},
		{"adjustment without reason", movement.CreateInput{Kind: movement.KindAdjustment, ProductID: pid, Warehouse: "W1", NewStock: ptr[int64](3)}},
		{"negative physical count", movement.CreateInput{Kind: movement.KindAdjustment, ProductID: pid, Warehouse: "W1", PhysicalCount: ptr[int64](-1), Reason: "r"}},
		{"created done", movement.CreateInput{Kind: movement.KindReceipt, ProductID: pid, Warehouse: "W1", Quantity: 1, Supplier: "A", Status: movement.StatusDone}},
		{"status of another kind", movement.CreateInput{Kind: movement.KindReceipt, ProductID: pid, Warehouse: "W1", Quantity: 1, Supplier: "A", Status: movement.StatusPicking}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.ActorID = "clerk-1"
			_, err := f.docs.Create(context.Background(), tt.in)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}
	_, err := f.docs.Create(context.Background(), movement.CreateInput{
		Kind: movement.KindReceipt, ProductID: pid, Warehouse: "W1", Quantity: 1, Supplier: "A",
	})
	assert.True(t, apperror.IsValidation(err), "actor is required")
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-L", "W1", 100)

	var created []*movement.Document
	for i := 0; i < 3; i++ {
		created = append(created, f.create(t, movement.CreateInput{
			Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: 1, Supplier: "Acme",
		}))
		time.Sleep(2 * time.Millisecond)
	}
	f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 1, ToWarehouse: "W3",
	})

	res, err := f.docs.List(ctx, movement.Filter{Kind: movement.KindReceipt})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, created[2].ID, res.Items[0].ID)
	assert.Equal(t, created[0].ID, res.Items[2].ID)

	res, err = f.docs.List(ctx, movement.Filter{Warehouse: "W3"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	_, err = f.docs.List(ctx, movement.Filter{Kind: "return"})
	assert.True(t, apperror.IsValidation(err))
}

func TestEventsAndAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-EV", "W1", 10)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 3, ToWarehouse: "W2",
	})
	f.advance(t, doc, toDone[movement.KindTransfer]...)

	var statusChanges, stockChanges int
	for _, e := range f.store.Events(ctx) {
		switch e.EventType {
		case movement.EventStatusChanged:
			statusChanges++
		case movement.EventStockChanged:
			stockChanges++
		}
	}
	assert.Equal(t, 3, statusChanges)
	assert.Equal(t, 2, stockChanges)

	trail, err := f.docs.History(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	assert.Equal(t, "status_change", trail[0].Action)
	assert.Equal(t, movement.StatusDone, trail[0].Changes["to"])
	assert.Equal(t, "create", trail[3].Action)

	_, err = f.docs.History(ctx, id.New(), 0)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFailedApplyWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.register(t, "SKU-N", "W1", 3)

	doc := f.create(t, movement.CreateInput{
		Kind: movement.KindTransfer, ProductID: p.ID, Warehouse: "W1", Quantity: 4, ToWarehouse: "W2",
	})
	doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady)
	before := len(f.store.Events(ctx))

	_, err := f.docs.Transition(ctx, doc.ID, movement.StatusDone, "manager-1")
	require.True(t, apperror.IsInsufficientStock(err))

	assert.Len(t, f.store.Events(ctx), before)
	res, err := f.products.List(ctx, productFilterWarehouse("W2"))
	require.NoError(t, err)
	assert.Empty(t, res.Items, "destination creation is rolled back")
}

func TestApplyRejectsQuantityOverflow(t *testing.T) {
	ctx := context.Background()

	t.Run("receipt", func(t *testing.T) {
		f := newFixture(t)
		p := f.register(t, "OVF", "W1", 50)
		doc := f.create(t, movement.CreateInput{
			Kind: movement.KindReceipt, ProductID: p.ID, Warehouse: "W1", Quantity: math.MaxInt64, Supplier: "ACME",
		})
		doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady)

		_, err := f.docs.Transition(ctx, doc.ID, movement.StatusDone, "manager-1")
		require.True(t, apperror.IsValidation(err), "got %v", err)

		assert.Equal(t, int64(50), f.product(t, p.ID).Quantity)
		assert.Empty(t, f.entries(t, ledger.Filter{ProductID: p.ID}))
		got, err := f.docs.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, movement.StatusReady, got.Status)
	})

	t.Run("transfer destination", func(t *testing.T) {
		f := newFixture(t)
		src := f.register(t, "OVF", "W1", 10)
		dst := f.register(t, "OVF", "W2", math.MaxInt64-5)
		doc := f.create(t, movement.CreateInput{
			Kind: movement.KindTransfer, ProductID: src.ID, Warehouse: "W1", Quantity: 10, ToWarehouse: "W2",
		})
		doc = f.advance(t, doc, movement.StatusWaiting, movement.StatusReady)

		_, err := f.docs.Transition(ctx, doc.ID, movement.StatusDone, "manager-1")
		require.True(t, apperror.IsValidation(err), "got %v", err)

		assert.Equal(t, int64(10), f.product(t, src.ID).Quantity)
		assert.Equal(t, int64(math.MaxInt64-5), f.product(t, dst.ID).Quantity)
		assert.Empty(t, f.entries(t, ledger.Filter{DocumentID: doc.ID}))
	})
}
