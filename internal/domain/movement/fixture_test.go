package movement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/pkg/numerator"
)

var pageAll = domain.Page{Limit: domain.MaxLimit}

type fixture struct {
	store    *memory.Store
	docs     *movement.Service
	products *product.Service
	ledger   *ledger.Service
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		store: store,
		docs: movement.NewService(movement.ServiceConfig{
			Documents: store.Documents(),
			Products:  store.Products(),
			Ledger:    store.Ledger(),
			TxManager: store,
			Numerator: numerator.New(numerator.NewMemorySequencer(), nil),
			Events:    store,
			Audit:     store,
		}),
		products: product.NewService(store.Products(), store),
		ledger:   ledger.NewService(store.Ledger()),
	}
}

func (f *fixture) register(t testing.TB, sku, warehouse string, qty int64) *product.Product {
	t.Helper()
	p, err := f.products.Register(context.Background(), product.RegisterInput{
		SKU:             sku,
		Name:            "Product " + sku,
		Category:        "general",
		Warehouse:       warehouse,
		Location:        "A-01",
		OpeningQuantity: qty,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) product(t testing.TB, productID id.ID) *product.Product {
	t.Helper()
	p, err := f.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p
}

func (f *fixture) productAt(t testing.TB, sku, warehouse string) *product.Product {
	t.Helper()
	res, err := f.products.List(context.Background(), product.ListFilter{SKU: sku, Warehouse: warehouse})
	require.NoError(t, err)
	require.Len(t, res.Items, 1, "product %s in %s", sku, warehouse)
	return f.product(t, res.Items[0].ID)
}

func (f *fixture) create(t testing.TB, in movement.CreateInput) *movement.Document {
	t.Helper()
	if in.ActorID == "" {
		in.ActorID = "clerk-1"
	}
	doc, err := f.docs.Create(context.Background(), in)
	require.NoError(t, err)
	return doc
}

// advance walks the document through statuses in order.
func (f *fixture) advance(t testing.TB, doc *movement.Document, statuses ...movement.Status) *movement.Document {
	t.Helper()
	for _, s := range statuses {
		var err error
		doc, err = f.docs.Transition(context.Background(), doc.ID, s, "manager-1")
		require.NoError(t, err, "transition to %s", s)
	}
	return doc
}

func (f *fixture) entries(t testing.TB, filter ledger.Filter) []ledger.Entry {
	t.Helper()
	res, err := f.ledger.List(context.Background(), filter)
	require.NoError(t, err)
	return res.Items
}

func ptr[T any](v T) *T { return &v }

func productFilterWarehouse(warehouse string) product.ListFilter {
	return product.ListFilter{Warehouse: warehouse}
}
