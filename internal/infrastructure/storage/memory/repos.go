package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
)

var (
	_ product.Repository  = (*ProductRepo)(nil)
	_ movement.Repository = (*DocumentRepo)(nil)
	_ ledger.Repository   = (*LedgerRepo)(nil)
)

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func() error {
		k := skuKey{sku: p.SKU, warehouse: p.Warehouse}
		if _, exists := r.s.bySKU[k]; exists {
			return apperror.NewDuplicate("product", "sku", p.SKU).WithDetail("warehouse", p.Warehouse)
		}
		if _, exists := r.s.products[p.ID]; exists {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		stored := p.Clone()
		stored.StockHistory = nil
		r.s.products[p.ID] = stored
		r.s.bySKU[k] = p.ID
		return nil
	})
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func() error {
		current, ok := r.s.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID)
		}
		if current.Version != p.Version {
			return apperror.NewConcurrentModification("product", p.ID)
		}
		p.Version++
		stored := p.Clone()
		stored.StockHistory = nil
		// sku and warehouse are immutable, so the index stays valid.
		stored.SKU, stored.Warehouse = current.SKU, current.Warehouse
		r.s.products[p.ID] = stored
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var (
		out *product.Product
		err error
	)
	r.s.read(ctx, func() {
		p, ok := r.s.products[productID]
		if !ok {
			err = apperror.NewNotFound("product", productID)
			return
		}
		out = p.Clone()
		out.StockHistory = slices.Clone(r.s.history[productID])
	})
	return out, err
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	var (
		out *product.Product
		err error
	)
	r.s.read(ctx, func() {
		p, ok := r.s.products[productID]
		if !ok {
			err = apperror.NewNotFound("product", productID)
			return
		}
		out = p.Clone()
	})
	return out, err
}

func (r *ProductRepo) GetBySKUForUpdate(ctx context.Context, sku, warehouse string) (*product.Product, error) {
	var (
		out *product.Product
		err error
	)
	r.s.read(ctx, func() {
		pid, ok := r.s.bySKU[skuKey{sku: product.NormalizeSKU(sku), warehouse: warehouse}]
		if !ok {
			err = apperror.NewNotFound("product", sku+"@"+warehouse)
			return
		}
		out = r.s.products[pid].Clone()
	})
	return out, err
}

func (r *ProductRepo) AppendHistory(ctx context.Context, entry product.StockHistoryEntry) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.products[entry.ProductID]; !ok {
			return apperror.NewNotFound("product", entry.ProductID)
		}
		entry.Seq = int64(len(r.s.history[entry.ProductID]) + 1)
		r.s.history[entry.ProductID] = append(r.s.history[entry.ProductID], entry)
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	var all []*product.Product
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	r.s.read(ctx, func() {
		for _, p := range r.s.products {
			switch {
			case filter.Warehouse != "" && p.Warehouse != filter.Warehouse,
				filter.Category != "" && p.Category != filter.Category,
				filter.SKU != "" && p.SKU != filter.SKU,
				filter.LowStock && !p.IsLowStock(),
				search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
					!strings.Contains(strings.ToLower(p.SKU), search):
				continue
			}
			all = append(all, p.Clone())
		}
	})
	slices.SortFunc(all, func(a, b *product.Product) int {
		return cmp.Or(cmp.Compare(a.SKU, b.SKU), cmp.Compare(a.Warehouse, b.Warehouse))
	})
	return domain.Paginate(all, filter.Page), nil
}

// DocumentRepo implements movement.Repository.
type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Create(ctx context.Context, doc *movement.Document) error {
	return r.s.write(ctx, func() error {
		if _, exists := r.s.documents[doc.ID]; exists {
			return apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		for _, d := range r.s.documents {
			if d.Number == doc.Number {
				return apperror.NewDuplicate("document", "number", doc.Number)
			}
		}
		r.s.documents[doc.ID] = doc.Clone()
		return nil
	})
}

func (r *DocumentRepo) Update(ctx context.Context, doc *movement.Document) error {
	return r.s.write(ctx, func() error {
		current, ok := r.s.documents[doc.ID]
		if !ok {
			return apperror.NewNotFound("document", doc.ID)
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID)
		}
		doc.Version++
		r.s.documents[doc.ID] = doc.Clone()
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*movement.Document, error) {
	var (
		out *movement.Document
		err error
	)
	r.s.read(ctx, func() {
		d, ok := r.s.documents[docID]
		if !ok {
			err = apperror.NewNotFound("document", docID)
			return
		}
		out = d.Clone()
	})
	return out, err
}

// GetForUpdate needs no row lock: the caller's transaction owns the store.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*movement.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *DocumentRepo) List(ctx context.Context, filter movement.Filter) (domain.ListResult[*movement.Document], error) {
	var all []*movement.Document
	r.s.read(ctx, func() {
		for _, d := range r.s.documents {
			if matchDocument(d, filter) {
				all = append(all, d.Clone())
			}
		}
	})
	slices.SortFunc(all, func(a, b *movement.Document) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(b.ID.String(), a.ID.String()))
	})
	return domain.Paginate(all, filter.Page), nil
}

func matchDocument(d *movement.Document, f movement.Filter) bool {
	to := ""
	if t, ok := d.Transfer(); ok {
		to = t.ToWarehouse
	}
	switch {
	case f.Kind != "" && d.Kind != f.Kind,
		f.Status != "" && d.Status != f.Status,
		!id.IsNil(f.ProductID) && d.ProductID != f.ProductID,
		f.Warehouse != "" && d.Warehouse != f.Warehouse && to != f.Warehouse,
		f.FromWarehouse != "" && (d.Kind != movement.KindTransfer || d.Warehouse != f.FromWarehouse),
		f.ToWarehouse != "" && to != f.ToWarehouse,
		f.DateFrom != nil && d.Date.Before(*f.DateFrom),
		f.DateTo != nil && d.Date.After(*f.DateTo):
		return false
	}
	return true
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) Append(ctx context.Context, entries ...ledger.Entry) error {
	return r.s.write(ctx, func() error {
		for _, e := range entries {
			e.Context = maps.Clone(e.Context)
			r.s.ledger = append(r.s.ledger, e)
		}
		return nil
	})
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.Filter) (domain.ListResult[ledger.Entry], error) {
	var all []ledger.Entry
	r.s.read(ctx, func() {
		// Walk backwards: append order is commit order, newest last.
		for i := len(r.s.ledger) - 1; i >= 0; i-- {
			e := r.s.ledger[i]
			switch {
			case !id.IsNil(filter.ProductID) && e.ProductID != filter.ProductID,
				filter.Warehouse != "" && e.Warehouse != filter.Warehouse,
				filter.ActorID != "" && e.ActorID != filter.ActorID,
				filter.Action != "" && e.Action != filter.Action,
				!id.IsNil(filter.DocumentID) && e.DocumentID != filter.DocumentID,
				filter.From != nil && e.CreatedAt.Before(*filter.From),
				filter.To != nil && e.CreatedAt.After(*filter.To):
				continue
			}
			e.Context = maps.Clone(e.Context)
			all = append(all, e)
		}
	})
	return domain.Paginate(all, filter.Page), nil
}
