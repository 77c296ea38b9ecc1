// Package register_repo provides the PostgreSQL stock ledger.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stock_ledger"

var ledgerColumns = postgres.ExtractDBColumns[ledger.Entry]()

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func entryValues(e ledger.Entry) []any {
	return []any{
		e.ID, string(e.Action), e.ProductID, e.SKU, e.Warehouse, e.Location,
		e.Delta, e.QuantityAfter, e.ActorID, e.ApproverID,
		e.DocumentID, e.DocumentNumber, e.DocumentKind, e.Context, e.CreatedAt,
	}
}

// Append writes entries. Inside a transaction it uses COPY.
func (r *LedgerRepo) Append(ctx context.Context, entries ...ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if r.txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, entryValues(e))
		}
		if _, err := r.inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(ledgerTable).Columns(ledgerColumns...)
	for _, e := range entries {
		q = q.Values(entryValues(e)...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *LedgerRepo) List(ctx context.Context, filter ledger.Filter) (domain.ListResult[ledger.Entry], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[ledger.Entry]{Items: []ledger.Entry{}, Limit: page.Limit, Offset: page.Offset}

	where := squirrel.Eq{}
	if !id.IsNil(filter.ProductID) {
		where["product_id"] = filter.ProductID
	}
	if filter.Warehouse != "" {
		where["warehouse"] = filter.Warehouse
	}
	if filter.ActorID != "" {
		where["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		where["action"] = string(filter.Action)
	}
	if !id.IsNil(filter.DocumentID) {
		where["document_id"] = filter.DocumentID
	}
	cond := squirrel.And{where}
	if filter.From != nil {
		cond = append(cond, squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		cond = append(cond, squirrel.LtOrEq{"created_at": *filter.To})
	}

	q := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(ledgerTable).Where(cond).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count ledger entries: %w", err)
	}

	sql, args, err := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(cond).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list ledger entries: %w", err)
	}
	return result, nil
}
