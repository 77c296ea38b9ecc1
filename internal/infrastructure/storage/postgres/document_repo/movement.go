// Package document_repo provides the PostgreSQL store of movement documents.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/domain/movement"
	"stockflow/internal/infrastructure/storage/postgres"
)

const documentsTable = "movement_documents"

// documentRow is the stored shape of a document. The kind-specific payload
// lives in details; to_warehouse is duplicated out of it for filtering.
type documentRow struct {
	ID          id.ID     `db:"id"`
	Number      string    `db:"number"`
	Kind        string    `db:"kind"`
	Status      string    `db:"status"`
	ProductID   id.ID     `db:"product_id"`
	Warehouse   string    `db:"warehouse"`
	ToWarehouse *string   `db:"to_warehouse"`
	Location    string    `db:"location"`
	Quantity    int64     `db:"quantity"`
	ActorID     string    `db:"actor_id"`
	ApproverID  string    `db:"approver_id"`
	Date        time.Time `db:"date"`
	Details     []byte    `db:"details"`
	Version     int       `db:"version"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

var documentColumns = postgres.ExtractDBColumns[documentRow]()

func toRow(doc *movement.Document) (documentRow, error) {
	details, err := movement.EncodePayload(doc.Payload)
	if err != nil {
		return documentRow{}, err
	}
	row := documentRow{
		ID:         doc.ID,
		Number:     doc.Number,
		Kind:       string(doc.Kind),
		Status:     string(doc.Status),
		ProductID:  doc.ProductID,
		Warehouse:  doc.Warehouse,
		Location:   doc.Location,
		Quantity:   doc.Quantity,
		ActorID:    doc.ActorID,
		ApproverID: doc.ApproverID,
		Date:       doc.Date,
		Details:    details,
		Version:    doc.Version,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if t, ok := doc.Transfer(); ok {
		row.ToWarehouse = &t.ToWarehouse
	}
	return row, nil
}

func (row *documentRow) toDocument() (*movement.Document, error) {
	kind := movement.Kind(row.Kind)
	payload, err := movement.DecodePayload(kind, row.Details)
	if err != nil {
		return nil, err
	}
	return &movement.Document{
		ID:         row.ID,
		Number:     row.Number,
		Kind:       kind,
		Status:     movement.Status(row.Status),
		ProductID:  row.ProductID,
		Warehouse:  row.Warehouse,
		Location:   row.Location,
		Quantity:   row.Quantity,
		ActorID:    row.ActorID,
		ApproverID: row.ApproverID,
		Date:       row.Date,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		Version:    row.Version,
		Payload:    payload,
	}, nil
}

var _ movement.Repository = (*DocumentRepo)(nil)

// DocumentRepo implements movement.Repository.
type DocumentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *movement.Document) error {
	row, err := toRow(doc)
	if err != nil {
		return err
	}
	sql, args, err := r.builder.Insert(documentsTable).SetMap(postgres.StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns with optimistic locking.
func (r *DocumentRepo) Update(ctx context.Context, doc *movement.Document) error {
	row, err := toRow(doc)
	if err != nil {
		return err
	}
	sql, args, err := r.builder.Update(documentsTable).
		SetMap(map[string]any{
			"status":      row.Status,
			"approver_id": row.ApproverID,
			"location":    row.Location,
			"details":     row.Details,
			"updated_at":  row.UpdatedAt,
		}).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID, "version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID)
	}
	doc.Version++
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*movement.Document, error) {
	return r.get(ctx, docID, false)
}

func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*movement.Document, error) {
	return r.get(ctx, docID, true)
}

func (r *DocumentRepo) selectQuery(docID id.ID, lock bool) squirrel.SelectBuilder {
	q := r.builder.Select(documentColumns...).From(documentsTable).Where(squirrel.Eq{"id": docID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *DocumentRepo) get(ctx context.Context, docID id.ID, lock bool) (*movement.Document, error) {
	sql, args, err := r.selectQuery(docID, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return row.toDocument()
}

// List returns documents newest first.
func (r *DocumentRepo) List(ctx context.Context, filter movement.Filter) (domain.ListResult[*movement.Document], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*movement.Document]{Items: []*movement.Document{}, Limit: page.Limit, Offset: page.Offset}

	where := squirrel.And{}
	if filter.Kind != "" {
		where = append(where, squirrel.Eq{"kind": string(filter.Kind)})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": string(filter.Status)})
	}
	if !id.IsNil(filter.ProductID) {
		where = append(where, squirrel.Eq{"product_id": filter.ProductID})
	}
	if filter.Warehouse != "" {
		where = append(where, squirrel.Or{
			squirrel.Eq{"warehouse": filter.Warehouse},
			squirrel.Eq{"to_warehouse": filter.Warehouse},
		})
	}
	if filter.FromWarehouse != "" {
		where = append(where, squirrel.Eq{"kind": string(movement.KindTransfer), "warehouse": filter.FromWarehouse})
	}
	if filter.ToWarehouse != "" {
		where = append(where, squirrel.Eq{"to_warehouse": filter.ToWarehouse})
	}
	if filter.DateFrom != nil {
		where = append(where, squirrel.GtOrEq{"date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		where = append(where, squirrel.LtOrEq{"date": *filter.DateTo})
	}

	q := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(documentsTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count documents: %w", err)
	}

	sql, args, err := r.builder.Select(documentColumns...).
		From(documentsTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, doc)
	}
	return result, nil
}
