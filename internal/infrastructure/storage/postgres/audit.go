package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/movement"
)

// CompressionAlgo specifies how changes are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one row of sys_audit.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

var auditColumns = ExtractDBColumns[AuditEntry]()

// AuditLog writes sys_audit rows in the caller's transaction. Change sets
// above the threshold are stored zstd-compressed.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var (
	_ movement.Auditor    = (*AuditLog)(nil)
	_ movement.AuditTrail = (*AuditLog)(nil)
)

// NewAuditLog creates an audit log. threshold <= 0 selects 10KB.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = 10 * 1024
	}
	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Log records an audit entry. The user defaults to the caller in ctx.
func (a *AuditLog) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	a.pack(&entry)

	query, args, err := sq.Insert("sys_audit").
		SetMap(StructToMap(entry)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// LogChange implements movement.Auditor.
func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	return a.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// History implements movement.AuditTrail.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]movement.AuditRecord, error) {
	builder := sq.Select(auditColumns...).
		From("sys_audit").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC", "id DESC").
		PlaceholderFormat(sq.Dollar)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	records := make([]movement.AuditRecord, 0, len(entries))
	for i := range entries {
		rec, err := a.record(&entries[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a *AuditLog) record(e *AuditEntry) (movement.AuditRecord, error) {
	if err := a.unpack(e); err != nil {
		return movement.AuditRecord{}, err
	}
	rec := movement.AuditRecord{
		Action:    e.Action,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
	if len(e.Changes) > 0 {
		if err := json.Unmarshal(e.Changes, &rec.Changes); err != nil {
			return movement.AuditRecord{}, fmt.Errorf("decode changes of audit entry %s: %w", e.ID, err)
		}
	}
	return rec, nil
}

func (a *AuditLog) pack(e *AuditEntry) {
	e.CompressionAlgo = CompressionNone
	if len(e.Changes) > a.compressThreshold {
		e.ChangesCompressed = a.encoder.EncodeAll(e.Changes, nil)
		e.Changes = nil
		e.CompressionAlgo = CompressionZstd
	}
}

func (a *AuditLog) unpack(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
