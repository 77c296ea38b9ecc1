// Package memory provides an in-process store for development and tests.
//
// A transaction holds the store-wide write lock from begin to end, so
// transactions are serialized. Rollback restores a snapshot taken at begin.
// Reads outside a transaction take the read lock.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
)

var (
	_ tx.ReadOnlyManager      = (*Store)(nil)
	_ movement.EventPublisher = (*Store)(nil)
	_ movement.Auditor        = (*Store)(nil)
	_ movement.AuditTrail     = (*Store)(nil)
)

type skuKey struct {
	sku       string
	warehouse string
}

// AuditRecord is one stored audit entry.
type AuditRecord struct {
	EntityType string
	EntityID   id.ID
	Action     string
	UserID     string
	Changes    map[string]any
	CreatedAt  time.Time
}

type state struct {
	products  map[id.ID]*product.Product
	bySKU     map[skuKey]id.ID
	history   map[id.ID][]product.StockHistoryEntry
	documents map[id.ID]*movement.Document
	ledger    []ledger.Entry
	events    []movement.Event
	audit     []AuditRecord
}

// Store holds every table in memory.
type Store struct {
	mu sync.RWMutex
	state
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		state: state{
			products:  make(map[id.ID]*product.Product),
			bySKU:     make(map[skuKey]id.ID),
			history:   make(map[id.ID][]product.StockHistoryEntry),
			documents: make(map[id.ID]*movement.Document),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.state = snap
			panic(p)
		}
		if err != nil {
			s.state = snap
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// read runs fn under the read lock unless the caller already owns the store.
func (s *Store) read(ctx context.Context, fn func()) {
	if !s.inTx(ctx) {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn()
}

// write runs fn under the write lock unless the caller already owns the store.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn()
}

// snapshot deep-copies everything a transaction may change. Stored values
// are replaced, never mutated in place, so copying pointers is enough.
func (s *Store) snapshot() state {
	history := make(map[id.ID][]product.StockHistoryEntry, len(s.history))
	for k, v := range s.history {
		history[k] = v[:len(v):len(v)]
	}
	return state{
		products:  maps.Clone(s.products),
		bySKU:     maps.Clone(s.bySKU),
		history:   history,
		documents: maps.Clone(s.documents),
		ledger:    s.ledger[:len(s.ledger):len(s.ledger)],
		events:    s.events[:len(s.events):len(s.events)],
		audit:     s.audit[:len(s.audit):len(s.audit)],
	}
}

// PublishBatch records events; it implements the outbox publisher.
func (s *Store) PublishBatch(ctx context.Context, events []movement.Event) error {
	return s.write(ctx, func() error {
		s.events = append(s.events, events...)
		return nil
	})
}

// Events returns every recorded event in publish order.
func (s *Store) Events(ctx context.Context) []movement.Event {
	var out []movement.Event
	s.read(ctx, func() {
		out = append(out, s.events...)
	})
	return out
}

// LogChange implements the auditor.
func (s *Store) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	if entityType == "" {
		return fmt.Errorf("audit: entity type is required")
	}
	return s.write(ctx, func() error {
		s.audit = append(s.audit, AuditRecord{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			UserID:     appctx.GetUserID(ctx),
			Changes:    maps.Clone(changes),
			CreatedAt:  s.now(),
		})
		return nil
	})
}

// History implements movement.AuditTrail.
func (s *Store) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]movement.AuditRecord, error) {
	out := []movement.AuditRecord{}
	s.read(ctx, func() {
		for i := len(s.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			r := s.audit[i]
			if r.EntityType != entityType || r.EntityID != entityID {
				continue
			}
			out = append(out, movement.AuditRecord{
				Action:    r.Action,
				UserID:    r.UserID,
				Changes:   maps.Clone(r.Changes),
				CreatedAt: r.CreatedAt,
			})
		}
	})
	return out, nil
}

// Products returns the product repository view.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Documents returns the movement document repository view.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

// Ledger returns the stock ledger repository view.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }
