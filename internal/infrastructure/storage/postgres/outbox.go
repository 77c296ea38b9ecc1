package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/movement"
	"stockflow/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

var outboxColumns = ExtractDBColumns[OutboxMessage]()

// OutboxPublisher writes domain events into sys_outbox in the caller's
// transaction.
type OutboxPublisher struct {
	batch *BatchExecutor
}

var _ movement.EventPublisher = (*OutboxPublisher)(nil)

func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{batch: NewBatchExecutor(txManager)}
}

// PublishBatch queues every event in one round trip. It must run inside a
// transaction so events commit with the change they describe.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []movement.Event) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	queries := make([]BatchQuery, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event.EventType, err)
		}
		queries = append(queries, BatchQuery{
			SQL: `INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			Args: []any{id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, now},
		})
	}
	if err := p.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// OutboxHandler delivers one message to the broker.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay moves pending outbox messages to an OutboxHandler.
type OutboxRelay struct {
	txManager  *TxManager
	batchSize  int
	maxRetries int
	handler    OutboxHandler
}

func NewOutboxRelay(txManager *TxManager, batchSize, maxRetries int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxRelay{
		txManager:  txManager,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		handler:    handler,
	}
}

// ProcessBatch delivers up to batchSize due messages and returns how many
// were published. Rows stay locked for the whole batch, so several relays
// can run side by side without delivering a message twice.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	query, args, err := sq.Select(outboxColumns...).
		From("sys_outbox").
		Where(sq.Eq{"status": OutboxStatusPending}).
		Where("(next_retry_at IS NULL OR next_retry_at <= NOW())").
		OrderBy("created_at").
		Limit(uint64(r.batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build outbox query: %w", err)
	}

	processed := 0
	err = r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)
		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, q, &messages, query, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}
		for _, msg := range messages {
			if err := r.deliver(ctx, q, msg); err != nil {
				return err
			}
			if msg.Status == OutboxStatusPublished {
				processed++
			}
		}
		return nil
	})
	return processed, err
}

// deliver records the outcome of one message. A handler failure is not an
// error of the batch: the message is rescheduled with linear backoff.
func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	if herr := r.handler.Handle(ctx, msg); herr != nil {
		msg.RetryCount++
		status := OutboxStatusPending
		if msg.RetryCount >= r.maxRetries {
			status = OutboxStatusFailed
		}
		logger.Warn(ctx, "outbox delivery failed",
			"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount, "error", herr)

		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
			WHERE id = $5
		`, msg.RetryCount, herr.Error(), time.Now().UTC().Add(time.Duration(msg.RetryCount)*time.Minute), status, msg.ID)
		if err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		msg.Status = status
		return nil
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return fmt.Errorf("mark message published: %w", err)
	}
	msg.Status = OutboxStatusPublished
	return nil
}

// MoveToDLQ moves messages that exhausted their retries to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() AS failed_at, last_error AS failure_reason FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge published: %w", err)
	}
	return result.RowsAffected(), nil
}
