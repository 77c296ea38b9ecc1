package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"stockflow/internal/core/apperror"
)

// SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// uniqueConstraints names the entity and field behind each unique index.
var uniqueConstraints = map[string][2]string{
	"products_sku_warehouse_key":    {"product", "sku"},
	"movement_documents_number_key": {"document", "number"},
	"products_pkey":                 {"product", "id"},
	"movement_documents_pkey":       {"document", "id"},
	"stock_ledger_pkey":             {"ledger entry", "id"},
	"product_stock_history_pkey":    {"stock history entry", "seq"},
	"sys_idempotency_pkey":          {"idempotency key", "key"},
}

// mapError converts driver errors into application errors. Errors that are
// already AppErrors, and errors it does not recognise, pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		entity, field := "record", "key"
		if names, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
			entity, field = names[0], names[1]
		}
		return apperror.NewDuplicate(entity, field, constraintValue(pgErr.Detail)).WithCause(err)
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return apperror.NewConcurrentModification(pgErr.TableName, nil).WithCause(err)
	case codeForeignKeyViolation:
		return apperror.NewValidation("referenced record does not exist").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case codeCheckViolation:
		return apperror.NewValidation("value violates a storage constraint").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return err
}

// constraintValue extracts "(sku, warehouse)=(X, Y)" style values from a
// unique violation detail.
func constraintValue(detail string) string {
	start := strings.Index(detail, ")=(")
	if start < 0 {
		return ""
	}
	rest := detail[start+3:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return rest
	}
	return rest[:end]
}
