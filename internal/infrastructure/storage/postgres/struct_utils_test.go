package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/product"
)

type testAuditColumns struct {
	CreatedAt time.Time `db:"created_at"`
}

type sampleRow struct {
	testAuditColumns
	ID       id.ID  `db:"id"`
	Name     string `db:"name"`
	Internal string `db:"-"`
	NoTag    string
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t, []string{"created_at", "id", "name"}, ExtractDBColumns[sampleRow]())

	cols := ExtractDBColumns[product.Product]()
	assert.Contains(t, cols, "reorder_level")
	assert.NotContains(t, cols, "stock_history")

	assert.Contains(t, ExtractDBColumns[ledger.Entry](), "quantity_after")
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	r := sampleRow{testAuditColumns: testAuditColumns{CreatedAt: now}, ID: id.New(), Name: "x", Internal: "hidden"}

	m := StructToMap(&r)
	assert.Equal(t, map[string]any{"created_at": now, "id": r.ID, "name": "x"}, m)

	m = StructToMap(r, "created_at")
	assert.NotContains(t, m, "created_at")
	assert.Len(t, m, 2)

	assert.Nil(t, StructToMap(42))
}
