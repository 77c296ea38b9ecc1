package document_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/movement"
)

func TestDocumentRow_RoundTrip(t *testing.T) {
	count := int64(35)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []*movement.Document{
		{
			ID: id.New(), Number: "TRF-2026-00001", Kind: movement.KindTransfer, Status: movement.StatusReady,
			ProductID: id.New(), Warehouse: "W1", Quantity: 30, ActorID: "clerk-1",
			Date: now, CreatedAt: now, UpdatedAt: now, Version: 2,
			Payload: movement.TransferPayload{ToWarehouse: "W2", ToLocation: "B-01"},
		},
		{
			ID: id.New(), Number: "ADJ-2026-00001", Kind: movement.KindAdjustment, Status: movement.StatusDraft,
			ProductID: id.New(), Warehouse: "W1", ActorID: "clerk-1",
			Date: now, CreatedAt: now, UpdatedAt: now, Version: 1,
			Payload: movement.AdjustmentPayload{OldStock: 40, NewStock: 35, PhysicalCount: &count, Reason: "recount"},
		},
	}

	for _, doc := range docs {
		t.Run(string(doc.Kind), func(t *testing.T) {
			row, err := toRow(doc)
			require.NoError(t, err)
			if tr, ok := doc.Transfer(); ok {
				require.NotNil(t, row.ToWarehouse)
				assert.Equal(t, tr.ToWarehouse, *row.ToWarehouse)
			} else {
				assert.Nil(t, row.ToWarehouse)
			}

			back, err := row.toDocument()
			require.NoError(t, err)
			assert.Equal(t, doc, back)
		})
	}
}

func TestDocumentRow_Errors(t *testing.T) {
	_, err := toRow(&movement.Document{Kind: movement.KindReceipt})
	assert.Error(t, err)

	row := documentRow{Kind: "rental", Details: []byte(`{}`)}
	_, err = row.toDocument()
	assert.Error(t, err)
}

func TestDocumentRepo_SelectQuery(t *testing.T) {
	r := NewDocumentRepo(nil)
	docID := id.New()

	sql, args, err := r.selectQuery(docID, true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM movement_documents WHERE id = $1")
	assert.True(t, strings.HasSuffix(sql, "FOR UPDATE"), sql)
	assert.Equal(t, []any{docID}, args)

	sql, _, err = r.selectQuery(docID, false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}
