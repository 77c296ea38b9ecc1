package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/ledger"
)

func TestEntryValuesFollowColumns(t *testing.T) {
	e := ledger.Entry{
		ID:             id.New(),
		Action:         ledger.ActionTransferIn,
		ProductID:      id.New(),
		SKU:            "SKU-1",
		Warehouse:      "W2",
		Delta:          30,
		QuantityAfter:  30,
		ActorID:        "clerk-1",
		DocumentNumber: "TRF-2026-00001",
		DocumentKind:   "transfer",
		Context:        map[string]any{"fromWarehouse": "W1"},
		CreatedAt:      time.Now(),
	}

	values := entryValues(e)
	assert.Len(t, values, len(ledgerColumns))

	byColumn := make(map[string]any, len(values))
	for i, col := range ledgerColumns {
		byColumn[col] = values[i]
	}
	assert.Equal(t, "TRANSFER_IN", byColumn["action"])
	assert.Equal(t, "W2", byColumn["warehouse"])
	assert.Equal(t, int64(30), byColumn["delta"])
	assert.Equal(t, "TRF-2026-00001", byColumn["document_number"])
	assert.Equal(t, e.Context, byColumn["context"])
}
