package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTables(t *testing.T) {
	tests := []struct {
		kind Kind
		from Status
		want []Status
	}{
		{KindReceipt, StatusDraft, []Status{StatusWaiting, StatusCanceled}},
		{KindReceipt, StatusReady, []Status{StatusDone, StatusCanceled}},
		{KindDelivery, StatusReady, []Status{StatusPicking, StatusCanceled}},
		{KindDelivery, StatusPacking, []Status{StatusDone, StatusCanceled}},
		{KindTransfer, StatusWaiting, []Status{StatusReady, StatusCanceled, StatusFailed}},
		{KindTransfer, StatusReady, []Status{StatusDone, StatusCanceled, StatusFailed}},
		{KindAdjustment, StatusDraft, []Status{StatusDone}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.from), func(t *testing.T) {
			assert.Equal(t, tt.want, Successors(tt.kind, tt.from))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, k := range Kinds {
		for _, s := range Statuses(k) {
			terminal := s == StatusDone || s == StatusCanceled || s == StatusFailed
			assert.Equal(t, terminal, IsTerminal(k, s), "%s/%s", k, s)
			assert.Equal(t, !terminal, CanStartIn(k, s), "%s/%s", k, s)
		}
	}
}

// Every table entry must stay inside the kind's status set, and every
// non-terminal status must reach the applied status.
func TestTransitionTablesAreClosed(t *testing.T) {
	for _, k := range Kinds {
		applied := AppliedStatus(k)
		require.True(t, HasStatus(k, applied))
		for _, from := range Statuses(k) {
			for _, to := range Successors(k, from) {
				assert.True(t, HasStatus(k, to), "%s: %s -> %s", k, from, to)
			}
			if !IsTerminal(k, from) {
				assert.True(t, reaches(k, from, applied), "%s: %s cannot reach %s", k, from, applied)
			}
		}
	}
}

func reaches(k Kind, from, target Status) bool {
	seen := map[Status]bool{}
	queue := []Status{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s == target {
			return true
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		queue = append(queue, Successors(k, s)...)
	}
	return false
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(KindDelivery, StatusPicking, StatusPacking))
	assert.False(t, CanTransition(KindReceipt, StatusReady, StatusPicking))
	assert.False(t, CanTransition(KindReceipt, StatusReady, StatusFailed))
	assert.False(t, CanTransition(KindAdjustment, StatusDraft, StatusCanceled))
	assert.False(t, CanTransition(KindTransfer, StatusDone, StatusDone))
	assert.False(t, CanTransition(KindTransfer, StatusDraft, "unknown"))
}

func TestSuccessorsReturnsCopy(t *testing.T) {
	s := Successors(KindReceipt, StatusDraft)
	s[0] = StatusDone
	assert.Equal(t, StatusWaiting, Successors(KindReceipt, StatusDraft)[0])
}

func TestPayloadRoundTrip(t *testing.T) {
	count := int64(7)
	payloads := []Payload{
		ReceiptPayload{Supplier: "Acme"},
		DeliveryPayload{DeliveredTo: "Shop", PickedQuantity: 3, PackedQuantity: 2},
		TransferPayload{ToWarehouse: "W2", ToLocation: "B-1"},
		AdjustmentPayload{OldStock: 9, NewStock: 7, PhysicalCount: &count, Reason: "count"},
	}
	for _, p := range payloads {
		data, err := EncodePayload(p)
		require.NoError(t, err)
		got, err := DecodePayload(p.Kind(), data)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := DecodePayload("return", []byte(`{}`))
	assert.Error(t, err)
	_, err = EncodePayload(nil)
	assert.Error(t, err)
}

func TestDocumentClone(t *testing.T) {
	count := int64(4)
	d := &Document{Kind: KindAdjustment, Payload: AdjustmentPayload{PhysicalCount: &count}}
	c := d.Clone()
	adj, _ := c.Adjustment()
	*adj.PhysicalCount = 99
	orig, _ := d.Adjustment()
	assert.Equal(t, int64(4), *orig.PhysicalCount)
}

func TestNumberPrefix(t *testing.T) {
	assert.Equal(t, "REC", NumberPrefix(KindReceipt))
	assert.Equal(t, "DEL", NumberPrefix(KindDelivery))
	assert.Equal(t, "TRF", NumberPrefix(KindTransfer))
	assert.Equal(t, "ADJ", NumberPrefix(KindAdjustment))
}
