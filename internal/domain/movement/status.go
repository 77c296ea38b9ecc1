package movement

import "slices"

// Kind identifies a movement document variant.
type Kind string

const (
	KindReceipt    Kind = "receipt"
	KindDelivery   Kind = "delivery"
	KindTransfer   Kind = "transfer"
	KindAdjustment Kind = "adjustment"
)

// Kinds lists every document kind.
var Kinds = []Kind{KindReceipt, KindDelivery, KindTransfer, KindAdjustment}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Status of a movement document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusWaiting  Status = "waiting"
	StatusReady    Status = "ready"
	StatusPicking  Status = "picking"
	StatusPacking  Status = "packing"
	StatusDone     Status = "done"
	StatusCanceled Status = "canceled"
	StatusFailed   Status = "failed"
)

// transitions holds the legal successors of every status per kind. A status
// with no entry is terminal for that kind.
var transitions = map[Kind]map[Status][]Status{
	KindReceipt: {
		StatusDraft:   {StatusWaiting, StatusCanceled},
		StatusWaiting: {StatusReady, StatusCanceled},
		StatusReady:   {StatusDone, StatusCanceled},
	},
	KindDelivery: {
		StatusDraft:   {StatusWaiting, StatusCanceled},
		StatusWaiting: {StatusReady, StatusCanceled},
		StatusReady:   {StatusPicking, StatusCanceled},
		StatusPicking: {StatusPacking, StatusCanceled},
		StatusPacking: {StatusDone, StatusCanceled},
	},
	KindTransfer: {
		StatusDraft:   {StatusWaiting, StatusCanceled},
		StatusWaiting: {StatusReady, StatusCanceled, StatusFailed},
		StatusReady:   {StatusDone, StatusCanceled, StatusFailed},
	},
	KindAdjustment: {
		StatusDraft: {StatusDone},
	},
}

// statuses is the full status set of each kind, in workflow order.
var statuses = map[Kind][]Status{
	KindReceipt:    {StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCanceled},
	KindDelivery:   {StatusDraft, StatusWaiting, StatusReady, StatusPicking, StatusPacking, StatusDone, StatusCanceled},
	KindTransfer:   {StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCanceled, StatusFailed},
	KindAdjustment: {StatusDraft, StatusDone},
}

// AppliedStatus is the status whose entry mutates stock. It is the same for
// every kind today but callers must not rely on that.
func AppliedStatus(k Kind) Status {
	return StatusDone
}

// Statuses returns the statuses a document of kind k can be in.
func Statuses(k Kind) []Status {
	return slices.Clone(statuses[k])
}

// HasStatus reports whether s belongs to the status set of k.
func HasStatus(k Kind, s Status) bool {
	return slices.Contains(statuses[k], s)
}

// Successors returns the legal next statuses.
func Successors(k Kind, from Status) []Status {
	return slices.Clone(transitions[k][from])
}

// CanTransition reports whether from -> to is in the table of k.
func CanTransition(k Kind, from, to Status) bool {
	return slices.Contains(transitions[k][from], to)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(k Kind, s Status) bool {
	return len(transitions[k][s]) == 0
}

// CanStartIn reports whether a document of kind k may be created in s.
func CanStartIn(k Kind, s Status) bool {
	return HasStatus(k, s) && !IsTerminal(k, s)
}
