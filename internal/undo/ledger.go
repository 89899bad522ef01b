//go:build windows

// Package undo tracks reversible system-state changes made on behalf
// of one client session, so they can be unwound when the session ends.
package undo

// Kind identifies the category of a recorded side effect.
type Kind int

const (
	Address Kind = iota
	Route
	WfpBlock
	DNS4
	DNS6
	DNSDomains
	WINS
	RingBuffer
	kindCount
)

func (k Kind) String() string {
	switch k {
	case Address:
		return "address"
	case Route:
		return "route"
	case WfpBlock:
		return "wfp_block"
	case DNS4:
		return "dns_v4"
	case DNS6:
		return "dns_v6"
	case DNSDomains:
		return "dns_domains"
	case WINS:
		return "wins"
	case RingBuffer:
		return "ring_buffer"
	default:
		return "unknown"
	}
}

// Ledger is the per-session undo record store. Single-owner: the
// session worker is the only goroutine that touches it.
type Ledger struct {
	lists [kindCount][]any
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append records one side effect. A successful mutating request
// appends exactly one record.
func (l *Ledger) Append(k Kind, rec any) {
	l.lists[k] = append(l.lists[k], rec)
}

// RemoveMatching removes and returns the newest record of the kind
// for which match returns true, or nil.
func (l *Ledger) RemoveMatching(k Kind, match func(rec any) bool) any {
	list := l.lists[k]
	for i := len(list) - 1; i >= 0; i-- {
		if match(list[i]) {
			rec := list[i]
			l.lists[k] = append(list[:i], list[i+1:]...)
			return rec
		}
	}
	return nil
}

// RemoveNewest removes and returns the newest record of the kind, or
// nil if none exists.
func (l *Ledger) RemoveNewest(k Kind) any {
	return l.RemoveMatching(k, func(any) bool { return true })
}

// Len reports the number of records of a kind.
func (l *Ledger) Len(k Kind) int {
	return len(l.lists[k])
}

// Drain calls apply for every record, newest first within each kind,
// and empties the ledger. Records are independent side effects, so no
// cross-kind ordering is needed.
func (l *Ledger) Drain(apply func(k Kind, rec any)) {
	for k := Kind(0); k < kindCount; k++ {
		list := l.lists[k]
		for i := len(list) - 1; i >= 0; i-- {
			apply(k, list[i])
		}
		l.lists[k] = nil
	}
}
