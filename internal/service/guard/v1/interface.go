// Package guard declares the idempotency guard contract.
package guard

import "context"

// Guard deduplicates external events by their natural key. Admit is a fast
// pre-check only: the authoritative guards are the ledger's unique constraint
// on creation keys and its conditional status transitions.
type Guard interface {
	Admit(ctx context.Context, eventKey string) bool
	Forget(ctx context.Context, eventKey string)
}
