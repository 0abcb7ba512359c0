// Package remote abstracts the document store the transaction layer syncs
// against: owner-scoped queries, point reads, CRUD writes and a live change
// subscription. The concrete implementation is Firestore; tests substitute an
// in-memory fake.
package remote

import "context"

// RawDoc is a document as the store delivers it: an opaque id plus an
// untyped field map. Coercion into the typed transaction shape happens in
// exactly one place, the normalizer.
type RawDoc struct {
	ID   string
	Data map[string]interface{}
}

// ChangeKind identifies what happened to a document in a live subscription.
type ChangeKind string

const (
	// ChangeAdded means the document newly matches the subscription.
	ChangeAdded ChangeKind = "added"
	// ChangeModified means a matching document's contents changed.
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved means the document no longer matches (deleted or
	// moved out of scope).
	ChangeRemoved ChangeKind = "removed"
)

// Change is a single entry of a subscription batch. Within one batch the
// store's ordering is significant: a later change for the same id supersedes
// an earlier one.
type Change struct {
	Kind ChangeKind
	Doc  RawDoc
}

// BatchHandler receives one ordered batch of changes.
type BatchHandler func(batch []Change)

// ErrorHandler receives subscription stream errors. The stream keeps running
// after the handler returns; classification is up to the caller.
type ErrorHandler func(err error)

// Store is the capability this layer consumes from the document store.
//
// Implementations assign server timestamps: Create stamps createdAt and
// updatedAt, Update refreshes updatedAt. Get reports an absent document as
// (zero, false, nil) rather than an error.
type Store interface {
	// Query returns every document owned by ownerID.
	Query(ctx context.Context, ownerID string) ([]RawDoc, error)

	// Get returns a single document by id. The boolean reports presence.
	Get(ctx context.Context, id string) (RawDoc, bool, error)

	// Create stores a new document and returns its server-assigned id.
	Create(ctx context.Context, data map[string]interface{}) (string, error)

	// Update merges patch into an existing document.
	Update(ctx context.Context, id string, patch map[string]interface{}) error

	// Delete removes a document by id.
	Delete(ctx context.Context, id string) error

	// Subscribe opens a live change feed scoped to ownerID. Batches are
	// delivered in store order until the returned stop function is called.
	Subscribe(ctx context.Context, ownerID string, onBatch BatchHandler, onError ErrorHandler) (func(), error)
}
