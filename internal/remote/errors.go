package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind buckets store failures into the four classes the sync layer reacts to.
type Kind string

const (
	// KindNetwork covers transient transport failures. Never retried in a
	// loop by this layer; the next user-triggered fetch retries naturally.
	KindNetwork Kind = "network"
	// KindPermission covers access denials. On a live subscription this
	// usually means a record was just deleted out from under the reader.
	KindPermission Kind = "permission"
	// KindNotFound covers missing documents. For deletes this is treated
	// as already satisfied.
	KindNotFound Kind = "not-found"
	// KindUnknown is everything else; surfaced verbatim.
	KindUnknown Kind = "unknown"
)

// Error wraps a store failure with its classification and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified store error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// wrap classifies err from the underlying driver and tags it with op.
// A nil err returns nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

// classify maps driver errors onto the taxonomy. Firestore surfaces gRPC
// status codes, so that is the primary signal; context errors count as
// network-class since the layer treats "no response" like any other
// transport failure.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return KindNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return KindPermission
	case codes.NotFound:
		return KindNotFound
	default:
		return KindUnknown
	}
}

// KindOf extracts the classification from an error chain, defaulting to
// unknown for errors that did not come from a store operation.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if err == nil {
		return KindUnknown
	}
	return classify(err)
}

// IsPermission reports whether err is a permission-class store failure.
func IsPermission(err error) bool { return KindOf(err) == KindPermission }

// IsNotFound reports whether err is a not-found-class store failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
