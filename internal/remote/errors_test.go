package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), KindNetwork},
		{"deadline code", status.Error(codes.DeadlineExceeded, "slow"), KindNetwork},
		{"aborted", status.Error(codes.Aborted, "conflict"), KindNetwork},
		{"context deadline", context.DeadlineExceeded, KindNetwork},
		{"context canceled", context.Canceled, KindNetwork},
		{"permission denied", status.Error(codes.PermissionDenied, "no"), KindPermission},
		{"unauthenticated", status.Error(codes.Unauthenticated, "who"), KindPermission},
		{"not found", status.Error(codes.NotFound, "gone"), KindNotFound},
		{"plain error", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if wrap("query", nil) != nil {
		t.Error("wrapping nil should stay nil")
	}

	err := wrap("query", status.Error(codes.Unavailable, "down"))
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("wrap did not produce a classified error: %v", err)
	}
	if se.Kind != KindNetwork || se.Op != "query" {
		t.Errorf("got kind=%v op=%q", se.Kind, se.Op)
	}
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	inner := NewError(KindPermission, "delete", errors.New("denied"))
	outer := fmt.Errorf("delete transaction: %w", inner)

	if KindOf(outer) != KindPermission {
		t.Errorf("KindOf lost the classification through fmt wrapping")
	}
	if !IsPermission(outer) {
		t.Error("IsPermission should see through the wrap")
	}
}

func TestKindOf_UnclassifiedFallsBackToDriverSignal(t *testing.T) {
	// A bare grpc error that never went through wrap still classifies.
	if KindOf(status.Error(codes.NotFound, "gone")) != KindNotFound {
		t.Error("raw status codes should classify without an Error wrapper")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil classifies as unknown")
	}
}

func TestErrorString(t *testing.T) {
	e := NewError(KindNetwork, "query", errors.New("socket closed"))
	want := "query: network: socket closed"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	bare := NewError(KindUnknown, "get", nil)
	if bare.Error() != "get: unknown" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NewError(KindNotFound, "delete", errors.New("gone"))) {
		t.Error("classified not-found should match")
	}
	if IsNotFound(errors.New("boom")) {
		t.Error("plain error should not match")
	}
}
