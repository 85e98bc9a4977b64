package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "without details",
			err:  NewDomainError("TV-TEST-0001", "something failed"),
			want: "[TV-TEST-0001] something failed",
		},
		{
			name: "with details",
			err:  NewDomainError("TV-TEST-0001", "something failed").WithDetails("extra context"),
			want: "[TV-TEST-0001] something failed: extra context",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err := ErrReversalNotAllowed.WithDetails("outside window")
	if !errors.Is(err, ErrReversalNotAllowed) {
		t.Error("expected errors.Is to match same code")
	}
	if errors.Is(err, ErrSaleNotFound) {
		t.Error("expected errors.Is to reject different code")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStorage.WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	wrapped := fmt.Errorf("store: put: %w", err)
	if !errors.Is(wrapped, ErrStorage) {
		t.Error("expected DomainError to survive fmt.Errorf wrapping")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrChecksumMismatch); got != "TV-SNAP-4220" {
		t.Errorf("GetErrorCode() = %q, want TV-SNAP-4220", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
}

func TestIsDomainError(t *testing.T) {
	err := fmt.Errorf("ledger: %w", ErrEmptySale)
	if !IsDomainError(err, "TV-SALE-4000") {
		t.Error("expected IsDomainError to match wrapped code")
	}
	if !IsDomainError(err, "") {
		t.Error("expected IsDomainError with empty code to match any DomainError")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("expected plain error to not be a DomainError")
	}
}
