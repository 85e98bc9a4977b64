package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "TV-SALE-4030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Sale Ledger Errors (SALE)
// ============================================================================

var (
	// ErrEmptySale indicates a sale was submitted with no line items.
	ErrEmptySale = NewDomainError("TV-SALE-4000", "sale has no items")

	// ErrSaleNotFound indicates the requested sale was not found.
	ErrSaleNotFound = NewDomainError("TV-SALE-4040", "sale not found")

	// ErrReversalNotAllowed indicates the sale cannot be reversed
	// (missing, already reversed, or outside the reversal window).
	ErrReversalNotAllowed = NewDomainError("TV-SALE-4030", "sale reversal not allowed")

	// ErrStockRestoreFailed indicates a reversal could not restore stock;
	// the status flip was compensated back to completed.
	ErrStockRestoreFailed = NewDomainError("TV-SALE-5002", "stock restore failed during reversal")
)

// ============================================================================
// Product / Inventory Errors (PROD)
// ============================================================================

var (
	// ErrProductNotFound indicates the product id is unknown.
	ErrProductNotFound = NewDomainError("TV-PROD-4040", "product not found")

	// ErrInsufficientStock indicates a stock adjustment would drive
	// current stock below zero.
	ErrInsufficientStock = NewDomainError("TV-PROD-4090", "insufficient stock")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrValidation indicates schema or business-rule rejection.
	// A validation failure is never partially applied.
	ErrValidation = NewDomainError("TV-STOR-4001", "validation failed")

	// ErrRecordNotFound indicates the requested record was not found.
	ErrRecordNotFound = NewDomainError("TV-STOR-4040", "record not found")

	// ErrUniqueViolation indicates a unique index constraint was violated.
	ErrUniqueViolation = NewDomainError("TV-STOR-4091", "unique index violation")

	// ErrStorage indicates a generic storage engine error.
	ErrStorage = NewDomainError("TV-STOR-5001", "storage error")

	// ErrStoreClosed indicates the store handle has been closed.
	ErrStoreClosed = NewDomainError("TV-STOR-5002", "store is closed")

	// ErrQuotaExceeded indicates the storage engine ran out of space.
	// Callers should prompt for cleanup rather than retry blindly.
	ErrQuotaExceeded = NewDomainError("TV-STOR-5070", "storage quota exceeded")

	// ErrRecoveryRequired indicates the primary store failed and no
	// backup generation validated; the caller must decide how to proceed.
	ErrRecoveryRequired = NewDomainError("TV-STOR-5090", "recovery required, no valid backup")
)

// ============================================================================
// Snapshot / Backup Errors (SNAP)
// ============================================================================

var (
	// ErrChecksumMismatch indicates a snapshot's recomputed digest
	// disagrees with its recorded checksum. Fatal to a restore.
	ErrChecksumMismatch = NewDomainError("TV-SNAP-4220", "snapshot checksum mismatch")

	// ErrDecompression indicates the snapshot body could not be
	// decompressed. Recoverable: callers fall back to a plain parse.
	ErrDecompression = NewDomainError("TV-SNAP-4221", "snapshot decompression failed")

	// ErrSnapshotMalformed indicates the snapshot body is not parseable.
	ErrSnapshotMalformed = NewDomainError("TV-SNAP-4000", "snapshot malformed")
)

// ============================================================================
// Counter Errors (CNTR)
// ============================================================================

var (
	// ErrCounterConflict indicates a duplicate value was issued by a
	// named sequence. Duplicates indicate a concurrency bug and are fatal.
	ErrCounterConflict = NewDomainError("TV-CNTR-4090", "duplicate counter value")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TV-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TV-ARG-1002", "missing required argument")
)
