package errors

import (
	stderrors "errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeDateInvalid      Code = "DATE_INVALID"
	CodeDateRangeInvalid Code = "DATE_RANGE_INVALID"
	CodeGuestsInvalid    Code = "GUESTS_INVALID"
	CodePriceInvalid     Code = "PRICE_INVALID"
	CodeFieldMissing     Code = "FIELD_MISSING"

	// Booking errors
	CodeBookingNotFound          Code = "BOOKING_NOT_FOUND"
	CodeBookingInvalidTransition Code = "BOOKING_INVALID_STATUS_TRANSITION"
	CodeBookingNotCancellable    Code = "BOOKING_NOT_CANCELLABLE"
	CodeDateOverlap              Code = "DATE_OVERLAP"

	// Asset/host precondition errors
	CodeAssetNotFound        Code = "ASSET_NOT_FOUND"
	CodeAssetInactive        Code = "ASSET_INACTIVE"
	CodeHostPayoutUnverified Code = "HOST_PAYOUT_UNVERIFIED"

	// Payment errors
	CodePaymentNotFound       Code = "PAYMENT_NOT_FOUND"
	CodePaymentIncomplete     Code = "PAYMENT_INCOMPLETE"
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionNotCancellable Code = "SESSION_NOT_CANCELLABLE"

	// Payout errors
	CodePayoutAlreadyProcessed Code = "PAYOUT_ALREADY_PROCESSED"

	// External processor errors
	CodeProcessorUnavailable Code = "PROCESSOR_UNAVAILABLE"
	CodeProcessorRejected    Code = "PROCESSOR_REJECTED"

	// Integrity errors
	CodeIntegrityViolation Code = "PAYMENT_INTEGRITY_VIOLATION"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeDateInvalid,
		CodeDateRangeInvalid,
		CodeGuestsInvalid,
		CodePriceInvalid,
		CodeFieldMissing:
		return http.StatusBadRequest

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeBookingNotFound,
		CodeAssetNotFound,
		CodePaymentNotFound,
		CodeSessionNotFound:
		return http.StatusNotFound

	// Conflict - competing reservation state
	case CodeDateOverlap,
		CodePayoutAlreadyProcessed:
		return http.StatusConflict

	// Unprocessable - state doesn't allow operation
	case CodeBookingInvalidTransition,
		CodeBookingNotCancellable,
		CodeAssetInactive,
		CodeHostPayoutUnverified,
		CodePaymentIncomplete,
		CodeSessionNotCancellable,
		CodeProcessorRejected:
		return http.StatusUnprocessableEntity

	// Unavailable - transient external failure, caller may retry
	case CodeProcessorUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an operation failing with this code may be
// safely retried by the caller.
func (c Code) Retryable() bool {
	return c == CodeProcessorUnavailable
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts operator metadata from any error.
// Returns nil if the error is not a domain error or carries none.
func GetMetadata(err error) map[string]string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
