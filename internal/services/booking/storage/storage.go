// Package storage defines the persistence contract for the booking engine.
// The booking and payment tables are the only shared mutable state; every
// cross-process coordination point is expressed here as a compare-and-set
// operation so multiple service instances can run against one store.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"github.com/shopspring/decimal"
)

// BookingFilter selects bookings by requesting guest, asset owner, or asset.
type BookingFilter struct {
	GuestID string
	HostID  string
	AssetID string
}

// PayoutCandidate is a payment eligible for an escrow transfer joined to
// its booking.
type PayoutCandidate struct {
	Payment domain.Payment
	Booking domain.Booking
}

// IntegrityViolation pairs an occupancy-status booking with a payment that
// was never completed. It is a critical fault, surfaced for audit and never
// silently corrected.
type IntegrityViolation struct {
	Booking domain.Booking
	Payment domain.Payment
}

// RefundRecord carries the processor-confirmed refund details persisted
// during cancellation.
type RefundRecord struct {
	RefundID string
	Reason   string
	Amount   decimal.Decimal
}

// Store is the durable state contract shared by the request handlers and
// the background sweeps.
type Store interface {
	// CreateBookingWithPayment persists a pending booking and its payment
	// in one transaction, re-verifying date overlap inside that transaction
	// so concurrent admissions for intersecting intervals cannot both
	// commit. The checkout-created event is recorded atomically.
	CreateBookingWithPayment(ctx context.Context, booking domain.Booking, payment domain.Payment, evt domain.PaymentEvent) error

	ActiveBookingsForAsset(ctx context.Context, assetID string) ([]domain.Booking, error)
	Booking(ctx context.Context, id string) (domain.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)

	Payment(ctx context.Context, id string) (domain.Payment, error)
	PaymentByBooking(ctx context.Context, bookingID string) (domain.Payment, error)
	PaymentBySession(ctx context.Context, sessionID string) (domain.Payment, error)

	// ConfirmSessionPaid applies the pending→completed capture edge for a
	// session with compare-and-set semantics. Exactly one caller observes
	// true; that transaction also moves the booking pending→reserved,
	// mirrors the payment status, and appends the captured event. Duplicate
	// or out-of-order confirmations return false with no mutation.
	ConfirmSessionPaid(ctx context.Context, sessionID, paymentRef string, at time.Time) (bool, error)

	// CancelPendingSession fails an uncaptured payment and cancels its
	// pending booking atomically. Returns false when the payment has
	// already left pending.
	CancelPendingSession(ctx context.Context, sessionID string, at time.Time) (bool, error)

	// CancelBookingWithRefund marks a captured payment refunded and its
	// booking cancelled in one transaction, appending the refunded event.
	CancelBookingWithRefund(ctx context.Context, bookingID string, refund RefundRecord, at time.Time) error

	// CancelBookingKeepingPayment cancels a booking whose captured payment
	// is retained in full (zero-percent refund policies).
	CancelBookingKeepingPayment(ctx context.Context, bookingID string, at time.Time) error

	// PayoutCandidates lists completed payments awaiting an escrow transfer
	// for bookings whose check-in has arrived.
	PayoutCandidates(ctx context.Context, now time.Time, limit int) ([]PayoutCandidate, error)

	// ClaimPayout stamps an attempt id on an unclaimed candidate with
	// compare-and-set semantics. A false return means another run already
	// owns or finished this payout; the caller must not issue a transfer.
	ClaimPayout(ctx context.Context, paymentID, attemptID string, at time.Time) (bool, error)

	CompletePayout(ctx context.Context, paymentID, transferID string, fee decimal.Decimal, at time.Time) error
	FailPayout(ctx context.Context, paymentID, reason string, at time.Time) error

	// ReleasePayoutClaim clears this attempt's claim so a later sweep can
	// retry the transfer. Only the attempt holder may release, and never
	// after a transfer was recorded.
	ReleasePayoutClaim(ctx context.Context, paymentID, attemptID string, at time.Time) error

	DueCheckIns(ctx context.Context, now time.Time) ([]domain.Booking, error)
	// MarkCheckedIn applies reserved→checked_in and flips the payment's
	// payout status pending→processing in one transaction.
	MarkCheckedIn(ctx context.Context, bookingID string, at time.Time) (bool, error)
	DueCheckOuts(ctx context.Context, now time.Time) ([]domain.Booking, error)
	MarkCheckedOut(ctx context.Context, bookingID string, at time.Time) (bool, error)
	DueCompletions(ctx context.Context, now time.Time) ([]domain.Booking, error)
	MarkCompleted(ctx context.Context, bookingID string, at time.Time) (bool, error)

	IntegrityViolations(ctx context.Context) ([]IntegrityViolation, error)

	PaymentEvents(ctx context.Context, paymentID string) ([]domain.PaymentEvent, error)

	telemetry.Store
}
