package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks whether funds have been captured from the payer.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// PayoutStatus tracks whether captured funds were forwarded to the host.
// It is an independent sub-state-machine gated by booking occupancy.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// CanTransitionPayment reports whether the capture state machine allows from→to.
func CanTransitionPayment(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending:
		return to == PaymentProcessing || to == PaymentCompleted || to == PaymentFailed
	case PaymentProcessing:
		return to == PaymentCompleted || to == PaymentFailed
	case PaymentCompleted:
		return to == PaymentRefunded
	default:
		return false
	}
}

// CanTransitionPayout reports whether the payout state machine allows from→to.
// Failed payouts are terminal until an operator intervenes; they are never
// retried automatically.
func CanTransitionPayout(from, to PayoutStatus) bool {
	switch from {
	case PayoutPending:
		return to == PayoutProcessing || to == PayoutFailed
	case PayoutProcessing:
		return to == PayoutCompleted || to == PayoutFailed
	default:
		return false
	}
}

// Payment is the 1:1 escrow record for a booking.
type Payment struct {
	ID            string
	BookingID     string
	SessionID     string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Status        PaymentStatus
	PayoutStatus  PayoutStatus
	PlatformFee   decimal.Decimal
	TransferID    string
	PaymentRef    string
	RefundReason  string
	RefundedAt    time.Time
	PayoutError   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeriveBookingPaymentStatus is the single authoritative mapping from a
// payment's capture state to the status mirrored on its booking. Bookings
// never carry a payment status the payment itself does not imply.
func DeriveBookingPaymentStatus(status PaymentStatus) PaymentStatus {
	return status
}

// PlatformFee computes the platform's cut of an amount at the given rate,
// rounded to the currency minor unit.
func PlatformFee(amount decimal.Decimal, feeRate decimal.Decimal) decimal.Decimal {
	return amount.Mul(feeRate).Round(2)
}

// HostAmount is the escrowed amount forwarded to the host after the
// platform fee is retained.
func HostAmount(amount, fee decimal.Decimal) decimal.Decimal {
	return amount.Sub(fee)
}
