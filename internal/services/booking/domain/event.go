package domain

import (
	"strings"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/shopspring/decimal"
)

// PaymentEventType tags one payment lifecycle event.
type PaymentEventType string

const (
	EventCheckoutCreated  PaymentEventType = "checkout_created"
	EventCaptured         PaymentEventType = "captured"
	EventRefunded         PaymentEventType = "refunded"
	EventTransferComplete PaymentEventType = "transfer_completed"
	EventTransferFailed   PaymentEventType = "transfer_failed"
)

// PaymentEvent is one append-only audit record of a payment lifecycle
// change. Each event type carries only the fields relevant to it; the
// typed constructors validate those fields so an invalid event can never
// be recorded.
type PaymentEvent struct {
	Type       PaymentEventType
	PaymentID  string
	BookingID  string
	SessionID  string
	PaymentRef string
	RefundID   string
	Amount     decimal.Decimal
	TransferID string
	Fee        decimal.Decimal
	Reason     string
	OccurredAt time.Time
}

func eventBase(eventType PaymentEventType, paymentID, bookingID string, at time.Time) (PaymentEvent, error) {
	if strings.TrimSpace(paymentID) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "payment id is required")
	}
	if strings.TrimSpace(bookingID) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "booking id is required")
	}
	if at.IsZero() {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "event time is required")
	}
	return PaymentEvent{Type: eventType, PaymentID: paymentID, BookingID: bookingID, OccurredAt: at}, nil
}

// NewCheckoutCreatedEvent records a processor checkout session opening.
func NewCheckoutCreatedEvent(paymentID, bookingID, sessionID string, amount decimal.Decimal, at time.Time) (PaymentEvent, error) {
	evt, err := eventBase(EventCheckoutCreated, paymentID, bookingID, at)
	if err != nil {
		return PaymentEvent{}, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "session id is required")
	}
	evt.SessionID = sessionID
	evt.Amount = amount
	return evt, nil
}

// NewCapturedEvent records a confirmed capture of payer funds.
func NewCapturedEvent(paymentID, bookingID, paymentRef string, at time.Time) (PaymentEvent, error) {
	evt, err := eventBase(EventCaptured, paymentID, bookingID, at)
	if err != nil {
		return PaymentEvent{}, err
	}
	if strings.TrimSpace(paymentRef) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "payment reference is required")
	}
	evt.PaymentRef = paymentRef
	return evt, nil
}

// NewRefundedEvent records a processor-confirmed refund.
func NewRefundedEvent(paymentID, bookingID, refundID string, amount decimal.Decimal, reason string, at time.Time) (PaymentEvent, error) {
	evt, err := eventBase(EventRefunded, paymentID, bookingID, at)
	if err != nil {
		return PaymentEvent{}, err
	}
	if strings.TrimSpace(refundID) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "refund id is required")
	}
	if amount.IsNegative() {
		return PaymentEvent{}, errors.New(errors.CodePriceInvalid, "refund amount must not be negative")
	}
	evt.RefundID = refundID
	evt.Amount = amount
	evt.Reason = reason
	return evt, nil
}

// NewTransferCompletedEvent records a successful escrow transfer to the host.
func NewTransferCompletedEvent(paymentID, bookingID, transferID string, fee decimal.Decimal, at time.Time) (PaymentEvent, error) {
	evt, err := eventBase(EventTransferComplete, paymentID, bookingID, at)
	if err != nil {
		return PaymentEvent{}, err
	}
	if strings.TrimSpace(transferID) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "transfer id is required")
	}
	if fee.IsNegative() {
		return PaymentEvent{}, errors.New(errors.CodePriceInvalid, "platform fee must not be negative")
	}
	evt.TransferID = transferID
	evt.Fee = fee
	return evt, nil
}

// NewTransferFailedEvent records a failed escrow transfer with the
// processor's reason captured verbatim for operator review.
func NewTransferFailedEvent(paymentID, bookingID, reason string, at time.Time) (PaymentEvent, error) {
	evt, err := eventBase(EventTransferFailed, paymentID, bookingID, at)
	if err != nil {
		return PaymentEvent{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return PaymentEvent{}, errors.New(errors.CodeFieldMissing, "failure reason is required")
	}
	evt.Reason = reason
	return evt, nil
}
