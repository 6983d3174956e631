// Package processor abstracts the external payment processor. The engine
// consumes checkout sessions, refunds, transfers, and account capability
// lookups through this interface and never talks to a vendor API directly.
package processor

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrChargeNotCapturable distinguishes a refund rejected because the
// underlying charge was never captured from other processor failures.
var ErrChargeNotCapturable = errors.New("charge is not capturable")

// ErrSessionNotFound is returned when a session id is unknown to the processor.
var ErrSessionNotFound = errors.New("checkout session not found")

// CheckoutRequest describes one payment capture attempt to open.
type CheckoutRequest struct {
	Amount     decimal.Decimal
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is an opened processor-managed capture attempt.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// SessionStatus is the polled state of a checkout session.
type SessionStatus struct {
	Paid       bool
	PaymentRef string
}

// TransferRequest describes one escrow transfer to a host account.
type TransferRequest struct {
	DestinationAccountID string
	Amount               decimal.Decimal
	Currency             string
	Metadata             map[string]string
}

// Transfer is a completed transfer handle.
type Transfer struct {
	TransferID string
}

// AccountCapabilities reports what a connected payout account may receive.
type AccountCapabilities struct {
	TransfersActive bool
}

// Processor is the payment-processor capability consumed by the engine.
// All calls may block for processor latency; callers bound them with a
// timeout and treat a timeout as a retryable-unknown outcome.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionStatus, error)
	CancelSession(ctx context.Context, sessionID string) error
	Refund(ctx context.Context, paymentRef string, amount decimal.Decimal, reason string) (string, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error)
	AccountCapabilities(ctx context.Context, accountID string) (AccountCapabilities, error)
}
