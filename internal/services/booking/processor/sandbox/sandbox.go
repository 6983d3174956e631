// Package sandbox is an in-memory processor used for local development and
// integration tests. Sessions are created instantly and marked paid on
// demand; no real funds move.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/staybroker/internal/platform/id"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/shopspring/decimal"
)

type session struct {
	paid       bool
	cancelled  bool
	paymentRef string
	amount     decimal.Decimal
}

// Processor is a concurrency-safe in-memory payment processor.
type Processor struct {
	mu        sync.Mutex
	sessions  map[string]*session
	refunds   int
	transfers int

	// AutoPay marks sessions as paid the first time they are retrieved,
	// simulating a payer who completes checkout immediately.
	AutoPay bool

	// TransferErr, when set, is returned by every CreateTransfer call.
	// Tests use it to simulate processor outages and rejections.
	TransferErr error

	// CapabilitiesInactive, when set, reports every account as unable to
	// receive transfers. Tests use it to simulate capability loss.
	CapabilitiesInactive bool
}

// New creates an empty sandbox processor.
func New() *Processor {
	return &Processor{sessions: make(map[string]*session)}
}

// CreateCheckoutSession opens a fake checkout session.
func (p *Processor) CreateCheckoutSession(_ context.Context, req processor.CheckoutRequest) (processor.CheckoutSession, error) {
	if req.Amount.IsNegative() {
		return processor.CheckoutSession{}, fmt.Errorf("checkout amount must not be negative")
	}
	sessionID, err := id.NewID()
	if err != nil {
		return processor.CheckoutSession{}, err
	}
	sessionID = "cs_" + sessionID

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[sessionID] = &session{amount: req.Amount}
	return processor.CheckoutSession{
		SessionID:   sessionID,
		RedirectURL: "https://checkout.sandbox.invalid/" + sessionID,
	}, nil
}

// RetrieveSession reports the session's capture state.
func (p *Processor) RetrieveSession(_ context.Context, sessionID string) (processor.SessionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return processor.SessionStatus{}, processor.ErrSessionNotFound
	}
	if p.AutoPay && !s.cancelled && !s.paid {
		s.paid = true
		s.paymentRef = "pi_" + strings.TrimPrefix(sessionID, "cs_")
	}
	return processor.SessionStatus{Paid: s.paid, PaymentRef: s.paymentRef}, nil
}

// CompleteSession marks a session paid, as a payer finishing checkout would.
func (p *Processor) CompleteSession(sessionID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return "", processor.ErrSessionNotFound
	}
	if s.cancelled {
		return "", fmt.Errorf("session %s is cancelled", sessionID)
	}
	if !s.paid {
		s.paid = true
		s.paymentRef = "pi_" + strings.TrimPrefix(sessionID, "cs_")
	}
	return s.paymentRef, nil
}

// CancelSession expires an unpaid session.
func (p *Processor) CancelSession(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return processor.ErrSessionNotFound
	}
	if s.paid {
		return fmt.Errorf("session %s already paid", sessionID)
	}
	s.cancelled = true
	return nil
}

// Refund returns a fake refund handle for a captured charge.
func (p *Processor) Refund(_ context.Context, paymentRef string, amount decimal.Decimal, _ string) (string, error) {
	if strings.TrimSpace(paymentRef) == "" {
		return "", processor.ErrChargeNotCapturable
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("refund amount must not be negative")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds++
	return fmt.Sprintf("re_%s_%d", strings.TrimPrefix(paymentRef, "pi_"), p.refunds), nil
}

// CreateTransfer returns a fake transfer handle. Malformed requests are
// rejected as permanent; retrying them can never succeed.
func (p *Processor) CreateTransfer(_ context.Context, req processor.TransferRequest) (processor.Transfer, error) {
	if p.TransferErr != nil {
		return processor.Transfer{}, p.TransferErr
	}
	if strings.TrimSpace(req.DestinationAccountID) == "" {
		return processor.Transfer{}, domain.Permanent(fmt.Errorf("destination account is required"))
	}
	if req.Amount.IsNegative() {
		return processor.Transfer{}, domain.Permanent(fmt.Errorf("transfer amount must not be negative"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers++
	return processor.Transfer{TransferID: fmt.Sprintf("tr_%s_%d", req.DestinationAccountID, p.transfers)}, nil
}

// AccountCapabilities reports sandbox accounts as transfer-capable unless
// CapabilitiesInactive is set.
func (p *Processor) AccountCapabilities(_ context.Context, accountID string) (processor.AccountCapabilities, error) {
	if strings.TrimSpace(accountID) == "" {
		return processor.AccountCapabilities{}, fmt.Errorf("account id is required")
	}
	return processor.AccountCapabilities{TransfersActive: !p.CapabilitiesInactive}, nil
}
