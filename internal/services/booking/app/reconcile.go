package app

import (
	"context"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/platform/timeouts"
)

// HandleSessionCompleted applies a processor "session completed"
// notification. The store's compare-and-set makes duplicate and replayed
// deliveries no-ops, so the handler is safe to call any number of times.
func (s *Service) HandleSessionCompleted(ctx context.Context, sessionID, paymentRef string) error {
	if paymentRef == "" {
		return errors.New(errors.CodeFieldMissing, "payment reference is required")
	}
	_, err := s.store.ConfirmSessionPaid(ctx, sessionID, paymentRef, s.now())
	return err
}

// ReconcileSession polls the processor for a session's live state and
// converges local records toward it. Notifications can be lost; polling is
// the backstop that guarantees eventual agreement.
func (s *Service) ReconcileSession(ctx context.Context, sessionID string) error {
	procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	status, err := s.proc.RetrieveSession(procCtx, sessionID)
	if err != nil {
		return errors.Wrap(errors.CodeProcessorUnavailable, "session lookup failed", err)
	}
	if !status.Paid {
		return nil
	}
	_, err = s.store.ConfirmSessionPaid(ctx, sessionID, status.PaymentRef, s.now())
	return err
}
