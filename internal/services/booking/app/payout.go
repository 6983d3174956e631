package app

import (
	"context"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/platform/id"
	"github.com/louisbranch/staybroker/internal/platform/timeouts"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// PayoutReport summarizes one payout sweep run.
type PayoutReport struct {
	Scanned   int
	Claimed   int
	Completed int
	Failed    int
	Released  int
	Skipped   int
}

// RunPayoutSweep transfers escrowed funds for checked-in stays. Each
// candidate is claimed with a compare-and-set before any transfer is
// issued, so concurrent sweep runs never pay a host twice. Failures are
// isolated per payment and never abort the sweep.
func (s *Service) RunPayoutSweep(ctx context.Context, limit int) (PayoutReport, error) {
	ctx, span := tracer.Start(ctx, "RunPayoutSweep")
	defer span.End()

	var report PayoutReport
	candidates, err := s.store.PayoutCandidates(ctx, s.now(), limit)
	if err != nil {
		return report, err
	}
	report.Scanned = len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.processPayout(ctx, candidate.Payment, candidate.Booking, &report)
	}
	span.SetAttributes(
		attribute.Int("payouts.completed", report.Completed),
		attribute.Int("payouts.failed", report.Failed),
	)
	return report, nil
}

func (s *Service) processPayout(ctx context.Context, payment domain.Payment, booking domain.Booking, report *PayoutReport) {
	account, err := s.accounts.PayoutAccount(ctx, booking.HostID)
	if err != nil || account.AccountID == "" || !account.TransfersEnabled {
		// The account was verified at admission; losing transfer capability
		// afterwards is a skip, not a failure, so the payout retries once
		// the host restores the account.
		report.Skipped++
		s.emit(ctx, telemetry.SeverityWarn, "payout_sweep", "payout_account_unavailable",
			"host payout account is not transfer-capable", map[string]string{
				"booking_id": booking.ID,
				"payment_id": payment.ID,
				"host_id":    booking.HostID,
			})
		return
	}

	capCtx, capCancel := context.WithTimeout(ctx, timeouts.Processor)
	caps, err := s.proc.AccountCapabilities(capCtx, account.AccountID)
	capCancel()
	if err != nil || !caps.TransfersActive {
		// The registry believes the account is fine but the processor
		// disagrees; the processor is authoritative for transfer capability.
		report.Skipped++
		s.emit(ctx, telemetry.SeverityWarn, "payout_sweep", "payout_capability_inactive",
			"processor reports the account cannot receive transfers", map[string]string{
				"booking_id": booking.ID,
				"payment_id": payment.ID,
				"account_id": account.AccountID,
			})
		return
	}

	attemptID, err := id.NewID()
	if err != nil {
		return
	}
	claimed, err := s.store.ClaimPayout(ctx, payment.ID, attemptID, s.now())
	if err != nil || !claimed {
		return
	}
	report.Claimed++

	fee := domain.PlatformFee(payment.Amount, s.cfg.FeeRate)
	hostAmount := domain.HostAmount(payment.Amount, fee)

	procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	transfer, err := s.proc.CreateTransfer(procCtx, processor.TransferRequest{
		DestinationAccountID: account.AccountID,
		Amount:               hostAmount,
		Currency:             payment.Currency,
		Metadata: map[string]string{
			"booking_id": booking.ID,
			"payment_id": payment.ID,
			"attempt_id": attemptID,
		},
	})
	if err != nil {
		// Permanent rejections park the payout for operator review;
		// transient failures release the claim so a later sweep retries.
		if domain.IsPermanent(err) {
			report.Failed++
			if failErr := s.store.FailPayout(ctx, payment.ID, err.Error(), s.now()); failErr != nil {
				s.emit(ctx, telemetry.SeverityError, "payout_sweep", "payout_fail_unrecorded",
					failErr.Error(), map[string]string{"payment_id": payment.ID})
			}
			s.emit(ctx, telemetry.SeverityError, "payout_sweep", "transfer_rejected",
				err.Error(), map[string]string{
					"booking_id": booking.ID,
					"payment_id": payment.ID,
				})
			return
		}
		report.Released++
		if releaseErr := s.store.ReleasePayoutClaim(ctx, payment.ID, attemptID, s.now()); releaseErr != nil {
			s.emit(ctx, telemetry.SeverityError, "payout_sweep", "payout_release_failed",
				releaseErr.Error(), map[string]string{"payment_id": payment.ID})
		}
		s.emit(ctx, telemetry.SeverityWarn, "payout_sweep", "transfer_retryable",
			err.Error(), map[string]string{
				"booking_id": booking.ID,
				"payment_id": payment.ID,
			})
		return
	}

	if err := s.store.CompletePayout(ctx, payment.ID, transfer.TransferID, fee, s.now()); err != nil {
		if errors.IsCode(err, errors.CodePayoutAlreadyProcessed) {
			return
		}
		// The transfer went out but the record did not land; surface loudly
		// so an operator reconciles before anything retries.
		s.emit(ctx, telemetry.SeverityCritical, "payout_sweep", "payout_unrecorded",
			err.Error(), map[string]string{
				"payment_id":  payment.ID,
				"transfer_id": transfer.TransferID,
			})
		return
	}
	report.Completed++
}

func (s *Service) emit(ctx context.Context, severity telemetry.Severity, component, kind, message string, metadata map[string]string) {
	_ = s.telemetry.Emit(ctx, telemetry.Event{
		Severity:  severity,
		Component: component,
		Kind:      kind,
		Message:   message,
		Metadata:  metadata,
	})
}
