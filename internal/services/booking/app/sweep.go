package app

import (
	"context"

	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// SweepReport summarizes one status sweep run.
type SweepReport struct {
	CheckedIn  int
	CheckedOut int
	Completed  int
	Violations int
}

// RunStatusSweep walks elapsed bookings through check-in, check-out, and
// completion. A reserved booking whose payment never completed is an
// integrity violation: it is reported, never advanced and never silently
// corrected. Every transition is a compare-and-set, so overlapping sweep
// runs converge to a single application.
func (s *Service) RunStatusSweep(ctx context.Context) (SweepReport, error) {
	ctx, span := tracer.Start(ctx, "RunStatusSweep")
	defer span.End()

	var report SweepReport
	now := s.now()

	dueIn, err := s.store.DueCheckIns(ctx, now)
	if err != nil {
		return report, err
	}
	for _, booking := range dueIn {
		if booking.PaymentStatus != domain.PaymentCompleted {
			report.Violations++
			s.emit(ctx, telemetry.SeverityCritical, "status_sweep", "integrity_violation",
				"reserved booking reached check-in without a completed payment", map[string]string{
					"booking_id":     booking.ID,
					"asset_id":       booking.AssetID,
					"payment_status": string(booking.PaymentStatus),
				})
			continue
		}
		applied, err := s.store.MarkCheckedIn(ctx, booking.ID, now)
		if err != nil {
			return report, err
		}
		if applied {
			report.CheckedIn++
		}
	}

	dueOut, err := s.store.DueCheckOuts(ctx, now)
	if err != nil {
		return report, err
	}
	for _, booking := range dueOut {
		applied, err := s.store.MarkCheckedOut(ctx, booking.ID, now)
		if err != nil {
			return report, err
		}
		if applied {
			report.CheckedOut++
		}
	}

	dueDone, err := s.store.DueCompletions(ctx, now)
	if err != nil {
		return report, err
	}
	for _, booking := range dueDone {
		applied, err := s.store.MarkCompleted(ctx, booking.ID, now)
		if err != nil {
			return report, err
		}
		if applied {
			report.Completed++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.checked_in", report.CheckedIn),
		attribute.Int("sweep.violations", report.Violations),
	)
	return report, nil
}

// AuditIntegrity scans for occupancy-status bookings whose payment never
// completed and reports each one.
func (s *Service) AuditIntegrity(ctx context.Context) (int, error) {
	violations, err := s.store.IntegrityViolations(ctx)
	if err != nil {
		return 0, err
	}
	for _, violation := range violations {
		s.emit(ctx, telemetry.SeverityCritical, "status_sweep", "integrity_violation",
			"occupancy booking without a completed payment", map[string]string{
				"booking_id":     violation.Booking.ID,
				"payment_id":     violation.Payment.ID,
				"payment_status": string(violation.Payment.Status),
			})
	}
	return len(violations), nil
}
