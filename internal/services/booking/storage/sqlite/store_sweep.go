package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
)

func (s *Store) dueBookings(ctx context.Context, status domain.BookingStatus, column string, now time.Time) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT`+bookingColumns+`
FROM bookings
WHERE status = ? AND `+column+` <= ?
ORDER BY `+column+`
`, string(status), millis(now))
	if err != nil {
		return nil, fmt.Errorf("list due bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// DueCheckIns lists reserved bookings whose check-in time has arrived.
func (s *Store) DueCheckIns(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return s.dueBookings(ctx, domain.BookingReserved, "check_in", now)
}

// MarkCheckedIn applies the reserved to checked-in edge and flips the
// payment's payout status from pending to processing in the same
// transaction. Returns false when the booking already left reserved, so
// overlapping sweep runs converge without double-applying.
func (s *Store) MarkCheckedIn(ctx context.Context, bookingID string, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE bookings
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`,
			string(domain.BookingCheckedIn),
			millis(at),
			bookingID,
			string(domain.BookingReserved),
		)
		if err != nil {
			return fmt.Errorf("mark checked in: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark checked in rows: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE payments
SET payout_status = ?, updated_at = ?
WHERE booking_id = ? AND status = ? AND payout_status = ?
`,
			string(domain.PayoutProcessing),
			millis(at),
			bookingID,
			string(domain.PaymentCompleted),
			string(domain.PayoutPending),
		); err != nil {
			return fmt.Errorf("advance payout status: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// DueCheckOuts lists checked-in bookings whose check-out time has arrived.
func (s *Store) DueCheckOuts(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return s.dueBookings(ctx, domain.BookingCheckedIn, "check_out", now)
}

// MarkCheckedOut applies the checked-in to checked-out edge. Returns false
// when the booking already left checked-in.
func (s *Store) MarkCheckedOut(ctx context.Context, bookingID string, at time.Time) (bool, error) {
	return s.transitionBooking(ctx, bookingID, domain.BookingCheckedIn, domain.BookingCheckedOut, at)
}

// DueCompletions lists checked-out bookings whose check-out time has passed.
func (s *Store) DueCompletions(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return s.dueBookings(ctx, domain.BookingCheckedOut, "check_out", now)
}

// MarkCompleted applies the checked-out to completed edge. Returns false
// when the booking already left checked-out.
func (s *Store) MarkCompleted(ctx context.Context, bookingID string, at time.Time) (bool, error) {
	return s.transitionBooking(ctx, bookingID, domain.BookingCheckedOut, domain.BookingCompleted, at)
}

func (s *Store) transitionBooking(ctx context.Context, bookingID string, from, to domain.BookingStatus, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE bookings
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`, string(to), millis(at), bookingID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition booking to %s: %w", to, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition booking rows: %w", err)
	}
	return rows == 1, nil
}

// IntegrityViolations lists bookings in occupancy or completed states whose
// payment never completed. Reserved is included as an early warning. These
// are surfaced for audit, never silently corrected.
func (s *Store) IntegrityViolations(ctx context.Context) ([]storage.IntegrityViolation, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	p.id, p.booking_id, p.session_id, p.amount, p.currency, p.payment_method,
	p.status, p.payout_status, p.platform_fee, p.transfer_id, p.payment_ref,
	p.refund_reason, p.refunded_at, p.payout_error, p.created_at, p.updated_at,
	b.id, b.guest_id, b.asset_id, b.host_id, b.check_in, b.check_out, b.guests,
	b.total_price, b.currency, b.status, b.payment_status, b.payment_session_id,
	b.created_at, b.updated_at
FROM bookings b
JOIN payments p ON p.booking_id = b.id
WHERE b.status IN (?, ?, ?, ?)
  AND p.status != ?
ORDER BY b.check_in
`,
		string(domain.BookingReserved),
		string(domain.BookingCheckedIn),
		string(domain.BookingCheckedOut),
		string(domain.BookingCompleted),
		string(domain.PaymentCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("list integrity violations: %w", err)
	}
	defer rows.Close()

	var violations []storage.IntegrityViolation
	for rows.Next() {
		candidate, err := scanPayoutCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integrity violation: %w", err)
		}
		violations = append(violations, storage.IntegrityViolation{
			Booking: candidate.Booking,
			Payment: candidate.Payment,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrity violations: %w", err)
	}
	return violations, nil
}
