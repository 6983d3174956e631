package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
	"github.com/shopspring/decimal"
)

const paymentColumns = `
	id,
	booking_id,
	session_id,
	amount,
	currency,
	payment_method,
	status,
	payout_status,
	platform_fee,
	transfer_id,
	payment_ref,
	refund_reason,
	refunded_at,
	payout_error,
	created_at,
	updated_at`

func scanPayment(row rowScanner) (domain.Payment, error) {
	var payment domain.Payment
	var amount, platformFee, status, payoutStatus string
	var transferID sql.NullString
	var refundedAt sql.NullInt64
	var createdAt, updatedAt int64
	if err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.SessionID,
		&amount,
		&payment.Currency,
		&payment.PaymentMethod,
		&status,
		&payoutStatus,
		&platformFee,
		&transferID,
		&payment.PaymentRef,
		&payment.RefundReason,
		&refundedAt,
		&payment.PayoutError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Payment{}, err
	}

	value, err := parseMoney("amount", amount)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.Amount = value
	fee, err := parseMoney("platform fee", platformFee)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.PlatformFee = fee
	payment.Status = domain.PaymentStatus(status)
	payment.PayoutStatus = domain.PayoutStatus(payoutStatus)
	if transferID.Valid {
		payment.TransferID = transferID.String
	}
	if refundedAt.Valid {
		payment.RefundedAt = fromMillis(refundedAt.Int64)
	}
	payment.CreatedAt = fromMillis(createdAt)
	payment.UpdatedAt = fromMillis(updatedAt)
	return payment, nil
}

func (s *Store) paymentWhere(ctx context.Context, clause string, arg any, missing error) (domain.Payment, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT`+paymentColumns+`
FROM payments
WHERE `+clause+`
`, arg)
	payment, err := scanPayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Payment{}, missing
		}
		return domain.Payment{}, fmt.Errorf("fetch payment: %w", err)
	}
	return payment, nil
}

// Payment fetches one payment by id.
func (s *Store) Payment(ctx context.Context, id string) (domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Payment{}, err
	}
	return s.paymentWhere(ctx, "id = ?", id, errors.New(errors.CodePaymentNotFound, "payment not found"))
}

// PaymentByBooking fetches the payment owned by one booking.
func (s *Store) PaymentByBooking(ctx context.Context, bookingID string) (domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Payment{}, err
	}
	return s.paymentWhere(ctx, "booking_id = ?", bookingID, errors.New(errors.CodePaymentNotFound, "payment not found"))
}

// PaymentBySession fetches the payment correlated with a checkout session.
func (s *Store) PaymentBySession(ctx context.Context, sessionID string) (domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Payment{}, err
	}
	return s.paymentWhere(ctx, "session_id = ?", sessionID, errors.New(errors.CodeSessionNotFound, "checkout session not found"))
}

// ConfirmSessionPaid applies the capture edge for a session exactly once.
// The compare-and-set on payment status decides the winner; the same
// transaction advances the booking and appends the captured event, so a
// crash can never split the side-effect batch from the transition.
func (s *Store) ConfirmSessionPaid(ctx context.Context, sessionID, paymentRef string, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return false, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(paymentRef) == "" {
		return false, fmt.Errorf("payment reference is required")
	}

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var paymentID, bookingID string
		err := tx.QueryRowContext(ctx, `
SELECT id, booking_id FROM payments WHERE session_id = ?
`, sessionID).Scan(&paymentID, &bookingID)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.CodeSessionNotFound, "checkout session not found")
			}
			return fmt.Errorf("fetch payment for session: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
UPDATE payments
SET status = ?, payment_ref = ?, updated_at = ?
WHERE session_id = ? AND status IN (?, ?)
`,
			string(domain.PaymentCompleted),
			paymentRef,
			millis(at),
			sessionID,
			string(domain.PaymentPending),
			string(domain.PaymentProcessing),
		)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete payment rows: %w", err)
		}
		if rows == 0 {
			// Already confirmed or terminally failed; duplicate delivery
			// is a no-op.
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE bookings
SET status = ?, payment_status = ?, updated_at = ?
WHERE id = ? AND status = ?
`,
			string(domain.BookingReserved),
			string(domain.DeriveBookingPaymentStatus(domain.PaymentCompleted)),
			millis(at),
			bookingID,
			string(domain.BookingPending),
		); err != nil {
			return fmt.Errorf("reserve booking: %w", err)
		}

		evt, err := domain.NewCapturedEvent(paymentID, bookingID, paymentRef, at)
		if err != nil {
			return err
		}
		if err := insertPaymentEvent(ctx, tx, evt); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// CancelPendingSession fails an uncaptured payment and cancels its booking.
func (s *Store) CancelPendingSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var bookingID string
		err := tx.QueryRowContext(ctx, `
SELECT booking_id FROM payments WHERE session_id = ?
`, sessionID).Scan(&bookingID)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.CodeSessionNotFound, "checkout session not found")
			}
			return fmt.Errorf("fetch payment for session: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
UPDATE payments
SET status = ?, updated_at = ?
WHERE session_id = ? AND status = ?
`,
			string(domain.PaymentFailed),
			millis(at),
			sessionID,
			string(domain.PaymentPending),
		)
		if err != nil {
			return fmt.Errorf("fail payment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("fail payment rows: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE bookings
SET status = ?, payment_status = ?, updated_at = ?
WHERE id = ? AND status = ?
`,
			string(domain.BookingCancelled),
			string(domain.PaymentFailed),
			millis(at),
			bookingID,
			string(domain.BookingPending),
		); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// CancelBookingWithRefund marks the captured payment refunded and the
// booking cancelled atomically, appending the refunded audit event.
func (s *Store) CancelBookingWithRefund(ctx context.Context, bookingID string, refund storage.RefundRecord, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var paymentID string
		err := tx.QueryRowContext(ctx, `
SELECT id FROM payments WHERE booking_id = ?
`, bookingID).Scan(&paymentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.CodePaymentNotFound, "payment not found")
			}
			return fmt.Errorf("fetch payment for booking: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
UPDATE payments
SET status = ?, refund_reason = ?, refunded_at = ?, updated_at = ?
WHERE id = ? AND status = ?
`,
			string(domain.PaymentRefunded),
			refund.Reason,
			millis(at),
			millis(at),
			paymentID,
			string(domain.PaymentCompleted),
		)
		if err != nil {
			return fmt.Errorf("refund payment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("refund payment rows: %w", err)
		}
		if rows == 0 {
			return errors.New(errors.CodePaymentIncomplete, "payment is not captured")
		}

		result, err = tx.ExecContext(ctx, `
UPDATE bookings
SET status = ?, payment_status = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?)
`,
			string(domain.BookingCancelled),
			string(domain.PaymentRefunded),
			millis(at),
			bookingID,
			string(domain.BookingPending),
			string(domain.BookingReserved),
		)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("cancel booking rows: %w", err)
		}
		if rows == 0 {
			return errors.New(errors.CodeBookingNotCancellable, "booking can no longer be cancelled")
		}

		evt, err := domain.NewRefundedEvent(paymentID, bookingID, refund.RefundID, refund.Amount, refund.Reason, at)
		if err != nil {
			return err
		}
		return insertPaymentEvent(ctx, tx, evt)
	})
}

// CancelBookingKeepingPayment cancels a booking while leaving its captured
// payment untouched, used when the policy yields a zero refund.
func (s *Store) CancelBookingKeepingPayment(ctx context.Context, bookingID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE bookings
SET status = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?)
`,
		string(domain.BookingCancelled),
		millis(at),
		bookingID,
		string(domain.BookingPending),
		string(domain.BookingReserved),
	)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel booking rows: %w", err)
	}
	if rows == 0 {
		return errors.New(errors.CodeBookingNotCancellable, "booking can no longer be cancelled")
	}
	return nil
}

// PayoutCandidates lists captured payments awaiting transfer for bookings
// whose check-in has arrived. Claimed and completed payouts are excluded.
func (s *Store) PayoutCandidates(ctx context.Context, now time.Time, limit int) ([]storage.PayoutCandidate, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	p.id, p.booking_id, p.session_id, p.amount, p.currency, p.payment_method,
	p.status, p.payout_status, p.platform_fee, p.transfer_id, p.payment_ref,
	p.refund_reason, p.refunded_at, p.payout_error, p.created_at, p.updated_at,
	b.id, b.guest_id, b.asset_id, b.host_id, b.check_in, b.check_out, b.guests,
	b.total_price, b.currency, b.status, b.payment_status, b.payment_session_id,
	b.created_at, b.updated_at
FROM payments p
JOIN bookings b ON b.id = p.booking_id
WHERE p.status = ?
  AND p.payout_status IN (?, ?)
  AND p.transfer_id IS NULL
  AND p.payout_attempt_id IS NULL
  AND b.check_in <= ?
ORDER BY b.check_in
LIMIT ?
`,
		string(domain.PaymentCompleted),
		string(domain.PayoutPending),
		string(domain.PayoutProcessing),
		millis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list payout candidates: %w", err)
	}
	defer rows.Close()

	var candidates []storage.PayoutCandidate
	for rows.Next() {
		candidate, err := scanPayoutCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout candidates: %w", err)
	}
	return candidates, nil
}

func scanPayoutCandidate(rows *sql.Rows) (storage.PayoutCandidate, error) {
	var payment domain.Payment
	var booking domain.Booking
	var amount, platformFee, pStatus, payoutStatus string
	var transferID sql.NullString
	var refundedAt sql.NullInt64
	var pCreated, pUpdated int64
	var checkIn, checkOut, bCreated, bUpdated int64
	var totalPrice, bStatus, bPaymentStatus string

	if err := rows.Scan(
		&payment.ID, &payment.BookingID, &payment.SessionID, &amount, &payment.Currency, &payment.PaymentMethod,
		&pStatus, &payoutStatus, &platformFee, &transferID, &payment.PaymentRef,
		&payment.RefundReason, &refundedAt, &payment.PayoutError, &pCreated, &pUpdated,
		&booking.ID, &booking.GuestID, &booking.AssetID, &booking.HostID, &checkIn, &checkOut, &booking.Guests,
		&totalPrice, &booking.Currency, &bStatus, &bPaymentStatus, &booking.PaymentSessionID,
		&bCreated, &bUpdated,
	); err != nil {
		return storage.PayoutCandidate{}, err
	}

	value, err := parseMoney("amount", amount)
	if err != nil {
		return storage.PayoutCandidate{}, err
	}
	payment.Amount = value
	fee, err := parseMoney("platform fee", platformFee)
	if err != nil {
		return storage.PayoutCandidate{}, err
	}
	payment.PlatformFee = fee
	payment.Status = domain.PaymentStatus(pStatus)
	payment.PayoutStatus = domain.PayoutStatus(payoutStatus)
	if transferID.Valid {
		payment.TransferID = transferID.String
	}
	if refundedAt.Valid {
		payment.RefundedAt = fromMillis(refundedAt.Int64)
	}
	payment.CreatedAt = fromMillis(pCreated)
	payment.UpdatedAt = fromMillis(pUpdated)

	price, err := parseMoney("total price", totalPrice)
	if err != nil {
		return storage.PayoutCandidate{}, err
	}
	booking.TotalPrice = price
	booking.Status = domain.BookingStatus(bStatus)
	booking.PaymentStatus = domain.PaymentStatus(bPaymentStatus)
	booking.CheckIn = fromMillis(checkIn)
	booking.CheckOut = fromMillis(checkOut)
	booking.CreatedAt = fromMillis(bCreated)
	booking.UpdatedAt = fromMillis(bUpdated)

	return storage.PayoutCandidate{Payment: payment, Booking: booking}, nil
}

// ClaimPayout stamps an attempt id on an unclaimed payout candidate. The
// compare-and-set guards the double-payout race: whoever loses the claim
// must not issue a transfer.
func (s *Store) ClaimPayout(ctx context.Context, paymentID, attemptID string, at time.Time) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(attemptID) == "" {
		return false, fmt.Errorf("attempt id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE payments
SET payout_status = ?, payout_attempt_id = ?, updated_at = ?
WHERE id = ?
  AND status = ?
  AND payout_status IN (?, ?)
  AND transfer_id IS NULL
  AND payout_attempt_id IS NULL
`,
		string(domain.PayoutProcessing),
		attemptID,
		millis(at),
		paymentID,
		string(domain.PaymentCompleted),
		string(domain.PayoutPending),
		string(domain.PayoutProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("claim payout: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim payout rows: %w", err)
	}
	return rows == 1, nil
}

// ReleasePayoutClaim clears the attempt stamp so the payout becomes a
// candidate again. The attempt id guard keeps a stale run from releasing a
// claim it no longer owns.
func (s *Store) ReleasePayoutClaim(ctx context.Context, paymentID, attemptID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE payments
SET payout_attempt_id = NULL, updated_at = ?
WHERE id = ? AND payout_attempt_id = ? AND transfer_id IS NULL
`, millis(at), paymentID, attemptID); err != nil {
		return fmt.Errorf("release payout claim: %w", err)
	}
	return nil
}

// CompletePayout records the transfer handle and platform fee for a claimed
// payout and appends the transfer-completed event.
func (s *Store) CompletePayout(ctx context.Context, paymentID, transferID string, fee decimal.Decimal, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var bookingID string
		if err := tx.QueryRowContext(ctx, `
SELECT booking_id FROM payments WHERE id = ?
`, paymentID).Scan(&bookingID); err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.CodePaymentNotFound, "payment not found")
			}
			return fmt.Errorf("fetch payment: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
UPDATE payments
SET payout_status = ?, transfer_id = ?, platform_fee = ?, updated_at = ?
WHERE id = ? AND payout_status = ? AND transfer_id IS NULL
`,
			string(domain.PayoutCompleted),
			transferID,
			fee.String(),
			millis(at),
			paymentID,
			string(domain.PayoutProcessing),
		)
		if err != nil {
			return fmt.Errorf("complete payout: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete payout rows: %w", err)
		}
		if rows == 0 {
			return errors.New(errors.CodePayoutAlreadyProcessed, "payout already recorded")
		}

		evt, err := domain.NewTransferCompletedEvent(paymentID, bookingID, transferID, fee, at)
		if err != nil {
			return err
		}
		return insertPaymentEvent(ctx, tx, evt)
	})
}

// FailPayout records a transfer failure verbatim for operator review.
// Failed payouts stay failed until manually reprocessed.
func (s *Store) FailPayout(ctx context.Context, paymentID, reason string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var bookingID string
		if err := tx.QueryRowContext(ctx, `
SELECT booking_id FROM payments WHERE id = ?
`, paymentID).Scan(&bookingID); err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.CodePaymentNotFound, "payment not found")
			}
			return fmt.Errorf("fetch payment: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE payments
SET payout_status = ?, payout_error = ?, updated_at = ?
WHERE id = ? AND payout_status IN (?, ?)
`,
			string(domain.PayoutFailed),
			reason,
			millis(at),
			paymentID,
			string(domain.PayoutPending),
			string(domain.PayoutProcessing),
		); err != nil {
			return fmt.Errorf("fail payout: %w", err)
		}

		evt, err := domain.NewTransferFailedEvent(paymentID, bookingID, reason, at)
		if err != nil {
			return err
		}
		return insertPaymentEvent(ctx, tx, evt)
	})
}
