package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
)

const bookingColumns = `
	id,
	guest_id,
	asset_id,
	host_id,
	check_in,
	check_out,
	guests,
	total_price,
	currency,
	status,
	payment_status,
	payment_session_id,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (domain.Booking, error) {
	var booking domain.Booking
	var checkIn, checkOut, createdAt, updatedAt int64
	var totalPrice, status, paymentStatus string
	if err := row.Scan(
		&booking.ID,
		&booking.GuestID,
		&booking.AssetID,
		&booking.HostID,
		&checkIn,
		&checkOut,
		&booking.Guests,
		&totalPrice,
		&booking.Currency,
		&status,
		&paymentStatus,
		&booking.PaymentSessionID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Booking{}, err
	}
	price, err := parseMoney("total price", totalPrice)
	if err != nil {
		return domain.Booking{}, err
	}
	booking.TotalPrice = price
	booking.Status = domain.BookingStatus(status)
	booking.PaymentStatus = domain.PaymentStatus(paymentStatus)
	booking.CheckIn = fromMillis(checkIn)
	booking.CheckOut = fromMillis(checkOut)
	booking.CreatedAt = fromMillis(createdAt)
	booking.UpdatedAt = fromMillis(updatedAt)
	return booking, nil
}

// CreateBookingWithPayment persists a pending booking and its payment in one
// transaction. The overlap gate is re-run inside the transaction: a
// concurrent admission that committed first makes this one fail with a
// date-overlap conflict instead of double-booking the asset.
func (s *Store) CreateBookingWithPayment(ctx context.Context, booking domain.Booking, payment domain.Payment, evt domain.PaymentEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := booking.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(payment.ID) == "" || payment.BookingID != booking.ID {
		return fmt.Errorf("payment must reference booking %s", booking.ID)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var conflicts int
		err := tx.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM bookings
WHERE asset_id = ?
  AND status IN (?, ?)
  AND check_in < ?
  AND check_out > ?
`,
			booking.AssetID,
			string(domain.BookingPending),
			string(domain.BookingReserved),
			millis(booking.CheckOut),
			millis(booking.CheckIn),
		).Scan(&conflicts)
		if err != nil {
			return fmt.Errorf("re-check overlap: %w", err)
		}
		if conflicts > 0 {
			return errors.WithMetadata(errors.CodeDateOverlap, "dates conflict with an existing reservation", map[string]string{
				"asset_id": booking.AssetID,
			})
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO bookings (
	id, guest_id, asset_id, host_id, check_in, check_out, guests,
	total_price, currency, status, payment_status, payment_session_id,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			booking.ID,
			booking.GuestID,
			booking.AssetID,
			booking.HostID,
			millis(booking.CheckIn),
			millis(booking.CheckOut),
			booking.Guests,
			booking.TotalPrice.String(),
			booking.Currency,
			string(booking.Status),
			string(booking.PaymentStatus),
			booking.PaymentSessionID,
			millis(booking.CreatedAt),
			millis(booking.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO payments (
	id, booking_id, session_id, amount, currency, payment_method,
	status, payout_status, platform_fee, payment_ref, refund_reason,
	payout_error, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', ?, ?)
`,
			payment.ID,
			payment.BookingID,
			payment.SessionID,
			payment.Amount.String(),
			payment.Currency,
			payment.PaymentMethod,
			string(payment.Status),
			string(payment.PayoutStatus),
			payment.PlatformFee.String(),
			millis(payment.CreatedAt),
			millis(payment.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		return insertPaymentEvent(ctx, tx, evt)
	})
}

// ActiveBookingsForAsset lists bookings that currently block the asset's
// calendar.
func (s *Store) ActiveBookingsForAsset(ctx context.Context, assetID string) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(assetID) == "" {
		return nil, fmt.Errorf("asset id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT`+bookingColumns+`
FROM bookings
WHERE asset_id = ? AND status IN (?, ?)
ORDER BY check_in
`, assetID, string(domain.BookingPending), string(domain.BookingReserved))
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// Booking fetches one booking by id.
func (s *Store) Booking(ctx context.Context, id string) (domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Booking{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT`+bookingColumns+`
FROM bookings
WHERE id = ?
`, id)
	booking, err := scanBooking(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Booking{}, errors.New(errors.CodeBookingNotFound, "booking not found")
		}
		return domain.Booking{}, fmt.Errorf("fetch booking: %w", err)
	}
	return booking, nil
}

// ListBookings lists bookings newest-first for a guest, host, or asset.
func (s *Store) ListBookings(ctx context.Context, filter storage.BookingFilter) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	var args []any
	if strings.TrimSpace(filter.GuestID) != "" {
		conditions = append(conditions, "guest_id = ?")
		args = append(args, filter.GuestID)
	}
	if strings.TrimSpace(filter.HostID) != "" {
		conditions = append(conditions, "host_id = ?")
		args = append(args, filter.HostID)
	}
	if strings.TrimSpace(filter.AssetID) != "" {
		conditions = append(conditions, "asset_id = ?")
		args = append(args, filter.AssetID)
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("booking filter requires a guest, host, or asset")
	}

	query := `
SELECT` + bookingColumns + `
FROM bookings
WHERE ` + strings.Join(conditions, " AND ") + `
ORDER BY created_at DESC, id DESC
`
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
