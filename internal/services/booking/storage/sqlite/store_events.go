package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/telemetry"
)

func insertPaymentEvent(ctx context.Context, tx *sql.Tx, evt domain.PaymentEvent) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO payment_events (
	event_type, payment_id, booking_id, session_id, payment_ref,
	refund_id, amount, transfer_id, fee, reason, occurred_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		string(evt.Type),
		evt.PaymentID,
		evt.BookingID,
		evt.SessionID,
		evt.PaymentRef,
		evt.RefundID,
		evt.Amount.String(),
		evt.TransferID,
		evt.Fee.String(),
		evt.Reason,
		millis(evt.OccurredAt),
	); err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// PaymentEvents lists the audit trail for one payment in recorded order.
func (s *Store) PaymentEvents(ctx context.Context, paymentID string) ([]domain.PaymentEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT event_type, payment_id, booking_id, session_id, payment_ref,
	refund_id, amount, transfer_id, fee, reason, occurred_at
FROM payment_events
WHERE payment_id = ?
ORDER BY id
`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var evt domain.PaymentEvent
		var eventType, amount, fee string
		var occurredAt int64
		if err := rows.Scan(
			&eventType,
			&evt.PaymentID,
			&evt.BookingID,
			&evt.SessionID,
			&evt.PaymentRef,
			&evt.RefundID,
			&amount,
			&evt.TransferID,
			&fee,
			&evt.Reason,
			&occurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		evt.Type = domain.PaymentEventType(eventType)
		evt.Amount, err = parseMoney("event amount", amount)
		if err != nil {
			return nil, err
		}
		evt.Fee, err = parseMoney("event fee", fee)
		if err != nil {
			return nil, err
		}
		evt.OccurredAt = fromMillis(occurredAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment events: %w", err)
	}
	return events, nil
}

// AppendTelemetryEvent persists one operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt telemetry.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	metadata := evt.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode telemetry metadata: %w", err)
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (severity, component, kind, message, metadata, timestamp)
VALUES (?, ?, ?, ?, ?, ?)
`,
		string(evt.Severity),
		evt.Component,
		evt.Kind,
		evt.Message,
		string(encoded),
		millis(evt.Timestamp),
	); err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}
