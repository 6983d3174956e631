package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"github.com/shopspring/decimal"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "bookings.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func day(offset int) time.Time {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type bookingSeed struct {
	id       string
	asset    string
	checkIn  time.Time
	checkOut time.Time
	status   domain.BookingStatus
}

func seedBooking(t *testing.T, store *Store, seed bookingSeed) (domain.Booking, domain.Payment) {
	t.Helper()
	ctx := context.Background()
	now := day(0).Add(-time.Hour)

	booking := domain.Booking{
		ID:               seed.id,
		GuestID:          "guest-1",
		AssetID:          seed.asset,
		HostID:           "host-1",
		CheckIn:          seed.checkIn,
		CheckOut:         seed.checkOut,
		Guests:           2,
		TotalPrice:       money("200.00"),
		Currency:         "usd",
		Status:           domain.BookingPending,
		PaymentStatus:    domain.PaymentPending,
		PaymentSessionID: "cs_" + seed.id,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	payment := domain.Payment{
		ID:           "pay-" + seed.id,
		BookingID:    seed.id,
		SessionID:    "cs_" + seed.id,
		Amount:       money("200.00"),
		Currency:     "usd",
		Status:       domain.PaymentPending,
		PayoutStatus: domain.PayoutPending,
		PlatformFee:  money("0"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	evt, err := domain.NewCheckoutCreatedEvent(payment.ID, booking.ID, payment.SessionID, payment.Amount, now)
	if err != nil {
		t.Fatalf("NewCheckoutCreatedEvent() error = %v", err)
	}
	if err := store.CreateBookingWithPayment(ctx, booking, payment, evt); err != nil {
		t.Fatalf("CreateBookingWithPayment(%s) error = %v", seed.id, err)
	}

	if seed.status != "" && seed.status != domain.BookingPending {
		confirmBooking(t, store, booking)
		advanceBooking(t, store, booking.ID, seed.status)
	}
	return booking, payment
}

func confirmBooking(t *testing.T, store *Store, booking domain.Booking) {
	t.Helper()
	applied, err := store.ConfirmSessionPaid(context.Background(), booking.PaymentSessionID, "pi_"+booking.ID, day(0))
	if err != nil {
		t.Fatalf("ConfirmSessionPaid(%s) error = %v", booking.ID, err)
	}
	if !applied {
		t.Fatalf("ConfirmSessionPaid(%s) = false, want true", booking.ID)
	}
}

func advanceBooking(t *testing.T, store *Store, bookingID string, target domain.BookingStatus) {
	t.Helper()
	ctx := context.Background()
	steps := map[domain.BookingStatus][]func() (bool, error){
		domain.BookingCheckedIn: {
			func() (bool, error) { return store.MarkCheckedIn(ctx, bookingID, day(0)) },
		},
		domain.BookingCheckedOut: {
			func() (bool, error) { return store.MarkCheckedIn(ctx, bookingID, day(0)) },
			func() (bool, error) { return store.MarkCheckedOut(ctx, bookingID, day(2)) },
		},
	}
	for _, step := range steps[target] {
		applied, err := step()
		if err != nil {
			t.Fatalf("advance %s error = %v", bookingID, err)
		}
		if !applied {
			t.Fatalf("advance %s = false, want true", bookingID)
		}
	}
}

func TestCreateBookingWithPaymentOverlapConflict(t *testing.T) {
	store := openTempStore(t)
	seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})

	overlap := domain.Booking{
		ID:            "b2",
		GuestID:       "guest-2",
		AssetID:       "asset-1",
		HostID:        "host-1",
		CheckIn:       day(3),
		CheckOut:      day(6),
		Guests:        1,
		TotalPrice:    money("150.00"),
		Currency:      "usd",
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     day(0),
		UpdatedAt:     day(0),
	}
	payment := domain.Payment{
		ID:           "pay-b2",
		BookingID:    "b2",
		SessionID:    "cs_b2",
		Amount:       money("150.00"),
		Currency:     "usd",
		Status:       domain.PaymentPending,
		PayoutStatus: domain.PayoutPending,
		PlatformFee:  money("0"),
		CreatedAt:    day(0),
		UpdatedAt:    day(0),
	}
	evt, err := domain.NewCheckoutCreatedEvent(payment.ID, overlap.ID, payment.SessionID, payment.Amount, day(0))
	if err != nil {
		t.Fatalf("NewCheckoutCreatedEvent() error = %v", err)
	}

	err = store.CreateBookingWithPayment(context.Background(), overlap, payment, evt)
	if !errors.IsCode(err, errors.CodeDateOverlap) {
		t.Fatalf("CreateBookingWithPayment() error = %v, want %s", err, errors.CodeDateOverlap)
	}

	bookings, err := store.ActiveBookingsForAsset(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("ActiveBookingsForAsset() error = %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("len(bookings) = %d, want 1", len(bookings))
	}
}

func TestCreateBookingWithPaymentTouchingBoundary(t *testing.T) {
	store := openTempStore(t)
	seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	seedBooking(t, store, bookingSeed{id: "b2", asset: "asset-1", checkIn: day(4), checkOut: day(7)})

	bookings, err := store.ActiveBookingsForAsset(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("ActiveBookingsForAsset() error = %v", err)
	}
	if len(bookings) != 2 {
		t.Fatalf("len(bookings) = %d, want 2", len(bookings))
	}
}

func TestConfirmSessionPaidOnce(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})

	applied, err := store.ConfirmSessionPaid(ctx, booking.PaymentSessionID, "pi_1", day(0))
	if err != nil {
		t.Fatalf("ConfirmSessionPaid() error = %v", err)
	}
	if !applied {
		t.Fatal("ConfirmSessionPaid() = false, want true")
	}

	// Duplicate delivery must not mutate anything.
	applied, err = store.ConfirmSessionPaid(ctx, booking.PaymentSessionID, "pi_other", day(0).Add(time.Minute))
	if err != nil {
		t.Fatalf("ConfirmSessionPaid() second call error = %v", err)
	}
	if applied {
		t.Fatal("ConfirmSessionPaid() second call = true, want false")
	}

	got, err := store.Booking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Booking() error = %v", err)
	}
	if got.Status != domain.BookingReserved {
		t.Errorf("booking status = %s, want %s", got.Status, domain.BookingReserved)
	}
	if got.PaymentStatus != domain.PaymentCompleted {
		t.Errorf("booking payment status = %s, want %s", got.PaymentStatus, domain.PaymentCompleted)
	}

	gotPayment, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if gotPayment.Status != domain.PaymentCompleted {
		t.Errorf("payment status = %s, want %s", gotPayment.Status, domain.PaymentCompleted)
	}
	if gotPayment.PaymentRef != "pi_1" {
		t.Errorf("payment ref = %q, want %q", gotPayment.PaymentRef, "pi_1")
	}

	events, err := store.PaymentEvents(ctx, payment.ID)
	if err != nil {
		t.Fatalf("PaymentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].Type != domain.EventCaptured {
		t.Errorf("events[1].Type = %s, want %s", events[1].Type, domain.EventCaptured)
	}
}

func TestConfirmSessionPaidUnknownSession(t *testing.T) {
	store := openTempStore(t)
	_, err := store.ConfirmSessionPaid(context.Background(), "cs_missing", "pi_1", day(0))
	if !errors.IsCode(err, errors.CodeSessionNotFound) {
		t.Fatalf("ConfirmSessionPaid() error = %v, want %s", err, errors.CodeSessionNotFound)
	}
}

func TestCancelPendingSession(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, _ := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})

	applied, err := store.CancelPendingSession(ctx, booking.PaymentSessionID, day(0))
	if err != nil {
		t.Fatalf("CancelPendingSession() error = %v", err)
	}
	if !applied {
		t.Fatal("CancelPendingSession() = false, want true")
	}

	got, err := store.Booking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Booking() error = %v", err)
	}
	if got.Status != domain.BookingCancelled {
		t.Errorf("booking status = %s, want %s", got.Status, domain.BookingCancelled)
	}

	// Captured sessions cannot be cancelled through this path.
	applied, err = store.CancelPendingSession(ctx, booking.PaymentSessionID, day(0))
	if err != nil {
		t.Fatalf("CancelPendingSession() second call error = %v", err)
	}
	if applied {
		t.Fatal("CancelPendingSession() second call = true, want false")
	}
}

func TestCancelBookingWithRefund(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(5), checkOut: day(8)})
	confirmBooking(t, store, booking)

	refund := storage.RefundRecord{RefundID: "re_1", Reason: "guest cancelled", Amount: money("200.00")}
	if err := store.CancelBookingWithRefund(ctx, booking.ID, refund, day(1)); err != nil {
		t.Fatalf("CancelBookingWithRefund() error = %v", err)
	}

	gotPayment, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if gotPayment.Status != domain.PaymentRefunded {
		t.Errorf("payment status = %s, want %s", gotPayment.Status, domain.PaymentRefunded)
	}
	if gotPayment.RefundReason != "guest cancelled" {
		t.Errorf("refund reason = %q, want %q", gotPayment.RefundReason, "guest cancelled")
	}
	if gotPayment.RefundedAt.IsZero() {
		t.Error("refunded at is zero, want set")
	}

	got, err := store.Booking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Booking() error = %v", err)
	}
	if got.Status != domain.BookingCancelled {
		t.Errorf("booking status = %s, want %s", got.Status, domain.BookingCancelled)
	}

	events, err := store.PaymentEvents(ctx, payment.ID)
	if err != nil {
		t.Fatalf("PaymentEvents() error = %v", err)
	}
	last := events[len(events)-1]
	if last.Type != domain.EventRefunded {
		t.Errorf("last event type = %s, want %s", last.Type, domain.EventRefunded)
	}
	if !last.Amount.Equal(money("200.00")) {
		t.Errorf("last event amount = %s, want 200.00", last.Amount)
	}
}

func TestCancelBookingWithRefundUncaptured(t *testing.T) {
	store := openTempStore(t)
	booking, _ := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(5), checkOut: day(8)})

	refund := storage.RefundRecord{RefundID: "re_1", Reason: "guest cancelled", Amount: money("200.00")}
	err := store.CancelBookingWithRefund(context.Background(), booking.ID, refund, day(1))
	if !errors.IsCode(err, errors.CodePaymentIncomplete) {
		t.Fatalf("CancelBookingWithRefund() error = %v, want %s", err, errors.CodePaymentIncomplete)
	}
}

func TestCancelBookingKeepingPayment(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(5), checkOut: day(8)})
	confirmBooking(t, store, booking)

	if err := store.CancelBookingKeepingPayment(ctx, booking.ID, day(4)); err != nil {
		t.Fatalf("CancelBookingKeepingPayment() error = %v", err)
	}

	got, err := store.Booking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Booking() error = %v", err)
	}
	if got.Status != domain.BookingCancelled {
		t.Errorf("booking status = %s, want %s", got.Status, domain.BookingCancelled)
	}

	gotPayment, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if gotPayment.Status != domain.PaymentCompleted {
		t.Errorf("payment status = %s, want %s", gotPayment.Status, domain.PaymentCompleted)
	}

	err = store.CancelBookingKeepingPayment(ctx, booking.ID, day(4))
	if !errors.IsCode(err, errors.CodeBookingNotCancellable) {
		t.Fatalf("second cancel error = %v, want %s", err, errors.CodeBookingNotCancellable)
	}
}

func TestClaimPayoutSingleWinner(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, booking)

	claimed, err := store.ClaimPayout(ctx, payment.ID, "attempt-1", day(1))
	if err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}
	if !claimed {
		t.Fatal("ClaimPayout() = false, want true")
	}

	claimed, err = store.ClaimPayout(ctx, payment.ID, "attempt-2", day(1))
	if err != nil {
		t.Fatalf("ClaimPayout() second call error = %v", err)
	}
	if claimed {
		t.Fatal("ClaimPayout() second call = true, want false")
	}
}

func TestPayoutCandidates(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	due, duePayment := seedBooking(t, store, bookingSeed{id: "due", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, due)

	future, _ := seedBooking(t, store, bookingSeed{id: "future", asset: "asset-2", checkIn: day(30), checkOut: day(33)})
	confirmBooking(t, store, future)

	// Uncaptured payments never become candidates.
	seedBooking(t, store, bookingSeed{id: "unpaid", asset: "asset-3", checkIn: day(1), checkOut: day(4)})

	candidates, err := store.PayoutCandidates(ctx, day(2), 10)
	if err != nil {
		t.Fatalf("PayoutCandidates() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if candidates[0].Payment.ID != duePayment.ID {
		t.Errorf("candidate payment = %s, want %s", candidates[0].Payment.ID, duePayment.ID)
	}
	if candidates[0].Booking.ID != due.ID {
		t.Errorf("candidate booking = %s, want %s", candidates[0].Booking.ID, due.ID)
	}

	// Claimed candidates drop out of the next scan.
	if _, err := store.ClaimPayout(ctx, duePayment.ID, "attempt-1", day(2)); err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}
	candidates, err = store.PayoutCandidates(ctx, day(2), 10)
	if err != nil {
		t.Fatalf("PayoutCandidates() after claim error = %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("len(candidates) after claim = %d, want 0", len(candidates))
	}
}

func TestReleasePayoutClaim(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, booking)

	if _, err := store.ClaimPayout(ctx, payment.ID, "attempt-1", day(1)); err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}

	// A stale run must not release a claim it does not hold.
	if err := store.ReleasePayoutClaim(ctx, payment.ID, "attempt-other", day(1)); err != nil {
		t.Fatalf("ReleasePayoutClaim(stale) error = %v", err)
	}
	candidates, err := store.PayoutCandidates(ctx, day(2), 10)
	if err != nil {
		t.Fatalf("PayoutCandidates() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("len(candidates) after stale release = %d, want 0", len(candidates))
	}

	if err := store.ReleasePayoutClaim(ctx, payment.ID, "attempt-1", day(1)); err != nil {
		t.Fatalf("ReleasePayoutClaim() error = %v", err)
	}
	candidates, err = store.PayoutCandidates(ctx, day(2), 10)
	if err != nil {
		t.Fatalf("PayoutCandidates() after release error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) after release = %d, want 1", len(candidates))
	}
}

func TestCompletePayout(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, booking)

	if _, err := store.ClaimPayout(ctx, payment.ID, "attempt-1", day(1)); err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}
	if err := store.CompletePayout(ctx, payment.ID, "tr_1", money("20.00"), day(1)); err != nil {
		t.Fatalf("CompletePayout() error = %v", err)
	}

	got, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if got.PayoutStatus != domain.PayoutCompleted {
		t.Errorf("payout status = %s, want %s", got.PayoutStatus, domain.PayoutCompleted)
	}
	if got.TransferID != "tr_1" {
		t.Errorf("transfer id = %q, want %q", got.TransferID, "tr_1")
	}
	if !got.PlatformFee.Equal(money("20.00")) {
		t.Errorf("platform fee = %s, want 20.00", got.PlatformFee)
	}

	err = store.CompletePayout(ctx, payment.ID, "tr_2", money("20.00"), day(1))
	if !errors.IsCode(err, errors.CodePayoutAlreadyProcessed) {
		t.Fatalf("second CompletePayout() error = %v, want %s", err, errors.CodePayoutAlreadyProcessed)
	}
}

func TestFailPayout(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, booking)

	if _, err := store.ClaimPayout(ctx, payment.ID, "attempt-1", day(1)); err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}
	if err := store.FailPayout(ctx, payment.ID, "account deactivated", day(1)); err != nil {
		t.Fatalf("FailPayout() error = %v", err)
	}

	got, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if got.PayoutStatus != domain.PayoutFailed {
		t.Errorf("payout status = %s, want %s", got.PayoutStatus, domain.PayoutFailed)
	}
	if got.PayoutError != "account deactivated" {
		t.Errorf("payout error = %q, want %q", got.PayoutError, "account deactivated")
	}

	// Failed payouts stay out of the candidate scan until reprocessed.
	candidates, err := store.PayoutCandidates(ctx, day(2), 10)
	if err != nil {
		t.Fatalf("PayoutCandidates() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("len(candidates) = %d, want 0", len(candidates))
	}
}

func TestStatusSweepTransitions(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	booking, payment := seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, booking)

	due, err := store.DueCheckIns(ctx, day(1))
	if err != nil {
		t.Fatalf("DueCheckIns() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(DueCheckIns) = %d, want 1", len(due))
	}

	applied, err := store.MarkCheckedIn(ctx, booking.ID, day(1))
	if err != nil {
		t.Fatalf("MarkCheckedIn() error = %v", err)
	}
	if !applied {
		t.Fatal("MarkCheckedIn() = false, want true")
	}

	// Overlapping sweep runs converge without double-applying.
	applied, err = store.MarkCheckedIn(ctx, booking.ID, day(1))
	if err != nil {
		t.Fatalf("MarkCheckedIn() second call error = %v", err)
	}
	if applied {
		t.Fatal("MarkCheckedIn() second call = true, want false")
	}

	gotPayment, err := store.Payment(ctx, payment.ID)
	if err != nil {
		t.Fatalf("Payment() error = %v", err)
	}
	if gotPayment.PayoutStatus != domain.PayoutProcessing {
		t.Errorf("payout status = %s, want %s", gotPayment.PayoutStatus, domain.PayoutProcessing)
	}

	due, err = store.DueCheckOuts(ctx, day(4))
	if err != nil {
		t.Fatalf("DueCheckOuts() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(DueCheckOuts) = %d, want 1", len(due))
	}
	if applied, err = store.MarkCheckedOut(ctx, booking.ID, day(4)); err != nil || !applied {
		t.Fatalf("MarkCheckedOut() = %v, %v, want true, nil", applied, err)
	}

	due, err = store.DueCompletions(ctx, day(4))
	if err != nil {
		t.Fatalf("DueCompletions() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("len(DueCompletions) = %d, want 1", len(due))
	}
	if applied, err = store.MarkCompleted(ctx, booking.ID, day(4)); err != nil || !applied {
		t.Fatalf("MarkCompleted() = %v, %v, want true, nil", applied, err)
	}

	got, err := store.Booking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Booking() error = %v", err)
	}
	if got.Status != domain.BookingCompleted {
		t.Errorf("booking status = %s, want %s", got.Status, domain.BookingCompleted)
	}
}

func TestIntegrityViolations(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	healthy, _ := seedBooking(t, store, bookingSeed{id: "ok", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	confirmBooking(t, store, healthy)

	// Force a reserved booking whose payment never completed.
	broken, _ := seedBooking(t, store, bookingSeed{id: "broken", asset: "asset-2", checkIn: day(1), checkOut: day(4)})
	if _, err := store.sqlDB.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`,
		string(domain.BookingReserved), broken.ID); err != nil {
		t.Fatalf("force reserved: %v", err)
	}

	// A completed stay whose payment never completed must not escape.
	elapsed, _ := seedBooking(t, store, bookingSeed{id: "elapsed", asset: "asset-3", checkIn: day(-10), checkOut: day(-7)})
	if _, err := store.sqlDB.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`,
		string(domain.BookingCompleted), elapsed.ID); err != nil {
		t.Fatalf("force completed: %v", err)
	}

	violations, err := store.IntegrityViolations(ctx)
	if err != nil {
		t.Fatalf("IntegrityViolations() error = %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("len(violations) = %d, want 2", len(violations))
	}
	seen := map[string]storage.IntegrityViolation{}
	for _, v := range violations {
		seen[v.Booking.ID] = v
	}
	if _, ok := seen[broken.ID]; !ok {
		t.Errorf("missing violation for reserved booking %s", broken.ID)
	}
	if _, ok := seen[elapsed.ID]; !ok {
		t.Errorf("missing violation for completed booking %s", elapsed.ID)
	}
	for id, v := range seen {
		if v.Payment.Status == domain.PaymentCompleted {
			t.Errorf("violation %s payment is completed, want incomplete", id)
		}
	}
}

func TestListBookingsFilters(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	seedBooking(t, store, bookingSeed{id: "b1", asset: "asset-1", checkIn: day(1), checkOut: day(4)})
	seedBooking(t, store, bookingSeed{id: "b2", asset: "asset-2", checkIn: day(1), checkOut: day(4)})

	byGuest, err := store.ListBookings(ctx, storage.BookingFilter{GuestID: "guest-1"})
	if err != nil {
		t.Fatalf("ListBookings(guest) error = %v", err)
	}
	if len(byGuest) != 2 {
		t.Fatalf("len(byGuest) = %d, want 2", len(byGuest))
	}

	byAsset, err := store.ListBookings(ctx, storage.BookingFilter{AssetID: "asset-2"})
	if err != nil {
		t.Fatalf("ListBookings(asset) error = %v", err)
	}
	if len(byAsset) != 1 || byAsset[0].ID != "b2" {
		t.Fatalf("byAsset = %v, want single b2", byAsset)
	}

	if _, err := store.ListBookings(ctx, storage.BookingFilter{}); err == nil {
		t.Fatal("ListBookings(empty filter) error = nil, want error")
	}
}

func TestAppendTelemetryEvent(t *testing.T) {
	store := openTempStore(t)
	evt := telemetry.Event{
		Timestamp: day(0),
		Severity:  telemetry.SeverityCritical,
		Component: "status_sweep",
		Kind:      "integrity_violation",
		Message:   "occupancy booking without completed payment",
		Metadata:  map[string]string{"booking_id": "b1"},
	}
	if err := store.AppendTelemetryEvent(context.Background(), evt); err != nil {
		t.Fatalf("AppendTelemetryEvent() error = %v", err)
	}
}

func TestBookingNotFound(t *testing.T) {
	store := openTempStore(t)
	_, err := store.Booking(context.Background(), "missing")
	if !errors.IsCode(err, errors.CodeBookingNotFound) {
		t.Fatalf("Booking() error = %v, want %s", err, errors.CodeBookingNotFound)
	}
	_, err = store.Payment(context.Background(), "missing")
	if !errors.IsCode(err, errors.CodePaymentNotFound) {
		t.Fatalf("Payment() error = %v, want %s", err, errors.CodePaymentNotFound)
	}
	_, err = store.PaymentBySession(context.Background(), "missing")
	if !errors.IsCode(err, errors.CodeSessionNotFound) {
		t.Fatalf("PaymentBySession() error = %v, want %s", err, errors.CodeSessionNotFound)
	}
}
