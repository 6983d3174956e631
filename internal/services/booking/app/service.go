// Package app implements the booking engine's use cases on top of the
// storage contract and the payment processor.
package app

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/platform/id"
	"github.com/louisbranch/staybroker/internal/platform/timeouts"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/processor"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
	"github.com/louisbranch/staybroker/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("staybroker/booking")

// Config tunes the booking service.
type Config struct {
	// FeeRate is the platform's cut of each payment, e.g. 0.10 for 10%.
	FeeRate decimal.Decimal
	// SuccessURL and CancelURL are where the processor redirects the payer.
	SuccessURL string
	CancelURL  string
}

// Service coordinates bookings, payments, refunds, and payouts.
type Service struct {
	store     storage.Store
	proc      processor.Processor
	assets    AssetGateway
	accounts  AccountGateway
	telemetry *telemetry.Emitter
	cfg       Config
	clock     func() time.Time
}

// New creates a booking service. The telemetry emitter may be nil.
func New(store storage.Store, proc processor.Processor, assets AssetGateway, accounts AccountGateway, emitter *telemetry.Emitter, cfg Config) *Service {
	return &Service{
		store:     store,
		proc:      proc,
		assets:    assets,
		accounts:  accounts,
		telemetry: emitter,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// WithClock overrides the service clock, used by tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// CreateBookingRequest is an admission request for a new reservation.
type CreateBookingRequest struct {
	GuestID    string
	AssetID    string
	CheckIn    string
	CheckOut   string
	Guests     int
	TotalPrice string
	Currency   string
}

// CreateBookingResult is the admitted booking plus the processor redirect
// the guest must complete payment through.
type CreateBookingResult struct {
	Booking     domain.Booking
	Payment     domain.Payment
	RedirectURL string
}

// CreateBooking admits a reservation. Validation, asset, overlap, and
// payout-path checks run in that order so the caller always sees the
// earliest failing gate. The booking persists as pending alongside its
// checkout session; funds settle asynchronously.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (CreateBookingResult, error) {
	ctx, span := tracer.Start(ctx, "CreateBooking", trace.WithAttributes(
		attribute.String("asset_id", req.AssetID),
	))
	defer span.End()

	interval, err := domain.ParseInterval(req.CheckIn, req.CheckOut)
	if err != nil {
		return CreateBookingResult{}, err
	}
	if strings.TrimSpace(req.GuestID) == "" {
		return CreateBookingResult{}, errors.New(errors.CodeFieldMissing, "guest id is required")
	}
	if req.Guests <= 0 {
		return CreateBookingResult{}, errors.New(errors.CodeGuestsInvalid, "guest count must be positive")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.TotalPrice))
	if err != nil || price.IsNegative() {
		return CreateBookingResult{}, errors.New(errors.CodePriceInvalid, "total price must be a non-negative amount")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return CreateBookingResult{}, errors.New(errors.CodeFieldMissing, "currency is required")
	}

	asset, err := s.assets.Asset(ctx, req.AssetID)
	if err != nil {
		return CreateBookingResult{}, err
	}
	if !asset.Active {
		return CreateBookingResult{}, errors.New(errors.CodeAssetInactive, "asset is not accepting reservations")
	}

	existing, err := s.store.ActiveBookingsForAsset(ctx, asset.ID)
	if err != nil {
		return CreateBookingResult{}, err
	}
	if domain.HasOverlap(existing, interval, "") {
		return CreateBookingResult{}, errors.WithMetadata(errors.CodeDateOverlap, "dates conflict with an existing reservation", map[string]string{
			"asset_id": asset.ID,
		})
	}

	account, err := s.accounts.PayoutAccount(ctx, asset.HostID)
	if err != nil {
		return CreateBookingResult{}, err
	}
	if account.AccountID == "" || !account.TransfersEnabled {
		return CreateBookingResult{}, errors.New(errors.CodeHostPayoutUnverified, "host has no verified payout account")
	}

	bookingID, err := id.NewID()
	if err != nil {
		return CreateBookingResult{}, err
	}
	paymentID, err := id.NewID()
	if err != nil {
		return CreateBookingResult{}, err
	}
	now := s.now()

	procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	session, err := s.proc.CreateCheckoutSession(procCtx, processor.CheckoutRequest{
		Amount:     price,
		Currency:   currency,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata: map[string]string{
			"booking_id": bookingID,
			"payment_id": paymentID,
		},
	})
	if err != nil {
		return CreateBookingResult{}, errors.Wrap(errors.CodeProcessorUnavailable, "payment processor unavailable", err)
	}

	booking := domain.Booking{
		ID:               bookingID,
		GuestID:          req.GuestID,
		AssetID:          asset.ID,
		HostID:           asset.HostID,
		CheckIn:          interval.Start,
		CheckOut:         interval.End,
		Guests:           req.Guests,
		TotalPrice:       price,
		Currency:         currency,
		Status:           domain.BookingPending,
		PaymentStatus:    domain.PaymentPending,
		PaymentSessionID: session.SessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	payment := domain.Payment{
		ID:           paymentID,
		BookingID:    bookingID,
		SessionID:    session.SessionID,
		Amount:       price,
		Currency:     currency,
		Status:       domain.PaymentPending,
		PayoutStatus: domain.PayoutPending,
		PlatformFee:  decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	evt, err := domain.NewCheckoutCreatedEvent(paymentID, bookingID, session.SessionID, price, now)
	if err != nil {
		return CreateBookingResult{}, err
	}

	if err := s.store.CreateBookingWithPayment(ctx, booking, payment, evt); err != nil {
		// The booking lost an admission race after the session opened; the
		// orphaned session is released best-effort.
		if errors.IsCode(err, errors.CodeDateOverlap) {
			releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Processor)
			defer releaseCancel()
			_ = s.proc.CancelSession(releaseCtx, session.SessionID)
		}
		return CreateBookingResult{}, err
	}

	span.SetAttributes(attribute.String("booking_id", bookingID))
	return CreateBookingResult{Booking: booking, Payment: payment, RedirectURL: session.RedirectURL}, nil
}

// CheckAvailability reports whether the asset is free for the given dates.
func (s *Service) CheckAvailability(ctx context.Context, assetID, checkIn, checkOut string) (bool, error) {
	interval, err := domain.ParseInterval(checkIn, checkOut)
	if err != nil {
		return false, err
	}
	if _, err := s.assets.Asset(ctx, assetID); err != nil {
		return false, err
	}
	existing, err := s.store.ActiveBookingsForAsset(ctx, assetID)
	if err != nil {
		return false, err
	}
	return !domain.HasOverlap(existing, interval, ""), nil
}

// Booking fetches one booking.
func (s *Service) Booking(ctx context.Context, bookingID string) (domain.Booking, error) {
	return s.store.Booking(ctx, bookingID)
}

// ListBookings lists bookings for a guest, host, or asset, newest first.
func (s *Service) ListBookings(ctx context.Context, filter storage.BookingFilter) ([]domain.Booking, error) {
	return s.store.ListBookings(ctx, filter)
}

// PaymentEvents lists the audit trail for one payment.
func (s *Service) PaymentEvents(ctx context.Context, paymentID string) ([]domain.PaymentEvent, error) {
	return s.store.PaymentEvents(ctx, paymentID)
}

// CancelBookingResult reports what a cancellation returned to the guest.
type CancelBookingResult struct {
	Booking      domain.Booking
	RefundAmount decimal.Decimal
}

// CancelBooking cancels a booking under the asset's cancellation policy.
// When a refund is owed, the processor refund is issued before any local
// state changes; a refund failure aborts the cancellation so money and
// records never disagree.
func (s *Service) CancelBooking(ctx context.Context, bookingID, reason string) (CancelBookingResult, error) {
	ctx, span := tracer.Start(ctx, "CancelBooking", trace.WithAttributes(
		attribute.String("booking_id", bookingID),
	))
	defer span.End()

	booking, err := s.store.Booking(ctx, bookingID)
	if err != nil {
		return CancelBookingResult{}, err
	}
	if !booking.Status.Cancellable() {
		return CancelBookingResult{}, errors.New(errors.CodeBookingNotCancellable, "booking can no longer be cancelled")
	}
	payment, err := s.store.PaymentByBooking(ctx, bookingID)
	if err != nil {
		return CancelBookingResult{}, err
	}
	now := s.now()

	if payment.Status != domain.PaymentCompleted {
		// Nothing was captured; release the session and cancel locally.
		procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
		defer cancel()
		_ = s.proc.CancelSession(procCtx, payment.SessionID)
		applied, err := s.store.CancelPendingSession(ctx, payment.SessionID, now)
		if err != nil {
			return CancelBookingResult{}, err
		}
		if applied {
			booking.Status = domain.BookingCancelled
			return CancelBookingResult{Booking: booking, RefundAmount: decimal.Zero}, nil
		}
		// The capture won the race; the payment settled between the read
		// above and the cancel write. Reload and continue down the refund
		// path so the guest is never told a paid stay was cancelled for free.
		payment, err = s.store.PaymentByBooking(ctx, bookingID)
		if err != nil {
			return CancelBookingResult{}, err
		}
		if payment.Status != domain.PaymentCompleted {
			return CancelBookingResult{}, errors.New(errors.CodeBookingNotCancellable, "booking can no longer be cancelled")
		}
	}

	asset, err := s.assets.Asset(ctx, booking.AssetID)
	if err != nil {
		return CancelBookingResult{}, err
	}
	refund := domain.RefundAmount(asset.CancellationPolicy, now, booking.CheckIn, payment.Amount)
	if refund.IsZero() {
		if err := s.store.CancelBookingKeepingPayment(ctx, bookingID, now); err != nil {
			return CancelBookingResult{}, err
		}
		booking.Status = domain.BookingCancelled
		return CancelBookingResult{Booking: booking, RefundAmount: decimal.Zero}, nil
	}

	procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	refundID, err := s.proc.Refund(procCtx, payment.PaymentRef, refund, reason)
	if err != nil {
		if stderrors.Is(err, processor.ErrChargeNotCapturable) {
			return CancelBookingResult{}, errors.Wrap(errors.CodePaymentIncomplete, "payment is not capturable", err)
		}
		return CancelBookingResult{}, errors.Wrap(errors.CodeProcessorUnavailable, "refund failed", err)
	}

	record := storage.RefundRecord{RefundID: refundID, Reason: reason, Amount: refund}
	if err := s.store.CancelBookingWithRefund(ctx, bookingID, record, now); err != nil {
		return CancelBookingResult{}, err
	}
	booking.Status = domain.BookingCancelled
	booking.PaymentStatus = domain.PaymentRefunded
	return CancelBookingResult{Booking: booking, RefundAmount: refund}, nil
}

// Session returns the payment correlated with a checkout session after
// reconciling its live processor state.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.Payment, error) {
	if err := s.ReconcileSession(ctx, sessionID); err != nil && !errors.IsCode(err, errors.CodeProcessorUnavailable) {
		return domain.Payment{}, err
	}
	return s.store.PaymentBySession(ctx, sessionID)
}

// CancelSession cancels an uncaptured checkout session and its booking.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (domain.Payment, error) {
	payment, err := s.store.PaymentBySession(ctx, sessionID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status != domain.PaymentPending {
		return domain.Payment{}, errors.New(errors.CodeSessionNotCancellable, "session has already settled")
	}

	procCtx, cancel := context.WithTimeout(ctx, timeouts.Processor)
	defer cancel()
	_ = s.proc.CancelSession(procCtx, sessionID)

	applied, err := s.store.CancelPendingSession(ctx, sessionID, s.now())
	if err != nil {
		return domain.Payment{}, err
	}
	if !applied {
		// The capture won the race; report the settled state.
		return domain.Payment{}, errors.New(errors.CodeSessionNotCancellable, "session has already settled")
	}
	return s.store.PaymentBySession(ctx, sessionID)
}
