// Package api exposes the booking engine over HTTP.
package api

import (
	stderrors "errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/louisbranch/staybroker/internal/platform/timeouts"
	"github.com/louisbranch/staybroker/internal/services/booking/app"
	"github.com/louisbranch/staybroker/internal/services/booking/domain"
	"github.com/louisbranch/staybroker/internal/services/booking/storage"
)

// Handler wires the booking service into HTTP routes.
type Handler struct {
	service *app.Service
}

// NewServer builds the HTTP server for the booking API.
func NewServer(service *app.Service) *fiber.App {
	h := &Handler{service: service}

	srv := fiber.New(fiber.Config{
		AppName:      "staybroker",
		ReadTimeout:  timeouts.ReadHeader,
		ErrorHandler: errorHandler,
	})
	srv.Use(recover.New())

	srv.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := srv.Group("/v1")
	v1.Post("/bookings", h.createBooking)
	v1.Get("/bookings", h.listBookings)
	v1.Get("/bookings/:id", h.getBooking)
	v1.Post("/bookings/:id/cancel", h.cancelBooking)
	v1.Get("/availability", h.checkAvailability)
	v1.Get("/payments/sessions/:id", h.getSession)
	v1.Post("/payments/sessions/:id/cancel", h.cancelSession)
	v1.Post("/webhooks/processor", h.processorWebhook)
	v1.Post("/payouts/run", h.runPayouts)

	return srv
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiber.Map{"code": string(errors.CodeUnknown), "message": fiberErr.Message},
		})
	}

	code := errors.GetCode(err)
	status := code.HTTPStatus()
	if status >= 500 {
		log.Printf("request failed: %v", err)
	}
	body := fiber.Map{"code": string(code), "message": publicMessage(err, code)}
	if meta := errors.GetMetadata(err); len(meta) > 0 {
		body["metadata"] = meta
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}

func publicMessage(err error, code errors.Code) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	if code == errors.CodeUnknown {
		return "internal error"
	}
	return err.Error()
}

type bookingResponse struct {
	ID               string `json:"id"`
	GuestID          string `json:"guest_id"`
	AssetID          string `json:"asset_id"`
	HostID           string `json:"host_id"`
	CheckIn          string `json:"check_in"`
	CheckOut         string `json:"check_out"`
	Guests           int    `json:"guests"`
	TotalPrice       string `json:"total_price"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	PaymentStatus    string `json:"payment_status"`
	PaymentSessionID string `json:"payment_session_id"`
	CreatedAt        string `json:"created_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:               b.ID,
		GuestID:          b.GuestID,
		AssetID:          b.AssetID,
		HostID:           b.HostID,
		CheckIn:          b.CheckIn.Format(domain.DateLayout),
		CheckOut:         b.CheckOut.Format(domain.DateLayout),
		Guests:           b.Guests,
		TotalPrice:       b.TotalPrice.String(),
		Currency:         b.Currency,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		PaymentSessionID: b.PaymentSessionID,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

type paymentResponse struct {
	ID           string `json:"id"`
	BookingID    string `json:"booking_id"`
	SessionID    string `json:"session_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	PayoutStatus string `json:"payout_status"`
	PlatformFee  string `json:"platform_fee"`
	TransferID   string `json:"transfer_id,omitempty"`
	PaymentRef   string `json:"payment_ref,omitempty"`
	RefundReason string `json:"refund_reason,omitempty"`
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:           p.ID,
		BookingID:    p.BookingID,
		SessionID:    p.SessionID,
		Amount:       p.Amount.String(),
		Currency:     p.Currency,
		Status:       string(p.Status),
		PayoutStatus: string(p.PayoutStatus),
		PlatformFee:  p.PlatformFee.String(),
		TransferID:   p.TransferID,
		PaymentRef:   p.PaymentRef,
		RefundReason: p.RefundReason,
	}
}

type createBookingBody struct {
	GuestID    string `json:"guest_id"`
	AssetID    string `json:"asset_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Guests     int    `json:"guests"`
	TotalPrice string `json:"total_price"`
	Currency   string `json:"currency"`
}

func (h *Handler) createBooking(c *fiber.Ctx) error {
	var body createBookingBody
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.CodeFieldMissing, "request body must be valid JSON")
	}
	result, err := h.service.CreateBooking(c.UserContext(), app.CreateBookingRequest{
		GuestID:    body.GuestID,
		AssetID:    body.AssetID,
		CheckIn:    body.CheckIn,
		CheckOut:   body.CheckOut,
		Guests:     body.Guests,
		TotalPrice: body.TotalPrice,
		Currency:   body.Currency,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"booking":      toBookingResponse(result.Booking),
		"payment":      toPaymentResponse(result.Payment),
		"redirect_url": result.RedirectURL,
	})
}

func (h *Handler) getBooking(c *fiber.Ctx) error {
	booking, err := h.service.Booking(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"booking": toBookingResponse(booking)})
}

func (h *Handler) listBookings(c *fiber.Ctx) error {
	filter := storage.BookingFilter{
		GuestID: c.Query("guest_id"),
		HostID:  c.Query("host_id"),
		AssetID: c.Query("asset_id"),
	}
	if filter.GuestID == "" && filter.HostID == "" && filter.AssetID == "" {
		return errors.New(errors.CodeFieldMissing, "guest_id, host_id, or asset_id is required")
	}
	bookings, err := h.service.ListBookings(c.UserContext(), filter)
	if err != nil {
		return err
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingResponse(booking))
	}
	return c.JSON(fiber.Map{"bookings": out})
}

type cancelBookingBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelBooking(c *fiber.Ctx) error {
	var body cancelBookingBody
	_ = c.BodyParser(&body)
	result, err := h.service.CancelBooking(c.UserContext(), c.Params("id"), body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"booking":       toBookingResponse(result.Booking),
		"refund_amount": result.RefundAmount.String(),
	})
}

func (h *Handler) checkAvailability(c *fiber.Ctx) error {
	assetID := c.Query("asset_id")
	if assetID == "" {
		return errors.New(errors.CodeFieldMissing, "asset_id is required")
	}
	available, err := h.service.CheckAvailability(c.UserContext(), assetID, c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"asset_id": assetID, "available": available})
}

func (h *Handler) getSession(c *fiber.Ctx) error {
	payment, err := h.service.Session(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"payment": toPaymentResponse(payment)})
}

func (h *Handler) cancelSession(c *fiber.Ctx) error {
	payment, err := h.service.CancelSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"payment": toPaymentResponse(payment)})
}

type webhookBody struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	PaymentRef string `json:"payment_ref"`
}

// processorWebhook ingests processor notifications. Deliveries are
// at-least-once; the underlying confirmation is idempotent, so replays
// always return 200.
func (h *Handler) processorWebhook(c *fiber.Ctx) error {
	var body webhookBody
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.CodeFieldMissing, "request body must be valid JSON")
	}
	switch body.Type {
	case "checkout.session.completed":
		if err := h.service.HandleSessionCompleted(c.UserContext(), body.SessionID, body.PaymentRef); err != nil {
			return err
		}
	default:
		// Unrecognized event types are acknowledged and dropped.
	}
	return c.JSON(fiber.Map{"received": true})
}

type runPayoutsBody struct {
	Limit int `json:"limit"`
}

func (h *Handler) runPayouts(c *fiber.Ctx) error {
	var body runPayoutsBody
	_ = c.BodyParser(&body)
	if body.Limit <= 0 {
		body.Limit = 100
	}
	report, err := h.service.RunPayoutSweep(c.UserContext(), body.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"scanned":   report.Scanned,
		"claimed":   report.Claimed,
		"completed": report.Completed,
		"failed":    report.Failed,
		"released":  report.Released,
		"skipped":   report.Skipped,
	})
}
