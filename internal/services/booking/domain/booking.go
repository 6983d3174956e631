// Package domain holds the booking, payment, and payout lifecycle rules.
package domain

import (
	"strings"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
	"github.com/shopspring/decimal"
)

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingReserved   BookingStatus = "reserved"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// Blocking reports whether a booking in this status holds its date range
// against new reservations.
func (s BookingStatus) Blocking() bool {
	return s == BookingPending || s == BookingReserved
}

// Occupancy reports whether the status implies the guest occupied the asset.
// A booking in an occupancy status must have a completed payment; anything
// else is an integrity fault.
func (s BookingStatus) Occupancy() bool {
	return s == BookingCheckedIn || s == BookingCheckedOut || s == BookingCompleted
}

// Terminal reports whether the status admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Cancellable reports whether an explicit cancellation request is allowed.
func (s BookingStatus) Cancellable() bool {
	return s == BookingPending || s == BookingReserved
}

// CanTransition reports whether the booking state machine allows from→to.
// No transition skips a predecessor; cancelled is reachable only from
// pending or reserved. The time-driven sweep walks elapsed bookings through
// intermediate states rather than jumping.
func CanTransition(from, to BookingStatus) bool {
	switch from {
	case BookingPending:
		return to == BookingReserved || to == BookingCancelled
	case BookingReserved:
		return to == BookingCheckedIn || to == BookingCancelled
	case BookingCheckedIn:
		return to == BookingCheckedOut
	case BookingCheckedOut:
		return to == BookingCompleted
	default:
		return false
	}
}

// Booking is one time-bounded reservation of an asset by a guest. Bookings
// are never physically deleted; cancellation is a terminal state.
type Booking struct {
	ID               string
	GuestID          string
	AssetID          string
	HostID           string
	CheckIn          time.Time
	CheckOut         time.Time
	Guests           int
	TotalPrice       decimal.Decimal
	Currency         string
	Status           BookingStatus
	PaymentStatus    PaymentStatus
	PaymentSessionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks booking fields at admission time.
func (b Booking) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New(errors.CodeFieldMissing, "booking id is required")
	}
	if strings.TrimSpace(b.GuestID) == "" {
		return errors.New(errors.CodeFieldMissing, "guest id is required")
	}
	if strings.TrimSpace(b.AssetID) == "" {
		return errors.New(errors.CodeFieldMissing, "asset id is required")
	}
	if strings.TrimSpace(b.HostID) == "" {
		return errors.New(errors.CodeFieldMissing, "host id is required")
	}
	if _, err := NewInterval(b.CheckIn, b.CheckOut); err != nil {
		return err
	}
	if b.Guests <= 0 {
		return errors.New(errors.CodeGuestsInvalid, "guest count must be positive")
	}
	if b.TotalPrice.IsNegative() {
		return errors.New(errors.CodePriceInvalid, "total price must not be negative")
	}
	return nil
}

// Interval returns the booking's half-open occupancy interval.
func (b Booking) Interval() Interval {
	return Interval{Start: b.CheckIn, End: b.CheckOut}
}
