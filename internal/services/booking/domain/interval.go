package domain

import (
	"strings"
	"time"

	"github.com/louisbranch/staybroker/internal/platform/errors"
)

// DateLayout is the wire format for check-in/check-out dates.
const DateLayout = "2006-01-02"

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates interval ordering. Start must be strictly before End.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, errors.New(errors.CodeDateInvalid, "check-in and check-out dates are required")
	}
	if !start.Before(end) {
		return Interval{}, errors.New(errors.CodeDateRangeInvalid, "check-in must be before check-out")
	}
	return Interval{Start: start, End: end}, nil
}

// ParseInterval parses check-in/check-out date strings into an Interval.
// Unparseable input is a caller-visible validation error, never a silent no-overlap.
func ParseInterval(checkIn, checkOut string) (Interval, error) {
	start, err := time.Parse(DateLayout, strings.TrimSpace(checkIn))
	if err != nil {
		return Interval{}, errors.Wrap(errors.CodeDateInvalid, "invalid check-in date", err)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(checkOut))
	if err != nil {
		return Interval{}, errors.Wrap(errors.CodeDateInvalid, "invalid check-out date", err)
	}
	return NewInterval(start, end)
}

// Overlaps reports whether two half-open intervals intersect. Touching
// intervals (one ends exactly when the other starts) do not overlap, so a
// check-out and a check-in on the same instant are both admittable.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// HasOverlap reports whether any non-terminal reservation on the asset
// intersects the candidate interval. Bookings already cancelled or past the
// reserved stage do not block; excludeID skips one booking for updates.
func HasOverlap(existing []Booking, candidate Interval, excludeID string) bool {
	for _, booking := range existing {
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if !booking.Status.Blocking() {
			continue
		}
		if candidate.Overlaps(Interval{Start: booking.CheckIn, End: booking.CheckOut}) {
			return true
		}
	}
	return false
}
