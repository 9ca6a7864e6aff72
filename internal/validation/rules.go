package validation

import (
	"time"

	"slotengine/internal/domain"
	"slotengine/internal/models"
)

// DurationResolver resolves a service's duration in minutes.
type DurationResolver interface {
	ServiceDuration(serviceID string) int
}

// Reasons returned by CanBook.
const (
	ReasonOK              = ""
	ReasonBookingLimit    = "booking limit reached"
	ReasonNonWorkingDay   = "not a working day"
	ReasonBeyondAdvance   = "beyond advance booking window"
	ReasonOutsideHours    = "outside business hours"
	ReasonPastClose       = "extends past closing time"
	ReasonBlockedHours    = "overlaps blocked hours"
	ReasonOffGrid         = "not aligned to slot grid"
	ReasonInPast          = "time has passed"
	ReasonLeadTime        = "minimum lead time not met"
	ReasonConflict        = "conflicts with an existing booking"
	ReasonInvalidDuration = "invalid service duration"
)

// Decision is the outcome of a composite bookability check.
type Decision struct {
	Allowed  bool
	Reason   string
	Conflict *models.Booking
}

// ResolveDuration returns the resolver's duration, falling back to the default
// for a nil resolver or a non-positive value.
func ResolveDuration(r DurationResolver, serviceID string) int {
	if r == nil {
		return models.DefaultServiceDurationMinutes
	}
	if d := r.ServiceDuration(serviceID); d > 0 {
		return d
	}
	return models.DefaultServiceDurationMinutes
}

// ActiveBookingsFor counts the user's confirmed bookings that start after now.
func (e Engine) ActiveBookingsFor(identity domain.IdentityProvider) int {
	if identity == nil {
		return 0
	}
	userID, email := identity.CurrentUserID(), identity.CurrentUserEmail()
	count := 0
	for i := range e.s.Bookings {
		b := &e.s.Bookings[i]
		if !b.IsConfirmed() || !b.BelongsTo(userID, email) {
			continue
		}
		if e.at(b.Date, b.StartTime).After(e.s.Now) {
			count++
		}
	}
	return count
}

// HasReachedBookingLimit reports whether the user holds MaxActiveBookingsPerUser
// or more future confirmed bookings. A non-positive cap disables the rule.
func (e Engine) HasReachedBookingLimit(identity domain.IdentityProvider) bool {
	limit := e.s.Policy.MaxActiveBookingsPerUser
	if limit <= 0 {
		return false
	}
	return e.ActiveBookingsFor(identity) >= limit
}

// IsOnGrid reports whether t is OpensAt + k*SlotDurationMinutes.
func (e Engine) IsOnGrid(t models.ClockTime) bool {
	step := e.s.Policy.SlotDurationMinutes
	offset := t.Minutes() - e.s.Hours.OpensAt().Minutes()
	if step <= 0 || offset < 0 {
		return false
	}
	return offset%step == 0
}

// FindConflict returns the confirmed booking on date whose own interval
// overlaps [start,start+duration). When several overlap, the earliest start
// wins, then the lowest id, so the answer does not depend on snapshot order.
func (e Engine) FindConflict(date time.Time, start models.ClockTime, duration int, durations DurationResolver) (*models.Booking, bool) {
	var found *models.Booking
	for i := range e.s.Bookings {
		b := &e.s.Bookings[i]
		if !b.IsConfirmed() || !models.SameDate(b.Date, date) {
			continue
		}
		if !IntervalsOverlap(b.StartTime, ResolveDuration(durations, b.ServiceID), start, duration) {
			continue
		}
		if found == nil || b.StartTime < found.StartTime || (b.StartTime == found.StartTime && b.ID < found.ID) {
			found = b
		}
	}
	return found, found != nil
}

// CanBook runs every rule a booking-creation flow must re-check at write time.
func (e Engine) CanBook(identity domain.IdentityProvider, date time.Time, start models.ClockTime, duration int, durations DurationResolver) Decision {
	switch {
	case duration <= 0 || !start.Valid():
		return deny(ReasonInvalidDuration)
	case e.HasReachedBookingLimit(identity):
		return deny(ReasonBookingLimit)
	case !e.CanBookOnDate(date):
		return deny(ReasonNonWorkingDay)
	case !e.CanBookInAdvance(date):
		return deny(ReasonBeyondAdvance)
	case !e.CanBookAtHour(start.Hour()):
		return deny(ReasonOutsideHours)
	case e.WouldExtendPastClose(start, duration):
		return deny(ReasonPastClose)
	case e.WouldOverlapBlockedHours(start, duration):
		return deny(ReasonBlockedHours)
	case !e.IsOnGrid(start):
		return deny(ReasonOffGrid)
	case e.IsPastOnDate(date, start):
		return deny(ReasonInPast)
	case !e.CanBookWithLeadTime(date, start):
		return deny(ReasonLeadTime)
	}

	if conflict, ok := e.FindConflict(date, start, duration, durations); ok {
		d := deny(ReasonConflict)
		d.Conflict = conflict
		return d
	}
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
