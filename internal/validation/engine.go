// Package validation holds the pure bookability predicates. Nothing here
// performs I/O or reads the wall clock: every decision is made against an
// explicit Snapshot.
package validation

import (
	"time"

	"slotengine/internal/domain"
	"slotengine/internal/models"
)

// Snapshot is the immutable input every predicate is evaluated against.
type Snapshot struct {
	Policy   models.BookingPolicy
	Hours    models.BusinessHours
	Bookings []models.Booking
	Now      time.Time
}

// NewSnapshot reads the current rules from the provider.
func NewSnapshot(rules domain.BusinessRulesProvider, bookings []models.Booking, now time.Time) Snapshot {
	return Snapshot{
		Policy: models.BookingPolicy{
			WorkingDays:              rules.WorkingDays(),
			SlotDurationMinutes:      rules.SlotDurationMinutes(),
			AdvanceBookingDays:       rules.AdvanceBookingDays(),
			MinLeadTimeMinutes:       rules.MinLeadTimeMinutes(),
			Cancellation:             rules.CancellationPolicy(),
			MaxActiveBookingsPerUser: rules.MaxActiveBookingsPerUser(),
		},
		Hours:    rules.BusinessHours(),
		Bookings: bookings,
		Now:      now,
	}
}

// Engine evaluates the predicates for one snapshot.
type Engine struct {
	s Snapshot
}

func New(s Snapshot) Engine {
	return Engine{s: s}
}

func (e Engine) Snapshot() Snapshot { return e.s }

// CanBookOnDate reports whether the weekday of date is a working day.
func (e Engine) CanBookOnDate(date time.Time) bool {
	return e.s.Policy.IsWorkingDay(date.Weekday())
}

// CanBookAtHour reports whether hour is inside business hours and outside the blocked window.
func (e Engine) CanBookAtHour(hour int) bool {
	h := e.s.Hours
	if hour < h.Start || hour >= h.End {
		return false
	}
	return !(hour >= h.LunchStart && hour < h.LunchEnd)
}

// CanBookInAdvance reports whether date is within the advance window counted
// in calendar days from today. A non-positive window is unlimited.
func (e Engine) CanBookInAdvance(date time.Time) bool {
	if !e.s.Policy.HasAdvanceLimit() {
		return true
	}
	limit := models.DateOf(e.s.Now).AddDate(0, 0, e.s.Policy.AdvanceBookingDays)
	return !models.DateOf(inLocation(date, e.s.Now)).After(limit)
}

// CanBookWithLeadTime reports whether date+t is at least MinLeadTimeMinutes after now.
func (e Engine) CanBookWithLeadTime(date time.Time, t models.ClockTime) bool {
	earliest := e.s.Now.Add(time.Duration(e.s.Policy.MinLeadTimeMinutes) * time.Minute)
	return !e.at(date, t).Before(earliest)
}

// CanCancel reports whether a booking at date+t may still be cancelled.
func (e Engine) CanCancel(date time.Time, t models.ClockTime) bool {
	c := e.s.Policy.Cancellation
	if !c.Enabled {
		return true
	}
	deadline := e.at(date, t).Add(-time.Duration(c.LeadHours) * time.Hour)
	return !e.s.Now.After(deadline)
}

// WouldExtendPastClose reports whether a service starting at start overruns closing time.
func (e Engine) WouldExtendPastClose(start models.ClockTime, duration int) bool {
	return WouldExtendPastClose(e.s.Hours.End, start, duration)
}

// WouldOverlapBlockedHours reports whether the service interval touches the blocked window.
func (e Engine) WouldOverlapBlockedHours(start models.ClockTime, duration int) bool {
	return WouldOverlapBlockedHours(e.s.Hours, start, duration)
}

// IsPastOnDate reports whether t on date is at or before now. Only the
// current date can have past slots; earlier dates are rejected by lead time.
func (e Engine) IsPastOnDate(date time.Time, t models.ClockTime) bool {
	if !models.SameDate(inLocation(date, e.s.Now), e.s.Now) {
		return false
	}
	return t <= models.ClockOf(e.s.Now)
}

func (e Engine) at(date time.Time, t models.ClockTime) time.Time {
	return t.On(inLocation(date, e.s.Now))
}

// inLocation re-anchors the calendar date of d into ref's location, keeping y/m/d.
func inLocation(d, ref time.Time) time.Time {
	if d.Location() == ref.Location() {
		return d
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, ref.Location())
}

// IntervalsOverlap is the half-open test for [aStart,aStart+aDur) and
// [bStart,bStart+bDur). Touching endpoints never overlap.
func IntervalsOverlap(aStart models.ClockTime, aDur int, bStart models.ClockTime, bDur int) bool {
	aEnd := aStart.Add(aDur)
	bEnd := bStart.Add(bDur)
	return aStart < bEnd && bStart < aEnd
}

// WouldExtendPastClose: ending exactly at closeHour is allowed, any overrun is not.
func WouldExtendPastClose(closeHour int, start models.ClockTime, duration int) bool {
	end := start.Add(duration)
	return end.Hour() > closeHour || (end.Hour() == closeHour && end.Minute() > 0)
}

// WouldOverlapBlockedHours tests the service interval against [LunchStart,LunchEnd).
func WouldOverlapBlockedHours(hours models.BusinessHours, start models.ClockTime, duration int) bool {
	if !hours.HasLunch() {
		return false
	}
	lunchStart := models.NewClockTime(hours.LunchStart, 0)
	lunchMinutes := (hours.LunchEnd - hours.LunchStart) * 60
	return IntervalsOverlap(start, duration, lunchStart, lunchMinutes)
}
