package models

import "time"

// BusinessHours is the daily window [Start, End) with a blocked window
// [LunchStart, LunchEnd) inside it. All values are hours 0-23.
// A zero-length lunch window (LunchStart == LunchEnd) blocks nothing.
type BusinessHours struct {
	Start      int `json:"start" yaml:"start"`
	End        int `json:"end" yaml:"end"`
	LunchStart int `json:"lunch_start" yaml:"lunch_start"`
	LunchEnd   int `json:"lunch_end" yaml:"lunch_end"`
}

// OpensAt returns the opening time as a clock time.
func (h BusinessHours) OpensAt() ClockTime { return NewClockTime(h.Start, 0) }

// ClosesAt returns the closing time as a clock time.
func (h BusinessHours) ClosesAt() ClockTime { return NewClockTime(h.End, 0) }

// HasLunch reports whether the blocked window is non-empty.
func (h BusinessHours) HasLunch() bool { return h.LunchEnd > h.LunchStart }

type CancellationPolicy struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	LeadHours int  `json:"lead_hours" yaml:"lead_hours"`
}

type BookingPolicy struct {
	WorkingDays              []int              `json:"working_days"`
	SlotDurationMinutes      int                `json:"slot_duration_minutes"`
	AdvanceBookingDays       int                `json:"advance_booking_days"` // <= 0 means unlimited
	MinLeadTimeMinutes       int                `json:"min_lead_time_minutes"`
	Cancellation             CancellationPolicy `json:"cancellation"`
	MaxActiveBookingsPerUser int                `json:"max_active_bookings_per_user"` // <= 0 means no cap
}

// IsWorkingDay reports whether the weekday is in WorkingDays.
func (p BookingPolicy) IsWorkingDay(day time.Weekday) bool {
	for _, d := range p.WorkingDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// HasAdvanceLimit reports whether bookings are capped to a number of days ahead.
func (p BookingPolicy) HasAdvanceLimit() bool {
	return p.AdvanceBookingDays > 0
}
