package models

import "time"

type TimeSlot struct {
	Time                 ClockTime `json:"time"`
	Available            bool      `json:"available"`
	ConflictingBookingID int64     `json:"conflicting_booking_id,omitempty"`
	OccupantName         string    `json:"occupant_name,omitempty"`
	Notes                string    `json:"notes,omitempty"`
}

type DayAvailability struct {
	Date           time.Time  `json:"date"`
	ServiceID      string     `json:"service_id"`
	IsWorkingDay   bool       `json:"is_working_day"`
	Slots          []TimeSlot `json:"slots"`
	TotalSlots     int        `json:"total_slots"`
	AvailableSlots int        `json:"available_slots"`
}

// NewDayAvailability fills in the slot counters.
func NewDayAvailability(date time.Time, serviceID string, workingDay bool, slots []TimeSlot) DayAvailability {
	if slots == nil {
		slots = []TimeSlot{}
	}
	available := 0
	for _, s := range slots {
		if s.Available {
			available++
		}
	}
	return DayAvailability{
		Date:           DateOf(date),
		ServiceID:      serviceID,
		IsWorkingDay:   workingDay,
		Slots:          slots,
		TotalSlots:     len(slots),
		AvailableSlots: available,
	}
}

// FirstAvailable returns the earliest available slot.
func (d DayAvailability) FirstAvailable() (TimeSlot, bool) {
	for _, s := range d.Slots {
		if s.Available {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// OnlyAvailable returns a copy keeping only available slots. Counters are
// left as computed for the full day.
func (d DayAvailability) OnlyAvailable() DayAvailability {
	out := d
	out.Slots = make([]TimeSlot, 0, d.AvailableSlots)
	for _, s := range d.Slots {
		if s.Available {
			out.Slots = append(out.Slots, s)
		}
	}
	return out
}

// Clone returns a copy that does not share the slot slice.
func (d DayAvailability) Clone() DayAvailability {
	out := d
	out.Slots = append([]TimeSlot(nil), d.Slots...)
	if out.Slots == nil {
		out.Slots = []TimeSlot{}
	}
	return out
}

type WeekAvailability struct {
	WeekStart time.Time         `json:"week_start"`
	WeekEnd   time.Time         `json:"week_end"`
	ServiceID string            `json:"service_id"`
	Days      []DayAvailability `json:"days"`
}
