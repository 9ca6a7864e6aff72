package slots

import (
	"sort"
	"time"

	"slotengine/internal/models"
	"slotengine/internal/validation"
)

// Generate enumerates the slot grid for date and tags every candidate with
// its availability. The grid starts at opening time and steps by the policy
// slot duration; a candidate is dropped when the service would run past
// close, overlap blocked hours, start at or before now on today's date, or
// miss the lead time. Surviving candidates are unavailable when any confirmed
// booking on the same date overlaps [start, start+serviceDuration).
//
// Generate is pure: equal inputs always produce equal output.
func Generate(s validation.Snapshot, durations validation.DurationResolver, date time.Time, serviceDuration int) []models.TimeSlot {
	engine := validation.New(s)
	result := []models.TimeSlot{}

	if !engine.CanBookOnDate(date) || !engine.CanBookInAdvance(date) {
		return result
	}
	step := s.Policy.SlotDurationMinutes
	if step <= 0 || serviceDuration <= 0 {
		return result
	}

	opening, closing := s.Hours.OpensAt(), s.Hours.ClosesAt()
	for start := opening; start < closing; start = start.Add(step) {
		if engine.WouldExtendPastClose(start, serviceDuration) {
			continue
		}
		if engine.WouldOverlapBlockedHours(start, serviceDuration) {
			continue
		}
		if engine.IsPastOnDate(date, start) {
			continue
		}
		if !engine.CanBookWithLeadTime(date, start) {
			continue
		}

		slot := models.TimeSlot{Time: start, Available: true}
		if conflict, ok := engine.FindConflict(date, start, serviceDuration, durations); ok {
			slot.Available = false
			slot.ConflictingBookingID = conflict.ID
			slot.OccupantName = occupantName(conflict)
			slot.Notes = conflict.Notes
		}
		result = append(result, slot)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time.String() < result[j].Time.String()
	})
	return result
}

// Day wraps Generate into a DayAvailability for serviceID.
func Day(s validation.Snapshot, durations validation.DurationResolver, date time.Time, serviceID string) models.DayAvailability {
	duration := validation.ResolveDuration(durations, serviceID)
	working := validation.New(s).CanBookOnDate(date)
	return models.NewDayAvailability(date, serviceID, working, Generate(s, durations, date, duration))
}

func occupantName(b *models.Booking) string {
	if b.OwnerName != "" {
		return b.OwnerName
	}
	return b.OwnerEmail
}
