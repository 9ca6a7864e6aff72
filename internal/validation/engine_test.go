package validation

import (
	"testing"
	"time"

	"slotengine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type durations map[string]int

func (d durations) ServiceDuration(id string) int {
	if v, ok := d[id]; ok {
		return v
	}
	return models.DefaultServiceDurationMinutes
}

// 2026-03-10 is a Tuesday.
var tuesday = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func clock(s string) models.ClockTime {
	c, err := models.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func testSnapshot(now time.Time, bookings ...models.Booking) Snapshot {
	return Snapshot{
		Policy: models.BookingPolicy{
			WorkingDays:         []int{2, 3, 4, 5, 6},
			SlotDurationMinutes: 30,
			AdvanceBookingDays:  30,
			MinLeadTimeMinutes:  0,
			Cancellation:        models.CancellationPolicy{Enabled: true, LeadHours: 1},
		},
		Hours:    models.BusinessHours{Start: 8, End: 20, LunchStart: 13, LunchEnd: 14},
		Bookings: bookings,
		Now:      now,
	}
}

func TestCanBookOnDate(t *testing.T) {
	e := New(testSnapshot(tuesday))
	saturday := tuesday.AddDate(0, 0, 4)
	sunday := tuesday.AddDate(0, 0, 5)
	monday := tuesday.AddDate(0, 0, -1)

	assert.True(t, e.CanBookOnDate(tuesday))
	assert.True(t, e.CanBookOnDate(saturday))
	assert.False(t, e.CanBookOnDate(sunday))
	assert.False(t, e.CanBookOnDate(monday))
}

func TestCanBookAtHour(t *testing.T) {
	e := New(testSnapshot(tuesday))
	tests := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},
		{12, true},
		{13, false},
		{14, true},
		{19, true},
		{20, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.CanBookAtHour(tt.hour), "hour %d", tt.hour)
	}
}

func TestCanBookInAdvance(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	e := New(testSnapshot(now))

	assert.True(t, e.CanBookInAdvance(models.DateOf(now)))
	assert.True(t, e.CanBookInAdvance(models.DateOf(now).AddDate(0, 0, 30)))
	assert.False(t, e.CanBookInAdvance(models.DateOf(now).AddDate(0, 0, 31)))

	t.Run("Unlimited", func(t *testing.T) {
		s := testSnapshot(now)
		s.Policy.AdvanceBookingDays = 0
		assert.True(t, New(s).CanBookInAdvance(now.AddDate(2, 0, 0)))
	})
}

func TestCanBookWithLeadTime(t *testing.T) {
	now := tuesday.Add(9 * time.Hour)
	s := testSnapshot(now)
	s.Policy.MinLeadTimeMinutes = 60
	e := New(s)

	assert.False(t, e.CanBookWithLeadTime(tuesday, clock("09:30")))
	assert.True(t, e.CanBookWithLeadTime(tuesday, clock("10:00")))
	assert.True(t, e.CanBookWithLeadTime(tuesday.AddDate(0, 0, 1), clock("08:00")))
	assert.False(t, e.CanBookWithLeadTime(tuesday.AddDate(0, 0, -1), clock("19:00")))
}

func TestCanCancel(t *testing.T) {
	booking := clock("10:00")

	t.Run("InsideLeadWindow", func(t *testing.T) {
		e := New(testSnapshot(tuesday.Add(9*time.Hour + 30*time.Minute)))
		assert.False(t, e.CanCancel(tuesday, booking))
	})

	t.Run("BeforeLeadWindow", func(t *testing.T) {
		e := New(testSnapshot(tuesday.Add(8*time.Hour + 30*time.Minute)))
		assert.True(t, e.CanCancel(tuesday, booking))
	})

	t.Run("ExactlyAtDeadline", func(t *testing.T) {
		e := New(testSnapshot(tuesday.Add(9 * time.Hour)))
		assert.True(t, e.CanCancel(tuesday, booking))
	})

	t.Run("Disabled", func(t *testing.T) {
		s := testSnapshot(tuesday.Add(11 * time.Hour))
		s.Policy.Cancellation.Enabled = false
		assert.True(t, New(s).CanCancel(tuesday, booking))
	})
}

func TestIntervalsOverlap(t *testing.T) {
	tests := []struct {
		name   string
		aStart string
		aDur   int
		bStart string
		bDur   int
		want   bool
	}{
		{"Identical", "10:00", 60, "10:00", 60, true},
		{"Contained", "10:00", 60, "10:15", 15, true},
		{"PartialTail", "10:00", 60, "10:59", 30, true},
		{"TouchingAfter", "10:00", 60, "11:00", 30, false},
		{"TouchingBefore", "10:00", 60, "09:30", 30, false},
		{"Disjoint", "08:00", 30, "12:00", 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntervalsOverlap(clock(tt.aStart), tt.aDur, clock(tt.bStart), tt.bDur))
			assert.Equal(t, tt.want, IntervalsOverlap(clock(tt.bStart), tt.bDur, clock(tt.aStart), tt.aDur))
		})
	}
}

func TestWouldExtendPastClose(t *testing.T) {
	assert.False(t, WouldExtendPastClose(20, clock("19:30"), 30))
	assert.False(t, WouldExtendPastClose(20, clock("19:00"), 60))
	assert.True(t, WouldExtendPastClose(20, clock("19:00"), 61))
	assert.True(t, WouldExtendPastClose(20, clock("19:30"), 60))
}

func TestWouldOverlapBlockedHours(t *testing.T) {
	hours := models.BusinessHours{Start: 8, End: 20, LunchStart: 13, LunchEnd: 14}
	assert.False(t, WouldOverlapBlockedHours(hours, clock("12:30"), 30))
	assert.True(t, WouldOverlapBlockedHours(hours, clock("12:30"), 31))
	assert.True(t, WouldOverlapBlockedHours(hours, clock("13:30"), 30))
	assert.False(t, WouldOverlapBlockedHours(hours, clock("14:00"), 30))

	noLunch := models.BusinessHours{Start: 8, End: 20}
	assert.False(t, WouldOverlapBlockedHours(noLunch, clock("00:00"), 60))
}

func TestIsPastOnDate(t *testing.T) {
	e := New(testSnapshot(tuesday.Add(10 * time.Hour)))
	assert.True(t, e.IsPastOnDate(tuesday, clock("10:00")))
	assert.False(t, e.IsPastOnDate(tuesday, clock("10:30")))
	assert.False(t, e.IsPastOnDate(tuesday.AddDate(0, 0, 1), clock("08:00")))
}

func TestFindConflict(t *testing.T) {
	bookings := []models.Booking{
		{ID: 7, Date: tuesday, StartTime: clock("10:00"), ServiceID: "long", Status: models.StatusConfirmed},
		{ID: 3, Date: tuesday, StartTime: clock("10:00"), ServiceID: "long", Status: models.StatusConfirmed},
		{ID: 9, Date: tuesday, StartTime: clock("15:00"), ServiceID: "long", Status: models.StatusCancelled},
		{ID: 11, Date: tuesday.AddDate(0, 0, 1), StartTime: clock("12:00"), ServiceID: "long", Status: models.StatusConfirmed},
	}
	d := durations{"long": 60}
	e := New(testSnapshot(tuesday, bookings...))

	found, ok := e.FindConflict(tuesday, clock("10:59"), 30, d)
	require.True(t, ok)
	assert.Equal(t, int64(3), found.ID)

	_, ok = e.FindConflict(tuesday, clock("11:00"), 30, d)
	assert.False(t, ok)

	_, ok = e.FindConflict(tuesday, clock("15:00"), 30, d)
	assert.False(t, ok, "cancelled bookings never conflict")

	_, ok = e.FindConflict(tuesday, clock("12:00"), 30, d)
	assert.False(t, ok, "bookings on other dates never conflict")

	t.Run("UnknownServiceDefaultsToSixtyMinutes", func(t *testing.T) {
		e := New(testSnapshot(tuesday, models.Booking{
			ID: 1, Date: tuesday, StartTime: clock("09:00"), ServiceID: "gone", Status: models.StatusConfirmed,
		}))
		_, ok := e.FindConflict(tuesday, clock("09:30"), 30, durations{})
		assert.True(t, ok)
		_, ok = e.FindConflict(tuesday, clock("10:00"), 30, nil)
		assert.False(t, ok)
	})
}

func TestHasReachedBookingLimit(t *testing.T) {
	now := tuesday.Add(9 * time.Hour)
	user := models.Identity{UserID: "u1", Email: "u1@example.com"}
	future := models.Booking{ID: 1, OwnerID: "u1", Date: tuesday.AddDate(0, 0, 1), StartTime: clock("10:00"), Status: models.StatusConfirmed}
	past := models.Booking{ID: 2, OwnerID: "u1", Date: tuesday.AddDate(0, 0, -1), StartTime: clock("10:00"), Status: models.StatusConfirmed}
	byEmail := models.Booking{ID: 3, OwnerEmail: "U1@example.com", Date: tuesday.AddDate(0, 0, 2), StartTime: clock("10:00"), Status: models.StatusConfirmed}
	cancelled := models.Booking{ID: 4, OwnerID: "u1", Date: tuesday.AddDate(0, 0, 3), StartTime: clock("10:00"), Status: models.StatusCancelled}

	s := testSnapshot(now, future, past, byEmail, cancelled)
	s.Policy.MaxActiveBookingsPerUser = 2
	e := New(s)

	assert.Equal(t, 2, e.ActiveBookingsFor(user))
	assert.True(t, e.HasReachedBookingLimit(user))
	assert.False(t, e.HasReachedBookingLimit(models.Identity{UserID: "u2"}))
	assert.False(t, e.HasReachedBookingLimit(nil))

	s.Policy.MaxActiveBookingsPerUser = 0
	assert.False(t, New(s).HasReachedBookingLimit(user))
}

func TestCanBook(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	user := models.Identity{UserID: "u1"}
	d := durations{"cut": 30, "long": 60}

	t.Run("Allowed", func(t *testing.T) {
		dec := New(testSnapshot(now)).CanBook(user, tuesday, clock("10:00"), 30, d)
		assert.True(t, dec.Allowed)
		assert.Empty(t, dec.Reason)
	})

	t.Run("BookingLimitBlocksEverything", func(t *testing.T) {
		s := testSnapshot(now, models.Booking{
			ID: 1, OwnerID: "u1", Date: tuesday.AddDate(0, 0, 2), StartTime: clock("15:00"), ServiceID: "cut", Status: models.StatusConfirmed,
		})
		s.Policy.MaxActiveBookingsPerUser = 1
		e := New(s)
		for _, day := range []time.Time{tuesday, tuesday.AddDate(0, 0, 1), tuesday.AddDate(0, 0, 7)} {
			for _, at := range []string{"08:00", "11:30", "18:00"} {
				dec := e.CanBook(user, day, clock(at), 30, d)
				assert.False(t, dec.Allowed)
				assert.Equal(t, ReasonBookingLimit, dec.Reason)
			}
		}
	})

	tests := []struct {
		name     string
		date     time.Time
		at       string
		duration int
		reason   string
	}{
		{"NonWorkingDay", tuesday.AddDate(0, 0, -1), "10:00", 30, ReasonNonWorkingDay},
		{"BeyondAdvance", models.DateOf(now).AddDate(0, 0, 31), "10:00", 30, ReasonBeyondAdvance},
		{"BeforeOpen", tuesday, "07:30", 30, ReasonOutsideHours},
		{"Lunch", tuesday, "13:00", 30, ReasonOutsideHours},
		{"PastClose", tuesday, "19:30", 60, ReasonPastClose},
		{"RunsIntoLunch", tuesday, "12:30", 60, ReasonBlockedHours},
		{"OffGrid", tuesday, "10:15", 30, ReasonOffGrid},
		{"ZeroDuration", tuesday, "10:00", 0, ReasonInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := New(testSnapshot(now)).CanBook(user, tt.date, clock(tt.at), tt.duration, d)
			assert.False(t, dec.Allowed)
			assert.Equal(t, tt.reason, dec.Reason)
		})
	}

	t.Run("PastAndLeadTime", func(t *testing.T) {
		s := testSnapshot(tuesday.Add(10 * time.Hour))
		s.Policy.MinLeadTimeMinutes = 60
		e := New(s)
		assert.Equal(t, ReasonInPast, e.CanBook(user, tuesday, clock("09:30"), 30, d).Reason)
		assert.Equal(t, ReasonLeadTime, e.CanBook(user, tuesday, clock("10:30"), 30, d).Reason)
		assert.True(t, e.CanBook(user, tuesday, clock("11:00"), 30, d).Allowed)
	})

	t.Run("Conflict", func(t *testing.T) {
		existing := models.Booking{ID: 5, OwnerID: "u2", Date: tuesday, StartTime: clock("10:00"), ServiceID: "long", Status: models.StatusConfirmed}
		e := New(testSnapshot(now, existing))
		dec := e.CanBook(user, tuesday, clock("10:30"), 30, d)
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonConflict, dec.Reason)
		require.NotNil(t, dec.Conflict)
		assert.Equal(t, int64(5), dec.Conflict.ID)

		assert.True(t, e.CanBook(user, tuesday, clock("11:00"), 30, d).Allowed)
	})
}

type staticRules struct{}

func (staticRules) BusinessHours() models.BusinessHours {
	return models.BusinessHours{Start: 9, End: 17, LunchStart: 12, LunchEnd: 13}
}
func (staticRules) WorkingDays() []int       { return []int{1, 2, 3} }
func (staticRules) SlotDurationMinutes() int { return 15 }
func (staticRules) AdvanceBookingDays() int  { return 7 }
func (staticRules) MinLeadTimeMinutes() int  { return 45 }
func (staticRules) CancellationPolicy() models.CancellationPolicy {
	return models.CancellationPolicy{Enabled: true, LeadHours: 2}
}
func (staticRules) MaxActiveBookingsPerUser() int { return 4 }

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot(staticRules{}, nil, tuesday)
	assert.Equal(t, 9, s.Hours.Start)
	assert.Equal(t, []int{1, 2, 3}, s.Policy.WorkingDays)
	assert.Equal(t, 15, s.Policy.SlotDurationMinutes)
	assert.Equal(t, 7, s.Policy.AdvanceBookingDays)
	assert.Equal(t, 45, s.Policy.MinLeadTimeMinutes)
	assert.Equal(t, 2, s.Policy.Cancellation.LeadHours)
	assert.Equal(t, 4, s.Policy.MaxActiveBookingsPerUser)
	assert.Equal(t, tuesday, s.Now)
}
