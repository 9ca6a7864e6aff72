package service

import (
	"context"
	"testing"
	"time"

	"slotengine/internal/config"
	"slotengine/internal/database"
	"slotengine/internal/domain"
	"slotengine/internal/events"
	"slotengine/internal/models"
	"slotengine/internal/rules"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

// Monday 2026-03-09 12:00 UTC; Tuesday is the first working day after it.
var now = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func at(t *testing.T, s string) models.ClockTime {
	t.Helper()
	c, err := models.ParseClockTime(s)
	require.NoError(t, err)
	return c
}

type bookingFixture struct {
	svc *BookingService
	db  *database.DB
	pub *mockPublisher
}

func setupBookingService(t *testing.T) bookingFixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.SetLocation(time.UTC)
	t.Cleanup(func() { db.Close() })

	catalog := NewCatalogService(nil, []models.Service{
		{ID: "cut", Name: "Cut", DurationMinutes: 30, IsActive: true},
		{ID: "color", Name: "Color", DurationMinutes: 90, IsActive: true},
	}, &logger)

	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	svc := NewBookingService(
		db,
		rules.NewStaticProvider(config.RulesConfig{}),
		catalog,
		domain.ClockFunc(func() time.Time { return now }),
		pub,
		&logger,
	)
	return bookingFixture{svc: svc, db: db, pub: pub}
}

var (
	alice = models.Identity{UserID: "u-alice", Email: "alice@example.com"}
	bob   = models.Identity{UserID: "u-bob", Email: "bob@example.com"}
)

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := setupBookingService(t)
		b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{
			Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut", OwnerName: "Alice",
		})
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, models.StatusConfirmed, b.Status)
		assert.Equal(t, "u-alice", b.OwnerID)

		stored, err := f.db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "10:00", stored.StartTime.String())
		assert.Equal(t, "2026-03-10", models.DateKey(stored.Date))

		f.pub.AssertCalled(t, "PublishJSON", events.EventBookingCreated, events.NewBookingPayload(b, "u-alice"))
	})

	t.Run("SameSlotTaken", func(t *testing.T) {
		f := setupBookingService(t)
		_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
		require.NoError(t, err)

		_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
		assert.ErrorIs(t, err, ErrSlotTaken)
		f.pub.AssertNumberOfCalls(t, "PublishJSON", 1)
	})

	t.Run("LongerServiceOverlaps", func(t *testing.T) {
		f := setupBookingService(t)
		_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
		require.NoError(t, err)

		// 09:00 + 90 minutes runs into the 10:00 booking.
		_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(10), StartTime: at(t, "09:00"), ServiceID: "color"})
		assert.ErrorIs(t, err, ErrSlotTaken)

		// 10:30 starts exactly where the 30 minute booking ends.
		_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(10), StartTime: at(t, "10:30"), ServiceID: "cut"})
		assert.NoError(t, err)
	})

	t.Run("RuleViolations", func(t *testing.T) {
		f := setupBookingService(t)
		cases := []struct {
			name  string
			date  time.Time
			start string
		}{
			{"NonWorkingDay", day(9), "15:00"},
			{"Lunch", day(10), "13:00"},
			{"BeforeOpen", day(10), "07:30"},
			{"PastClose", day(10), "19:45"},
			{"OffGrid", day(10), "10:15"},
			{"BeyondAdvance", time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC), "10:00"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: tc.date, StartTime: at(t, tc.start), ServiceID: "cut"})
				assert.ErrorIs(t, err, ErrNotBookable)
			})
		}
		f.pub.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	})

	t.Run("BookingLimit", func(t *testing.T) {
		f := setupBookingService(t)
		for _, d := range []int{10, 11, 12} {
			_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(d), StartTime: at(t, "10:00"), ServiceID: "cut"})
			require.NoError(t, err)
		}

		_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(13), StartTime: at(t, "10:00"), ServiceID: "cut"})
		assert.ErrorIs(t, err, ErrBookingLimitReached)

		_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(13), StartTime: at(t, "10:00"), ServiceID: "cut"})
		assert.NoError(t, err)
	})

	t.Run("Anonymous", func(t *testing.T) {
		f := setupBookingService(t)
		_, err := f.svc.CreateBooking(ctx, models.Identity{}, BookingRequest{Date: day(10), StartTime: at(t, "10:00")})
		assert.ErrorIs(t, err, ErrIdentityRequired)
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		f := setupBookingService(t)
		_, err := f.svc.CancelBooking(ctx, alice, 42)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := setupBookingService(t)
		b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(11), StartTime: at(t, "10:00"), ServiceID: "cut"})
		require.NoError(t, err)

		_, err = f.svc.CancelBooking(ctx, bob, b.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("TooLate", func(t *testing.T) {
		f := setupBookingService(t)
		// Tuesday 10:00 is less than 24 hours after now.
		b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
		require.NoError(t, err)

		_, err = f.svc.CancelBooking(ctx, alice, b.ID)
		assert.ErrorIs(t, err, ErrCancellationTooLate)
	})

	t.Run("SuccessFreesSlot", func(t *testing.T) {
		f := setupBookingService(t)
		b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(11), StartTime: at(t, "10:00"), ServiceID: "cut"})
		require.NoError(t, err)

		cancelled, err := f.svc.CancelBooking(ctx, alice, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
		f.pub.AssertCalled(t, "PublishJSON", events.EventBookingCancelled, events.NewBookingPayload(cancelled, "u-alice"))

		stored, err := f.db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, stored.Status)

		_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(11), StartTime: at(t, "10:00"), ServiceID: "cut"})
		assert.NoError(t, err)

		_, err = f.svc.CancelBooking(ctx, alice, b.ID)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("OwnerMatchedByEmail", func(t *testing.T) {
		f := setupBookingService(t)
		legacy := &models.Booking{
			OwnerEmail: "Alice@Example.com",
			Date:       day(12),
			StartTime:  at(t, "11:00"),
			ServiceID:  "cut",
		}
		require.NoError(t, f.db.CreateBookingChecked(ctx, legacy, nil))

		_, err := f.svc.CancelBooking(ctx, alice, legacy.ID)
		assert.NoError(t, err)
	})
}

func TestBookingService_CompleteBooking(t *testing.T) {
	ctx := context.Background()
	f := setupBookingService(t)

	b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
	require.NoError(t, err)

	done, err := f.svc.CompleteBooking(ctx, b.ID, "staff")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	f.pub.AssertCalled(t, "PublishJSON", events.EventBookingCompleted, events.NewBookingPayload(done, "staff"))

	_, err = f.svc.CompleteBooking(ctx, b.ID, "staff")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.CompleteBooking(ctx, 999, "staff")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookingService_ListUserBookings(t *testing.T) {
	ctx := context.Background()
	f := setupBookingService(t)

	_, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, bob, BookingRequest{Date: day(10), StartTime: at(t, "11:00"), ServiceID: "cut"})
	require.NoError(t, err)
	require.NoError(t, f.db.CreateBookingChecked(ctx, &models.Booking{
		OwnerEmail: "alice@example.com", Date: day(11), StartTime: at(t, "12:00"), ServiceID: "cut",
	}, nil))

	owned, err := f.svc.ListUserBookings(ctx, alice)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "2026-03-10", models.DateKey(owned[0].Date))
	assert.Equal(t, "2026-03-11", models.DateKey(owned[1].Date))

	_, err = f.svc.ListUserBookings(ctx, models.Identity{})
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestBookingService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	f := setupBookingService(t)
	f.pub.ExpectedCalls = nil
	f.pub.On("PublishJSON", mock.Anything, mock.Anything).Return(assert.AnError)

	b, err := f.svc.CreateBooking(ctx, alice, BookingRequest{Date: day(10), StartTime: at(t, "10:00"), ServiceID: "cut"})
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
}
