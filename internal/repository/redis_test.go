package repository

import (
	"context"
	"testing"
	"time"

	"slotengine/internal/config"
	"slotengine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAvailabilityStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	s.SetTime(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisAvailabilityStore(client, "test:")
	ctx := context.Background()

	loc := time.FixedZone("UTC+3", 3*60*60)
	tue := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	wed := tue.AddDate(0, 0, 1)
	slots := []models.TimeSlot{
		{Time: models.NewClockTime(8, 0), Available: true},
		{Time: models.NewClockTime(8, 30), Available: false, ConflictingBookingID: 7, OccupantName: "Alice"},
	}

	t.Run("PutAndGetDay", func(t *testing.T) {
		day := models.NewDayAvailability(tue, "cut", true, slots)
		require.NoError(t, repo.PutDay(ctx, day))
		assert.True(t, s.Exists("test:availability:2026-03-10:cut"))

		got, err := repo.GetDay(ctx, tue, "cut")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, day.Slots, got.Slots)
		assert.Equal(t, 2, got.TotalSlots)
		assert.Equal(t, 1, got.AvailableSlots)
		assert.Equal(t, loc, got.Date.Location())
		assert.True(t, got.Date.Equal(tue))
	})

	t.Run("GetNonExistentDay", func(t *testing.T) {
		got, err := repo.GetDay(ctx, wed, "cut")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ExpiresAtEndOfDate", func(t *testing.T) {
		require.NoError(t, repo.PutDay(ctx, models.NewDayAvailability(wed, "color", true, slots)))
		key := "test:availability:2026-03-11:color"
		end := time.Date(2026, 3, 12, 0, 0, 0, 0, loc)
		assert.Equal(t, end.Sub(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)), s.TTL(key))

		s.FastForward(s.TTL(key))
		assert.False(t, s.Exists(key))
	})

	t.Run("InvalidateDate", func(t *testing.T) {
		require.NoError(t, repo.PutDay(ctx, models.NewDayAvailability(tue, "cut", true, slots)))
		require.NoError(t, repo.PutDay(ctx, models.NewDayAvailability(tue, "color", true, slots)))
		require.NoError(t, repo.PutDay(ctx, models.NewDayAvailability(wed, "cut", true, slots)))

		require.NoError(t, repo.InvalidateDate(ctx, tue))
		assert.False(t, s.Exists("test:availability:2026-03-10:cut"))
		assert.False(t, s.Exists("test:availability:2026-03-10:color"))
		assert.True(t, s.Exists("test:availability:2026-03-11:cut"))
	})

	t.Run("InvalidateAllKeepsForeignKeys", func(t *testing.T) {
		require.NoError(t, s.Set("other:key", "v"))
		require.NoError(t, repo.InvalidateAll(ctx))
		assert.Equal(t, []string{"other:key"}, s.Keys())
	})

	t.Run("ClientError", func(t *testing.T) {
		s.SetError("boom")
		defer s.SetError("")

		_, err := repo.GetDay(ctx, tue, "cut")
		assert.Error(t, err)
		assert.Error(t, repo.PutDay(ctx, models.NewDayAvailability(tue, "cut", true, slots)))
		assert.Error(t, repo.InvalidateAll(ctx))
	})
}

func TestNewRedisClient(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr(), PoolSize: 2})
	require.NoError(t, Ping(context.Background(), client))
	require.NoError(t, Close(client))
	assert.NoError(t, Close(nil))
}
