package rules

import (
	"testing"

	"slotengine/internal/config"
	"slotengine/internal/domain"
	"slotengine/internal/models"

	"github.com/stretchr/testify/assert"
)

var _ domain.BusinessRulesProvider = (*StaticProvider)(nil)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestNewStaticProvider_Defaults(t *testing.T) {
	p := NewStaticProvider(config.RulesConfig{})

	assert.Equal(t, models.BusinessHours{Start: 8, End: 20, LunchStart: 13, LunchEnd: 14}, p.BusinessHours())
	assert.Equal(t, []int{2, 3, 4, 5, 6}, p.WorkingDays())
	assert.Equal(t, 30, p.SlotDurationMinutes())
	assert.Equal(t, 30, p.AdvanceBookingDays())
	assert.Equal(t, 60, p.MinLeadTimeMinutes())
	assert.Equal(t, models.CancellationPolicy{Enabled: true, LeadHours: 24}, p.CancellationPolicy())
	assert.Equal(t, 3, p.MaxActiveBookingsPerUser())
}

func TestNewStaticProvider_PartialOverrides(t *testing.T) {
	p := NewStaticProvider(config.RulesConfig{
		BusinessHours:      &config.BusinessHoursConfig{End: intPtr(18)},
		MinLeadTimeMinutes: intPtr(0),
		Cancellation:       &config.CancellationConfig{Enabled: boolPtr(false)},
	})

	hours := p.BusinessHours()
	assert.Equal(t, 8, hours.Start)
	assert.Equal(t, 18, hours.End)
	assert.Equal(t, 13, hours.LunchStart)
	assert.Zero(t, p.MinLeadTimeMinutes(), "explicit zero overrides the default")
	assert.False(t, p.CancellationPolicy().Enabled)
	assert.Equal(t, 24, p.CancellationPolicy().LeadHours)
	assert.Equal(t, 30, p.SlotDurationMinutes())
}

func TestNewStaticProvider_EmptyWorkingDays(t *testing.T) {
	p := NewStaticProvider(config.RulesConfig{WorkingDays: []int{}})
	assert.Empty(t, p.WorkingDays())
}

func TestWorkingDaysIsACopy(t *testing.T) {
	p := NewStaticProvider(config.RulesConfig{WorkingDays: []int{1, 2}})
	days := p.WorkingDays()
	days[0] = 6
	assert.Equal(t, []int{1, 2}, p.WorkingDays())

	_, policy := Defaults()
	policy.WorkingDays[0] = 0
	assert.Equal(t, []int{2, 3, 4, 5, 6}, models.DefaultWorkingDays)
}

func TestUpdate(t *testing.T) {
	p := NewStaticProvider(config.RulesConfig{})
	p.Update(config.RulesConfig{SlotDurationMinutes: intPtr(15), MaxActiveBookingsPerUser: intPtr(0)})

	assert.Equal(t, 15, p.SlotDurationMinutes())
	assert.Zero(t, p.MaxActiveBookingsPerUser())
	assert.Equal(t, 30, p.AdvanceBookingDays())
}
