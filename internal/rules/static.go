// Package rules provides the business rules the availability engine runs on.
package rules

import (
	"sync"

	"slotengine/internal/config"
	"slotengine/internal/models"
)

// Defaults returns the built-in rule set.
func Defaults() (models.BusinessHours, models.BookingPolicy) {
	hours := models.BusinessHours{
		Start:      models.DefaultBusinessStart,
		End:        models.DefaultBusinessEnd,
		LunchStart: models.DefaultLunchStart,
		LunchEnd:   models.DefaultLunchEnd,
	}
	policy := models.BookingPolicy{
		WorkingDays:         append([]int(nil), models.DefaultWorkingDays...),
		SlotDurationMinutes: models.DefaultSlotDurationMinutes,
		AdvanceBookingDays:  models.DefaultAdvanceBookingDays,
		MinLeadTimeMinutes:  models.DefaultMinLeadTimeMinutes,
		Cancellation: models.CancellationPolicy{
			Enabled:   models.DefaultCancellationEnabled,
			LeadHours: models.DefaultCancellationLeadHours,
		},
		MaxActiveBookingsPerUser: models.DefaultMaxActiveBookingsPerUser,
	}
	return hours, policy
}

// StaticProvider serves a fixed rule set. Update swaps it atomically for
// readers; callers that cache derived data must invalidate afterwards.
type StaticProvider struct {
	mu     sync.RWMutex
	hours  models.BusinessHours
	policy models.BookingPolicy
}

// NewStaticProvider merges cfg over the defaults.
func NewStaticProvider(cfg config.RulesConfig) *StaticProvider {
	p := &StaticProvider{}
	p.Update(cfg)
	return p
}

// Update replaces the rules with cfg merged over the defaults.
func (p *StaticProvider) Update(cfg config.RulesConfig) {
	hours, policy := Merge(cfg)
	p.mu.Lock()
	p.hours, p.policy = hours, policy
	p.mu.Unlock()
}

// Merge applies every set field of cfg over the defaults. It never fails;
// validation happens when the config is loaded.
func Merge(cfg config.RulesConfig) (models.BusinessHours, models.BookingPolicy) {
	hours, policy := Defaults()

	if h := cfg.BusinessHours; h != nil {
		setInt(&hours.Start, h.Start)
		setInt(&hours.End, h.End)
		setInt(&hours.LunchStart, h.LunchStart)
		setInt(&hours.LunchEnd, h.LunchEnd)
	}
	if cfg.WorkingDays != nil {
		policy.WorkingDays = append([]int{}, cfg.WorkingDays...)
	}
	setInt(&policy.SlotDurationMinutes, cfg.SlotDurationMinutes)
	setInt(&policy.AdvanceBookingDays, cfg.AdvanceBookingDays)
	setInt(&policy.MinLeadTimeMinutes, cfg.MinLeadTimeMinutes)
	setInt(&policy.MaxActiveBookingsPerUser, cfg.MaxActiveBookingsPerUser)
	if c := cfg.Cancellation; c != nil {
		if c.Enabled != nil {
			policy.Cancellation.Enabled = *c.Enabled
		}
		setInt(&policy.Cancellation.LeadHours, c.LeadHours)
	}

	return hours, policy
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func (p *StaticProvider) BusinessHours() models.BusinessHours {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hours
}

func (p *StaticProvider) WorkingDays() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int(nil), p.policy.WorkingDays...)
}

func (p *StaticProvider) SlotDurationMinutes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy.SlotDurationMinutes
}

func (p *StaticProvider) AdvanceBookingDays() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy.AdvanceBookingDays
}

func (p *StaticProvider) MinLeadTimeMinutes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy.MinLeadTimeMinutes
}

func (p *StaticProvider) CancellationPolicy() models.CancellationPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy.Cancellation
}

func (p *StaticProvider) MaxActiveBookingsPerUser() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy.MaxActiveBookingsPerUser
}
