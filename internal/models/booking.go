package models

import (
	"strings"
	"time"
)

type Booking struct {
	ID         int64     `json:"id"`
	OwnerID    string    `json:"owner_id"`
	OwnerEmail string    `json:"owner_email"`
	OwnerName  string    `json:"owner_name"`
	Date       time.Time `json:"date"`
	StartTime  ClockTime `json:"start_time"`
	ServiceID  string    `json:"service_id"`
	Status     string    `json:"status"` // confirmed, cancelled, completed, draft
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsConfirmed reports whether the booking takes part in conflict detection.
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// StartsAt combines the booking date and start time in the date's location.
func (b *Booking) StartsAt() time.Time {
	return b.StartTime.On(b.Date)
}

// BelongsTo matches by owner id or by a case-insensitive owner email. Empty
// values never match.
func (b *Booking) BelongsTo(userID, email string) bool {
	if userID != "" && b.OwnerID == userID {
		return true
	}
	if b.OwnerEmail == "" || strings.TrimSpace(email) == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(b.OwnerEmail), strings.TrimSpace(email))
}
