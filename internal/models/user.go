// Package models provides data models for the caption studio service.
package models

import (
	"time"

	"github.com/caption-studio/internal/types"
)

// User is a platform account tied to exactly one external identity
type User struct {
	ID               string     `json:"id" db:"id"`
	ExternalID       string     `json:"externalId" db:"external_id"`
	Email            string     `json:"email" db:"email"`
	Plan             types.Plan `json:"plan" db:"plan"`
	CreditsRemaining int        `json:"creditsRemaining" db:"credits_remaining"`
	IsAdmin          bool       `json:"isAdmin" db:"is_admin"`
	LastActivityAt   *time.Time `json:"lastActivityAt,omitempty" db:"last_activity_at"`
	LastCreditReset  *time.Time `json:"lastCreditReset,omitempty" db:"last_credit_reset"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// Metered reports whether generations by this user consume credits
func (u *User) Metered() bool {
	return u.Plan.Metered() && !u.IsAdmin
}

// HasCredits reports whether the user may start another generation
func (u *User) HasCredits() bool {
	return !u.Metered() || u.CreditsRemaining > 0
}

// RequestsRemaining is the value reported to the caller after a generation
func (u *User) RequestsRemaining() int {
	if !u.Metered() {
		return types.UnlimitedRemaining
	}
	return u.CreditsRemaining
}

// NeedsCreditReset reports whether a metered user has not been reset during
// the calendar day containing now, evaluated in loc.
func (u *User) NeedsCreditReset(now time.Time, loc *time.Location) bool {
	if u.Plan != types.PlanFree {
		return false
	}
	if u.LastCreditReset == nil {
		return true
	}
	return CalendarDay(*u.LastCreditReset, loc) < CalendarDay(now, loc)
}

// CalendarDay formats t as YYYY-MM-DD in loc. The result orders lexically.
func CalendarDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
