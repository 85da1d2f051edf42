package model

import "time"

// WaitlistStatus is the state of a waiting list entry
type WaitlistStatus string

const (
	WaitlistStatusWaiting  WaitlistStatus = "waiting"
	WaitlistStatusPromoted WaitlistStatus = "promoted"
	WaitlistStatusRemoved  WaitlistStatus = "removed"
	WaitlistStatusExpired  WaitlistStatus = "expired"
)

// WaitlistEntry queues a user for a full workshop. Entries are served in
// created_on order.
type WaitlistEntry struct {
	ID         string         `json:"id"`
	WorkshopID string         `json:"workshop_id"`
	UserID     string         `json:"user_id"`
	Status     WaitlistStatus `json:"status"`
	CreatedOn  time.Time      `json:"created_on"`
	UpdatedOn  time.Time      `json:"updated_on"`

	// Derived: 1-based rank among waiting entries of the workshop
	Position int `json:"position,omitempty"`

	// Populated by joins
	WorkshopTitle    *string    `json:"workshop_title,omitempty"`
	WorkshopStartsAt *time.Time `json:"workshop_starts_at,omitempty"`
	UserEmail        *string    `json:"user_email,omitempty"`
}

// IsWaiting returns true while the entry is still queued
func (e *WaitlistEntry) IsWaiting() bool {
	return e.Status == WaitlistStatusWaiting
}

// WaitlistFilter narrows the admin waitlist overview
type WaitlistFilter struct {
	WorkshopID string
	Limit      int
	Offset     int
}

// PromoteRequest promotes a waiting entry. Force allows one seat of overflow.
type PromoteRequest struct {
	Force bool `json:"force,omitempty"`
}
