package model

import (
	"net/url"
	"slices"
	"time"
)

// WorkshopStatus is the lifecycle state of a workshop
type WorkshopStatus string

const (
	WorkshopStatusDraft     WorkshopStatus = "draft"
	WorkshopStatusPublished WorkshopStatus = "published"
	WorkshopStatusCancelled WorkshopStatus = "cancelled"
	WorkshopStatusCompleted WorkshopStatus = "completed"
)

var workshopStatusLabels = map[WorkshopStatus]string{
	WorkshopStatusDraft:     "Draft",
	WorkshopStatusPublished: "Published",
	WorkshopStatusCancelled: "Cancelled",
	WorkshopStatusCompleted: "Completed",
}

// workshopTransitions lists the allowed target states per source state.
// published -> draft additionally requires an empty roster.
var workshopTransitions = map[WorkshopStatus][]WorkshopStatus{
	WorkshopStatusDraft:     {WorkshopStatusPublished, WorkshopStatusCancelled},
	WorkshopStatusPublished: {WorkshopStatusCancelled, WorkshopStatusCompleted, WorkshopStatusDraft},
}

// IsValid returns true if the status is known
func (s WorkshopStatus) IsValid() bool {
	_, ok := workshopStatusLabels[s]
	return ok
}

// Label returns the display label for the status
func (s WorkshopStatus) Label() string {
	if l, ok := workshopStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// IsFinal returns true for statuses that make a workshop read-only
func (s WorkshopStatus) IsFinal() bool {
	return s == WorkshopStatusCancelled || s == WorkshopStatusCompleted
}

// IsPublic returns true for statuses visible to participants and anonymous users
func (s WorkshopStatus) IsPublic() bool {
	return s == WorkshopStatusPublished || s == WorkshopStatusCompleted
}

// CanTransition reports whether a workshop in status from, with the given
// number of registered participants, may move to status to.
func CanTransition(from, to WorkshopStatus, registered int) bool {
	if !slices.Contains(workshopTransitions[from], to) {
		return false
	}
	if from == WorkshopStatusPublished && to == WorkshopStatusDraft {
		return registered == 0
	}
	return true
}

// SeatAvailability is the seat badge shown for a workshop
type SeatAvailability string

const (
	SeatsOpen    SeatAvailability = "open"
	SeatsLimited SeatAvailability = "limited"
	SeatsFull    SeatAvailability = "full"
	SeatsNone    SeatAvailability = "none"
)

// Limited threshold: at most this many seats, or at most a fifth of capacity.
const limitedSeatsAbsolute = 3

// ClassifySeats derives the seat badge from capacity and registrations.
func ClassifySeats(capacity, registered int) SeatAvailability {
	if capacity <= 0 {
		return SeatsNone
	}
	left := capacity - registered
	switch {
	case left <= 0:
		return SeatsFull
	case left <= limitedSeatsAbsolute || left*5 <= capacity:
		return SeatsLimited
	default:
		return SeatsOpen
	}
}

// Label returns the display label for the badge
func (s SeatAvailability) Label() string {
	switch s {
	case SeatsOpen:
		return "Seats available"
	case SeatsLimited:
		return "Few seats left"
	case SeatsFull:
		return "Full"
	default:
		return "No seats"
	}
}

// Workshop is a scheduled session of a workshop type
type Workshop struct {
	ID             string         `json:"id"`
	TypeID         string         `json:"type_id"`
	ClientID       *string        `json:"client_id,omitempty"`
	SeriesID       *string        `json:"series_id,omitempty"`
	Title          string         `json:"title"`
	Description    *string        `json:"description,omitempty"`
	Location       *string        `json:"location,omitempty"`
	IsOnline       bool           `json:"is_online"`
	MeetingURL     *string        `json:"meeting_url,omitempty"`
	StartsAt       time.Time      `json:"starts_at"`
	EndsAt         time.Time      `json:"ends_at"`
	Capacity       int            `json:"capacity"`
	Status         WorkshopStatus `json:"status"`
	OrganizerIDs   []string       `json:"organizer_ids"`
	CreatedBy      string         `json:"created_by"`
	ReminderSentOn *time.Time     `json:"reminder_sent_on,omitempty"`
	CreatedOn      time.Time      `json:"created_on"`
	UpdatedOn      time.Time      `json:"updated_on"`

	// Derived
	RegisteredCount int              `json:"registered_count"`
	WaitlistCount   int              `json:"waitlist_count"`
	Seats           SeatAvailability `json:"seats"`
}

// ComputeSeats refreshes the seat badge from the current counts
func (w *Workshop) ComputeSeats() {
	w.Seats = ClassifySeats(w.Capacity, w.RegisteredCount)
}

// SeatsLeft returns the number of free seats, never negative
func (w *Workshop) SeatsLeft() int {
	return max(w.Capacity-w.RegisteredCount, 0)
}

// HasStarted returns true once starts_at has been reached
func (w *Workshop) HasStarted(now time.Time) bool {
	return !now.Before(w.StartsAt)
}

// HasEnded returns true once ends_at has been reached
func (w *Workshop) HasEnded(now time.Time) bool {
	return !now.Before(w.EndsAt)
}

// IsOrganizer returns true if userID is one of the workshop's organizers
func (w *Workshop) IsOrganizer(userID string) bool {
	return slices.Contains(w.OrganizerIDs, userID)
}

// WorkshopDetail is a workshop with the caller's own registration state
type WorkshopDetail struct {
	Workshop
	TypeName        string         `json:"type_name,omitempty"`
	MyParticipation *Participation `json:"my_participation,omitempty"`
	MyWaitlistEntry *WaitlistEntry `json:"my_waitlist_entry,omitempty"`
}

// Workshop constraints
const (
	MaxWorkshopTitleLength = 200
	MaxWorkshopDescLength  = 5000
	MaxWorkshopCapacity    = 1000
	MaxSeriesOccurrences   = 52
)

// CreateWorkshopRequest represents a request to create a workshop.
// EndsAt defaults to StartsAt plus the type duration, Capacity to the
// type's default capacity.
type CreateWorkshopRequest struct {
	TypeID      string     `json:"type_id"`
	ClientID    *string    `json:"client_id,omitempty"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	IsOnline    bool       `json:"is_online,omitempty"`
	MeetingURL  *string    `json:"meeting_url,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateWorkshopRequest) Validate() []FieldError {
	var errors []FieldError

	if r.TypeID == "" {
		errors = append(errors, FieldError{Field: "type_id", Message: "type_id is required"})
	}
	if r.Title == "" {
		errors = append(errors, FieldError{Field: "title", Message: "title is required"})
	} else if len(r.Title) > MaxWorkshopTitleLength {
		errors = append(errors, FieldError{Field: "title", Message: "title must be 200 characters or less"})
	}
	if r.StartsAt.IsZero() {
		errors = append(errors, FieldError{Field: "starts_at", Message: "starts_at is required"})
	} else if r.EndsAt != nil && !r.EndsAt.After(r.StartsAt) {
		errors = append(errors, FieldError{Field: "ends_at", Message: "ends_at must be after starts_at"})
	}
	errors = append(errors, validateWorkshopFields(r.Description, r.MeetingURL, r.Capacity)...)

	return errors
}

// CreateSeriesRequest creates one draft workshop per occurrence of an
// RRULE, starting from StartsAt.
type CreateSeriesRequest struct {
	CreateWorkshopRequest
	RRule string `json:"rrule"`
}

// Validate checks if the series request is valid
func (r *CreateSeriesRequest) Validate() []FieldError {
	errors := r.CreateWorkshopRequest.Validate()
	if r.RRule == "" {
		errors = append(errors, FieldError{Field: "rrule", Message: "rrule is required"})
	}
	return errors
}

// UpdateWorkshopRequest represents a request to update a workshop
type UpdateWorkshopRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	IsOnline    *bool      `json:"is_online,omitempty"`
	MeetingURL  *string    `json:"meeting_url,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
	ClientID    *string    `json:"client_id,omitempty"`
	ClearClient bool       `json:"clear_client,omitempty"`
}

// Validate checks if the update request is valid
func (r *UpdateWorkshopRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Title != nil {
		if *r.Title == "" {
			errors = append(errors, FieldError{Field: "title", Message: "title cannot be empty"})
		} else if len(*r.Title) > MaxWorkshopTitleLength {
			errors = append(errors, FieldError{Field: "title", Message: "title must be 200 characters or less"})
		}
	}
	if r.StartsAt != nil && r.EndsAt != nil && !r.EndsAt.After(*r.StartsAt) {
		errors = append(errors, FieldError{Field: "ends_at", Message: "ends_at must be after starts_at"})
	}
	if r.ClearClient && r.ClientID != nil {
		errors = append(errors, FieldError{Field: "client_id", Message: "cannot set and clear client_id together"})
	}
	errors = append(errors, validateWorkshopFields(r.Description, r.MeetingURL, r.Capacity)...)

	return errors
}

// TransitionWorkshopRequest moves a workshop to another status
type TransitionWorkshopRequest struct {
	Status WorkshopStatus `json:"status"`
	Reason *string        `json:"reason,omitempty"` // Included in cancellation emails
}

// Validate checks if the request is valid
func (r *TransitionWorkshopRequest) Validate() []FieldError {
	if !r.Status.IsValid() {
		return []FieldError{{Field: "status", Message: "status must be one of draft, published, cancelled, completed"}}
	}
	return nil
}

// AddOrganizerRequest adds a staff user to a workshop's organizers
type AddOrganizerRequest struct {
	UserID string `json:"user_id"`
}

// Validate checks if the request is valid
func (r *AddOrganizerRequest) Validate() []FieldError {
	if r.UserID == "" {
		return []FieldError{{Field: "user_id", Message: "user_id is required"}}
	}
	return nil
}

func validateWorkshopFields(description, meetingURL *string, capacity *int) []FieldError {
	var errors []FieldError
	if description != nil && len(*description) > MaxWorkshopDescLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 5000 characters or less"})
	}
	if meetingURL != nil && *meetingURL != "" {
		u, err := url.Parse(*meetingURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errors = append(errors, FieldError{Field: "meeting_url", Message: "meeting_url must be an http(s) URL"})
		}
	}
	if capacity != nil && (*capacity < 1 || *capacity > MaxWorkshopCapacity) {
		errors = append(errors, FieldError{Field: "capacity", Message: "capacity must be between 1 and 1000"})
	}
	return errors
}
