package model

import (
	"time"
	"unicode/utf8"
)

// ParticipationRole is the part a user plays in a workshop
type ParticipationRole string

const (
	ParticipationRoleParticipant ParticipationRole = "participant"
	ParticipationRoleAnimator    ParticipationRole = "animator"
)

// IsValid returns true if the role is known
func (r ParticipationRole) IsValid() bool {
	return r == ParticipationRoleParticipant || r == ParticipationRoleAnimator
}

// ParticipationStatus tracks a registration from sign-up to attendance
type ParticipationStatus string

const (
	ParticipationStatusRegistered ParticipationStatus = "registered"
	ParticipationStatusAttended   ParticipationStatus = "attended"
	ParticipationStatusNoShow     ParticipationStatus = "no_show"
	ParticipationStatusCancelled  ParticipationStatus = "cancelled"
)

var participationStatusLabels = map[ParticipationStatus]string{
	ParticipationStatusRegistered: "Registered",
	ParticipationStatusAttended:   "Attended",
	ParticipationStatusNoShow:     "No-show",
	ParticipationStatusCancelled:  "Cancelled",
}

// IsValid returns true if the status is known
func (s ParticipationStatus) IsValid() bool {
	_, ok := participationStatusLabels[s]
	return ok
}

// Label returns the display label for the status
func (s ParticipationStatus) Label() string {
	if l, ok := participationStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// IsActive returns true for registrations that hold a seat
func (s ParticipationStatus) IsActive() bool {
	return s == ParticipationStatusRegistered || s == ParticipationStatusAttended
}

// IsTerminal returns true once a participation can no longer change
func (s ParticipationStatus) IsTerminal() bool {
	return s == ParticipationStatusCancelled
}

// Participation is a user's registration record for a workshop
type Participation struct {
	ID              string              `json:"id"`
	WorkshopID      string              `json:"workshop_id"`
	UserID          string              `json:"user_id"`
	Role            ParticipationRole   `json:"role"`
	Status          ParticipationStatus `json:"status"`
	FeedbackRating  *int                `json:"feedback_rating,omitempty"`
	FeedbackComment *string             `json:"feedback_comment,omitempty"`
	FeedbackOn      *time.Time          `json:"feedback_on,omitempty"`
	RegisteredOn    time.Time           `json:"registered_on"`
	UpdatedOn       time.Time           `json:"updated_on"`

	// Populated by joins
	WorkshopTitle    *string    `json:"workshop_title,omitempty"`
	WorkshopStartsAt *time.Time `json:"workshop_starts_at,omitempty"`
	UserEmail        *string    `json:"user_email,omitempty"`
	UserName         *string    `json:"user_name,omitempty"`
}

// HasFeedback returns true once feedback has been submitted
func (p *Participation) HasFeedback() bool {
	return p.FeedbackRating != nil
}

// RegistrationOutcome reports what a registration attempt produced
type RegistrationOutcome string

const (
	OutcomeRegistered RegistrationOutcome = "registered"
	OutcomeWaitlisted RegistrationOutcome = "waitlisted"
)

// RegistrationResult is returned from a registration attempt. Exactly one of
// Participation and WaitlistEntry is set.
type RegistrationResult struct {
	Outcome       RegistrationOutcome `json:"outcome"`
	Participation *Participation      `json:"participation,omitempty"`
	WaitlistEntry *WaitlistEntry      `json:"waitlist_entry,omitempty"`
}

// ParticipationWhen narrows "my participations" by workshop time
type ParticipationWhen string

const (
	ParticipationWhenAll      ParticipationWhen = ""
	ParticipationWhenUpcoming ParticipationWhen = "upcoming"
	ParticipationWhenPast     ParticipationWhen = "past"
)

// ParticipationFilter narrows a user's participation listing
type ParticipationFilter struct {
	Status *ParticipationStatus
	When   ParticipationWhen
	Limit  int
	Offset int
}

// Feedback constraints
const (
	MinFeedbackRating        = 1
	MaxFeedbackRating        = 5
	MaxFeedbackCommentLength = 2000
)

// SubmitFeedbackRequest represents a request to rate an attended workshop
type SubmitFeedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}

// Validate checks if the request is valid
func (r *SubmitFeedbackRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Rating < MinFeedbackRating || r.Rating > MaxFeedbackRating {
		errors = append(errors, FieldError{Field: "rating", Message: "rating must be between 1 and 5"})
	}
	if r.Comment != nil && utf8.RuneCountInString(*r.Comment) > MaxFeedbackCommentLength {
		errors = append(errors, FieldError{Field: "comment", Message: "comment must be 2000 characters or less"})
	}

	return errors
}

// MarkAttendanceRequest records whether a participant showed up and in which role
type MarkAttendanceRequest struct {
	Status ParticipationStatus `json:"status"`
	Role   *ParticipationRole  `json:"role,omitempty"`
}

// Validate checks if the request is valid
func (r *MarkAttendanceRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Status != ParticipationStatusAttended && r.Status != ParticipationStatusNoShow {
		errors = append(errors, FieldError{Field: "status", Message: "status must be 'attended' or 'no_show'"})
	}
	if r.Role != nil && !r.Role.IsValid() {
		errors = append(errors, FieldError{Field: "role", Message: "role must be 'participant' or 'animator'"})
	}

	return errors
}

// AddAnimatorRequest adds a user to a workshop as animator
type AddAnimatorRequest struct {
	UserID string `json:"user_id"`
}

// Validate checks if the request is valid
func (r *AddAnimatorRequest) Validate() []FieldError {
	if r.UserID == "" {
		return []FieldError{{Field: "user_id", Message: "user_id is required"}}
	}
	return nil
}
