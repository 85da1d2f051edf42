package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 128 characters")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordUnchanged  = errors.New("new password must differ from the current one")
)

// ===== Token Errors =====
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ===== Authorization Errors =====
var (
	ErrForbidden            = errors.New("not authorized to perform this action")
	ErrNotWorkshopOrganizer = errors.New("only organizers of this workshop can do this")
	ErrCannotChangeOwnRole  = errors.New("cannot change your own role")
	ErrInvalidRole          = errors.New("invalid role")
)

// ===== Catalog Errors =====
var (
	ErrFamilyNotFound   = errors.New("workshop family not found")
	ErrFamilyNameExists = errors.New("a family with this name already exists")
	ErrFamilyHasTypes   = errors.New("family still has workshop types")
	ErrTypeNotFound     = errors.New("workshop type not found")
	ErrTypeNameExists   = errors.New("a type with this name already exists in the family")
	ErrTypeInUse        = errors.New("workshop type is used by workshops")
	ErrTypeInactive     = errors.New("workshop type is inactive")
)

// ===== Client Errors =====
var (
	ErrClientNotFound   = errors.New("client not found")
	ErrClientNameExists = errors.New("a client with this name already exists")
	ErrClientInUse      = errors.New("client is referenced by workshops; deactivate it instead")
	ErrClientInactive   = errors.New("client is inactive")
)

// ===== Workshop Errors =====
var (
	ErrWorkshopNotFound        = errors.New("workshop not found")
	ErrInvalidTransition       = errors.New("status transition not allowed")
	ErrWorkshopReadOnly        = errors.New("completed and cancelled workshops cannot be changed")
	ErrWorkshopNotOpen         = errors.New("workshop is not open for registration")
	ErrWorkshopStarted         = errors.New("workshop has already started")
	ErrWorkshopNotStarted      = errors.New("workshop has not started yet")
	ErrWorkshopInPast          = errors.New("workshop start must be in the future")
	ErrInvalidTimeRange        = errors.New("ends_at must be after starts_at")
	ErrCapacityBelowRegistered = errors.New("capacity cannot be lower than the number of registered participants")
	ErrInvalidRecurrence       = errors.New("invalid recurrence rule")
	ErrTooManyOccurrences      = errors.New("recurrence must produce between 1 and 52 occurrences")
	ErrOrganizerNotStaff       = errors.New("only organizers and admins can organize workshops")
)

// ===== Participation Errors =====
var (
	ErrParticipationNotFound = errors.New("participation not found")
	ErrAlreadyRegistered     = errors.New("already registered for this workshop")
	ErrAlreadyWaitlisted     = errors.New("already on the waiting list")
	ErrNotRegistered         = errors.New("not registered for this workshop")
	ErrFeedbackNotAllowed    = errors.New("feedback requires an attended participation")
	ErrFeedbackAlreadyGiven  = errors.New("feedback already submitted")
	ErrAttendanceNotAllowed  = errors.New("attendance can only be marked on registered participations")
	ErrAttendanceRecorded    = errors.New("attendance is already recorded for this user")
	ErrNotEligible           = errors.New("required role level not reached for this workshop type")
)

// ===== Waitlist Errors =====
var (
	ErrWaitlistEntryNotFound = errors.New("waitlist entry not found")
	ErrEntryNotWaiting       = errors.New("waitlist entry is no longer waiting")
	ErrWorkshopFull          = errors.New("workshop is full")
)

// ===== Certification Errors =====
var (
	ErrLevelNotFound       = errors.New("role level not found")
	ErrLevelExists         = errors.New("a role level with this name or rank already exists")
	ErrLevelInUse          = errors.New("role level is referenced by workshop types or users")
	ErrRequirementNotFound = errors.New("requirement not found")
)

// ===== Email Errors =====
var (
	ErrEmailDisabled = errors.New("email delivery is disabled")
	ErrEmailProvider = errors.New("email provider error")
)
