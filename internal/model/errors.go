package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const problemTypeBase = "https://atelier.forgo.software/errors/"

// ErrorCode represents API error codes
type ErrorCode int

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = 1001
	ErrCodeTokenExpired ErrorCode = 1002
	ErrCodeTokenInvalid ErrorCode = 1003
	ErrCodeLoginFailed  ErrorCode = 1004

	// Authorization errors (2xxx)
	ErrCodeForbidden        ErrorCode = 2001
	ErrCodeInsufficientRole ErrorCode = 2002
	ErrCodeNotEligible      ErrorCode = 2003

	// Resource errors (3xxx)
	ErrCodeNotFound      ErrorCode = 3001
	ErrCodeAlreadyExists ErrorCode = 3002
	ErrCodeConflict      ErrorCode = 3003

	// Validation errors (4xxx)
	ErrCodeValidation    ErrorCode = 4001
	ErrCodeInvalidInput  ErrorCode = 4002
	ErrCodeLimitExceeded ErrorCode = 4003
	ErrCodeUnprocessable ErrorCode = 4004

	// Internal errors (5xxx)
	ErrCodeInternal    ErrorCode = 5001
	ErrCodeDatabase    ErrorCode = 5002
	ErrCodeExternalAPI ErrorCode = 5003

	// Workshop state errors (6xxx)
	ErrCodeRegistrationClosed ErrorCode = 6001
	ErrCodeWorkshopFull       ErrorCode = 6002
	ErrCodeWorkshopReadOnly   ErrorCode = 6003
)

// ProblemDetails represents RFC 9457 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
	// Extension fields
	Code    ErrorCode `json:"code,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Current *int      `json:"current,omitempty"`
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WriteJSON writes the problem details as JSON response
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newProblem(slug, title string, status int, detail string, code ErrorCode) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + slug,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

// Common error constructors

func NewUnauthorizedError(detail string) *ProblemDetails {
	return newProblem("unauthorized", "Unauthorized", http.StatusUnauthorized, detail, ErrCodeUnauthorized)
}

func NewTokenExpiredError() *ProblemDetails {
	return newProblem("token-expired", "Unauthorized", http.StatusUnauthorized, "Access token has expired", ErrCodeTokenExpired)
}

func NewForbiddenError(detail string) *ProblemDetails {
	return newProblem("forbidden", "Forbidden", http.StatusForbidden, detail, ErrCodeForbidden)
}

// NewInsufficientRoleError is returned when the caller's role does not
// grant access to an organizer or admin surface.
func NewInsufficientRoleError(required string) *ProblemDetails {
	return newProblem("insufficient-role", "Forbidden", http.StatusForbidden,
		fmt.Sprintf("This action requires the %s role", required), ErrCodeInsufficientRole)
}

func NewNotEligibleError(detail string) *ProblemDetails {
	return newProblem("not-eligible", "Not Eligible", http.StatusForbidden, detail, ErrCodeNotEligible)
}

func NewNotFoundError(resource string) *ProblemDetails {
	return newProblem("not-found", "Not Found", http.StatusNotFound, fmt.Sprintf("%s not found", resource), ErrCodeNotFound)
}

func NewValidationError(errors []FieldError) *ProblemDetails {
	detail := "One or more fields failed validation"
	if len(errors) > 0 {
		detail = fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
		if len(errors) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errors)-1)
		}
	}
	p := newProblem("validation", "Validation Error", http.StatusUnprocessableEntity, detail, ErrCodeValidation)
	p.Errors = errors
	return p
}

// NewUnprocessableError covers requests that are well formed but cannot be
// applied to the resource in its current state.
func NewUnprocessableError(detail string) *ProblemDetails {
	return newProblem("unprocessable", "Unprocessable Entity", http.StatusUnprocessableEntity, detail, ErrCodeUnprocessable)
}

func NewLimitExceededError(resource string, limit, current int) *ProblemDetails {
	p := newProblem("limit-exceeded", "Limit Exceeded", http.StatusUnprocessableEntity,
		fmt.Sprintf("Maximum of %d %s reached", limit, resource), ErrCodeLimitExceeded)
	p.Limit = &limit
	p.Current = &current
	return p
}

// NewRegistrationClosedError is returned when a workshop does not take
// registrations: it is unpublished, cancelled or already under way.
func NewRegistrationClosedError(detail string) *ProblemDetails {
	return newProblem("registration-closed", "Registration Closed", http.StatusUnprocessableEntity, detail, ErrCodeRegistrationClosed)
}

func NewWorkshopFullError(detail string) *ProblemDetails {
	return newProblem("workshop-full", "Workshop Full", http.StatusUnprocessableEntity, detail, ErrCodeWorkshopFull)
}

func NewWorkshopReadOnlyError(detail string) *ProblemDetails {
	return newProblem("workshop-read-only", "Workshop Read Only", http.StatusUnprocessableEntity, detail, ErrCodeWorkshopReadOnly)
}

func NewConflictError(detail string) *ProblemDetails {
	return newProblem("conflict", "Conflict", http.StatusConflict, detail, ErrCodeConflict)
}

func NewInternalError(detail string) *ProblemDetails {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return newProblem("internal", "Internal Server Error", http.StatusInternalServerError, detail, ErrCodeInternal)
}

// NewExternalServiceError reports a failure of an upstream provider such as
// the transactional email API.
func NewExternalServiceError(service string) *ProblemDetails {
	return newProblem("external-service", "Bad Gateway", http.StatusBadGateway,
		fmt.Sprintf("%s is unavailable, please try again later", service), ErrCodeExternalAPI)
}

func NewBadRequestError(detail string) *ProblemDetails {
	return newProblem("bad-request", "Bad Request", http.StatusBadRequest, detail, ErrCodeInvalidInput)
}

func NewMethodNotAllowedError(allowed string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + "method-not-allowed",
		Title:  "Method Not Allowed",
		Status: http.StatusMethodNotAllowed,
		Detail: fmt.Sprintf("Only %s method is allowed", allowed),
	}
}

func NewRateLimitError(retryAfter int) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + "rate-limited",
		Title:  "Too Many Requests",
		Status: http.StatusTooManyRequests,
		Detail: fmt.Sprintf("Rate limit exceeded. Retry after %d seconds", retryAfter),
	}
}
