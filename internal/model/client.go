package model

import (
	"net/mail"
	"time"
)

// Client is an organization that commissions workshops
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactName  *string   `json:"contact_name,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	Active       bool      `json:"active"`
	CreatedOn    time.Time `json:"created_on"`
	UpdatedOn    time.Time `json:"updated_on"`
}

// Client constraints
const (
	MaxClientNameLength  = 100
	MaxClientNotesLength = 2000
)

// ClientFilter narrows client listings
type ClientFilter struct {
	Active *bool
	Search string
	Limit  int
	Offset int
}

// CreateClientRequest represents a request to create a client
type CreateClientRequest struct {
	Name         string  `json:"name"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateClientRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxClientNameLength {
		errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
	}
	errors = append(errors, validateClientContact(r.ContactEmail, r.Notes)...)

	return errors
}

// UpdateClientRequest represents a request to update a client
type UpdateClientRequest struct {
	Name         *string `json:"name,omitempty"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

// Validate checks if the update request is valid
func (r *UpdateClientRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil {
		if *r.Name == "" {
			errors = append(errors, FieldError{Field: "name", Message: "name cannot be empty"})
		} else if len(*r.Name) > MaxClientNameLength {
			errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
		}
	}
	errors = append(errors, validateClientContact(r.ContactEmail, r.Notes)...)

	return errors
}

func validateClientContact(email, notes *string) []FieldError {
	var errors []FieldError
	if email != nil && *email != "" {
		if _, err := mail.ParseAddress(*email); err != nil {
			errors = append(errors, FieldError{Field: "contact_email", Message: "contact_email must be a valid email address"})
		}
	}
	if notes != nil && len(*notes) > MaxClientNotesLength {
		errors = append(errors, FieldError{Field: "notes", Message: "notes must be 2000 characters or less"})
	}
	return errors
}
