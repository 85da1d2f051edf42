package model

import "time"

// WorkshopFamily groups related workshop types
type WorkshopFamily struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

// WorkshopType is a reusable workshop template within a family
type WorkshopType struct {
	ID              string    `json:"id"`
	FamilyID        string    `json:"family_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMins    int       `json:"duration_mins"`
	DefaultCapacity int       `json:"default_capacity"`
	IsTraining      bool      `json:"is_training"`
	RequiredLevelID *string   `json:"required_level_id,omitempty"` // Training gate
	Active          bool      `json:"active"`
	CreatedOn       time.Time `json:"created_on"`
	UpdatedOn       time.Time `json:"updated_on"`
}

// Duration returns the type's default duration
func (t *WorkshopType) Duration() time.Duration {
	return time.Duration(t.DurationMins) * time.Minute
}

// Catalog constraints
const (
	MaxCatalogNameLength = 100
	MaxCatalogDescLength = 1000
	MaxDurationMins      = 7 * 24 * 60
)

// CreateFamilyRequest represents a request to create a workshop family
type CreateFamilyRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	SortOrder   int     `json:"sort_order,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateFamilyRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxCatalogNameLength {
		errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
	}
	if r.Description != nil && len(*r.Description) > MaxCatalogDescLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 1000 characters or less"})
	}

	return errors
}

// UpdateFamilyRequest represents a request to update a workshop family
type UpdateFamilyRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

// Validate checks if the update request is valid
func (r *UpdateFamilyRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil {
		if *r.Name == "" {
			errors = append(errors, FieldError{Field: "name", Message: "name cannot be empty"})
		} else if len(*r.Name) > MaxCatalogNameLength {
			errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
		}
	}
	if r.Description != nil && len(*r.Description) > MaxCatalogDescLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 1000 characters or less"})
	}

	return errors
}

// CreateTypeRequest represents a request to create a workshop type
type CreateTypeRequest struct {
	FamilyID        string  `json:"family_id"`
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	DurationMins    int     `json:"duration_mins"`
	DefaultCapacity int     `json:"default_capacity"`
	IsTraining      bool    `json:"is_training,omitempty"`
	RequiredLevelID *string `json:"required_level_id,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateTypeRequest) Validate() []FieldError {
	var errors []FieldError

	if r.FamilyID == "" {
		errors = append(errors, FieldError{Field: "family_id", Message: "family_id is required"})
	}
	if r.Name == "" {
		errors = append(errors, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxCatalogNameLength {
		errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
	}
	if r.Description != nil && len(*r.Description) > MaxCatalogDescLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 1000 characters or less"})
	}
	errors = append(errors, validateTypeSizing(&r.DurationMins, &r.DefaultCapacity)...)

	return errors
}

// UpdateTypeRequest represents a request to update a workshop type.
// ClearRequiredLevel removes the training gate.
type UpdateTypeRequest struct {
	Name               *string `json:"name,omitempty"`
	Description        *string `json:"description,omitempty"`
	DurationMins       *int    `json:"duration_mins,omitempty"`
	DefaultCapacity    *int    `json:"default_capacity,omitempty"`
	IsTraining         *bool   `json:"is_training,omitempty"`
	RequiredLevelID    *string `json:"required_level_id,omitempty"`
	ClearRequiredLevel bool    `json:"clear_required_level,omitempty"`
	Active             *bool   `json:"active,omitempty"`
}

// Validate checks if the update request is valid
func (r *UpdateTypeRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil {
		if *r.Name == "" {
			errors = append(errors, FieldError{Field: "name", Message: "name cannot be empty"})
		} else if len(*r.Name) > MaxCatalogNameLength {
			errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
		}
	}
	if r.Description != nil && len(*r.Description) > MaxCatalogDescLength {
		errors = append(errors, FieldError{Field: "description", Message: "description must be 1000 characters or less"})
	}
	errors = append(errors, validateTypeSizing(r.DurationMins, r.DefaultCapacity)...)
	if r.ClearRequiredLevel && r.RequiredLevelID != nil {
		errors = append(errors, FieldError{Field: "required_level_id", Message: "cannot set and clear required_level_id together"})
	}

	return errors
}

func validateTypeSizing(duration, capacity *int) []FieldError {
	var errors []FieldError
	if duration != nil && (*duration <= 0 || *duration > MaxDurationMins) {
		errors = append(errors, FieldError{Field: "duration_mins", Message: "duration_mins must be between 1 and 10080"})
	}
	if capacity != nil && *capacity < 1 {
		errors = append(errors, FieldError{Field: "default_capacity", Message: "default_capacity must be at least 1"})
	}
	return errors
}
