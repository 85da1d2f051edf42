package model

import "time"

// RoleLevel is a certification tier. Levels form a ladder ordered by rank.
type RoleLevel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rank        int       `json:"rank"`
	Description *string   `json:"description,omitempty"`
	Color       *string   `json:"color,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`

	Requirements []RoleRequirement `json:"requirements,omitempty"`
}

// RequirementKind is the activity a requirement counts
type RequirementKind string

const (
	RequirementWorkshopsAttended  RequirementKind = "workshops_attended"
	RequirementWorkshopsAnimated  RequirementKind = "workshops_animated"
	RequirementFeedbackGiven      RequirementKind = "feedback_given"
	RequirementTrainingsCompleted RequirementKind = "trainings_completed"
)

// IsValid returns true if the kind is known
func (k RequirementKind) IsValid() bool {
	switch k {
	case RequirementWorkshopsAttended, RequirementWorkshopsAnimated,
		RequirementFeedbackGiven, RequirementTrainingsCompleted:
		return true
	default:
		return false
	}
}

// RoleRequirement is one threshold a user must reach for a level.
// TypeID and FamilyID narrow which workshops count.
type RoleRequirement struct {
	ID          string          `json:"id"`
	LevelID     string          `json:"level_id"`
	Kind        RequirementKind `json:"kind"`
	Threshold   int             `json:"threshold"`
	TypeID      *string         `json:"type_id,omitempty"`
	FamilyID    *string         `json:"family_id,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// ActivityRecord is one participation joined with its workshop type,
// the input to certification tallies.
type ActivityRecord struct {
	ParticipationID string              `json:"participation_id"`
	Role            ParticipationRole   `json:"role"`
	Status          ParticipationStatus `json:"status"`
	HasFeedback     bool                `json:"has_feedback"`
	TypeID          string              `json:"type_id"`
	FamilyID        string              `json:"family_id"`
	IsTraining      bool                `json:"is_training"`
}

// RequirementProgress is a requirement with the user's count against it
type RequirementProgress struct {
	Requirement RoleRequirement `json:"requirement"`
	Count       int             `json:"count"`
	Met         bool            `json:"met"`
}

// LevelProgress is a level with its requirement progress for one user
type LevelProgress struct {
	Level        RoleLevel             `json:"level"`
	Achieved     bool                  `json:"achieved"`
	Granted      bool                  `json:"granted"`
	Progress     int                   `json:"progress"` // 0..100
	Requirements []RequirementProgress `json:"requirements"`
}

// CertificationStatus is a user's position on the level ladder
type CertificationStatus struct {
	UserID       string          `json:"user_id"`
	CurrentLevel *RoleLevel      `json:"current_level,omitempty"`
	NextLevel    *RoleLevel      `json:"next_level,omitempty"`
	Levels       []LevelProgress `json:"levels"`
}

// Eligibility answers whether a user may register for a workshop type
type Eligibility struct {
	Eligible      bool       `json:"eligible"`
	Reason        string     `json:"reason,omitempty"`
	RequiredLevel *RoleLevel `json:"required_level,omitempty"`
	CurrentLevel  *RoleLevel `json:"current_level,omitempty"`
}

// Certification constraints
const (
	MaxLevelNameLength = 100
	MaxThreshold       = 10000
)

// CreateLevelRequest represents a request to create a role level
type CreateLevelRequest struct {
	Name        string  `json:"name"`
	Rank        int     `json:"rank"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateLevelRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxLevelNameLength {
		errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
	}
	if r.Rank < 1 {
		errors = append(errors, FieldError{Field: "rank", Message: "rank must be at least 1"})
	}

	return errors
}

// UpdateLevelRequest represents a request to update a role level
type UpdateLevelRequest struct {
	Name        *string `json:"name,omitempty"`
	Rank        *int    `json:"rank,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// Validate checks if the update request is valid
func (r *UpdateLevelRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name != nil {
		if *r.Name == "" {
			errors = append(errors, FieldError{Field: "name", Message: "name cannot be empty"})
		} else if len(*r.Name) > MaxLevelNameLength {
			errors = append(errors, FieldError{Field: "name", Message: "name must be 100 characters or less"})
		}
	}
	if r.Rank != nil && *r.Rank < 1 {
		errors = append(errors, FieldError{Field: "rank", Message: "rank must be at least 1"})
	}

	return errors
}

// CreateRequirementRequest represents a request to add a requirement to a level
type CreateRequirementRequest struct {
	Kind        RequirementKind `json:"kind"`
	Threshold   int             `json:"threshold"`
	TypeID      *string         `json:"type_id,omitempty"`
	FamilyID    *string         `json:"family_id,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// Validate checks if the create request is valid
func (r *CreateRequirementRequest) Validate() []FieldError {
	var errors []FieldError

	if !r.Kind.IsValid() {
		errors = append(errors, FieldError{Field: "kind", Message: "kind must be one of workshops_attended, workshops_animated, feedback_given, trainings_completed"})
	}
	if r.Threshold < 1 || r.Threshold > MaxThreshold {
		errors = append(errors, FieldError{Field: "threshold", Message: "threshold must be between 1 and 10000"})
	}

	return errors
}
