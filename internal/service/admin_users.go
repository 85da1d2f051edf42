package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forgo/atelier/internal/model"
)

// AdminUserRepository defines the user repo interface needed by AdminUsersService
type AdminUserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	SetRole(ctx context.Context, userID string, role model.UserRole) error
	SetClient(ctx context.Context, userID string, clientID *string) error
	Delete(ctx context.Context, id string) error
}

// AdminActivityRepository defines the activity source for user stats
type AdminActivityRepository interface {
	ActivityRecords(ctx context.Context, userID string) ([]model.ActivityRecord, error)
}

// AdminUsersService handles admin user management operations
type AdminUsersService struct {
	userRepo     AdminUserRepository
	activityRepo AdminActivityRepository
	clients      ClientChecker
}

// NewAdminUsersService creates a new admin users service
func NewAdminUsersService(
	userRepo AdminUserRepository,
	activityRepo AdminActivityRepository,
	clients ClientChecker,
) *AdminUsersService {
	return &AdminUsersService{
		userRepo:     userRepo,
		activityRepo: activityRepo,
		clients:      clients,
	}
}

// AdminUserStats counts a user's workshop activity
type AdminUserStats struct {
	Registered int `json:"registered"`
	Attended   int `json:"attended"`
	Animated   int `json:"animated"`
	NoShows    int `json:"no_shows"`
	Feedback   int `json:"feedback"`
}

// AdminUserDetail is a user with their activity for the admin panel
type AdminUserDetail struct {
	*model.User
	Stats AdminUserStats `json:"stats"`
}

// ListUsers returns users matching the filter, newest first
func (s *AdminUsersService) ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	if filter.Limit <= 0 {
		filter.Limit = model.DefaultPageLimit
	}
	if filter.Limit > model.MaxPageLimit {
		filter.Limit = model.MaxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.userRepo.List(ctx, filter)
}

// GetUserDetail returns a user with activity stats
func (s *AdminUsersService) GetUserDetail(ctx context.Context, userID string) (*AdminUserDetail, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	detail := &AdminUserDetail{User: user}
	if s.activityRepo == nil {
		return detail, nil
	}

	records, err := s.activityRepo.ActivityRecords(ctx, userID)
	if err != nil {
		// stats are decoration; the user itself was found
		slog.Warn("failed to load user activity", "user_id", userID, "error", err)
		return detail, nil
	}
	detail.Stats = tallyStats(records)
	return detail, nil
}

func tallyStats(records []model.ActivityRecord) AdminUserStats {
	var st AdminUserStats
	for _, rec := range records {
		switch rec.Status {
		case model.ParticipationStatusRegistered:
			st.Registered++
		case model.ParticipationStatusAttended:
			if rec.Role == model.ParticipationRoleAnimator {
				st.Animated++
			} else {
				st.Attended++
			}
		case model.ParticipationStatusNoShow:
			st.NoShows++
		}
		if rec.HasFeedback {
			st.Feedback++
		}
	}
	return st
}

// UpdateUserRole updates a user's role. Admins cannot change their own role.
func (s *AdminUsersService) UpdateUserRole(ctx context.Context, adminUserID, targetUserID string, role model.UserRole) (*model.User, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if adminUserID == targetUserID {
		return nil, ErrCannotChangeOwnRole
	}

	user, err := s.userRepo.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.userRepo.SetRole(ctx, targetUserID, role); err != nil {
		return nil, err
	}
	slog.Info("user role changed",
		slog.String("user_id", targetUserID),
		slog.String("admin_id", adminUserID),
		slog.String("from", string(user.Role)),
		slog.String("to", string(role)),
	)
	user.Role = role
	return user, nil
}

// AttachClient attaches the user to a client, or detaches them when
// clientID is nil
func (s *AdminUsersService) AttachClient(ctx context.Context, userID string, clientID *string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if clientID != nil {
		if _, err := s.clients.RequireActive(ctx, *clientID); err != nil {
			return nil, err
		}
	}
	if err := s.userRepo.SetClient(ctx, userID, clientID); err != nil {
		return nil, err
	}
	user.ClientID = clientID
	return user, nil
}

// DeleteUser removes a user account. Admins cannot delete themselves.
func (s *AdminUsersService) DeleteUser(ctx context.Context, adminUserID, targetUserID string) error {
	if adminUserID == targetUserID {
		return ErrForbidden
	}
	user, err := s.userRepo.GetByID(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	slog.Info("deleting user", slog.String("user_id", targetUserID), slog.String("admin_id", adminUserID))
	return s.userRepo.Delete(ctx, targetUserID)
}
