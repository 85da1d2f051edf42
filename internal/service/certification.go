package service

import (
	"context"
	"errors"
	"strings"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
	"golang.org/x/sync/errgroup"
)

// RoleLevelRepository defines the interface for level, requirement and
// activity storage
type RoleLevelRepository interface {
	CreateLevel(ctx context.Context, level *model.RoleLevel) error
	GetLevel(ctx context.Context, id string) (*model.RoleLevel, error)
	ListLevels(ctx context.Context) ([]*model.RoleLevel, error)
	UpdateLevel(ctx context.Context, id string, req *model.UpdateLevelRequest) (*model.RoleLevel, error)
	DeleteLevel(ctx context.Context, id string) error
	CountLevelReferences(ctx context.Context, id string) (types int, users int, err error)

	CreateRequirement(ctx context.Context, req *model.RoleRequirement) error
	GetRequirement(ctx context.Context, id string) (*model.RoleRequirement, error)
	DeleteRequirement(ctx context.Context, id string) error

	ActivityRecords(ctx context.Context, userID string) ([]model.ActivityRecord, error)
}

// CertificationUserRepository is the slice of user storage certification needs
type CertificationUserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	SetGrantedLevel(ctx context.Context, userID string, levelID *string) error
}

// TypeLookup resolves workshop types
type TypeLookup interface {
	GetType(ctx context.Context, id string) (*model.WorkshopType, error)
	GetFamily(ctx context.Context, id string) (*model.WorkshopFamily, error)
}

// WorkshopLookup resolves workshops
type WorkshopLookup interface {
	GetByID(ctx context.Context, id string) (*model.Workshop, error)
}

// CertificationService tracks users along the role level ladder
type CertificationService struct {
	repo      RoleLevelRepository
	users     CertificationUserRepository
	types     TypeLookup
	workshops WorkshopLookup
}

// CertificationServiceConfig holds configuration for the certification service
type CertificationServiceConfig struct {
	Repo      RoleLevelRepository
	Users     CertificationUserRepository
	Types     TypeLookup
	Workshops WorkshopLookup
}

// NewCertificationService creates a new certification service
func NewCertificationService(cfg CertificationServiceConfig) *CertificationService {
	return &CertificationService{
		repo:      cfg.Repo,
		users:     cfg.Users,
		types:     cfg.Types,
		workshops: cfg.Workshops,
	}
}

// ===== Ladder =====

// ListLevels returns every level by rank with its requirements
func (s *CertificationService) ListLevels(ctx context.Context) ([]*model.RoleLevel, error) {
	return s.repo.ListLevels(ctx)
}

// GetLevel retrieves a level
func (s *CertificationService) GetLevel(ctx context.Context, id string) (*model.RoleLevel, error) {
	level, err := s.repo.GetLevel(ctx, id)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}
	return level, nil
}

// CreateLevel adds a level; names and ranks are unique
func (s *CertificationService) CreateLevel(ctx context.Context, req *model.CreateLevelRequest) (*model.RoleLevel, error) {
	level := &model.RoleLevel{
		Name:        strings.TrimSpace(req.Name),
		Rank:        req.Rank,
		Description: req.Description,
		Color:       req.Color,
	}
	if err := s.repo.CreateLevel(ctx, level); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrLevelExists
		}
		return nil, err
	}
	return level, nil
}

// UpdateLevel applies a partial update
func (s *CertificationService) UpdateLevel(ctx context.Context, id string, req *model.UpdateLevelRequest) (*model.RoleLevel, error) {
	if _, err := s.GetLevel(ctx, id); err != nil {
		return nil, err
	}
	level, err := s.repo.UpdateLevel(ctx, id, req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrLevelExists
		}
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}
	return level, nil
}

// DeleteLevel removes a level that no type gates on and no user holds
func (s *CertificationService) DeleteLevel(ctx context.Context, id string) error {
	if _, err := s.GetLevel(ctx, id); err != nil {
		return err
	}
	types, users, err := s.repo.CountLevelReferences(ctx, id)
	if err != nil {
		return err
	}
	if types > 0 || users > 0 {
		return ErrLevelInUse
	}
	return s.repo.DeleteLevel(ctx, id)
}

// AddRequirement attaches a requirement to a level. Type and family
// narrowing must point at existing catalog entries.
func (s *CertificationService) AddRequirement(ctx context.Context, levelID string, req *model.CreateRequirementRequest) (*model.RoleRequirement, error) {
	if _, err := s.GetLevel(ctx, levelID); err != nil {
		return nil, err
	}
	if req.TypeID != nil {
		wt, err := s.types.GetType(ctx, *req.TypeID)
		if err != nil {
			return nil, err
		}
		if wt == nil {
			return nil, ErrTypeNotFound
		}
	}
	if req.FamilyID != nil {
		family, err := s.types.GetFamily(ctx, *req.FamilyID)
		if err != nil {
			return nil, err
		}
		if family == nil {
			return nil, ErrFamilyNotFound
		}
	}

	requirement := &model.RoleRequirement{
		LevelID:     levelID,
		Kind:        req.Kind,
		Threshold:   req.Threshold,
		TypeID:      req.TypeID,
		FamilyID:    req.FamilyID,
		Description: req.Description,
	}
	if err := s.repo.CreateRequirement(ctx, requirement); err != nil {
		return nil, err
	}
	return requirement, nil
}

// DeleteRequirement removes a requirement
func (s *CertificationService) DeleteRequirement(ctx context.Context, id string) error {
	req, err := s.repo.GetRequirement(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return ErrRequirementNotFound
	}
	return s.repo.DeleteRequirement(ctx, id)
}

// ===== Progress =====

// Status computes where a user stands on the ladder. The user, the
// ladder and the activity are loaded concurrently.
func (s *CertificationService) Status(ctx context.Context, userID string) (*model.CertificationStatus, error) {
	var (
		user    *model.User
		levels  []*model.RoleLevel
		records []model.ActivityRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		levels, err = s.repo.ListLevels(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.repo.ActivityRecords(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	status := EvaluateLadder(levels, records, grantedRank(user, levels))
	status.UserID = userID
	return status, nil
}

// CurrentLevel returns the highest level the user has achieved, or nil
func (s *CertificationService) CurrentLevel(ctx context.Context, userID string) (*model.RoleLevel, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	return status.CurrentLevel, nil
}

// ===== Eligibility =====

// CheckType decides whether a user may register for workshops of a type
func (s *CertificationService) CheckType(ctx context.Context, user *model.User, wt *model.WorkshopType) (*model.Eligibility, error) {
	if wt.RequiredLevelID == nil {
		e := DecideEligibility(nil, nil, user.IsStaff())
		return &e, nil
	}

	required, err := s.repo.GetLevel(ctx, *wt.RequiredLevelID)
	if err != nil {
		return nil, err
	}
	if required == nil {
		// A gate pointing at a missing level does not restrict
		e := DecideEligibility(nil, nil, user.IsStaff())
		return &e, nil
	}
	required.Requirements = nil

	var current *model.RoleLevel
	if !user.IsStaff() {
		if current, err = s.CurrentLevel(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	e := DecideEligibility(required, current, user.IsStaff())
	return &e, nil
}

// CheckWorkshop decides eligibility for a workshop's type
func (s *CertificationService) CheckWorkshop(ctx context.Context, userID, workshopID string) (*model.Eligibility, error) {
	w, err := s.workshops.GetByID(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWorkshopNotFound
	}

	wt, err := s.types.GetType(ctx, w.TypeID)
	if err != nil {
		return nil, err
	}
	if wt == nil {
		return nil, ErrTypeNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return s.CheckType(ctx, user, wt)
}

// ===== Grants =====

// Grant sets (or with a nil levelID clears) the level floor of a user
func (s *CertificationService) Grant(ctx context.Context, userID string, levelID *string) (*model.CertificationStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if levelID != nil {
		if _, err := s.GetLevel(ctx, *levelID); err != nil {
			return nil, err
		}
	}

	if err := s.users.SetGrantedLevel(ctx, userID, levelID); err != nil {
		return nil, err
	}
	return s.Status(ctx, userID)
}

func grantedRank(user *model.User, levels []*model.RoleLevel) int {
	if user.GrantedLevelID == nil {
		return 0
	}
	for _, l := range levels {
		if l.ID == *user.GrantedLevelID {
			return l.Rank
		}
	}
	return 0
}
