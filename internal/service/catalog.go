package service

import (
	"context"
	"errors"
	"strings"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// CatalogRepository defines the interface for family and type storage
type CatalogRepository interface {
	CreateFamily(ctx context.Context, family *model.WorkshopFamily) error
	GetFamily(ctx context.Context, id string) (*model.WorkshopFamily, error)
	GetFamilyByName(ctx context.Context, name string) (*model.WorkshopFamily, error)
	ListFamilies(ctx context.Context) ([]*model.WorkshopFamily, error)
	UpdateFamily(ctx context.Context, id string, req *model.UpdateFamilyRequest) (*model.WorkshopFamily, error)
	DeleteFamily(ctx context.Context, id string) error
	CountTypesInFamily(ctx context.Context, familyID string) (int, error)

	CreateType(ctx context.Context, wt *model.WorkshopType) error
	GetType(ctx context.Context, id string) (*model.WorkshopType, error)
	GetTypeByName(ctx context.Context, familyID, name string) (*model.WorkshopType, error)
	ListTypes(ctx context.Context, familyID string, includeInactive bool) ([]*model.WorkshopType, error)
	UpdateType(ctx context.Context, id string, req *model.UpdateTypeRequest) (*model.WorkshopType, error)
	DeleteType(ctx context.Context, id string) error
	CountWorkshopsOfType(ctx context.Context, typeID string) (int, error)
}

// LevelLookup resolves role levels referenced by other entities
type LevelLookup interface {
	GetLevel(ctx context.Context, id string) (*model.RoleLevel, error)
}

// CatalogService manages workshop families and types
type CatalogService struct {
	repo   CatalogRepository
	levels LevelLookup
}

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	Repo   CatalogRepository
	Levels LevelLookup
}

// NewCatalogService creates a new catalog service
func NewCatalogService(cfg CatalogServiceConfig) *CatalogService {
	return &CatalogService{
		repo:   cfg.Repo,
		levels: cfg.Levels,
	}
}

// ===== Families =====

// ListFamilies returns all families
func (s *CatalogService) ListFamilies(ctx context.Context) ([]*model.WorkshopFamily, error) {
	return s.repo.ListFamilies(ctx)
}

// GetFamily retrieves a family
func (s *CatalogService) GetFamily(ctx context.Context, id string) (*model.WorkshopFamily, error) {
	family, err := s.repo.GetFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// CreateFamily creates a family with a unique name
func (s *CatalogService) CreateFamily(ctx context.Context, req *model.CreateFamilyRequest) (*model.WorkshopFamily, error) {
	family := &model.WorkshopFamily{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
		SortOrder:   req.SortOrder,
	}

	existing, err := s.repo.GetFamilyByName(ctx, family.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrFamilyNameExists
	}

	if err := s.repo.CreateFamily(ctx, family); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrFamilyNameExists
		}
		return nil, err
	}
	return family, nil
}

// UpdateFamily applies a partial update
func (s *CatalogService) UpdateFamily(ctx context.Context, id string, req *model.UpdateFamilyRequest) (*model.WorkshopFamily, error) {
	if _, err := s.GetFamily(ctx, id); err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
		existing, err := s.repo.GetFamilyByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrFamilyNameExists
		}
	}

	family, err := s.repo.UpdateFamily(ctx, id, req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrFamilyNameExists
		}
		return nil, err
	}
	if family == nil {
		return nil, ErrFamilyNotFound
	}
	return family, nil
}

// DeleteFamily deletes a family that has no types left
func (s *CatalogService) DeleteFamily(ctx context.Context, id string) error {
	if _, err := s.GetFamily(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountTypesInFamily(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrFamilyHasTypes
	}
	return s.repo.DeleteFamily(ctx, id)
}

// ===== Types =====

// ListTypes returns the types of a family. Inactive types are shown to
// staff only.
func (s *CatalogService) ListTypes(ctx context.Context, familyID string, includeInactive bool) ([]*model.WorkshopType, error) {
	if _, err := s.GetFamily(ctx, familyID); err != nil {
		return nil, err
	}
	return s.repo.ListTypes(ctx, familyID, includeInactive)
}

// GetType retrieves a type
func (s *CatalogService) GetType(ctx context.Context, id string) (*model.WorkshopType, error) {
	wt, err := s.repo.GetType(ctx, id)
	if err != nil {
		return nil, err
	}
	if wt == nil {
		return nil, ErrTypeNotFound
	}
	return wt, nil
}

// CreateType creates an active type in an existing family
func (s *CatalogService) CreateType(ctx context.Context, req *model.CreateTypeRequest) (*model.WorkshopType, error) {
	if _, err := s.GetFamily(ctx, req.FamilyID); err != nil {
		return nil, err
	}
	if req.RequiredLevelID != nil {
		if err := s.requireLevel(ctx, *req.RequiredLevelID); err != nil {
			return nil, err
		}
	}

	wt := &model.WorkshopType{
		FamilyID:        req.FamilyID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		DurationMins:    req.DurationMins,
		DefaultCapacity: req.DefaultCapacity,
		IsTraining:      req.IsTraining,
		RequiredLevelID: req.RequiredLevelID,
		Active:          true,
	}

	existing, err := s.repo.GetTypeByName(ctx, wt.FamilyID, wt.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTypeNameExists
	}

	if err := s.repo.CreateType(ctx, wt); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrTypeNameExists
		}
		return nil, err
	}
	return wt, nil
}

// UpdateType applies a partial update
func (s *CatalogService) UpdateType(ctx context.Context, id string, req *model.UpdateTypeRequest) (*model.WorkshopType, error) {
	current, err := s.GetType(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
		existing, err := s.repo.GetTypeByName(ctx, current.FamilyID, name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrTypeNameExists
		}
	}
	if req.RequiredLevelID != nil {
		if err := s.requireLevel(ctx, *req.RequiredLevelID); err != nil {
			return nil, err
		}
	}

	wt, err := s.repo.UpdateType(ctx, id, req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrTypeNameExists
		}
		return nil, err
	}
	if wt == nil {
		return nil, ErrTypeNotFound
	}
	return wt, nil
}

// DeleteType deletes a type no workshop references
func (s *CatalogService) DeleteType(ctx context.Context, id string) error {
	if _, err := s.GetType(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountWorkshopsOfType(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTypeInUse
	}
	return s.repo.DeleteType(ctx, id)
}

func (s *CatalogService) requireLevel(ctx context.Context, levelID string) error {
	level, err := s.levels.GetLevel(ctx, levelID)
	if err != nil {
		return err
	}
	if level == nil {
		return ErrLevelNotFound
	}
	return nil
}
