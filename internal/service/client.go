package service

import (
	"context"
	"errors"
	"strings"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// ClientRepository defines the interface for client storage
type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id string) (*model.Client, error)
	List(ctx context.Context, filter model.ClientFilter) ([]*model.Client, error)
	Update(ctx context.Context, id string, req *model.UpdateClientRequest) (*model.Client, error)
	Delete(ctx context.Context, id string) error
	CountWorkshops(ctx context.Context, id string) (int, error)
}

// ClientService manages the organizations workshops are run for
type ClientService struct {
	repo ClientRepository
}

// ClientServiceConfig holds configuration for the client service
type ClientServiceConfig struct {
	Repo ClientRepository
}

// NewClientService creates a new client service
func NewClientService(cfg ClientServiceConfig) *ClientService {
	return &ClientService{repo: cfg.Repo}
}

// List returns clients matching the filter
func (s *ClientService) List(ctx context.Context, filter model.ClientFilter) ([]*model.Client, error) {
	return s.repo.List(ctx, filter)
}

// Get retrieves a client
func (s *ClientService) Get(ctx context.Context, id string) (*model.Client, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// Create creates an active client
func (s *ClientService) Create(ctx context.Context, req *model.CreateClientRequest) (*model.Client, error) {
	client := &model.Client{
		Name:         strings.TrimSpace(req.Name),
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
		Active:       true,
	}

	if err := s.repo.Create(ctx, client); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrClientNameExists
		}
		return nil, err
	}
	return client, nil
}

// Update applies a partial update. Setting active=false deactivates the
// client.
func (s *ClientService) Update(ctx context.Context, id string, req *model.UpdateClientRequest) (*model.Client, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}

	client, err := s.repo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrClientNameExists
		}
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// Delete removes a client no workshop references
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.CountWorkshops(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrClientInUse
	}
	return s.repo.Delete(ctx, id)
}

// RequireActive returns the client if it exists and is active
func (s *ClientService) RequireActive(ctx context.Context, id string) (*model.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !client.Active {
		return nil, ErrClientInactive
	}
	return client, nil
}
