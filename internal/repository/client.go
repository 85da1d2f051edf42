package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// ClientRepository handles client data access
type ClientRepository struct {
	db database.Database
}

// NewClientRepository creates a new client repository
func NewClientRepository(db database.Database) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create creates a new client
func (r *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	sc := newSetClause().
		set("name", client.Name).
		set("active", client.Active).
		optString("contact_name", client.ContactName).
		optString("contact_email", client.ContactEmail).
		optString("notes", client.Notes).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE client SET "+sc.String(), sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: client name already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	client.ID = created.ID
	client.CreatedOn = created.CreatedOn
	client.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*model.Client, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.Client](nil, err)
	}
	client, err := parseClientResult(result)
	return notFoundToNil(client, err)
}

// List returns clients matching the filter, ordered by name
func (r *ClientRepository) List(ctx context.Context, filter model.ClientFilter) ([]*model.Client, error) {
	query := `SELECT * FROM client WHERE true`
	vars := map[string]interface{}{
		"limit":  pageLimit(filter.Limit),
		"offset": filter.Offset,
	}

	if filter.Active != nil {
		query += ` AND active = $active`
		vars["active"] = *filter.Active
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query += ` AND string::lowercase(name) CONTAINS $search`
		vars["search"] = strings.ToLower(s)
	}
	query += ` ORDER BY name ASC LIMIT $limit START $offset`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	clients := make([]*model.Client, 0)
	eachRecord(result, func(item interface{}) {
		if c, err := parseClientResult(item); err == nil {
			clients = append(clients, c)
		}
	})
	return clients, nil
}

// Update applies a partial update and returns the updated client
func (r *ClientRepository) Update(ctx context.Context, id string, req *model.UpdateClientRequest) (*model.Client, error) {
	sc := newSetClause().
		optString("name", req.Name).
		clearable("contact_name", req.ContactName).
		clearable("contact_email", req.ContactEmail).
		clearable("notes", req.Notes)
	if req.Active != nil {
		sc.set("active", *req.Active)
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	result, err := r.db.QueryOne(ctx, "UPDATE type::record($id) SET "+sc.String()+" RETURN AFTER", sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: client name already exists", database.ErrDuplicate)
		}
		return notFoundToNil[model.Client](nil, err)
	}
	client, err := parseClientResult(result)
	return notFoundToNil(client, err)
}

// Delete deletes a client
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE type::record($id)`, map[string]interface{}{"id": id})
}

// CountWorkshops counts workshops that reference the client
func (r *ClientRepository) CountWorkshops(ctx context.Context, id string) (int, error) {
	query := `SELECT count() AS count FROM workshop WHERE client_id = type::record($id) GROUP ALL`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return 0, err
	}
	return extractCount(result), nil
}

func parseClientResult(result interface{}) (*model.Client, error) {
	var client model.Client
	data, err := decodeRecord(result, &client)
	if err != nil {
		return nil, err
	}
	setTime(data, "created_on", &client.CreatedOn)
	setTime(data, "updated_on", &client.UpdatedOn)
	return &client, nil
}
