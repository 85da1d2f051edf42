package repository

import (
	"context"
	"fmt"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// CatalogRepository handles workshop families and types
type CatalogRepository struct {
	db database.Database
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db database.Database) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ===== Families =====

// CreateFamily creates a workshop family
func (r *CatalogRepository) CreateFamily(ctx context.Context, family *model.WorkshopFamily) error {
	sc := newSetClause().
		set("name", family.Name).
		set("sort_order", family.SortOrder).
		optString("description", family.Description).
		optString("color", family.Color).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE workshop_family SET "+sc.String(), sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: family name already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	family.ID = created.ID
	family.CreatedOn = created.CreatedOn
	family.UpdatedOn = created.UpdatedOn
	return nil
}

// GetFamily retrieves a family by ID
func (r *CatalogRepository) GetFamily(ctx context.Context, id string) (*model.WorkshopFamily, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.WorkshopFamily](nil, err)
	}
	family, err := parseFamilyResult(result)
	return notFoundToNil(family, err)
}

// GetFamilyByName looks a family up by its unique name
func (r *CatalogRepository) GetFamilyByName(ctx context.Context, name string) (*model.WorkshopFamily, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM workshop_family WHERE name = $name LIMIT 1`, map[string]interface{}{"name": name})
	if err != nil {
		return notFoundToNil[model.WorkshopFamily](nil, err)
	}
	family, err := parseFamilyResult(result)
	return notFoundToNil(family, err)
}

// ListFamilies returns all families ordered for display
func (r *CatalogRepository) ListFamilies(ctx context.Context) ([]*model.WorkshopFamily, error) {
	result, err := r.db.Query(ctx, `SELECT * FROM workshop_family ORDER BY sort_order ASC, name ASC`, nil)
	if err != nil {
		return nil, err
	}

	families := make([]*model.WorkshopFamily, 0)
	eachRecord(result, func(item interface{}) {
		if f, err := parseFamilyResult(item); err == nil {
			families = append(families, f)
		}
	})
	return families, nil
}

// UpdateFamily applies a partial update
func (r *CatalogRepository) UpdateFamily(ctx context.Context, id string, req *model.UpdateFamilyRequest) (*model.WorkshopFamily, error) {
	sc := newSetClause().
		optString("name", req.Name).
		clearable("description", req.Description).
		clearable("color", req.Color)
	if req.SortOrder != nil {
		sc.set("sort_order", *req.SortOrder)
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	result, err := r.db.QueryOne(ctx, "UPDATE type::record($id) SET "+sc.String()+" RETURN AFTER", sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: family name already exists", database.ErrDuplicate)
		}
		return notFoundToNil[model.WorkshopFamily](nil, err)
	}
	family, err := parseFamilyResult(result)
	return notFoundToNil(family, err)
}

// DeleteFamily deletes a family
func (r *CatalogRepository) DeleteFamily(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE type::record($id)`, map[string]interface{}{"id": id})
}

// CountTypesInFamily counts the types belonging to a family
func (r *CatalogRepository) CountTypesInFamily(ctx context.Context, familyID string) (int, error) {
	query := `SELECT count() AS count FROM workshop_type WHERE family_id = type::record($id) GROUP ALL`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": familyID})
	if err != nil {
		return 0, err
	}
	return extractCount(result), nil
}

// ===== Types =====

// CreateType creates a workshop type
func (r *CatalogRepository) CreateType(ctx context.Context, wt *model.WorkshopType) error {
	sc := newSetClause().
		setRecord("family_id", wt.FamilyID).
		set("name", wt.Name).
		set("duration_mins", wt.DurationMins).
		set("default_capacity", wt.DefaultCapacity).
		set("is_training", wt.IsTraining).
		set("active", wt.Active).
		optString("description", wt.Description).
		optRecord("required_level_id", wt.RequiredLevelID).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE workshop_type SET "+sc.String(), sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: type name already exists in family", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	wt.ID = created.ID
	wt.CreatedOn = created.CreatedOn
	wt.UpdatedOn = created.UpdatedOn
	return nil
}

// GetType retrieves a type by ID
func (r *CatalogRepository) GetType(ctx context.Context, id string) (*model.WorkshopType, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.WorkshopType](nil, err)
	}
	wt, err := parseTypeResult(result)
	return notFoundToNil(wt, err)
}

// GetTypeByName looks a type up by family and name
func (r *CatalogRepository) GetTypeByName(ctx context.Context, familyID, name string) (*model.WorkshopType, error) {
	query := `SELECT * FROM workshop_type WHERE family_id = type::record($family_id) AND name = $name LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"family_id": familyID, "name": name})
	if err != nil {
		return notFoundToNil[model.WorkshopType](nil, err)
	}
	wt, err := parseTypeResult(result)
	return notFoundToNil(wt, err)
}

// ListTypes returns the types of a family. Inactive types are included
// only when includeInactive is set.
func (r *CatalogRepository) ListTypes(ctx context.Context, familyID string, includeInactive bool) ([]*model.WorkshopType, error) {
	query := `SELECT * FROM workshop_type WHERE family_id = type::record($family_id)`
	if !includeInactive {
		query += ` AND active = true`
	}
	query += ` ORDER BY name ASC`

	result, err := r.db.Query(ctx, query, map[string]interface{}{"family_id": familyID})
	if err != nil {
		return nil, err
	}

	types := make([]*model.WorkshopType, 0)
	eachRecord(result, func(item interface{}) {
		if t, err := parseTypeResult(item); err == nil {
			types = append(types, t)
		}
	})
	return types, nil
}

// UpdateType applies a partial update
func (r *CatalogRepository) UpdateType(ctx context.Context, id string, req *model.UpdateTypeRequest) (*model.WorkshopType, error) {
	sc := newSetClause().
		optString("name", req.Name).
		clearable("description", req.Description).
		optRecord("required_level_id", req.RequiredLevelID)
	if req.ClearRequiredLevel {
		sc.raw("required_level_id = NONE")
	}
	if req.DurationMins != nil {
		sc.set("duration_mins", *req.DurationMins)
	}
	if req.DefaultCapacity != nil {
		sc.set("default_capacity", *req.DefaultCapacity)
	}
	if req.IsTraining != nil {
		sc.set("is_training", *req.IsTraining)
	}
	if req.Active != nil {
		sc.set("active", *req.Active)
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	result, err := r.db.QueryOne(ctx, "UPDATE type::record($id) SET "+sc.String()+" RETURN AFTER", sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: type name already exists in family", database.ErrDuplicate)
		}
		return notFoundToNil[model.WorkshopType](nil, err)
	}
	wt, err := parseTypeResult(result)
	return notFoundToNil(wt, err)
}

// DeleteType deletes a type
func (r *CatalogRepository) DeleteType(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE type::record($id)`, map[string]interface{}{"id": id})
}

// CountWorkshopsOfType counts workshops scheduled from a type
func (r *CatalogRepository) CountWorkshopsOfType(ctx context.Context, typeID string) (int, error) {
	query := `SELECT count() AS count FROM workshop WHERE type_id = type::record($id) GROUP ALL`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": typeID})
	if err != nil {
		return 0, err
	}
	return extractCount(result), nil
}

func parseFamilyResult(result interface{}) (*model.WorkshopFamily, error) {
	var family model.WorkshopFamily
	data, err := decodeRecord(result, &family)
	if err != nil {
		return nil, err
	}
	setTime(data, "created_on", &family.CreatedOn)
	setTime(data, "updated_on", &family.UpdatedOn)
	return &family, nil
}

func parseTypeResult(result interface{}) (*model.WorkshopType, error) {
	var wt model.WorkshopType
	data, err := decodeRecord(result, &wt, "family_id", "required_level_id")
	if err != nil {
		return nil, err
	}
	setTime(data, "created_on", &wt.CreatedOn)
	setTime(data, "updated_on", &wt.UpdatedOn)
	return &wt, nil
}
