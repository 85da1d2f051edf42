package repository

import (
	"context"
	"fmt"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// RoleLevelRepository handles certification levels, their requirements
// and the activity they are measured against
type RoleLevelRepository struct {
	db database.Database
}

// NewRoleLevelRepository creates a new role level repository
func NewRoleLevelRepository(db database.Database) *RoleLevelRepository {
	return &RoleLevelRepository{db: db}
}

// ===== Levels =====

// CreateLevel creates a level
func (r *RoleLevelRepository) CreateLevel(ctx context.Context, level *model.RoleLevel) error {
	sc := newSetClause().
		set("name", level.Name).
		set("rank", level.Rank).
		optString("description", level.Description).
		optString("color", level.Color).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE role_level SET "+sc.String(), sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: level name or rank already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	level.ID = created.ID
	level.CreatedOn = created.CreatedOn
	level.UpdatedOn = created.UpdatedOn
	return nil
}

// GetLevel retrieves a level with its requirements
func (r *RoleLevelRepository) GetLevel(ctx context.Context, id string) (*model.RoleLevel, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.RoleLevel](nil, err)
	}
	level, err := parseLevelResult(result)
	if err != nil {
		return notFoundToNil(level, err)
	}

	reqs, err := r.ListRequirements(ctx, level.ID)
	if err != nil {
		return nil, err
	}
	level.Requirements = reqs
	return level, nil
}

// GetLevelByName looks a level up by its unique name
func (r *RoleLevelRepository) GetLevelByName(ctx context.Context, name string) (*model.RoleLevel, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM role_level WHERE name = $name LIMIT 1`, map[string]interface{}{"name": name})
	if err != nil {
		return notFoundToNil[model.RoleLevel](nil, err)
	}
	level, err := parseLevelResult(result)
	return notFoundToNil(level, err)
}

// ListLevels returns the whole ladder ordered by rank, requirements attached
func (r *RoleLevelRepository) ListLevels(ctx context.Context) ([]*model.RoleLevel, error) {
	query := `
		SELECT * FROM role_level ORDER BY rank ASC;
		SELECT * FROM role_requirement;
	`
	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return []*model.RoleLevel{}, nil
	}

	levels := make([]*model.RoleLevel, 0)
	eachRecord(result[:1], func(item interface{}) {
		if l, err := parseLevelResult(item); err == nil {
			levels = append(levels, l)
		}
	})

	byLevel := make(map[string][]model.RoleRequirement)
	eachRecord(result[1:], func(item interface{}) {
		if req, err := parseRequirementResult(item); err == nil {
			byLevel[req.LevelID] = append(byLevel[req.LevelID], *req)
		}
	})
	for _, l := range levels {
		l.Requirements = byLevel[l.ID]
	}
	return levels, nil
}

// UpdateLevel applies a partial update
func (r *RoleLevelRepository) UpdateLevel(ctx context.Context, id string, req *model.UpdateLevelRequest) (*model.RoleLevel, error) {
	sc := newSetClause().
		optString("name", req.Name).
		clearable("description", req.Description).
		clearable("color", req.Color)
	if req.Rank != nil {
		sc.set("rank", *req.Rank)
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	if err := r.db.Execute(ctx, "UPDATE type::record($id) SET "+sc.String(), sc.vars); err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: level name or rank already exists", database.ErrDuplicate)
		}
		return nil, err
	}
	return r.GetLevel(ctx, id)
}

// DeleteLevel removes a level and its requirements atomically
func (r *RoleLevelRepository) DeleteLevel(ctx context.Context, id string) error {
	vars := map[string]interface{}{"id": id}
	return database.NewAtomicBatch().
		Add(`DELETE role_requirement WHERE level_id = type::record($id)`, vars).
		Add(`DELETE type::record($id)`, vars).
		Execute(ctx, r.db)
}

// CountLevelReferences counts workshop types gated on a level and users
// granted it
func (r *RoleLevelRepository) CountLevelReferences(ctx context.Context, id string) (types int, users int, err error) {
	query := `
		SELECT count() AS count FROM workshop_type WHERE required_level_id = type::record($id) GROUP ALL;
		SELECT count() AS count FROM user WHERE granted_level_id = type::record($id) GROUP ALL;
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return 0, 0, err
	}
	if len(result) < 2 {
		return 0, 0, nil
	}
	return extractCount(result[:1]), extractCount(result[1:]), nil
}

// ===== Requirements =====

// CreateRequirement adds a requirement to a level
func (r *RoleLevelRepository) CreateRequirement(ctx context.Context, req *model.RoleRequirement) error {
	sc := newSetClause().
		setRecord("level_id", req.LevelID).
		set("kind", string(req.Kind)).
		set("threshold", req.Threshold).
		optRecord("type_id", req.TypeID).
		optRecord("family_id", req.FamilyID).
		optString("description", req.Description)

	result, err := r.db.Query(ctx, "CREATE role_requirement SET "+sc.String(), sc.vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	req.ID = created.ID
	return nil
}

// GetRequirement retrieves a requirement
func (r *RoleLevelRepository) GetRequirement(ctx context.Context, id string) (*model.RoleRequirement, error) {
	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.RoleRequirement](nil, err)
	}
	req, err := parseRequirementResult(result)
	return notFoundToNil(req, err)
}

// ListRequirements returns a level's requirements
func (r *RoleLevelRepository) ListRequirements(ctx context.Context, levelID string) ([]model.RoleRequirement, error) {
	query := `SELECT * FROM role_requirement WHERE level_id = type::record($level_id)`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"level_id": levelID})
	if err != nil {
		return nil, err
	}

	reqs := make([]model.RoleRequirement, 0)
	eachRecord(result, func(item interface{}) {
		if req, err := parseRequirementResult(item); err == nil {
			reqs = append(reqs, *req)
		}
	})
	return reqs, nil
}

// DeleteRequirement removes a requirement
func (r *RoleLevelRepository) DeleteRequirement(ctx context.Context, id string) error {
	return r.db.Execute(ctx, `DELETE type::record($id)`, map[string]interface{}{"id": id})
}

// ===== Activity =====

// ActivityRecords returns every non-cancelled participation of a user
// joined with the type and family of its workshop
func (r *RoleLevelRepository) ActivityRecords(ctx context.Context, userID string) ([]model.ActivityRecord, error) {
	query := `
		SELECT
			id,
			role,
			status,
			feedback_rating != NONE AS has_feedback,
			workshop_id.type_id AS type_id,
			workshop_id.type_id.family_id AS family_id,
			workshop_id.type_id.is_training AS is_training
		FROM participation
		WHERE user_id = type::record($user_id) AND status != "cancelled"
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	records := make([]model.ActivityRecord, 0)
	eachRecord(result, func(item interface{}) {
		data, ok := item.(map[string]interface{})
		if !ok {
			return
		}
		records = append(records, model.ActivityRecord{
			ParticipationID: convertSurrealID(data["id"]),
			Role:            model.ParticipationRole(getString(data, "role")),
			Status:          model.ParticipationStatus(getString(data, "status")),
			HasFeedback:     getBool(data, "has_feedback"),
			TypeID:          convertSurrealID(data["type_id"]),
			FamilyID:        convertSurrealID(data["family_id"]),
			IsTraining:      getBool(data, "is_training"),
		})
	})
	return records, nil
}

func parseLevelResult(result interface{}) (*model.RoleLevel, error) {
	var level model.RoleLevel
	data, err := decodeRecord(result, &level)
	if err != nil {
		return nil, err
	}
	setTime(data, "created_on", &level.CreatedOn)
	setTime(data, "updated_on", &level.UpdatedOn)
	return &level, nil
}

func parseRequirementResult(result interface{}) (*model.RoleRequirement, error) {
	var req model.RoleRequirement
	if _, err := decodeRecord(result, &req, "level_id", "type_id", "family_id"); err != nil {
		return nil, err
	}
	return &req, nil
}
