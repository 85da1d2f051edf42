package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	role := user.Role
	if role == "" {
		role = model.UserRoleParticipant
	}

	sc := newSetClause().
		set("email", user.Email).
		set("role", string(role)).
		set("email_verified", user.EmailVerified).
		optString("username", user.Username).
		optString("hash", user.Hash).
		optString("firstname", user.Firstname).
		optString("lastname", user.Lastname).
		optRecord("client_id", user.ClientID).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")

	result, err := r.db.Query(ctx, "CREATE user SET "+sc.String(), sc.vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already exists", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	user.ID = created.ID
	user.Role = role
	user.CreatedOn = created.CreatedOn
	user.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		return notFoundToNil[model.User](nil, err)
	}
	user, err := parseUserResult(result)
	return notFoundToNil(user, err)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM user WHERE email = $email LIMIT 1`
	vars := map[string]interface{}{"email": email}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		return notFoundToNil[model.User](nil, err)
	}
	user, err := parseUserResult(result)
	return notFoundToNil(user, err)
}

// GetByIDs retrieves several users at once, skipping unknown IDs
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	query := `SELECT * FROM user WHERE type::string(id) IN $ids`
	vars := map[string]interface{}{"ids": ids}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseUsersResult(result), nil
}

// List returns users matching the filter, ordered by email
func (r *UserRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	query := `SELECT * FROM user WHERE true`
	vars := map[string]interface{}{}

	if filter.Role != nil {
		query += ` AND role = $role`
		vars["role"] = string(*filter.Role)
	}
	if filter.ClientID != nil {
		query += ` AND client_id = type::record($client_id)`
		vars["client_id"] = *filter.ClientID
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query += ` AND (string::lowercase(email) CONTAINS $search
			OR string::lowercase(firstname ?? "") CONTAINS $search
			OR string::lowercase(lastname ?? "") CONTAINS $search
			OR string::lowercase(username ?? "") CONTAINS $search)`
		vars["search"] = strings.ToLower(s)
	}

	query += ` ORDER BY email ASC LIMIT $limit START $offset`
	vars["limit"] = pageLimit(filter.Limit)
	vars["offset"] = filter.Offset

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseUsersResult(result), nil
}

// Update updates a user's profile fields
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	sc := newSetClause().
		set("email", user.Email).
		set("email_verified", user.EmailVerified).
		clearable("username", user.Username).
		clearable("firstname", user.Firstname).
		clearable("lastname", user.Lastname).
		raw("updated_on = time::now()")
	sc.vars["id"] = user.ID

	return r.db.Execute(ctx, "UPDATE type::record($id) SET "+sc.String(), sc.vars)
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	query := `UPDATE type::record($id) SET hash = $hash, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":   userID,
		"hash": hash,
	}

	return r.db.Execute(ctx, query, vars)
}

// TouchLogin records a successful login
func (r *UserRepository) TouchLogin(ctx context.Context, userID string) error {
	query := `UPDATE type::record($id) SET login_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": userID})
}

// SetRole updates a user's role
func (r *UserRepository) SetRole(ctx context.Context, userID string, role model.UserRole) error {
	query := `UPDATE type::record($id) SET role = $role, updated_on = time::now()`
	vars := map[string]interface{}{
		"id":   userID,
		"role": string(role),
	}

	return r.db.Execute(ctx, query, vars)
}

// SetClient attaches the user to a client, or detaches when clientID is nil
func (r *UserRepository) SetClient(ctx context.Context, userID string, clientID *string) error {
	return r.setLink(ctx, userID, "client_id", clientID)
}

// SetGrantedLevel records an admin level grant, or clears it when levelID is nil
func (r *UserRepository) SetGrantedLevel(ctx context.Context, userID string, levelID *string) error {
	return r.setLink(ctx, userID, "granted_level_id", levelID)
}

func (r *UserRepository) setLink(ctx context.Context, userID, field string, target *string) error {
	vars := map[string]interface{}{"id": userID}
	expr := field + " = NONE"
	if target != nil {
		expr = field + " = type::record($target)"
		vars["target"] = *target
	}
	return r.db.Execute(ctx, "UPDATE type::record($id) SET "+expr+", updated_on = time::now()", vars)
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE type::record($id)`
	vars := map[string]interface{}{"id": id}

	return r.db.Execute(ctx, query, vars)
}

func parseUserResult(result interface{}) (*model.User, error) {
	var user model.User
	data, err := decodeRecord(result, &user, "client_id", "granted_level_id")
	if err != nil {
		return nil, err
	}

	// Hash is skipped by json:"-"
	user.Hash = getStringPtr(data, "hash")
	setTime(data, "created_on", &user.CreatedOn)
	setTime(data, "updated_on", &user.UpdatedOn)
	user.LoginOn = getTime(data, "login_on")

	return &user, nil
}

func parseUsersResult(result []interface{}) []*model.User {
	users := make([]*model.User, 0)
	eachRecord(result, func(item interface{}) {
		if u, err := parseUserResult(item); err == nil {
			users = append(users, u)
		}
	})
	return users
}

// pageLimit clamps a requested page size
func pageLimit(limit int) int {
	if limit <= 0 {
		return model.DefaultPageLimit
	}
	if limit > model.MaxPageLimit {
		return model.MaxPageLimit
	}
	return limit
}
