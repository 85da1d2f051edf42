package repository

import (
	"context"
	"fmt"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// seatGuard aborts the surrounding transaction when the workshop has no
// seat left. $allowance lets an admin overflow capacity.
const seatGuard = `
	LET $cap = (SELECT VALUE capacity FROM ONLY type::record($workshop_id));
	LET $taken = count((SELECT id FROM participation WHERE workshop_id = type::record($workshop_id) AND ` + seatHolderCondition + `));
	IF $taken >= $cap + $allowance { THROW "` + database.LimitExceededMarker + `: workshop is full" };
`

// participationProjection joins the workshop and user fields shown in listings
const participationProjection = `*,
	workshop_id.title AS workshop_title,
	workshop_id.starts_at AS workshop_starts_at,
	user_id.email AS user_email,
	user_id.firstname AS user_firstname,
	user_id.lastname AS user_lastname`

// ParticipationRepository handles participation data access
type ParticipationRepository struct {
	db database.Database
}

// NewParticipationRepository creates a new participation repository
func NewParticipationRepository(db database.Database) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

// RegisterSeat creates a registered participant row if a seat is free.
// A full workshop yields database.ErrLimitExceeded.
func (r *ParticipationRepository) RegisterSeat(ctx context.Context, p *model.Participation) error {
	query := `BEGIN TRANSACTION;` + seatGuard + `
		CREATE participation SET
			workshop_id = type::record($workshop_id),
			user_id = type::record($user_id),
			role = "participant",
			status = "registered",
			registered_on = time::now(),
			updated_on = time::now();
		COMMIT TRANSACTION;`
	vars := map[string]interface{}{
		"workshop_id": p.WorkshopID,
		"user_id":     p.UserID,
		"allowance":   0,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: already registered", database.ErrDuplicate)
		}
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	p.ID = created.ID
	p.Role = model.ParticipationRoleParticipant
	p.Status = model.ParticipationStatusRegistered
	p.RegisteredOn = created.CreatedOn
	p.UpdatedOn = created.UpdatedOn
	return nil
}

// ReactivateSeat turns a cancelled row back into a registration if a seat
// is free.
func (r *ParticipationRepository) ReactivateSeat(ctx context.Context, id, workshopID string) (*model.Participation, error) {
	query := `BEGIN TRANSACTION;` + seatGuard + `
		UPDATE type::record($id) SET
			role = "participant",
			status = "registered",
			feedback_rating = NONE,
			feedback_comment = NONE,
			feedback_on = NONE,
			registered_on = time::now(),
			updated_on = time::now();
		COMMIT TRANSACTION;`
	vars := map[string]interface{}{
		"id":          id,
		"workshop_id": workshopID,
		"allowance":   0,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	data := lastRecord(result)
	if data == nil {
		return nil, nil
	}
	return parseParticipationResult(data)
}

// AddAnimator adds (or turns) a user into an animator of the workshop and
// takes them off its waiting list. Animators do not take a seat. A row whose
// attendance is already recorded is left alone and yields
// database.ErrConflict.
func (r *ParticipationRepository) AddAnimator(ctx context.Context, workshopID, userID string) (*model.Participation, error) {
	query := `BEGIN TRANSACTION;
		LET $existing = (SELECT id, status FROM participation
			WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) LIMIT 1)[0];
		IF $existing != NONE AND $existing.status IN ["attended", "no_show"] {
			THROW "` + database.ConflictMarker + `: attendance already recorded"
		};
		IF $existing != NONE {
			UPDATE $existing.id SET role = "animator", status = "registered", updated_on = time::now();
		} ELSE {
			CREATE participation SET
				workshop_id = type::record($workshop_id),
				user_id = type::record($user_id),
				role = "animator",
				status = "registered",
				registered_on = time::now(),
				updated_on = time::now();
		};
		UPDATE waitlist_entry SET status = "removed", updated_on = time::now()
			WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) AND status = "waiting";
		COMMIT TRANSACTION;
		SELECT ` + participationProjection + ` FROM participation
			WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) LIMIT 1;
	`
	vars := map[string]interface{}{"workshop_id": workshopID, "user_id": userID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	rows := lastStatementRecords(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseParticipationResult(rows[0])
}

// GetByID retrieves a participation
func (r *ParticipationRepository) GetByID(ctx context.Context, id string) (*model.Participation, error) {
	query := `SELECT ` + participationProjection + ` FROM type::record($id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.Participation](nil, err)
	}
	p, err := parseParticipationResult(result)
	return notFoundToNil(p, err)
}

// GetByWorkshopAndUser retrieves the user's row for a workshop, in any status
func (r *ParticipationRepository) GetByWorkshopAndUser(ctx context.Context, workshopID, userID string) (*model.Participation, error) {
	query := `SELECT ` + participationProjection + ` FROM participation
		WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"workshop_id": workshopID, "user_id": userID})
	if err != nil {
		return notFoundToNil[model.Participation](nil, err)
	}
	p, err := parseParticipationResult(result)
	return notFoundToNil(p, err)
}

// ListByWorkshop returns a workshop's participations, optionally narrowed
// to the given statuses
func (r *ParticipationRepository) ListByWorkshop(ctx context.Context, workshopID string, statuses ...model.ParticipationStatus) ([]*model.Participation, error) {
	query := `SELECT ` + participationProjection + ` FROM participation WHERE workshop_id = type::record($workshop_id)`
	vars := map[string]interface{}{"workshop_id": workshopID}
	if len(statuses) > 0 {
		query += ` AND status IN $statuses`
		vars["statuses"] = statusStrings(statuses)
	}
	query += ` ORDER BY registered_on ASC`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseParticipationsResult(result), nil
}

// ListByUser returns a user's participations with workshop details
func (r *ParticipationRepository) ListByUser(ctx context.Context, userID string, filter model.ParticipationFilter) ([]*model.Participation, error) {
	query := `SELECT ` + participationProjection + ` FROM participation WHERE user_id = type::record($user_id)`
	vars := map[string]interface{}{
		"user_id": userID,
		"limit":   pageLimit(filter.Limit),
		"offset":  filter.Offset,
	}

	if filter.Status != nil {
		query += ` AND status = $status`
		vars["status"] = string(*filter.Status)
	}
	order := "ASC"
	switch filter.When {
	case model.ParticipationWhenUpcoming:
		query += ` AND workshop_id.starts_at >= time::now()`
	case model.ParticipationWhenPast:
		query += ` AND workshop_id.starts_at < time::now()`
		order = "DESC"
	}
	query += ` ORDER BY workshop_starts_at ` + order + ` LIMIT $limit START $offset`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseParticipationsResult(result), nil
}

// SetStatus changes a participation's status
func (r *ParticipationRepository) SetStatus(ctx context.Context, id string, status model.ParticipationStatus) error {
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id, "status": string(status)})
}

// MarkAttendance records attendance and optionally the role played
func (r *ParticipationRepository) MarkAttendance(ctx context.Context, id string, status model.ParticipationStatus, role *model.ParticipationRole) (*model.Participation, error) {
	sc := newSetClause().set("status", string(status))
	if role != nil {
		sc.set("role", string(*role))
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	if err := r.db.Execute(ctx, "UPDATE type::record($id) SET "+sc.String(), sc.vars); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SaveFeedback stores a rating and comment. Rows that already carry
// feedback are left untouched and reported as (nil, nil).
func (r *ParticipationRepository) SaveFeedback(ctx context.Context, id string, rating int, comment *string) (*model.Participation, error) {
	sc := newSetClause().
		set("feedback_rating", rating).
		optString("feedback_comment", comment).
		raw("feedback_on = time::now()").
		raw("updated_on = time::now()")
	sc.vars["id"] = id

	query := "UPDATE type::record($id) SET " + sc.String() + " WHERE feedback_rating = NONE RETURN AFTER"
	result, err := r.db.Query(ctx, query, sc.vars)
	if err != nil {
		return nil, err
	}
	if len(lastStatementRecords(result)) == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func statusStrings(statuses []model.ParticipationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func parseParticipationResult(result interface{}) (*model.Participation, error) {
	var p model.Participation
	data, err := decodeRecord(result, &p, "workshop_id", "user_id")
	if err != nil {
		return nil, err
	}

	p.FeedbackOn = getTime(data, "feedback_on")
	setTime(data, "registered_on", &p.RegisteredOn)
	setTime(data, "updated_on", &p.UpdatedOn)
	p.WorkshopStartsAt = getTime(data, "workshop_starts_at")

	first, last := getString(data, "user_firstname"), getString(data, "user_lastname")
	if first != "" || last != "" {
		u := model.User{Firstname: &first, Lastname: &last}
		name := u.DisplayName()
		p.UserName = &name
	}

	return &p, nil
}

func parseParticipationsResult(result []interface{}) []*model.Participation {
	participations := make([]*model.Participation, 0)
	eachRecord(result, func(item interface{}) {
		if p, err := parseParticipationResult(item); err == nil {
			participations = append(participations, p)
		}
	})
	return participations
}
