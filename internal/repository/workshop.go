package repository

import (
	"context"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// Seats are held by participants in an active status. Animators do not
// consume seats.
const seatHolderCondition = `role = "participant" AND status IN ["registered", "attended"]`

// workshopProjection selects a workshop with its derived counts
const workshopProjection = `*,
	type_id.name AS type_name,
	count((SELECT id FROM participation WHERE workshop_id = $parent.id AND ` + seatHolderCondition + `)) AS registered_count,
	count((SELECT id FROM waitlist_entry WHERE workshop_id = $parent.id AND status = "waiting")) AS waitlist_count`

// WorkshopRepository handles workshop data access
type WorkshopRepository struct {
	db database.Database
}

// NewWorkshopRepository creates a new workshop repository
func NewWorkshopRepository(db database.Database) *WorkshopRepository {
	return &WorkshopRepository{db: db}
}

func workshopCreateClause(w *model.Workshop) *setClause {
	status := w.Status
	if status == "" {
		status = model.WorkshopStatusDraft
	}
	return newSetClause().
		setRecord("type_id", w.TypeID).
		set("title", w.Title).
		set("is_online", w.IsOnline).
		setDatetime("starts_at", w.StartsAt).
		setDatetime("ends_at", w.EndsAt).
		set("capacity", w.Capacity).
		set("status", string(status)).
		setRecord("created_by", w.CreatedBy).
		raw("organizer_ids = [type::record($created_by)]").
		optRecord("client_id", w.ClientID).
		optString("series_id", w.SeriesID).
		optString("description", w.Description).
		optString("location", w.Location).
		optString("meeting_url", w.MeetingURL).
		raw("created_on = time::now()").
		raw("updated_on = time::now()")
}

// Create creates a workshop; the creator becomes its first organizer
func (r *WorkshopRepository) Create(ctx context.Context, w *model.Workshop) error {
	sc := workshopCreateClause(w)
	result, err := r.db.Query(ctx, "CREATE workshop SET "+sc.String(), sc.vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	w.ID = created.ID
	w.Status = model.WorkshopStatus(sc.vars["status"].(string))
	w.OrganizerIDs = []string{w.CreatedBy}
	w.CreatedOn = created.CreatedOn
	w.UpdatedOn = created.UpdatedOn
	w.ComputeSeats()
	return nil
}

// CreateMany creates all workshops in a single transaction, filling in
// their IDs in order.
func (r *WorkshopRepository) CreateMany(ctx context.Context, workshops []*model.Workshop) error {
	tb := database.NewTxBuilder()
	for _, w := range workshops {
		sc := workshopCreateClause(w)
		tb.Add("CREATE workshop SET "+sc.String(), sc.vars)
	}

	result, err := database.ExecuteTransaction(ctx, r.db, tb)
	if err != nil {
		return err
	}

	i := 0
	eachRecord(result, func(item interface{}) {
		if i >= len(workshops) {
			return
		}
		data, ok := item.(map[string]interface{})
		if !ok {
			return
		}
		w := workshops[i]
		w.ID = convertSurrealID(data["id"])
		w.Status = model.WorkshopStatus(getString(data, "status"))
		w.OrganizerIDs = []string{w.CreatedBy}
		setTime(data, "created_on", &w.CreatedOn)
		setTime(data, "updated_on", &w.UpdatedOn)
		w.ComputeSeats()
		i++
	})
	return nil
}

// GetByID retrieves a workshop with its counts
func (r *WorkshopRepository) GetByID(ctx context.Context, id string) (*model.Workshop, error) {
	query := `SELECT ` + workshopProjection + ` FROM type::record($id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.Workshop](nil, err)
	}
	w, _, err := parseWorkshopResult(result)
	return notFoundToNil(w, err)
}

// GetDetail retrieves a workshop together with its type name
func (r *WorkshopRepository) GetDetail(ctx context.Context, id string) (*model.WorkshopDetail, error) {
	query := `SELECT ` + workshopProjection + ` FROM type::record($id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.WorkshopDetail](nil, err)
	}
	w, data, err := parseWorkshopResult(result)
	if err != nil {
		return notFoundToNil[model.WorkshopDetail](nil, err)
	}
	return &model.WorkshopDetail{Workshop: *w, TypeName: getString(data, "type_name")}, nil
}

// List returns workshops matching the filter, soonest first
func (r *WorkshopRepository) List(ctx context.Context, filter model.WorkshopFilter) ([]*model.Workshop, error) {
	query := `SELECT ` + workshopProjection + ` FROM workshop WHERE true`
	vars := map[string]interface{}{
		"limit":  filter.EffectiveLimit(),
		"offset": filter.Offset,
	}

	if filter.FamilyID != "" {
		query += ` AND type_id.family_id = type::record($family_id)`
		vars["family_id"] = filter.FamilyID
	}
	if filter.TypeID != "" {
		query += ` AND type_id = type::record($type_id)`
		vars["type_id"] = filter.TypeID
	}
	if filter.ClientID != "" {
		query += ` AND client_id = type::record($client_id)`
		vars["client_id"] = filter.ClientID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += ` AND status IN $statuses`
		vars["statuses"] = statuses
	}
	if filter.From != nil {
		query += ` AND starts_at >= <datetime>$from`
		vars["from"] = filter.From.UTC().Format(time.RFC3339)
	}
	if filter.To != nil {
		query += ` AND starts_at < <datetime>$to`
		vars["to"] = filter.To.UTC().Format(time.RFC3339)
	}
	if filter.Online != nil {
		query += ` AND is_online = $online`
		vars["online"] = *filter.Online
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query += ` AND (string::lowercase(title) CONTAINS $q OR string::lowercase(description ?? "") CONTAINS $q)`
		vars["q"] = strings.ToLower(q)
	}
	if filter.AvailableOnly {
		query += ` AND count((SELECT id FROM participation WHERE workshop_id = $parent.id AND ` + seatHolderCondition + `)) < capacity`
	}

	query += ` ORDER BY starts_at ASC LIMIT $limit START $offset`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseWorkshopsResult(result), nil
}

// ListSeries returns the workshops of a series in date order
func (r *WorkshopRepository) ListSeries(ctx context.Context, seriesID string) ([]*model.Workshop, error) {
	query := `SELECT ` + workshopProjection + ` FROM workshop WHERE series_id = $series_id ORDER BY starts_at ASC`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"series_id": seriesID})
	if err != nil {
		return nil, err
	}
	return parseWorkshopsResult(result), nil
}

// Update applies a partial update and returns the refreshed workshop
func (r *WorkshopRepository) Update(ctx context.Context, id string, req *model.UpdateWorkshopRequest) (*model.Workshop, error) {
	sc := newSetClause().
		optString("title", req.Title).
		clearable("description", req.Description).
		clearable("location", req.Location).
		clearable("meeting_url", req.MeetingURL).
		optRecord("client_id", req.ClientID)
	if req.ClearClient {
		sc.raw("client_id = NONE")
	}
	if req.IsOnline != nil {
		sc.set("is_online", *req.IsOnline)
	}
	if req.StartsAt != nil {
		sc.setDatetime("starts_at", *req.StartsAt)
	}
	if req.EndsAt != nil {
		sc.setDatetime("ends_at", *req.EndsAt)
	}
	if req.Capacity != nil {
		sc.set("capacity", *req.Capacity)
	}
	sc.raw("updated_on = time::now()")
	sc.vars["id"] = id

	if err := r.db.Execute(ctx, "UPDATE type::record($id) SET "+sc.String(), sc.vars); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetStatus changes the workshop status
func (r *WorkshopRepository) SetStatus(ctx context.Context, id string, status model.WorkshopStatus) error {
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id, "status": string(status)})
}

// Cancel marks the workshop cancelled, cancels its registrations and
// expires its waiting list in one transaction.
func (r *WorkshopRepository) Cancel(ctx context.Context, id string) error {
	vars := map[string]interface{}{"id": id}
	return database.NewAtomicBatch().
		Add(`UPDATE type::record($id) SET status = "cancelled", updated_on = time::now()`, vars).
		Add(`UPDATE participation SET status = "cancelled", updated_on = time::now()
			WHERE workshop_id = type::record($id) AND status = "registered"`, vars).
		Add(`UPDATE waitlist_entry SET status = "expired", updated_on = time::now()
			WHERE workshop_id = type::record($id) AND status = "waiting"`, vars).
		Execute(ctx, r.db)
}

// AddOrganizer adds a user to the workshop's organizers
func (r *WorkshopRepository) AddOrganizer(ctx context.Context, id, userID string) error {
	query := `UPDATE type::record($id) SET organizer_ids = array::union(organizer_ids, [type::record($user_id)]), updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id, "user_id": userID})
}

// CompleteEnded moves every published workshop whose end has passed to
// completed and returns them.
func (r *WorkshopRepository) CompleteEnded(ctx context.Context, now time.Time) ([]*model.Workshop, error) {
	query := `
		UPDATE workshop SET status = "completed", updated_on = time::now()
		WHERE status = "published" AND ends_at <= <datetime>$now
		RETURN AFTER
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"now": now.UTC().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}
	return parseWorkshopsResult(result), nil
}

// ListNeedingReminder returns published workshops starting in (now, until]
// that have not been reminded yet.
func (r *WorkshopRepository) ListNeedingReminder(ctx context.Context, now, until time.Time) ([]*model.Workshop, error) {
	query := `SELECT ` + workshopProjection + ` FROM workshop
		WHERE status = "published"
			AND reminder_sent_on = NONE
			AND starts_at > <datetime>$now
			AND starts_at <= <datetime>$until
		ORDER BY starts_at ASC`
	vars := map[string]interface{}{
		"now":   now.UTC().Format(time.RFC3339),
		"until": until.UTC().Format(time.RFC3339),
	}
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseWorkshopsResult(result), nil
}

// MarkReminderSent records that the reminder went out
func (r *WorkshopRepository) MarkReminderSent(ctx context.Context, id string) error {
	query := `UPDATE type::record($id) SET reminder_sent_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id})
}

func parseWorkshopResult(result interface{}) (*model.Workshop, map[string]interface{}, error) {
	var w model.Workshop
	data, err := decodeRecord(result, &w, "type_id", "client_id", "organizer_ids", "created_by")
	if err != nil {
		return nil, nil, err
	}

	setTime(data, "starts_at", &w.StartsAt)
	setTime(data, "ends_at", &w.EndsAt)
	setTime(data, "created_on", &w.CreatedOn)
	setTime(data, "updated_on", &w.UpdatedOn)
	w.ReminderSentOn = getTime(data, "reminder_sent_on")
	w.RegisteredCount = getInt(data, "registered_count")
	w.WaitlistCount = getInt(data, "waitlist_count")
	if w.OrganizerIDs == nil {
		w.OrganizerIDs = []string{}
	}
	w.ComputeSeats()

	return &w, data, nil
}

func parseWorkshopsResult(result []interface{}) []*model.Workshop {
	workshops := make([]*model.Workshop, 0)
	eachRecord(result, func(item interface{}) {
		if w, _, err := parseWorkshopResult(item); err == nil {
			workshops = append(workshops, w)
		}
	})
	return workshops
}
