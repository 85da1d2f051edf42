package repository

import (
	"context"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// waitlistProjection derives the 1-based queue position of waiting entries
const waitlistProjection = `*,
	workshop_id.title AS workshop_title,
	workshop_id.starts_at AS workshop_starts_at,
	user_id.email AS user_email,
	(IF status = "waiting" THEN count((SELECT id FROM waitlist_entry
		WHERE workshop_id = $parent.workshop_id AND status = "waiting" AND created_on <= $parent.created_on))
	ELSE 0 END) AS position`

// WaitlistRepository handles waiting list data access
type WaitlistRepository struct {
	db database.Database
}

// NewWaitlistRepository creates a new waitlist repository
func NewWaitlistRepository(db database.Database) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// Create queues a user for a workshop
func (r *WaitlistRepository) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	query := `
		CREATE waitlist_entry SET
			workshop_id = type::record($workshop_id),
			user_id = type::record($user_id),
			status = "waiting",
			created_on = time::now(),
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"workshop_id": entry.WorkshopID,
		"user_id":     entry.UserID,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	entry.ID = created.ID
	entry.Status = model.WaitlistStatusWaiting
	entry.CreatedOn = created.CreatedOn
	entry.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByID retrieves a waitlist entry with its position
func (r *WaitlistRepository) GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM type::record($id)`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return notFoundToNil[model.WaitlistEntry](nil, err)
	}
	e, err := parseWaitlistResult(result)
	return notFoundToNil(e, err)
}

// GetWaiting returns the user's waiting entry for a workshop, if any
func (r *WaitlistRepository) GetWaiting(ctx context.Context, workshopID, userID string) (*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM waitlist_entry
		WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) AND status = "waiting"
		LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"workshop_id": workshopID, "user_id": userID})
	if err != nil {
		return notFoundToNil[model.WaitlistEntry](nil, err)
	}
	e, err := parseWaitlistResult(result)
	return notFoundToNil(e, err)
}

// ListWaiting returns a workshop's waiting entries in queue order
func (r *WaitlistRepository) ListWaiting(ctx context.Context, workshopID string) ([]*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM waitlist_entry
		WHERE workshop_id = type::record($workshop_id) AND status = "waiting"
		ORDER BY created_on ASC`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"workshop_id": workshopID})
	if err != nil {
		return nil, err
	}
	return parseWaitlistsResult(result), nil
}

// OldestWaiting returns the head of a workshop's queue
func (r *WaitlistRepository) OldestWaiting(ctx context.Context, workshopID string) (*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM waitlist_entry
		WHERE workshop_id = type::record($workshop_id) AND status = "waiting"
		ORDER BY created_on ASC LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"workshop_id": workshopID})
	if err != nil {
		return notFoundToNil[model.WaitlistEntry](nil, err)
	}
	e, err := parseWaitlistResult(result)
	return notFoundToNil(e, err)
}

// ListForUser returns a user's waiting entries, soonest workshop first
func (r *WaitlistRepository) ListForUser(ctx context.Context, userID string) ([]*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM waitlist_entry
		WHERE user_id = type::record($user_id) AND status = "waiting"
		ORDER BY workshop_starts_at ASC`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return parseWaitlistsResult(result), nil
}

// List returns waiting entries across workshops for the admin overview
func (r *WaitlistRepository) List(ctx context.Context, filter model.WaitlistFilter) ([]*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistProjection + ` FROM waitlist_entry WHERE status = "waiting"`
	vars := map[string]interface{}{
		"limit":  pageLimit(filter.Limit),
		"offset": filter.Offset,
	}
	if filter.WorkshopID != "" {
		query += ` AND workshop_id = type::record($workshop_id)`
		vars["workshop_id"] = filter.WorkshopID
	}
	query += ` ORDER BY workshop_starts_at ASC, created_on ASC LIMIT $limit START $offset`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseWaitlistsResult(result), nil
}

// SetStatus moves an entry out of (or back into) the queue
func (r *WaitlistRepository) SetStatus(ctx context.Context, id string, status model.WaitlistStatus) error {
	query := `UPDATE type::record($id) SET status = $status, updated_on = time::now()`
	return r.db.Execute(ctx, query, map[string]interface{}{"id": id, "status": string(status)})
}

// Promote turns a waiting entry into a registration inside one transaction.
// The user's cancelled participation row is reused when present; any other
// existing row yields database.ErrConflict and nothing is written. With
// force set the seat guard allows one seat over capacity.
func (r *WaitlistRepository) Promote(ctx context.Context, entry *model.WaitlistEntry, force bool) (*model.Participation, error) {
	allowance := 0
	if force {
		allowance = 1
	}

	query := `BEGIN TRANSACTION;` + seatGuard + `
		LET $existing = (SELECT id, status FROM participation
			WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) LIMIT 1)[0];
		IF $existing != NONE AND $existing.status != "cancelled" {
			THROW "` + database.ConflictMarker + `: user is already on the roster"
		};
		IF $existing != NONE {
			UPDATE $existing.id SET
				role = "participant",
				status = "registered",
				feedback_rating = NONE,
				feedback_comment = NONE,
				feedback_on = NONE,
				registered_on = time::now(),
				updated_on = time::now();
		} ELSE {
			CREATE participation SET
				workshop_id = type::record($workshop_id),
				user_id = type::record($user_id),
				role = "participant",
				status = "registered",
				registered_on = time::now(),
				updated_on = time::now();
		};
		UPDATE type::record($entry_id) SET status = "promoted", updated_on = time::now();
		COMMIT TRANSACTION;
		SELECT ` + participationProjection + ` FROM participation
			WHERE workshop_id = type::record($workshop_id) AND user_id = type::record($user_id) LIMIT 1;`
	vars := map[string]interface{}{
		"workshop_id": entry.WorkshopID,
		"user_id":     entry.UserID,
		"entry_id":    entry.ID,
		"allowance":   allowance,
	}

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

// ExpireStale expires waiting entries whose workshop has started or
// reached a final status. Returns the number of entries expired.
func (r *WaitlistRepository) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	query := `UPDATE waitlist_entry SET status = "expired", updated_on = time::now()
		WHERE status = "waiting"
		AND (workshop_id.starts_at <= <datetime>$now OR workshop_id.status IN ["completed", "cancelled"])
		RETURN id`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"now": now.UTC().Format(time.RFC3339)})
	if err != nil {
		return 0, err
	}
	return len(lastStatementRecords(result)), nil
}

func parseWaitlistResult(result interface{}) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	data, err := decodeRecord(result, &e, "workshop_id", "user_id")
	if err != nil {
		return nil, err
	}

	setTime(data, "created_on", &e.CreatedOn)
	setTime(data, "updated_on", &e.UpdatedOn)
	e.WorkshopStartsAt = getTime(data, "workshop_starts_at")
	e.Position = getInt(data, "position")

	return &e, nil
}

func parseWaitlistsResult(result []interface{}) []*model.WaitlistEntry {
	entries := make([]*model.WaitlistEntry, 0)
	eachRecord(result, func(item interface{}) {
		if e, err := parseWaitlistResult(item); err == nil {
			entries = append(entries, e)
		}
	})
	return entries
}
