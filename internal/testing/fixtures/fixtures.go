package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/repository"
)

// DefaultPassword is the plain-text password of every fixture user
const DefaultPassword = "testpass123"

// Factory creates test records in a database
type Factory struct {
	Users          *repository.UserRepository
	Clients        *repository.ClientRepository
	Catalog        *repository.CatalogRepository
	Levels         *repository.RoleLevelRepository
	Workshops      *repository.WorkshopRepository
	Participations *repository.ParticipationRepository
	Waitlists      *repository.WaitlistRepository
}

// New creates a factory over db
func New(db database.Database) *Factory {
	return &Factory{
		Users:          repository.NewUserRepository(db),
		Clients:        repository.NewClientRepository(db),
		Catalog:        repository.NewCatalogRepository(db),
		Levels:         repository.NewRoleLevelRepository(db),
		Workshops:      repository.NewWorkshopRepository(db),
		Participations: repository.NewParticipationRepository(db),
		Waitlists:      repository.NewWaitlistRepository(db),
	}
}

func randomID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t testing.TB) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// UserOpts customizes CreateUser
type UserOpts struct {
	Email     string
	Username  string
	Firstname string
	Password  string
	Role      model.UserRole
	ClientID  *string
}

// WithRole sets the user's role
func WithRole(role model.UserRole) func(*UserOpts) {
	return func(o *UserOpts) { o.Role = role }
}

// CreateUser creates a participant with a bcrypt hash of DefaultPassword
func (f *Factory) CreateUser(t testing.TB, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	id := randomID()
	o := &UserOpts{
		Email:    fmt.Sprintf("user_%s@test.local", id),
		Username: "user_" + id,
		Password: DefaultPassword,
		Role:     model.UserRoleParticipant,
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: hash password: %v", err)
	}
	hashStr := string(hash)

	user := &model.User{
		Email:         o.Email,
		Username:      &o.Username,
		Hash:          &hashStr,
		Role:          o.Role,
		ClientID:      o.ClientID,
		EmailVerified: true,
	}
	if o.Firstname != "" {
		user.Firstname = &o.Firstname
	}
	if err := f.Users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: create user: %v", err)
	}
	return user
}

// CreateClient creates an active client
func (f *Factory) CreateClient(t testing.TB, opts ...func(*model.Client)) *model.Client {
	t.Helper()

	client := &model.Client{Name: "Client " + randomID(), Active: true}
	for _, fn := range opts {
		fn(client)
	}
	if err := f.Clients.Create(ctx(t), client); err != nil {
		t.Fatalf("fixtures: create client: %v", err)
	}
	return client
}

// CreateFamily creates a workshop family
func (f *Factory) CreateFamily(t testing.TB, opts ...func(*model.WorkshopFamily)) *model.WorkshopFamily {
	t.Helper()

	family := &model.WorkshopFamily{Name: "Family " + randomID()}
	for _, fn := range opts {
		fn(family)
	}
	if err := f.Catalog.CreateFamily(ctx(t), family); err != nil {
		t.Fatalf("fixtures: create family: %v", err)
	}
	return family
}

// CreateType creates an active, ungated two-hour type for ten people
func (f *Factory) CreateType(t testing.TB, family *model.WorkshopFamily, opts ...func(*model.WorkshopType)) *model.WorkshopType {
	t.Helper()

	wt := &model.WorkshopType{
		FamilyID:        family.ID,
		Name:            "Type " + randomID(),
		DurationMins:    120,
		DefaultCapacity: 10,
		Active:          true,
	}
	for _, fn := range opts {
		fn(wt)
	}
	if err := f.Catalog.CreateType(ctx(t), wt); err != nil {
		t.Fatalf("fixtures: create type: %v", err)
	}
	return wt
}

// CreateLevel creates a role level with the given rank and requirements
func (f *Factory) CreateLevel(t testing.TB, rank int, reqs ...model.RoleRequirement) *model.RoleLevel {
	t.Helper()

	level := &model.RoleLevel{Name: "Level " + randomID(), Rank: rank}
	if err := f.Levels.CreateLevel(ctx(t), level); err != nil {
		t.Fatalf("fixtures: create level: %v", err)
	}
	for i := range reqs {
		req := reqs[i]
		req.LevelID = level.ID
		if err := f.Levels.CreateRequirement(ctx(t), &req); err != nil {
			t.Fatalf("fixtures: create requirement: %v", err)
		}
		level.Requirements = append(level.Requirements, req)
	}
	return level
}

// WorkshopOpts customizes CreateWorkshop
type WorkshopOpts struct {
	Title    string
	StartsAt time.Time
	Duration time.Duration
	Capacity int
	Status   model.WorkshopStatus
	ClientID *string
}

// CreateWorkshop creates a published workshop of wt starting in two days,
// owned by organizer
func (f *Factory) CreateWorkshop(t testing.TB, wt *model.WorkshopType, organizer *model.User, opts ...func(*WorkshopOpts)) *model.Workshop {
	t.Helper()

	o := &WorkshopOpts{
		Title:    "Workshop " + randomID(),
		StartsAt: time.Now().Add(48 * time.Hour).Truncate(time.Minute),
		Duration: wt.Duration(),
		Capacity: wt.DefaultCapacity,
		Status:   model.WorkshopStatusPublished,
	}
	for _, fn := range opts {
		fn(o)
	}

	w := &model.Workshop{
		TypeID:    wt.ID,
		ClientID:  o.ClientID,
		Title:     o.Title,
		StartsAt:  o.StartsAt,
		EndsAt:    o.StartsAt.Add(o.Duration),
		Capacity:  o.Capacity,
		Status:    o.Status,
		CreatedBy: organizer.ID,
	}
	if err := f.Workshops.Create(ctx(t), w); err != nil {
		t.Fatalf("fixtures: create workshop: %v", err)
	}
	return w
}

// Register takes a seat for user directly, without eligibility checks
func (f *Factory) Register(t testing.TB, w *model.Workshop, user *model.User) *model.Participation {
	t.Helper()

	p := &model.Participation{WorkshopID: w.ID, UserID: user.ID}
	if err := f.Participations.RegisterSeat(ctx(t), p); err != nil {
		t.Fatalf("fixtures: register: %v", err)
	}
	return p
}

// Attend records user as having attended w in role
func (f *Factory) Attend(t testing.TB, w *model.Workshop, user *model.User, role model.ParticipationRole) *model.Participation {
	t.Helper()

	var p *model.Participation
	if role == model.ParticipationRoleAnimator {
		var err error
		if p, err = f.Participations.AddAnimator(ctx(t), w.ID, user.ID); err != nil {
			t.Fatalf("fixtures: add animator: %v", err)
		}
	} else {
		p = f.Register(t, w, user)
	}

	updated, err := f.Participations.MarkAttendance(ctx(t), p.ID, model.ParticipationStatusAttended, nil)
	if err != nil {
		t.Fatalf("fixtures: mark attendance: %v", err)
	}
	return updated
}
