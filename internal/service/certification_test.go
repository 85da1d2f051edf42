package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

type mockLevelRepo struct {
	levels       map[string]*model.RoleLevel
	requirements map[string]*model.RoleRequirement
	activity     map[string][]model.ActivityRecord
	typeRefs     map[string]int
	seq          int
	activityErr  error
}

func newMockLevelRepo() *mockLevelRepo {
	return &mockLevelRepo{
		levels:       make(map[string]*model.RoleLevel),
		requirements: make(map[string]*model.RoleRequirement),
		activity:     make(map[string][]model.ActivityRecord),
		typeRefs:     make(map[string]int),
	}
}

func (m *mockLevelRepo) CreateLevel(ctx context.Context, level *model.RoleLevel) error {
	for _, l := range m.levels {
		if l.Rank == level.Rank || l.Name == level.Name {
			return fmt.Errorf("%w: level", database.ErrDuplicate)
		}
	}
	m.seq++
	level.ID = fmt.Sprintf("role_level:%d", m.seq)
	level.CreatedOn = time.Now()
	m.levels[level.ID] = level
	return nil
}

func (m *mockLevelRepo) withRequirements(l *model.RoleLevel) *model.RoleLevel {
	c := *l
	c.Requirements = nil
	for _, r := range m.requirements {
		if r.LevelID == l.ID {
			c.Requirements = append(c.Requirements, *r)
		}
	}
	return &c
}

func (m *mockLevelRepo) GetLevel(ctx context.Context, id string) (*model.RoleLevel, error) {
	if l, ok := m.levels[id]; ok {
		return m.withRequirements(l), nil
	}
	return nil, nil
}

func (m *mockLevelRepo) ListLevels(ctx context.Context) ([]*model.RoleLevel, error) {
	out := make([]*model.RoleLevel, 0, len(m.levels))
	for _, l := range m.levels {
		out = append(out, m.withRequirements(l))
	}
	return out, nil
}

func (m *mockLevelRepo) UpdateLevel(ctx context.Context, id string, req *model.UpdateLevelRequest) (*model.RoleLevel, error) {
	l, ok := m.levels[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Rank != nil {
		l.Rank = *req.Rank
	}
	return m.withRequirements(l), nil
}

func (m *mockLevelRepo) DeleteLevel(ctx context.Context, id string) error {
	delete(m.levels, id)
	return nil
}

func (m *mockLevelRepo) CountLevelReferences(ctx context.Context, id string) (int, int, error) {
	return m.typeRefs[id], 0, nil
}

func (m *mockLevelRepo) CreateRequirement(ctx context.Context, req *model.RoleRequirement) error {
	m.seq++
	req.ID = fmt.Sprintf("role_requirement:%d", m.seq)
	c := *req
	m.requirements[req.ID] = &c
	return nil
}

func (m *mockLevelRepo) GetRequirement(ctx context.Context, id string) (*model.RoleRequirement, error) {
	if r, ok := m.requirements[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, nil
}

func (m *mockLevelRepo) DeleteRequirement(ctx context.Context, id string) error {
	delete(m.requirements, id)
	return nil
}

func (m *mockLevelRepo) ActivityRecords(ctx context.Context, userID string) ([]model.ActivityRecord, error) {
	if m.activityErr != nil {
		return nil, m.activityErr
	}
	return m.activity[userID], nil
}

type certFixture struct {
	svc    *CertificationService
	levels *mockLevelRepo
	store  *memStore
	types  *mockTypes

	newcomer, regular *model.RoleLevel
	gatedWorkshop     *model.Workshop
}

func newCertFixture(t *testing.T) *certFixture {
	t.Helper()
	ctx := context.Background()
	f := &certFixture{levels: newMockLevelRepo(), store: newMemStore(), types: newMockTypes()}
	f.svc = NewCertificationService(CertificationServiceConfig{
		Repo:      f.levels,
		Users:     &memUserRepo{s: f.store},
		Types:     f.types,
		Workshops: &memWorkshopRepo{s: f.store},
	})

	var err error
	if f.newcomer, err = f.svc.CreateLevel(ctx, &model.CreateLevelRequest{Name: "Newcomer", Rank: 1}); err != nil {
		t.Fatalf("CreateLevel failed: %v", err)
	}
	if f.regular, err = f.svc.CreateLevel(ctx, &model.CreateLevelRequest{Name: "Regular", Rank: 2}); err != nil {
		t.Fatalf("CreateLevel failed: %v", err)
	}

	f.types.families["workshop_family:clay"] = &model.WorkshopFamily{ID: "workshop_family:clay", Name: "Clay"}
	f.types.types["workshop_type:advanced"] = &model.WorkshopType{
		ID: "workshop_type:advanced", FamilyID: "workshop_family:clay", Name: "Advanced",
		RequiredLevelID: &f.regular.ID, Active: true,
	}
	if _, err := f.svc.AddRequirement(ctx, f.regular.ID, &model.CreateRequirementRequest{
		Kind: model.RequirementWorkshopsAttended, Threshold: 2, FamilyID: strp("workshop_family:clay"),
	}); err != nil {
		t.Fatalf("AddRequirement failed: %v", err)
	}

	f.gatedWorkshop = f.store.addWorkshop(&model.Workshop{
		TypeID: "workshop_type:advanced", Title: "Advanced throwing", Capacity: 4,
		Status: model.WorkshopStatusPublished,
	})
	return f
}

func TestCertificationService_CreateLevel_Duplicate(t *testing.T) {
	f := newCertFixture(t)
	_, err := f.svc.CreateLevel(context.Background(), &model.CreateLevelRequest{Name: "Another", Rank: 2})
	if !errors.Is(err, ErrLevelExists) {
		t.Fatalf("expected ErrLevelExists, got %v", err)
	}
}

func TestCertificationService_AddRequirement_UnknownFamily(t *testing.T) {
	f := newCertFixture(t)
	_, err := f.svc.AddRequirement(context.Background(), f.regular.ID, &model.CreateRequirementRequest{
		Kind: model.RequirementFeedbackGiven, Threshold: 1, FamilyID: strp("workshop_family:nope"),
	})
	if !errors.Is(err, ErrFamilyNotFound) {
		t.Fatalf("expected ErrFamilyNotFound, got %v", err)
	}
}

func TestCertificationService_DeleteLevel_InUse(t *testing.T) {
	f := newCertFixture(t)
	f.levels.typeRefs[f.regular.ID] = 1
	if err := f.svc.DeleteLevel(context.Background(), f.regular.ID); !errors.Is(err, ErrLevelInUse) {
		t.Fatalf("expected ErrLevelInUse, got %v", err)
	}
	if err := f.svc.DeleteLevel(context.Background(), "role_level:missing"); !errors.Is(err, ErrLevelNotFound) {
		t.Fatalf("expected ErrLevelNotFound, got %v", err)
	}
}

func TestCertificationService_Status(t *testing.T) {
	f := newCertFixture(t)
	ctx := context.Background()
	u := f.store.addUser("ada@example.com", model.UserRoleParticipant)
	f.levels.activity[u.ID] = []model.ActivityRecord{
		attended("workshop_type:intro", "workshop_family:clay", model.ParticipationRoleParticipant),
	}

	st, err := f.svc.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.UserID != u.ID {
		t.Errorf("expected user id %s, got %s", u.ID, st.UserID)
	}
	if st.CurrentLevel == nil || st.CurrentLevel.Name != "Newcomer" {
		t.Errorf("expected Newcomer, got %+v", st.CurrentLevel)
	}
	if st.NextLevel == nil || st.NextLevel.Name != "Regular" {
		t.Errorf("expected next Regular, got %+v", st.NextLevel)
	}
	if st.Levels[1].Progress != 50 {
		t.Errorf("expected 50%% progress, got %d", st.Levels[1].Progress)
	}
}

func TestCertificationService_Status_PropagatesErrors(t *testing.T) {
	f := newCertFixture(t)
	u := f.store.addUser("ada@example.com", model.UserRoleParticipant)
	f.levels.activityErr = errors.New("boom")

	if _, err := f.svc.Status(context.Background(), u.ID); err == nil {
		t.Fatal("expected error")
	}

	f.levels.activityErr = nil
	if _, err := f.svc.Status(context.Background(), "user:missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCertificationService_CheckWorkshop(t *testing.T) {
	f := newCertFixture(t)
	ctx := context.Background()

	novice := f.store.addUser("novice@example.com", model.UserRoleParticipant)
	e, err := f.svc.CheckWorkshop(ctx, novice.ID, f.gatedWorkshop.ID)
	if err != nil {
		t.Fatalf("CheckWorkshop failed: %v", err)
	}
	if e.Eligible || e.Reason != ReasonLevelMissing {
		t.Errorf("expected ineligible, got %+v", e)
	}

	organizer := f.store.addUser("org@example.com", model.UserRoleOrganizer)
	e, _ = f.svc.CheckWorkshop(ctx, organizer.ID, f.gatedWorkshop.ID)
	if !e.Eligible || e.Reason != ReasonStaffBypass {
		t.Errorf("expected staff bypass, got %+v", e)
	}

	veteran := f.store.addUser("vet@example.com", model.UserRoleParticipant)
	f.levels.activity[veteran.ID] = []model.ActivityRecord{
		attended("workshop_type:intro", "workshop_family:clay", model.ParticipationRoleParticipant),
		attended("workshop_type:wheel", "workshop_family:clay", model.ParticipationRoleParticipant),
	}
	e, _ = f.svc.CheckWorkshop(ctx, veteran.ID, f.gatedWorkshop.ID)
	if !e.Eligible || e.Reason != ReasonLevelReached {
		t.Errorf("expected eligible, got %+v", e)
	}
}

func TestCertificationService_CheckType_MissingLevelDoesNotGate(t *testing.T) {
	f := newCertFixture(t)
	u := f.store.addUser("ada@example.com", model.UserRoleParticipant)
	wt := &model.WorkshopType{ID: "workshop_type:x", RequiredLevelID: strp("role_level:gone")}

	e, err := f.svc.CheckType(context.Background(), u, wt)
	if err != nil {
		t.Fatalf("CheckType failed: %v", err)
	}
	if !e.Eligible {
		t.Errorf("expected eligible, got %+v", e)
	}
}

func TestCertificationService_Grant(t *testing.T) {
	f := newCertFixture(t)
	ctx := context.Background()
	u := f.store.addUser("ada@example.com", model.UserRoleParticipant)

	st, err := f.svc.Grant(ctx, u.ID, &f.regular.ID)
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if st.CurrentLevel == nil || st.CurrentLevel.ID != f.regular.ID {
		t.Fatalf("expected granted Regular, got %+v", st.CurrentLevel)
	}

	e, _ := f.svc.CheckWorkshop(ctx, u.ID, f.gatedWorkshop.ID)
	if !e.Eligible {
		t.Error("expected grant to open the gate")
	}

	st, err = f.svc.Grant(ctx, u.ID, nil)
	if err != nil {
		t.Fatalf("clearing grant failed: %v", err)
	}
	if st.CurrentLevel == nil || st.CurrentLevel.Name != "Newcomer" {
		t.Errorf("expected Newcomer after clearing, got %+v", st.CurrentLevel)
	}

	if _, err := f.svc.Grant(ctx, u.ID, strp("role_level:missing")); !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("expected ErrLevelNotFound, got %v", err)
	}
}
