package service

import (
	"testing"

	"github.com/forgo/atelier/internal/model"
	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }

func attended(typeID, familyID string, role model.ParticipationRole) model.ActivityRecord {
	return model.ActivityRecord{
		Role:     role,
		Status:   model.ParticipationStatusAttended,
		TypeID:   typeID,
		FamilyID: familyID,
	}
}

func TestCountRequirement(t *testing.T) {
	records := []model.ActivityRecord{
		attended("workshop_type:intro", "workshop_family:clay", model.ParticipationRoleParticipant),
		attended("workshop_type:wheel", "workshop_family:clay", model.ParticipationRoleParticipant),
		attended("workshop_type:loom", "workshop_family:textile", model.ParticipationRoleAnimator),
		{Role: model.ParticipationRoleParticipant, Status: model.ParticipationStatusNoShow, TypeID: "workshop_type:intro", FamilyID: "workshop_family:clay"},
		{Role: model.ParticipationRoleParticipant, Status: model.ParticipationStatusAttended, HasFeedback: true, IsTraining: true, TypeID: "workshop_type:trainer", FamilyID: "workshop_family:staff"},
	}

	tests := []struct {
		name string
		req  model.RoleRequirement
		want int
	}{
		{"attended counts participants only", model.RoleRequirement{Kind: model.RequirementWorkshopsAttended}, 3},
		{"animated", model.RoleRequirement{Kind: model.RequirementWorkshopsAnimated}, 1},
		{"feedback", model.RoleRequirement{Kind: model.RequirementFeedbackGiven}, 1},
		{"trainings", model.RoleRequirement{Kind: model.RequirementTrainingsCompleted}, 1},
		{"narrowed by family", model.RoleRequirement{Kind: model.RequirementWorkshopsAttended, FamilyID: strp("workshop_family:clay")}, 2},
		{"narrowed by type", model.RoleRequirement{Kind: model.RequirementWorkshopsAttended, TypeID: strp("workshop_type:intro")}, 1},
		{"no show never counts", model.RoleRequirement{Kind: model.RequirementWorkshopsAttended, TypeID: strp("workshop_type:missing")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountRequirement(tt.req, records); got != tt.want {
				t.Errorf("CountRequirement() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	req := func(threshold, count int) model.RequirementProgress {
		return model.RequirementProgress{Requirement: model.RoleRequirement{Threshold: threshold}, Count: count}
	}

	tests := []struct {
		name string
		reqs []model.RequirementProgress
		want int
	}{
		{"no requirements", nil, 100},
		{"nothing done", []model.RequirementProgress{req(3, 0)}, 0},
		{"floors", []model.RequirementProgress{req(3, 1)}, 33},
		{"surplus is capped", []model.RequirementProgress{req(2, 5), req(2, 0)}, 50},
		{"complete", []model.RequirementProgress{req(2, 2), req(1, 4)}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressPercent(tt.reqs); got != tt.want {
				t.Errorf("ProgressPercent() = %d, want %d", got, tt.want)
			}
		})
	}
}

func ladder() []*model.RoleLevel {
	return []*model.RoleLevel{
		{ID: "role_level:3", Name: "Trainer", Rank: 3, Requirements: []model.RoleRequirement{
			{ID: "r3", Kind: model.RequirementWorkshopsAnimated, Threshold: 2},
		}},
		{ID: "role_level:1", Name: "Newcomer", Rank: 1},
		{ID: "role_level:2", Name: "Regular", Rank: 2, Requirements: []model.RoleRequirement{
			{ID: "r2a", Kind: model.RequirementWorkshopsAttended, Threshold: 2},
			{ID: "r2b", Kind: model.RequirementFeedbackGiven, Threshold: 1},
		}},
	}
}

type levelSummary struct {
	Name     string
	Achieved bool
	Granted  bool
	Progress int
}

func summarize(st *model.CertificationStatus) (current, next string, levels []levelSummary) {
	if st.CurrentLevel != nil {
		current = st.CurrentLevel.Name
	}
	if st.NextLevel != nil {
		next = st.NextLevel.Name
	}
	for _, lp := range st.Levels {
		levels = append(levels, levelSummary{lp.Level.Name, lp.Achieved, lp.Granted, lp.Progress})
	}
	return current, next, levels
}

func TestEvaluateLadder(t *testing.T) {
	animator := attended("t", "f", model.ParticipationRoleAnimator)
	participant := attended("t", "f", model.ParticipationRoleParticipant)
	withFeedback := participant
	withFeedback.HasFeedback = true

	tests := []struct {
		name        string
		records     []model.ActivityRecord
		granted     int
		wantCurrent string
		wantNext    string
		wantLevels  []levelSummary
	}{
		{
			name:        "fresh user holds the requirement free level",
			wantCurrent: "Newcomer",
			wantNext:    "Regular",
			wantLevels: []levelSummary{
				{"Newcomer", true, false, 100},
				{"Regular", false, false, 0},
				{"Trainer", false, false, 0},
			},
		},
		{
			name:        "partial progress",
			records:     []model.ActivityRecord{participant},
			wantCurrent: "Newcomer",
			wantNext:    "Regular",
			wantLevels: []levelSummary{
				{"Newcomer", true, false, 100},
				{"Regular", false, false, 33},
				{"Trainer", false, false, 0},
			},
		},
		{
			name:        "higher level needs the chain below",
			records:     []model.ActivityRecord{animator, animator},
			wantCurrent: "Newcomer",
			wantNext:    "Regular",
			wantLevels: []levelSummary{
				{"Newcomer", true, false, 100},
				{"Regular", false, false, 0},
				{"Trainer", false, false, 100},
			},
		},
		{
			name:        "whole ladder",
			records:     []model.ActivityRecord{withFeedback, participant, animator, animator},
			wantCurrent: "Trainer",
			wantLevels: []levelSummary{
				{"Newcomer", true, false, 100},
				{"Regular", true, false, 100},
				{"Trainer", true, false, 100},
			},
		},
		{
			name:        "grant raises the floor",
			granted:     2,
			wantCurrent: "Regular",
			wantNext:    "Trainer",
			wantLevels: []levelSummary{
				{"Newcomer", true, true, 100},
				{"Regular", true, true, 100},
				{"Trainer", false, false, 0},
			},
		},
		{
			name:        "grant lets activity above it count",
			granted:     2,
			records:     []model.ActivityRecord{animator, animator},
			wantCurrent: "Trainer",
			wantLevels: []levelSummary{
				{"Newcomer", true, true, 100},
				{"Regular", true, true, 100},
				{"Trainer", true, false, 100},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, next, levels := summarize(EvaluateLadder(ladder(), tt.records, tt.granted))
			if current != tt.wantCurrent {
				t.Errorf("current = %q, want %q", current, tt.wantCurrent)
			}
			if next != tt.wantNext {
				t.Errorf("next = %q, want %q", next, tt.wantNext)
			}
			if diff := cmp.Diff(tt.wantLevels, levels); diff != "" {
				t.Errorf("levels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateLadder_DoesNotReorderInput(t *testing.T) {
	levels := ladder()
	EvaluateLadder(levels, nil, 0)
	if levels[0].Name != "Trainer" {
		t.Error("input slice was reordered")
	}
}

func TestDecideEligibility(t *testing.T) {
	regular := &model.RoleLevel{ID: "role_level:2", Name: "Regular", Rank: 2}
	newcomer := &model.RoleLevel{ID: "role_level:1", Name: "Newcomer", Rank: 1}
	trainer := &model.RoleLevel{ID: "role_level:3", Name: "Trainer", Rank: 3}

	tests := []struct {
		name     string
		required *model.RoleLevel
		current  *model.RoleLevel
		staff    bool
		want     model.Eligibility
	}{
		{"ungated", nil, nil, false, model.Eligibility{Eligible: true, Reason: ReasonNoRequirement}},
		{"staff bypass", regular, nil, true, model.Eligibility{Eligible: true, Reason: ReasonStaffBypass, RequiredLevel: regular}},
		{"reached exactly", regular, regular, false, model.Eligibility{Eligible: true, Reason: ReasonLevelReached, RequiredLevel: regular, CurrentLevel: regular}},
		{"above", regular, trainer, false, model.Eligibility{Eligible: true, Reason: ReasonLevelReached, RequiredLevel: regular, CurrentLevel: trainer}},
		{"below", regular, newcomer, false, model.Eligibility{Eligible: false, Reason: ReasonLevelMissing, RequiredLevel: regular, CurrentLevel: newcomer}},
		{"no level at all", regular, nil, false, model.Eligibility{Eligible: false, Reason: ReasonLevelMissing, RequiredLevel: regular}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideEligibility(tt.required, tt.current, tt.staff)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("eligibility mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
