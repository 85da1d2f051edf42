package service

import (
	"cmp"
	"slices"

	"github.com/forgo/atelier/internal/model"
)

// Eligibility reasons
const (
	ReasonNoRequirement = "no_requirement"
	ReasonStaffBypass   = "staff_bypass"
	ReasonLevelReached  = "level_reached"
	ReasonLevelMissing  = "level_not_reached"
)

// CountRequirement tallies the activity records that count toward a
// requirement, narrowed by its type or family
func CountRequirement(req model.RoleRequirement, records []model.ActivityRecord) int {
	count := 0
	for _, rec := range records {
		if req.TypeID != nil && rec.TypeID != *req.TypeID {
			continue
		}
		if req.FamilyID != nil && rec.FamilyID != *req.FamilyID {
			continue
		}
		if countsToward(req.Kind, rec) {
			count++
		}
	}
	return count
}

func countsToward(kind model.RequirementKind, rec model.ActivityRecord) bool {
	attended := rec.Status == model.ParticipationStatusAttended
	switch kind {
	case model.RequirementWorkshopsAttended:
		return attended && rec.Role == model.ParticipationRoleParticipant
	case model.RequirementWorkshopsAnimated:
		return attended && rec.Role == model.ParticipationRoleAnimator
	case model.RequirementFeedbackGiven:
		return rec.HasFeedback
	case model.RequirementTrainingsCompleted:
		return attended && rec.IsTraining
	default:
		return false
	}
}

// ProgressPercent is floor(100 * sum(min(count, threshold)) / sum(threshold)).
// A level without requirements is complete.
func ProgressPercent(reqs []model.RequirementProgress) int {
	var done, total int
	for _, rp := range reqs {
		done += min(rp.Count, rp.Requirement.Threshold)
		total += rp.Requirement.Threshold
	}
	if total == 0 {
		return 100
	}
	return done * 100 / total
}

// EvaluateLadder computes per-level progress for one user. Levels are
// walked by rank; a level is achieved when its requirements are met and
// every lower level is achieved. Levels at or below grantedRank count as
// achieved regardless of activity (0 means no grant).
func EvaluateLadder(levels []*model.RoleLevel, records []model.ActivityRecord, grantedRank int) *model.CertificationStatus {
	ordered := slices.Clone(levels)
	slices.SortFunc(ordered, func(a, b *model.RoleLevel) int { return cmp.Compare(a.Rank, b.Rank) })

	status := &model.CertificationStatus{Levels: make([]model.LevelProgress, 0, len(ordered))}
	chain := true

	for _, level := range ordered {
		lp := model.LevelProgress{
			Level:        *level,
			Requirements: make([]model.RequirementProgress, 0, len(level.Requirements)),
		}

		allMet := true
		for _, req := range level.Requirements {
			count := CountRequirement(req, records)
			met := count >= req.Threshold
			allMet = allMet && met
			lp.Requirements = append(lp.Requirements, model.RequirementProgress{
				Requirement: req,
				Count:       count,
				Met:         met,
			})
		}

		lp.Granted = grantedRank > 0 && level.Rank <= grantedRank
		lp.Achieved = lp.Granted || (chain && allMet)
		chain = lp.Achieved

		if lp.Granted {
			lp.Progress = 100
		} else {
			lp.Progress = ProgressPercent(lp.Requirements)
		}

		if lp.Achieved {
			current := lp.Level
			status.CurrentLevel = &current
		} else if status.NextLevel == nil {
			next := lp.Level
			status.NextLevel = &next
		}

		status.Levels = append(status.Levels, lp)
	}

	return status
}

// DecideEligibility applies the training gate: a type that requires a
// level admits staff and users whose current rank reaches the required
// rank.
func DecideEligibility(required, current *model.RoleLevel, staff bool) model.Eligibility {
	e := model.Eligibility{RequiredLevel: required, CurrentLevel: current}

	switch {
	case required == nil:
		e.Eligible, e.Reason = true, ReasonNoRequirement
	case staff:
		e.Eligible, e.Reason = true, ReasonStaffBypass
	case current != nil && current.Rank >= required.Rank:
		e.Eligible, e.Reason = true, ReasonLevelReached
	default:
		e.Eligible, e.Reason = false, ReasonLevelMissing
	}
	return e
}
