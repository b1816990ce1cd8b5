package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/quisling/quisling-go/internal/catalog"
)

// turnImpact is the computed effect of resolving one turn.
type turnImpact struct {
	progressGain int
	penaltyGain  int
	scoreDelta   int
}

// appendLog copies the session's log and appends entry. The log is append-only
// and never truncated; sharing the backing array with the previous session
// value would let a later append show through old copies.
func appendLog(s Session, entry string) Session {
	log := make([]string, len(s.ActionLog), len(s.ActionLog)+1)
	copy(log, s.ActionLog)
	s.ActionLog = append(log, entry)
	return s
}

// Hydrate sanitizes a session loaded from storage: clamps counters that a
// stale or hand-edited payload could have pushed out of range.
func Hydrate(s Session) Session {
	if s.Phase == "" {
		s.Phase = PhasePlanning
	}
	if s.RemainingSeconds < 0 {
		s.RemainingSeconds = 0
	}
	if s.TurnsPlayed < 0 {
		s.TurnsPlayed = 0
	}
	if s.Penalties < 0 {
		s.Penalties = 0
	}
	if s.ObjectiveProgress < 0 {
		s.ObjectiveProgress = 0
	}
	if s.ObjectiveProgress > rules.WinObjectiveProgress {
		s.ObjectiveProgress = rules.WinObjectiveProgress
	}
	return s
}

// SelectBuilding marks a target. Re-selection is allowed in any active phase;
// the choice is only committed once a phase-advancing transition runs.
// Unknown building ids and completed sessions leave the session unchanged.
func SelectBuilding(s Session, buildingID string) Session {
	if s.Phase == PhaseComplete {
		return s
	}
	if _, ok := catalog.ByID(buildingID); !ok {
		return s
	}
	s.SelectedBuildingID = buildingID
	return s
}

// BeginActionPhase locks the selected target and advances planning -> action.
func BeginActionPhase(s Session) Session {
	if s.Phase != PhasePlanning || s.SelectedBuildingID == "" {
		return s
	}
	b, ok := catalog.ByID(s.SelectedBuildingID)
	if !ok {
		return s
	}
	s.Phase = PhaseAction
	return appendLog(s, fmt.Sprintf("Target locked: %s.", b.Label))
}

// CommitAction advances action -> resolution.
func CommitAction(s Session) Session {
	if s.Phase != PhaseAction || s.SelectedBuildingID == "" {
		return s
	}
	s.Phase = PhaseResolution
	return appendLog(s, "Action executed. Resolving outcome...")
}

func resolveBuildingImpact(s Session) (catalog.Building, turnImpact, bool) {
	if s.SelectedBuildingID == "" {
		return catalog.Building{}, turnImpact{}, false
	}
	b, ok := catalog.ByID(s.SelectedBuildingID)
	if !ok {
		return catalog.Building{}, turnImpact{}, false
	}

	rawProgress := float64(b.RewardPoints)*roleProgressMultiplier[s.Role] - float64(b.Difficulty)*1.3
	progressGain := int(math.Round(rawProgress))
	if progressGain < 5 {
		// Floor guarantees forward progress every turn, so a bad role/building
		// pairing can never stall a mission.
		progressGain = 5
	}

	rawPenalty := 0
	if b.Difficulty >= 8 {
		rawPenalty = 1
	}
	penaltyGain := rawPenalty - rolePenaltyReduction[s.Role]
	if penaltyGain < 0 {
		penaltyGain = 0
	}

	scoreDelta := progressGain*2 - penaltyGain*b.PenaltyPoints*3

	return b, turnImpact{progressGain: progressGain, penaltyGain: penaltyGain, scoreDelta: scoreDelta}, true
}

// ResolveTurn applies the building impact, advances counters, returns to
// planning, and finalizes immediately when a terminal condition is met.
func ResolveTurn(s Session) Session {
	if s.Phase != PhaseResolution || s.SelectedBuildingID == "" {
		return s
	}
	b, impact, ok := resolveBuildingImpact(s)
	if !ok {
		return s
	}

	next := s
	next.Phase = PhasePlanning
	next.TurnsPlayed = s.TurnsPlayed + 1
	next.ObjectiveProgress = s.ObjectiveProgress + impact.progressGain
	if next.ObjectiveProgress > rules.WinObjectiveProgress {
		next.ObjectiveProgress = rules.WinObjectiveProgress
	}
	next.Penalties = s.Penalties + impact.penaltyGain
	next.Score = s.Score + impact.scoreDelta
	next.SelectedBuildingID = ""
	next = appendLog(next, fmt.Sprintf(
		"Turn %d: %s yielded +%d progress, +%d score, +%d penalties.",
		next.TurnsPlayed, b.Label, impact.progressGain, impact.scoreDelta, impact.penaltyGain,
	))

	outcome, done := ComputeOutcome(next)
	if !done {
		return next
	}
	reason := "Mission failed before objective completion."
	if outcome == OutcomeWin {
		reason = "Objective completed before the deadline."
	}
	return FinalizeSession(next, outcome, reason)
}

// WithRemainingSeconds overwrites the countdown, clamped at zero. Driven by
// the external 1 Hz timer tick.
func WithRemainingSeconds(s Session, remaining int) Session {
	if remaining < 0 {
		remaining = 0
	}
	s.RemainingSeconds = remaining
	return s
}

// ComputeOutcome checks terminal conditions. The win check runs first so a
// simultaneous win+loss resolves as a win.
func ComputeOutcome(s Session) (Outcome, bool) {
	if s.ObjectiveProgress >= rules.WinObjectiveProgress {
		return OutcomeWin, true
	}
	if s.Penalties >= rules.MaxPenalties {
		return OutcomeLoss, true
	}
	if s.RemainingSeconds <= 0 {
		return OutcomeLoss, true
	}
	if s.TurnsPlayed >= rules.MaxTurns {
		return OutcomeLoss, true
	}
	return "", false
}

// FinalizeSession moves the session into its absorbing complete phase.
// Idempotent: finalizing a complete session is a no-op.
func FinalizeSession(s Session, outcome Outcome, reason string) Session {
	if s.Phase == PhaseComplete {
		return s
	}
	s.Phase = PhaseComplete
	return appendLog(s, fmt.Sprintf("Result: %s - %s", strings.ToUpper(string(outcome)), reason))
}

// TimeProgressPercent reports remaining time as 0-100 for the countdown bar.
func TimeProgressPercent(s Session) float64 {
	if s.DurationSeconds <= 0 {
		return 0
	}
	pct := float64(s.RemainingSeconds) / float64(s.DurationSeconds) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
