package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func newSession(t *testing.T, role Role) Session {
	t.Helper()
	r := ActiveRules()
	return Session{
		ID:               "game_test",
		RoomCode:         "ABCD",
		UserID:           "usr_test",
		PlayerName:       "Tester",
		Role:             role,
		Phase:            PhasePlanning,
		StartedAt:        time.Now(),
		DurationSeconds:  r.DurationSeconds,
		RemainingSeconds: r.DurationSeconds,
		ActionLog:        []string{"Session created"},
	}
}

func lastLog(t *testing.T, s Session) string {
	t.Helper()
	if len(s.ActionLog) == 0 {
		t.Fatalf("empty action log")
	}
	return s.ActionLog[len(s.ActionLog)-1]
}

func TestSelectAndLockTarget(t *testing.T) {
	// Scenario: planning, select watchtower, lock it in.
	s := newSession(t, RoleInfiltrator)
	s = SelectBuilding(s, "watchtower")
	if s.SelectedBuildingID != "watchtower" {
		t.Fatalf("selection not applied: %q", s.SelectedBuildingID)
	}
	s = BeginActionPhase(s)
	if s.Phase != PhaseAction {
		t.Fatalf("expected action phase, got %s", s.Phase)
	}
	if got := lastLog(t, s); got != "Target locked: Watchtower." {
		t.Fatalf("unexpected log entry: %q", got)
	}
}

func TestSelectUnknownBuildingIgnored(t *testing.T) {
	s := newSession(t, RoleLookout)
	next := SelectBuilding(s, "casino")
	if !reflect.DeepEqual(s, next) {
		t.Fatalf("unknown building must leave the session unchanged")
	}
}

func TestReselectionBeforeCommit(t *testing.T) {
	s := newSession(t, RoleLookout)
	s = SelectBuilding(s, "docks")
	s = SelectBuilding(s, "armory")
	if s.SelectedBuildingID != "armory" {
		t.Fatalf("re-selection should win: %q", s.SelectedBuildingID)
	}
}

func TestPhasePreconditions(t *testing.T) {
	s := newSession(t, RoleSaboteur)

	// No selection yet: lock and commit are no-ops.
	if next := BeginActionPhase(s); next.Phase != PhasePlanning {
		t.Fatalf("lock without selection must not advance")
	}
	if next := CommitAction(s); next.Phase != PhasePlanning {
		t.Fatalf("commit from planning must not advance")
	}
	if next := ResolveTurn(s); next.Phase != PhasePlanning {
		t.Fatalf("resolve from planning must not advance")
	}

	s = SelectBuilding(s, "docks")
	if next := CommitAction(s); next.Phase != PhasePlanning {
		t.Fatalf("commit requires action phase")
	}
	s = BeginActionPhase(s)
	if next := ResolveTurn(s); next.Phase != PhaseAction {
		t.Fatalf("resolve requires resolution phase")
	}
	s = CommitAction(s)
	if got := lastLog(t, s); got != "Action executed. Resolving outcome..." {
		t.Fatalf("unexpected commit log: %q", got)
	}
	if s.Phase != PhaseResolution {
		t.Fatalf("expected resolution phase, got %s", s.Phase)
	}
}

func TestResolveBankVaultAsInfiltrator(t *testing.T) {
	// difficulty 8, reward 24, multiplier 1.2, no penalty reduction:
	// progress = round(28.8 - 10.4) = 18; penalty 1; score = 36 - 6 = 30.
	s := newSession(t, RoleInfiltrator)
	s = SelectBuilding(s, "bank-vault")
	s = BeginActionPhase(s)
	s = CommitAction(s)
	s = ResolveTurn(s)

	if s.ObjectiveProgress != 18 {
		t.Fatalf("progress: want 18, got %d", s.ObjectiveProgress)
	}
	if s.Penalties != 1 {
		t.Fatalf("penalties: want 1, got %d", s.Penalties)
	}
	if s.Score != 30 {
		t.Fatalf("score: want 30, got %d", s.Score)
	}
	if s.TurnsPlayed != 1 {
		t.Fatalf("turnsPlayed: want 1, got %d", s.TurnsPlayed)
	}
	if s.Phase != PhasePlanning {
		t.Fatalf("expected loop back to planning, got %s", s.Phase)
	}
	if s.SelectedBuildingID != "" {
		t.Fatalf("selection must clear after resolve")
	}
	want := "Turn 1: Bank Vault yielded +18 progress, +30 score, +1 penalties."
	if got := lastLog(t, s); got != want {
		t.Fatalf("turn summary mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestPenaltyReductionRoles(t *testing.T) {
	for _, role := range []Role{RoleLookout, RoleEngineer} {
		s := newSession(t, role)
		s = SelectBuilding(s, "bank-vault")
		s = BeginActionPhase(s)
		s = CommitAction(s)
		s = ResolveTurn(s)
		if s.Penalties != 0 {
			t.Fatalf("%s should shrug off difficulty-8 penalty, got %d", role, s.Penalties)
		}
	}
}

func TestProgressFloor(t *testing.T) {
	// Saboteur on docks: round(16*0.95 - 5*1.3) = round(8.7) = 9, above floor.
	// Force the floor by checking a hostile pairing: saboteur on armory:
	// round(28*0.95 - 9*1.3) = round(14.9) = 15 — still above. The floor can
	// only bind with weaker buildings than the shipped catalog, so assert the
	// arithmetic directly instead.
	s := newSession(t, RoleSaboteur)
	s = SelectBuilding(s, "docks")
	_, impact, ok := resolveBuildingImpact(s)
	if !ok {
		t.Fatalf("impact not computed")
	}
	if impact.progressGain < 5 {
		t.Fatalf("progress gain below floor: %d", impact.progressGain)
	}
	if impact.progressGain != 9 {
		t.Fatalf("docks/saboteur progress: want 9, got %d", impact.progressGain)
	}
}

func TestOutcomePrecedenceWinBeatsLoss(t *testing.T) {
	s := newSession(t, RoleInfiltrator)
	s.ObjectiveProgress = 100
	s.Penalties = 3
	outcome, done := ComputeOutcome(s)
	if !done || outcome != OutcomeWin {
		t.Fatalf("simultaneous win+loss must resolve as win, got %v/%v", outcome, done)
	}
}

func TestOutcomeLossConditions(t *testing.T) {
	base := newSession(t, RoleInfiltrator)

	s := base
	s.Penalties = 3
	if outcome, done := ComputeOutcome(s); !done || outcome != OutcomeLoss {
		t.Fatalf("3 penalties must lose")
	}

	s = base
	s = WithRemainingSeconds(s, 0)
	if outcome, done := ComputeOutcome(s); !done || outcome != OutcomeLoss {
		t.Fatalf("expired clock must lose")
	}

	s = base
	s.TurnsPlayed = 8
	if outcome, done := ComputeOutcome(s); !done || outcome != OutcomeLoss {
		t.Fatalf("8 turns must lose")
	}

	if _, done := ComputeOutcome(base); done {
		t.Fatalf("fresh session must have no outcome")
	}
}

func TestWithRemainingSecondsClamps(t *testing.T) {
	s := newSession(t, RoleEngineer)
	s = WithRemainingSeconds(s, -15)
	if s.RemainingSeconds != 0 {
		t.Fatalf("negative seconds must clamp to 0, got %d", s.RemainingSeconds)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	s := newSession(t, RoleLookout)
	once := FinalizeSession(s, OutcomeLoss, "Time expired before mission completion.")
	twice := FinalizeSession(once, OutcomeWin, "should not appear")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("finalize must be idempotent")
	}
	if got := lastLog(t, once); got != "Result: LOSS - Time expired before mission completion." {
		t.Fatalf("unexpected result log: %q", got)
	}
}

func TestCompleteIsAbsorbing(t *testing.T) {
	s := newSession(t, RoleInfiltrator)
	s = SelectBuilding(s, "watchtower")
	s = FinalizeSession(s, OutcomeLoss, "Mission fail condition reached.")

	for name, fn := range map[string]func(Session) Session{
		"SelectBuilding":   func(s Session) Session { return SelectBuilding(s, "docks") },
		"BeginActionPhase": BeginActionPhase,
		"CommitAction":     CommitAction,
		"ResolveTurn":      ResolveTurn,
	} {
		if next := fn(s); !reflect.DeepEqual(s, next) {
			t.Fatalf("%s changed a complete session", name)
		}
	}
}

func TestResolveFinalizesOnWin(t *testing.T) {
	s := newSession(t, RoleInfiltrator)
	s.ObjectiveProgress = 95
	s = SelectBuilding(s, "watchtower")
	s = BeginActionPhase(s)
	s = CommitAction(s)
	s = ResolveTurn(s)

	if s.Phase != PhaseComplete {
		t.Fatalf("expected finalized session, got phase %s", s.Phase)
	}
	if s.ObjectiveProgress != 100 {
		t.Fatalf("progress must clamp at 100, got %d", s.ObjectiveProgress)
	}
	if got := lastLog(t, s); got != "Result: WIN - Objective completed before the deadline." {
		t.Fatalf("unexpected result log: %q", got)
	}
}

func TestResolveFinalizesOnMaxTurns(t *testing.T) {
	s := newSession(t, RoleSaboteur)
	s.TurnsPlayed = 7
	s = SelectBuilding(s, "docks")
	s = BeginActionPhase(s)
	s = CommitAction(s)
	s = ResolveTurn(s)
	if s.Phase != PhaseComplete {
		t.Fatalf("eighth turn must finalize, got phase %s", s.Phase)
	}
	if !strings.Contains(lastLog(t, s), "LOSS") {
		t.Fatalf("expected loss result, log: %q", lastLog(t, s))
	}
}

func TestCopyOnWriteLogIsolation(t *testing.T) {
	s := newSession(t, RoleInfiltrator)
	s = SelectBuilding(s, "watchtower")
	locked := BeginActionPhase(s)
	committed := CommitAction(locked)
	if len(locked.ActionLog) == len(committed.ActionLog) {
		t.Fatalf("commit should have appended to a fresh log copy")
	}
	if lastLog(t, locked) == lastLog(t, committed) {
		t.Fatalf("older session value must not see later appends")
	}
}

func TestHydrateClamps(t *testing.T) {
	s := Session{RemainingSeconds: -4, TurnsPlayed: -1, Penalties: -2, ObjectiveProgress: 300}
	s = Hydrate(s)
	if s.Phase != PhasePlanning {
		t.Fatalf("empty phase must hydrate to planning")
	}
	if s.RemainingSeconds != 0 || s.TurnsPlayed != 0 || s.Penalties != 0 {
		t.Fatalf("counters must clamp at zero: %+v", s)
	}
	if s.ObjectiveProgress != 100 {
		t.Fatalf("progress must clamp to objective ceiling, got %d", s.ObjectiveProgress)
	}
}

func TestTimeProgressPercent(t *testing.T) {
	s := newSession(t, RoleLookout)
	if pct := TimeProgressPercent(s); pct != 100 {
		t.Fatalf("full clock should be 100, got %v", pct)
	}
	s = WithRemainingSeconds(s, s.DurationSeconds/2)
	if pct := TimeProgressPercent(s); pct != 50 {
		t.Fatalf("half clock should be 50, got %v", pct)
	}
	s.DurationSeconds = 0
	if pct := TimeProgressPercent(s); pct != 0 {
		t.Fatalf("zero duration should be 0, got %v", pct)
	}
}

func TestPhaseHints(t *testing.T) {
	if PhaseHint(PhasePlanning) != "Planning: Select a target building." {
		t.Fatalf("unexpected planning hint: %q", PhaseHint(PhasePlanning))
	}
	for _, p := range []Phase{PhasePlanning, PhaseAction, PhaseResolution, PhaseComplete} {
		if PhaseHint(p) == "" || PhaseLabel(p) == "" {
			t.Fatalf("missing hint/label for %s", p)
		}
	}
}
