package engine

import "time"

// Phase is the stage a turn is passing through. Sessions loop
// planning -> action -> resolution -> planning until the absorbing
// complete phase is reached.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseAction     Phase = "action"
	PhaseResolution Phase = "resolution"
	PhaseComplete   Phase = "complete"
)

// Role is the secretly-assigned crew role for a session.
type Role string

const (
	RoleInfiltrator Role = "Infiltrator"
	RoleLookout     Role = "Lookout"
	RoleSaboteur    Role = "Saboteur"
	RoleEngineer    Role = "Engineer"
)

// Roles lists every role in assignment order. The order is load-bearing:
// role assignment indexes into it by userID hash.
var Roles = []Role{RoleInfiltrator, RoleLookout, RoleSaboteur, RoleEngineer}

// Outcome is the terminal result of a mission.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// Session is one player's live run through a mission. Transitions never
// mutate a Session in place; each returns a fresh value so no caller can
// observe a partial update.
type Session struct {
	ID         string    `json:"id"`
	RoomCode   string    `json:"roomCode"`
	UserID     string    `json:"userId"`
	PlayerName string    `json:"playerName"`
	Role       Role      `json:"role"`
	Phase      Phase     `json:"phase"`
	StartedAt  time.Time `json:"startedAt"`

	DurationSeconds  int `json:"durationSeconds"`
	RemainingSeconds int `json:"remainingSeconds"`

	TurnsPlayed        int      `json:"turnsPlayed"`
	SelectedBuildingID string   `json:"selectedBuildingId,omitempty"`
	ActionLog          []string `json:"actionLog"`

	Score             int `json:"score"`
	ObjectiveProgress int `json:"objectiveProgress"`
	Penalties         int `json:"penalties"`
}

// Complete reports whether the session has reached its terminal phase.
func (s Session) Complete() bool { return s.Phase == PhaseComplete }

var phaseHints = map[Phase]string{
	PhasePlanning:   "Planning: Select a target building.",
	PhaseAction:     "Action: Commit your move for this turn.",
	PhaseResolution: "Resolution: Apply outcomes and advance the mission.",
	PhaseComplete:   "Mission complete: Review your results.",
}

var phaseLabels = map[Phase]string{
	PhasePlanning:   "Planning",
	PhaseAction:     "Action",
	PhaseResolution: "Resolution",
	PhaseComplete:   "Complete",
}

// PhaseHint returns the player-facing instruction for a phase.
func PhaseHint(p Phase) string { return phaseHints[p] }

// PhaseLabel returns the short display name for a phase.
func PhaseLabel(p Phase) string { return phaseLabels[p] }
