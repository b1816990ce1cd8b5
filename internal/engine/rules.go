package engine

// Rules are the fixed mission constants. They are package-wide: every session
// in a process plays under the same rules.
type Rules struct {
	DurationSeconds      int
	MaxTurns             int
	MaxPenalties         int
	WinObjectiveProgress int
}

// DefaultRules returns the shipped rule set: 180s missions, 8 turns,
// 3 penalties, 100-point objective.
func DefaultRules() Rules {
	return Rules{
		DurationSeconds:      180,
		MaxTurns:             8,
		MaxPenalties:         3,
		WinObjectiveProgress: 100,
	}
}

var rules = DefaultRules()

// Configure replaces the active rule set. Call once at startup, before any
// session exists; zero or negative fields keep their defaults.
func Configure(r Rules) {
	def := DefaultRules()
	if r.DurationSeconds <= 0 {
		r.DurationSeconds = def.DurationSeconds
	}
	if r.MaxTurns <= 0 {
		r.MaxTurns = def.MaxTurns
	}
	if r.MaxPenalties <= 0 {
		r.MaxPenalties = def.MaxPenalties
	}
	if r.WinObjectiveProgress <= 0 {
		r.WinObjectiveProgress = def.WinObjectiveProgress
	}
	rules = r
}

// ActiveRules returns the rule set sessions currently play under.
func ActiveRules() Rules { return rules }

// Applied to progress gain only; score weighting stays role-neutral.
var roleProgressMultiplier = map[Role]float64{
	RoleInfiltrator: 1.2,
	RoleLookout:     1.1,
	RoleSaboteur:    0.95,
	RoleEngineer:    1.05,
}

// Lookout and Engineer shrug off the one-penalty risk of difficulty >= 8 targets.
var rolePenaltyReduction = map[Role]int{
	RoleInfiltrator: 0,
	RoleLookout:     1,
	RoleSaboteur:    0,
	RoleEngineer:    1,
}
