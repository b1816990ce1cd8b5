package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quisling/quisling-go/internal/engine"
)

// Params describes a lobby join/create event the factory turns into a session.
type Params struct {
	RoomCode   string
	UserID     string
	PlayerName string
	// LogPrefix seeds the first action log entry; defaults to "Session created".
	LogPrefix string
}

// RoleFor deterministically assigns a role from an opaque user id: character
// code sum modulo the role list. Stable across reconnects without any server
// coordination; the trade-off is that roles are not load-balanced.
func RoleFor(userID string) engine.Role {
	seed := 0
	for _, r := range userID {
		seed += int(r)
	}
	return engine.Roles[seed%len(engine.Roles)]
}

// New derives a fresh session in the planning phase with the full mission
// clock and zeroed counters.
func New(p Params) engine.Session {
	rules := engine.ActiveRules()
	prefix := p.LogPrefix
	if prefix == "" {
		prefix = "Session created"
	}
	now := time.Now()
	return engine.Session{
		ID:               "game_" + uuid.NewString(),
		RoomCode:         p.RoomCode,
		UserID:           p.UserID,
		PlayerName:       p.PlayerName,
		Role:             RoleFor(p.UserID),
		Phase:            engine.PhasePlanning,
		StartedAt:        now,
		DurationSeconds:  rules.DurationSeconds,
		RemainingSeconds: rules.DurationSeconds,
		ActionLog:        []string{fmt.Sprintf("%s at %s", prefix, now.Format(time.RFC3339))},
	}
}
