package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/obslog"
	"github.com/quisling/quisling-go/internal/roomcode"
)

var (
	ErrNotFound    = errors.New("lobby not found")
	ErrInvalidCode = errors.New("invalid room code")
)

// Status is the lobby lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// Lobby is a room awaiting or hosting players, identified by a 4-letter code.
type Lobby struct {
	ID         string    `json:"id"`
	RoomCode   string    `json:"roomCode"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	HostUserID string    `json:"hostUserId"`
	Players    []string  `json:"players"`
	Status     Status    `json:"status"`
}

// HasPlayer reports membership; insertion order is irrelevant.
func (l Lobby) HasPlayer(userID string) bool {
	for _, p := range l.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// Registry tracks open rooms in the persisted lobby collection. All
// operations load, transform, and write back the whole collection; the
// collection is small and has a single writer.
type Registry struct {
	store kvstore.Store
}

func NewRegistry(store kvstore.Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) load(ctx context.Context) []Lobby {
	var lobbies []Lobby
	r.store.Get(ctx, kvstore.KeyLobbies, &lobbies)
	return lobbies
}

func (r *Registry) save(ctx context.Context, lobbies []Lobby) {
	r.store.Set(ctx, kvstore.KeyLobbies, lobbies)
}

// Create opens a lobby under a freshly generated unique code.
func (r *Registry) Create(ctx context.Context, hostUserID string) (Lobby, error) {
	lobbies := r.load(ctx)
	existing := make(map[string]struct{}, len(lobbies))
	for _, l := range lobbies {
		if l.Status != StatusComplete {
			existing[l.RoomCode] = struct{}{}
		}
	}
	code, err := roomcode.Generate(existing)
	if err != nil {
		return Lobby{}, err
	}
	return r.createWithCode(ctx, lobbies, hostUserID, code)
}

// CreateWithCode opens a lobby under a caller-chosen code (replays, tests).
func (r *Registry) CreateWithCode(ctx context.Context, hostUserID, code string) (Lobby, error) {
	code = roomcode.Normalize(code)
	if !roomcode.IsValid(code) {
		return Lobby{}, ErrInvalidCode
	}
	return r.createWithCode(ctx, r.load(ctx), hostUserID, code)
}

func (r *Registry) createWithCode(ctx context.Context, lobbies []Lobby, hostUserID, code string) (Lobby, error) {
	now := time.Now()
	l := Lobby{
		ID:         "lobby_" + uuid.NewString(),
		RoomCode:   code,
		CreatedAt:  now,
		UpdatedAt:  now,
		HostUserID: hostUserID,
		Players:    []string{hostUserID},
		Status:     StatusOpen,
	}
	r.save(ctx, append(lobbies, l))
	obslog.L().Info("lobby_create",
		zap.String("room_code", code),
		zap.String("host_user_id", hostUserID),
	)
	return l, nil
}

// Get returns the lobby under code.
func (r *Registry) Get(ctx context.Context, code string) (Lobby, error) {
	code = roomcode.Normalize(code)
	for _, l := range r.load(ctx) {
		if l.RoomCode == code {
			return l, nil
		}
	}
	return Lobby{}, ErrNotFound
}

// Open lists lobbies still waiting for players.
func (r *Registry) Open(ctx context.Context) []Lobby {
	var open []Lobby
	for _, l := range r.load(ctx) {
		if l.Status == StatusOpen {
			open = append(open, l)
		}
	}
	return open
}

// Join adds userID to the lobby under code. Idempotent: joining twice is a
// single membership.
func (r *Registry) Join(ctx context.Context, code, userID string) (Lobby, error) {
	code = roomcode.Normalize(code)
	if !roomcode.IsValid(code) {
		return Lobby{}, ErrInvalidCode
	}
	lobbies := r.load(ctx)
	for i, l := range lobbies {
		if l.RoomCode != code {
			continue
		}
		if !l.HasPlayer(userID) {
			l.Players = append(append([]string(nil), l.Players...), userID)
		}
		l.UpdatedAt = time.Now()
		lobbies[i] = l
		r.save(ctx, lobbies)
		obslog.L().Info("lobby_join", zap.String("room_code", code), zap.String("user_id", userID))
		return l, nil
	}
	return Lobby{}, ErrNotFound
}

// Leave removes userID from the lobby. A lobby with no players left is
// deleted from the registry rather than retained.
func (r *Registry) Leave(ctx context.Context, code, userID string) (removed bool, err error) {
	code = roomcode.Normalize(code)
	lobbies := r.load(ctx)
	for i, l := range lobbies {
		if l.RoomCode != code {
			continue
		}
		players := make([]string, 0, len(l.Players))
		for _, p := range l.Players {
			if p != userID {
				players = append(players, p)
			}
		}
		if len(players) == 0 {
			r.save(ctx, append(lobbies[:i:i], lobbies[i+1:]...))
			obslog.L().Info("lobby_delete", zap.String("room_code", code))
			return true, nil
		}
		l.Players = players
		l.UpdatedAt = time.Now()
		lobbies[i] = l
		r.save(ctx, lobbies)
		obslog.L().Info("lobby_leave", zap.String("room_code", code), zap.String("user_id", userID))
		return false, nil
	}
	return false, ErrNotFound
}

// MarkInProgress flips the lobby to in_progress when its mission starts.
func (r *Registry) MarkInProgress(ctx context.Context, code string) (Lobby, error) {
	return r.setStatus(ctx, code, StatusInProgress)
}

// MarkComplete flips the lobby to complete when its session finalizes.
func (r *Registry) MarkComplete(ctx context.Context, code string) (Lobby, error) {
	return r.setStatus(ctx, code, StatusComplete)
}

func (r *Registry) setStatus(ctx context.Context, code string, status Status) (Lobby, error) {
	code = roomcode.Normalize(code)
	lobbies := r.load(ctx)
	for i, l := range lobbies {
		if l.RoomCode != code {
			continue
		}
		l.Status = status
		l.UpdatedAt = time.Now()
		lobbies[i] = l
		r.save(ctx, lobbies)
		obslog.L().Info("lobby_status", zap.String("room_code", code), zap.String("status", string(status)))
		return l, nil
	}
	return Lobby{}, ErrNotFound
}

// Revive reopens the lobby under code for a replay, creating it when the old
// one is gone. The user is added to the player set either way.
func (r *Registry) Revive(ctx context.Context, code, userID string) (Lobby, error) {
	code = roomcode.Normalize(code)
	if !roomcode.IsValid(code) {
		return Lobby{}, ErrInvalidCode
	}
	lobbies := r.load(ctx)
	for i, l := range lobbies {
		if l.RoomCode != code {
			continue
		}
		l.Status = StatusOpen
		l.UpdatedAt = time.Now()
		if !l.HasPlayer(userID) {
			l.Players = append(append([]string(nil), l.Players...), userID)
		}
		lobbies[i] = l
		r.save(ctx, lobbies)
		obslog.L().Info("lobby_revive", zap.String("room_code", code), zap.String("user_id", userID))
		return l, nil
	}
	return r.createWithCode(ctx, lobbies, userID, code)
}
