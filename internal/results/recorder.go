package results

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/engine"
	"github.com/quisling/quisling-go/internal/identity"
	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/lobby"
	"github.com/quisling/quisling-go/internal/obslog"
)

var ErrSessionNotComplete = errors.New("session has not completed")

// Summary is the per-mission breakdown shown on the results view.
type Summary struct {
	BuildingsHit  []string `json:"buildingsHit"`
	TurnsPlayed   int      `json:"turnsPlayed"`
	TimeRemaining int      `json:"timeRemaining"`
}

// Result is the immutable record of one finalized session.
type Result struct {
	ID          string         `json:"id"`
	GameID      string         `json:"gameId"`
	UserID      string         `json:"userId"`
	RoomCode    string         `json:"roomCode"`
	Outcome     engine.Outcome `json:"outcome"`
	Score       int            `json:"score"`
	Summary     Summary        `json:"summary"`
	CompletedAt time.Time      `json:"completedAt"`
}

// Turn summary lines carry the building label between the turn number and
// the yield report.
var turnLinePattern = regexp.MustCompile(`^Turn \d+: (.+?) yielded`)

// Recorder converts completed sessions into persisted results exactly once
// per session, then fans the result out to the identity store and lobby
// registry.
type Recorder struct {
	kv      kvstore.Store
	users   *identity.Store
	lobbies *lobby.Registry
	repo    *Repository

	// mu serializes recording: the countdown tick and the command loop can
	// both observe completion and race into Record for the same session.
	mu       sync.Mutex
	recorded map[string]struct{}
}

func NewRecorder(kv kvstore.Store, users *identity.Store, lobbies *lobby.Registry) *Recorder {
	return &Recorder{
		kv:       kv,
		users:    users,
		lobbies:  lobbies,
		recorded: make(map[string]struct{}),
	}
}

// AttachRepository wires an optional database repository for durable result
// rows. Nil-safe; without it results only live in the key-value store.
func (r *Recorder) AttachRepository(repo *Repository) {
	if r != nil {
		r.repo = repo
	}
}

// BuildingsHit extracts the ordered building labels from a session's turn
// summary lines.
func BuildingsHit(actionLog []string) []string {
	var hits []string
	for _, entry := range actionLog {
		if m := turnLinePattern.FindStringSubmatch(entry); m != nil {
			hits = append(hits, m[1])
		}
	}
	return hits
}

// Record persists the result of a completed session. The outcome is
// re-derived from objective progress against the win threshold rather than
// trusting the stored finalize reason, so the record cannot drift from the
// arithmetic. Re-entrant calls for the same session id return the first
// result unchanged.
func (r *Recorder) Record(ctx context.Context, s engine.Session) (Result, error) {
	if s.Phase != engine.PhaseComplete {
		return Result{}, ErrSessionNotComplete
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.recorded[s.ID]; done {
		return r.findByGame(ctx, s.ID), nil
	}
	r.recorded[s.ID] = struct{}{}

	outcome := engine.OutcomeLoss
	if s.ObjectiveProgress >= engine.ActiveRules().WinObjectiveProgress {
		outcome = engine.OutcomeWin
	}

	result := Result{
		ID:       "result_" + uuid.NewString(),
		GameID:   s.ID,
		UserID:   s.UserID,
		RoomCode: s.RoomCode,
		Outcome:  outcome,
		Score:    s.Score,
		Summary: Summary{
			BuildingsHit:  BuildingsHit(s.ActionLog),
			TurnsPlayed:   s.TurnsPlayed,
			TimeRemaining: s.RemainingSeconds,
		},
		CompletedAt: time.Now(),
	}

	kvstore.Update(ctx, r.kv, kvstore.KeyResults, []Result{}, func(all []Result) []Result {
		return append(all, result)
	})
	r.users.RecordResult(ctx, s.UserID, identity.ResultInput{
		ResultID: result.ID,
		Outcome:  outcome,
		Score:    s.Score,
	})
	if _, err := r.lobbies.MarkComplete(ctx, s.RoomCode); err != nil {
		obslog.L().Warn("result_lobby_complete_error", zap.String("room_code", s.RoomCode), zap.Error(err))
	}
	if r.repo != nil {
		if err := r.repo.SaveResult(ctx, &result); err != nil {
			obslog.L().Error("result_persist_error", zap.String("result_id", result.ID), zap.Error(err))
		}
	}

	obslog.L().Info("result_record",
		zap.String("result_id", result.ID),
		zap.String("game_id", s.ID),
		zap.String("outcome", string(outcome)),
		zap.Int("score", s.Score),
	)
	return result, nil
}

// ForUser lists a user's results, newest first.
func (r *Recorder) ForUser(ctx context.Context, userID string) []Result {
	var all []Result
	r.kv.Get(ctx, kvstore.KeyResults, &all)
	var mine []Result
	for _, res := range all {
		if res.UserID == userID {
			mine = append(mine, res)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		return mine[i].CompletedAt.After(mine[j].CompletedAt)
	})
	return mine
}

func (r *Recorder) findByGame(ctx context.Context, gameID string) Result {
	var all []Result
	r.kv.Get(ctx, kvstore.KeyResults, &all)
	for _, res := range all {
		if res.GameID == gameID {
			return res
		}
	}
	return Result{}
}
