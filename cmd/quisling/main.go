package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/quisling/quisling-go/internal/catalog"
	appcfg "github.com/quisling/quisling-go/internal/config"
	"github.com/quisling/quisling-go/internal/engine"
	"github.com/quisling/quisling-go/internal/identity"
	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/lobby"
	"github.com/quisling/quisling-go/internal/obslog"
	"github.com/quisling/quisling-go/internal/results"
	"github.com/quisling/quisling-go/internal/session"
)

type app struct {
	cfg      *appcfg.AppConfig
	store    kvstore.Store
	users    *identity.Store
	lobbies  *lobby.Registry
	sessions *session.Manager
	recorder *results.Recorder

	mu    sync.Mutex
	timer *session.Timer
}

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}

	engine.Configure(engine.Rules{
		DurationSeconds:      cfg.MissionDurationSec,
		MaxTurns:             cfg.MissionMaxTurns,
		MaxPenalties:         cfg.MissionMaxPenalties,
		WinObjectiveProgress: cfg.MissionWinProgress,
	})

	var store kvstore.Store
	if cfg.RedisURL != "" {
		rs, err := kvstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer rs.Close()
		store = rs
	} else {
		obslog.L().Warn("redis_unconfigured", zap.String("fallback", "memory"))
		store = kvstore.NewMemoryStore()
	}

	users := identity.NewStore(store)
	lobbies := lobby.NewRegistry(store)
	recorder := results.NewRecorder(store, users, lobbies)
	if cfg.DatabaseURL != "" {
		repo, err := results.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("results repo init error: %v", err)
		}
		defer repo.Close()
		recorder.AttachRepository(repo)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		users:    users,
		lobbies:  lobbies,
		sessions: session.NewManager(store),
		recorder: recorder,
	}
	a.run()
}

func (a *app) run() {
	ctx := context.Background()

	if keys := a.store.CorruptedKeys(); len(keys) > 0 {
		fmt.Printf("Storage issue detected (%s). Run 'reset' to clear saved data.\n", strings.Join(keys, ", "))
	}
	if s, ok := a.sessions.Load(ctx); ok && !s.Complete() {
		fmt.Printf("Resuming mission in room %s (%s phase).\n", s.RoomCode, engine.PhaseLabel(s.Phase))
		a.startClock()
	}

	fmt.Println("quisling — type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]
		if cmd == "quit" || cmd == "exit" {
			break
		}
		a.dispatch(ctx, cmd, args)
	}
	a.stopClock()
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		a.showHelp()
	case "register":
		a.handleRegister(ctx, args)
	case "login":
		a.handleLogin(ctx, args)
	case "logout":
		a.users.Logout(ctx)
		fmt.Println("Logged out.")
	case "whoami":
		a.handleWhoami(ctx)
	case "profile":
		a.handleProfile(ctx, args)
	case "create":
		a.handleCreate(ctx)
	case "join":
		a.handleJoin(ctx, args)
	case "leave":
		a.handleLeave(ctx)
	case "rooms":
		a.handleRooms(ctx)
	case "start":
		a.handleStart(ctx)
	case "map":
		a.handleMap()
	case "select":
		a.handleSelect(ctx, args)
	case "lock":
		a.applyIfActive(ctx, engine.BeginActionPhase)
	case "commit":
		a.applyIfActive(ctx, engine.CommitAction)
	case "resolve":
		a.handleResolve(ctx)
	case "status":
		a.handleStatus()
	case "results":
		a.handleResults(ctx)
	case "replay":
		a.handleReplay(ctx)
	case "reset":
		a.store.ResetKeys(ctx, kvstore.AllKeys()...)
		a.sessions.Clear(ctx)
		fmt.Println("Saved data cleared.")
	default:
		fmt.Println("Unknown command. Try 'help'.")
	}
}

func (a *app) showHelp() {
	// The clock stops while the overlay is open so reading rules costs no
	// mission time.
	a.pauseClock()
	defer a.resumeClock()
	fmt.Println(strings.Join([]string{
		"Commands:",
		"  register <email> <password> [name]   create an account",
		"  login <email> <password>             sign in",
		"  logout / whoami                      session info",
		"  profile <name>                       change display name",
		"  create                               open a room with a fresh code",
		"  join <code>                          join a room by 4-letter code",
		"  rooms / leave                        list open rooms / leave yours",
		"  start                                begin the mission",
		"  map / select <building> / lock       plan a target",
		"  commit / resolve                     execute and resolve the turn",
		"  status / results / replay            progress and history",
		"  reset                                clear saved data",
	}, "\n"))
}

func (a *app) handleRegister(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: register <email> <password> [name]")
		return
	}
	name := ""
	if len(args) >= 3 {
		name = strings.Join(args[2:], " ")
	}
	u, err := a.users.Register(ctx, args[0], args[1], name)
	if err != nil {
		fmt.Println("Register failed:", err)
		return
	}
	fmt.Printf("Welcome, %s.\n", u.DisplayName)
}

func (a *app) handleLogin(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: login <email> <password>")
		return
	}
	u, err := a.users.Login(ctx, args[0], args[1])
	if err != nil {
		fmt.Println("Login failed:", err)
		return
	}
	fmt.Printf("Welcome back, %s.\n", u.DisplayName)
}

func (a *app) handleWhoami(ctx context.Context) {
	u, ok := a.users.Current(ctx)
	if !ok {
		fmt.Println("Not signed in.")
		return
	}
	fmt.Printf("%s <%s> — %d games, %d wins, best score %d\n",
		u.DisplayName, u.Email, u.Stats.GamesPlayed, u.Stats.Wins, u.Stats.BestScore)
}

func (a *app) handleProfile(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: profile <name>")
		return
	}
	u, err := a.users.UpdateProfile(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Println("Profile update failed:", err)
		return
	}
	fmt.Printf("Display name set to %s.\n", u.DisplayName)
}

func (a *app) requireUser(ctx context.Context) (identity.User, bool) {
	u, ok := a.users.Current(ctx)
	if !ok {
		fmt.Println("Sign in first ('login' or 'register').")
	}
	return u, ok
}

func (a *app) handleCreate(ctx context.Context) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	l, err := a.lobbies.Create(ctx, u.ID)
	if err != nil {
		fmt.Println("Could not create room:", err)
		return
	}
	fmt.Printf("Room %s created. Share the code, then 'start'.\n", l.RoomCode)
}

func (a *app) handleJoin(ctx context.Context, args []string) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	if len(args) < 1 {
		fmt.Println("Usage: join <code>")
		return
	}
	l, err := a.lobbies.Join(ctx, args[0], u.ID)
	if err != nil {
		fmt.Println("Could not join:", err)
		return
	}
	fmt.Printf("Joined room %s (%d players).\n", l.RoomCode, len(l.Players))
}

func (a *app) handleLeave(ctx context.Context) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	code := a.currentRoom(ctx, u.ID)
	if code == "" {
		fmt.Println("You are not in a room.")
		return
	}
	removed, err := a.lobbies.Leave(ctx, code, u.ID)
	if err != nil {
		fmt.Println("Could not leave:", err)
		return
	}
	if removed {
		fmt.Printf("Room %s closed.\n", code)
	} else {
		fmt.Printf("Left room %s.\n", code)
	}
}

func (a *app) handleRooms(ctx context.Context) {
	open := a.lobbies.Open(ctx)
	if len(open) == 0 {
		fmt.Println("No open rooms.")
		return
	}
	for _, l := range open {
		fmt.Printf("  %s — %d player(s), %s\n", l.RoomCode, len(l.Players), l.Status)
	}
}

func (a *app) currentRoom(ctx context.Context, userID string) string {
	for _, l := range a.lobbies.Open(ctx) {
		if l.HasPlayer(userID) {
			return l.RoomCode
		}
	}
	return ""
}

func (a *app) handleStart(ctx context.Context) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	if s, active := a.sessions.Current(); active && !s.Complete() {
		fmt.Println("A mission is already in progress ('status').")
		return
	}
	code := a.currentRoom(ctx, u.ID)
	if code == "" {
		fmt.Println("Create or join a room first.")
		return
	}
	if _, err := a.lobbies.MarkInProgress(ctx, code); err != nil {
		fmt.Println("Could not start:", err)
		return
	}
	s := a.sessions.Start(ctx, session.Params{
		RoomCode:   code,
		UserID:     u.ID,
		PlayerName: u.DisplayName,
		LogPrefix:  "Operation started",
	})
	fmt.Printf("Mission underway. Role: %s. %s\n", s.Role, engine.PhaseHint(s.Phase))
	a.startClock()
}

func (a *app) handleMap() {
	for _, b := range catalog.All() {
		fmt.Printf("  %-12s %-12s difficulty %d, reward %d, penalty %d\n",
			b.ID, b.Label, b.Difficulty, b.RewardPoints, b.PenaltyPoints)
	}
}

func (a *app) handleSelect(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: select <building-id> ('map' lists them)")
		return
	}
	b, ok := catalog.ByID(strings.ToLower(args[0]))
	if !ok {
		fmt.Println("Unknown building. 'map' lists the district.")
		return
	}
	a.applyIfActive(ctx, func(s engine.Session) engine.Session {
		return engine.SelectBuilding(s, b.ID)
	})
}

// applyIfActive routes a transition through the manager and prints the
// resulting phase hint. The engine ignores invalid transitions, so the UI
// compares phases to tell the player nothing happened.
func (a *app) applyIfActive(ctx context.Context, fn func(engine.Session) engine.Session) {
	before, ok := a.sessions.Current()
	if !ok {
		fmt.Println("No mission in progress ('start').")
		return
	}
	after, _ := a.sessions.Apply(ctx, fn)
	if after.Phase == before.Phase && after.SelectedBuildingID == before.SelectedBuildingID &&
		after.TurnsPlayed == before.TurnsPlayed && len(after.ActionLog) == len(before.ActionLog) {
		fmt.Println("Nothing to do right now.", engine.PhaseHint(after.Phase))
		return
	}
	if n := len(after.ActionLog); n > len(before.ActionLog) {
		for _, entry := range after.ActionLog[len(before.ActionLog):n] {
			fmt.Println(entry)
		}
	}
	if !after.Complete() {
		fmt.Println(engine.PhaseHint(after.Phase))
	}
}

func (a *app) handleResolve(ctx context.Context) {
	a.applyIfActive(ctx, engine.ResolveTurn)
	if s, ok := a.sessions.Current(); ok && s.Complete() {
		a.finishMission(ctx, s)
	}
}

func (a *app) handleStatus() {
	s, ok := a.sessions.Current()
	if !ok {
		fmt.Println("No mission in progress.")
		return
	}
	fmt.Printf("Room %s — %s phase\n", s.RoomCode, engine.PhaseLabel(s.Phase))
	fmt.Printf("  progress %d%%  score %d  penalties %d  turn %d\n",
		s.ObjectiveProgress, s.Score, s.Penalties, s.TurnsPlayed)
	fmt.Printf("  %ds remaining (%.0f%% elapsed)\n", s.RemainingSeconds, engine.TimeProgressPercent(s))
	if s.SelectedBuildingID != "" {
		if b, found := catalog.ByID(s.SelectedBuildingID); found {
			fmt.Printf("  target: %s\n", b.Label)
		}
	}
	fmt.Println(" ", engine.PhaseHint(s.Phase))
}

func (a *app) handleResults(ctx context.Context) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	mine := a.recorder.ForUser(ctx, u.ID)
	if len(mine) == 0 {
		fmt.Println("No completed missions yet.")
		return
	}
	for _, r := range mine {
		fmt.Printf("  %s  %s  score %d  %d turns, %ds left  [%s]\n",
			r.CompletedAt.Format("2006-01-02 15:04"), strings.ToUpper(string(r.Outcome)),
			r.Score, r.Summary.TurnsPlayed, r.Summary.TimeRemaining,
			strings.Join(r.Summary.BuildingsHit, ", "))
	}
}

func (a *app) handleReplay(ctx context.Context) {
	u, ok := a.requireUser(ctx)
	if !ok {
		return
	}
	s, active := a.sessions.Current()
	if !active || !s.Complete() {
		fmt.Println("Replay is available after a mission completes.")
		return
	}
	l, err := a.lobbies.Revive(ctx, s.RoomCode, u.ID)
	if err != nil {
		fmt.Println("Replay failed:", err)
		return
	}
	next := a.sessions.Start(ctx, session.Params{
		RoomCode:   l.RoomCode,
		UserID:     u.ID,
		PlayerName: u.DisplayName,
		LogPrefix:  "Replay started",
	})
	fmt.Printf("Back in room %s. Role: %s. %s\n", l.RoomCode, next.Role, engine.PhaseHint(next.Phase))
	a.startClock()
}

func (a *app) finishMission(ctx context.Context, s engine.Session) {
	a.stopClock()
	res, err := a.recorder.Record(ctx, s)
	if err != nil {
		obslog.L().Error("result_record_error", zap.Error(err))
		return
	}
	fmt.Printf("Mission complete: %s, score %d. 'results' for history, 'replay' to go again.\n",
		strings.ToUpper(string(res.Outcome)), res.Score)
}

func (a *app) startClock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = session.NewTimer(a.tick)
}

func (a *app) pauseClock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Pause()
	}
}

func (a *app) resumeClock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Resume()
	}
}

func (a *app) stopClock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// tick runs once per second while a mission is live: burn a second, then
// re-check the outcome so a timeout ends the run without player input.
func (a *app) tick() {
	ctx := context.Background()
	s, ok := a.sessions.Apply(ctx, func(s engine.Session) engine.Session {
		if s.Complete() {
			return s
		}
		s = engine.WithRemainingSeconds(s, s.RemainingSeconds-1)
		if outcome, done := engine.ComputeOutcome(s); done {
			reason := "Objective reached before mission fail conditions."
			if outcome == engine.OutcomeLoss {
				reason = "Mission fail condition reached."
				if s.RemainingSeconds <= 0 {
					reason = "Time expired before mission completion."
				}
			}
			s = engine.FinalizeSession(s, outcome, reason)
		}
		return s
	})
	if ok && s.Complete() {
		fmt.Println()
		a.finishMission(ctx, s)
		fmt.Print("> ")
	}
}
