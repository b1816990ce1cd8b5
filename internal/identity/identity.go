package identity

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/quisling/quisling-go/internal/engine"
	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/obslog"
)

var (
	ErrInvalidEmail     = errors.New("please provide a valid email address")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrEmailTaken       = errors.New("an account with that email already exists")
	ErrBadCredentials   = errors.New("invalid email or password")
	ErrNotAuthenticated = errors.New("not logged in")
	ErrEmptyDisplayName = errors.New("display name cannot be empty")
)

const passwordMinLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Stats are the per-user aggregates fed by finalized match results.
type Stats struct {
	GamesPlayed int `json:"gamesPlayed"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	WinRate     int `json:"winRate"`
	TotalScore  int `json:"totalScore"`
	BestScore   int `json:"bestScore"`
}

// User is a registered player record.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	Stats        Stats     `json:"stats"`
	Friends      []string  `json:"friends"`
	History      []string  `json:"history"`
}

// AuthSession is the single active login.
type AuthSession struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	LoggedInAt  time.Time `json:"loggedInAt"`
}

// ResultInput is the slice of a finalized match result the identity store
// needs for aggregates.
type ResultInput struct {
	ResultID string
	Outcome  engine.Outcome
	Score    int
}

// Store manages user records and the active auth session over the key-value
// store.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeDisplayName(displayName, fallbackEmail string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	if prefix, _, found := strings.Cut(fallbackEmail, "@"); found && prefix != "" {
		return prefix
	}
	return "Player"
}

func (s *Store) users(ctx context.Context) []User {
	var users []User
	s.kv.Get(ctx, kvstore.KeyUsers, &users)
	return users
}

// Register creates a user and logs them in.
func (s *Store) Register(ctx context.Context, email, password, displayName string) (User, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return User{}, ErrInvalidEmail
	}
	if len(password) < passwordMinLength {
		return User{}, ErrPasswordTooShort
	}
	users := s.users(ctx)
	for _, u := range users {
		if u.Email == email {
			return User{}, ErrEmailTaken
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           "usr_" + uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  normalizeDisplayName(displayName, email),
		CreatedAt:    time.Now(),
	}
	s.kv.Set(ctx, kvstore.KeyUsers, append(users, u))
	s.setSession(ctx, u)
	obslog.L().Info("user_register", zap.String("user_id", u.ID))
	return u, nil
}

// Login authenticates against the stored hash and opens a session.
func (s *Store) Login(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return User{}, ErrInvalidEmail
	}
	for _, u := range s.users(ctx) {
		if u.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			return User{}, ErrBadCredentials
		}
		s.setSession(ctx, u)
		obslog.L().Info("user_login", zap.String("user_id", u.ID))
		return u, nil
	}
	return User{}, ErrBadCredentials
}

// Logout drops the active session. The user record stays.
func (s *Store) Logout(ctx context.Context) {
	s.kv.Delete(ctx, kvstore.KeyAuthSession)
}

// Current returns the user behind the active session, dropping sessions whose
// user record disappeared.
func (s *Store) Current(ctx context.Context) (User, bool) {
	var session AuthSession
	if !s.kv.Get(ctx, kvstore.KeyAuthSession, &session) || session.UserID == "" {
		return User{}, false
	}
	for _, u := range s.users(ctx) {
		if u.ID == session.UserID {
			return u, true
		}
	}
	s.kv.Delete(ctx, kvstore.KeyAuthSession)
	return User{}, false
}

// IsAuthenticated reports whether a valid user session is active.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Current(ctx)
	return ok
}

// UpdateProfile changes the current user's display name.
func (s *Store) UpdateProfile(ctx context.Context, displayName string) (User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return User{}, ErrEmptyDisplayName
	}
	current, ok := s.Current(ctx)
	if !ok {
		return User{}, ErrNotAuthenticated
	}
	updated := current
	updated.DisplayName = displayName
	s.replaceUser(ctx, updated)
	s.setSession(ctx, updated)
	return updated, nil
}

// RecordResult folds a finalized match result into the owning user's
// aggregates and appends the result id to their history.
func (s *Store) RecordResult(ctx context.Context, userID string, in ResultInput) {
	users := s.users(ctx)
	for i, u := range users {
		if u.ID != userID {
			continue
		}
		u.Stats.GamesPlayed++
		if in.Outcome == engine.OutcomeWin {
			u.Stats.Wins++
		} else {
			u.Stats.Losses++
		}
		u.Stats.WinRate = int(math.Round(float64(u.Stats.Wins) / float64(u.Stats.GamesPlayed) * 100))
		u.Stats.TotalScore += in.Score
		if in.Score > u.Stats.BestScore {
			u.Stats.BestScore = in.Score
		}
		u.History = append(u.History, in.ResultID)
		users[i] = u
		s.kv.Set(ctx, kvstore.KeyUsers, users)
		obslog.L().Info("stats_update",
			zap.String("user_id", userID),
			zap.String("outcome", string(in.Outcome)),
			zap.Int("score", in.Score),
			zap.Int("games_played", u.Stats.GamesPlayed),
		)
		return
	}
	obslog.L().Warn("stats_update_unknown_user", zap.String("user_id", userID))
}

func (s *Store) replaceUser(ctx context.Context, updated User) {
	users := s.users(ctx)
	for i, u := range users {
		if u.ID == updated.ID {
			users[i] = updated
			break
		}
	}
	s.kv.Set(ctx, kvstore.KeyUsers, users)
}

func (s *Store) setSession(ctx context.Context, u User) {
	s.kv.Set(ctx, kvstore.KeyAuthSession, AuthSession{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		LoggedInAt:  time.Now(),
	})
}
