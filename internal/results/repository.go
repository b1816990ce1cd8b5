package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository mirrors finalized results into Postgres for reporting queries
// that outlive the key-value store.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a mission result row keyed by result id.
func (r *Repository) SaveResult(ctx context.Context, res *Result) error {
	if r == nil || r.db == nil || res == nil {
		return nil
	}

	buildingsRaw, _ := json.Marshal(res.Summary.BuildingsHit)

	q := `INSERT INTO mission_results (
	    result_id, game_id, user_id, room_code,
	    outcome, score, buildings_hit, turns_played, time_remaining,
	    completed_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
	  ) ON CONFLICT (result_id) DO UPDATE SET
	    game_id=EXCLUDED.game_id,
	    user_id=EXCLUDED.user_id,
	    room_code=EXCLUDED.room_code,
	    outcome=EXCLUDED.outcome,
	    score=EXCLUDED.score,
	    buildings_hit=EXCLUDED.buildings_hit,
	    turns_played=EXCLUDED.turns_played,
	    time_remaining=EXCLUDED.time_remaining,
	    completed_at=EXCLUDED.completed_at`

	_, err := r.db.ExecContext(ctx, q,
		res.ID, res.GameID, res.UserID, res.RoomCode,
		string(res.Outcome), res.Score, string(buildingsRaw),
		res.Summary.TurnsPlayed, res.Summary.TimeRemaining,
		res.CompletedAt,
	)
	return err
}
