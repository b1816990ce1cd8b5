package config

import (
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	RedisURL    string
	DatabaseURL string

	PlayerName string

	MissionDurationSec  int
	MissionMaxTurns     int
	MissionMaxPenalties int
	MissionWinProgress  int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		PlayerName:          "Operative",
		MissionDurationSec:  180,
		MissionMaxTurns:     8,
		MissionMaxPenalties: 3,
		MissionWinProgress:  100,
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}

	if v := strings.TrimSpace(os.Getenv("MISSION_DURATION_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MissionDurationSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MISSION_MAX_TURNS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MissionMaxTurns = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MISSION_MAX_PENALTIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MissionMaxPenalties = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MISSION_WIN_PROGRESS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MissionWinProgress = n
		}
	}

	return cfg, nil
}
