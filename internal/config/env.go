package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// FromEnv loads balance configuration from environment variables.
// An optional .env file in the working directory is read first.
// Falls back to defaults if variables are not set.
func FromEnv() Balance {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	cfg := Default()

	// Support preset modes
	switch os.Getenv("DIFFICULTY") {
	case "casual":
		cfg = Casual()
	case "hard":
		cfg = Hard()
	}

	if val := getEnvInt("CHICK_TOTAL_GAME_DAYS"); val > 0 {
		cfg.TotalGameDays = val
	}
	if val := getEnvInt("CHICK_EARLY_GAME_THRESHOLD"); val > 0 {
		cfg.EarlyGameThreshold = val
	}
	if val := getEnvInt("CHICK_MID_GAME_THRESHOLD"); val > 0 {
		cfg.MidGameThreshold = val
	}
	if val := getEnvInt("CHICK_EVENT_COOLDOWN_DAYS"); val > 0 {
		cfg.EventCooldownDays = val
	}
	if val := getEnvInt("CHICK_MAX_CASCADE_DEPTH"); val > 0 {
		cfg.MaxCascadeDepth = val
	}
	if val := getEnvInt("CHICK_MAX_RETRY_ATTEMPTS"); val > 0 {
		cfg.MaxRetryAttempts = val
	}
	if val := getEnvFloat("CHICK_TIMEOUT_SECONDS"); val > 0 {
		cfg.TimeoutSeconds = val
	}
	if val := getEnvFloat("CHICK_STARTING_MONEY"); val > 0 {
		cfg.Starting.Money = val
	}
	if val := getEnvInt("CHICK_HISTORY_WINDOW"); val > 0 {
		cfg.HistoryWindow = val
	}

	return cfg
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

func getEnvFloat(key string) float64 {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return num
}
