package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	CORSOrigins []string

	// Timing defaults copied into each new game.
	HidingTimeMin    int
	QuestionDelayMin int

	// Policy flags for behavior the rules leave open.
	AllowEndgameQuestions bool
	SilentEndgame         bool
}

func Load() Config {
	// Missing .env is fine; real env vars always win.
	_ = godotenv.Load()

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		CORSOrigins:           getEnvList("CORS_ORIGINS", []string{"*"}),
		HidingTimeMin:         getEnvInt("HIDING_TIME_MIN", 30),
		QuestionDelayMin:      getEnvInt("QUESTION_DELAY_MIN", 5),
		AllowEndgameQuestions: getEnvBool("ALLOW_ENDGAME_QUESTIONS", false),
		SilentEndgame:         getEnvBool("SILENT_ENDGAME", false),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
