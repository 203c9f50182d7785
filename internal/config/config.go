package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	IdentityBaseURL string
	AnalysisBaseURL string

	MoveTimeSec    int
	AllowedOrigins []string
	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:  ":8080",
		MoveTimeSec: 60,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.IdentityBaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	cfg.AnalysisBaseURL = strings.TrimSpace(os.Getenv("ANALYSIS_BASE_URL"))

	if v := strings.TrimSpace(os.Getenv("MOVE_TIME_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MoveTimeSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
