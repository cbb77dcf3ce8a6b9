package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMTimeoutSec  int
	LLMMaxTokens   int
	LLMTemperature float64

	RedisURL           string
	DatabaseURL        string
	ExplanationsTTLHrs int

	HTTPAddr string

	ExplainMaxLength     int
	ExplainExcellent     bool
	ExplainOpening       bool
	ExplainMinEvalChange float64
	ExplainConcurrency   int
	ExplainWindowPauseMs int

	PromptsDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LLMBaseURL:           "https://api.openai.com",
		LLMModel:             "gpt-4o-mini",
		LLMTimeoutSec:        30,
		LLMMaxTokens:         300,
		LLMTemperature:       0.2,
		RedisURL:             "redis://localhost:6379/0",
		ExplanationsTTLHrs:   72,
		HTTPAddr:             ":8080",
		ExplainMaxLength:     150,
		ExplainMinEvalChange: 5,
		ExplainConcurrency:   3,
		ExplainWindowPauseMs: 100,
	}

	cfg.LLMAPIKey = strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("LLM_BASE_URL")); v != "" {
		cfg.LLMBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLMModel = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLMTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MAX_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LLMMaxTokens = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLM_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.LLMTemperature = f
		}
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("EXPLANATIONS_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExplanationsTTLHrs = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	if v := strings.TrimSpace(os.Getenv("EXPLAIN_MAX_LENGTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExplainMaxLength = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPLAIN_EXCELLENT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExplainExcellent = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPLAIN_OPENING")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ExplainOpening = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPLAIN_MIN_EVAL_CHANGE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ExplainMinEvalChange = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPLAIN_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExplainConcurrency = n
		}
	}
	// Zero disables the pause between dispatch windows.
	if v := strings.TrimSpace(os.Getenv("EXPLAIN_WINDOW_PAUSE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ExplainWindowPauseMs = n
		}
	}

	cfg.PromptsDir = strings.TrimSpace(os.Getenv("PROMPTS_DIR"))

	if cfg.LLMAPIKey == "" {
		return nil, errors.New("LLM_API_KEY is required")
	}

	return cfg, nil
}
