package builder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/config"
	"github.com/boardwise/movecoach/internal/explain"
	"github.com/boardwise/movecoach/internal/llmfast"
	"github.com/boardwise/movecoach/internal/promptcat"
	"github.com/boardwise/movecoach/internal/service/cache"
	"github.com/boardwise/movecoach/internal/service/review"
)

// Deps holds the wired components shared by the binaries.
type Deps struct {
	Reviews *review.Service
	Client  *llmfast.Client
	Cache   *cache.CacheService
	Repo    review.Repository

	db *sql.DB
}

// Close releases the connections Deps owns. The database handle is nil
// when history runs on the in-memory repository.
func (d *Deps) Close() error {
	var first error
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			first = err
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// LLM client
	client, err := llmfast.New(cfg.LLMBaseURL, cfg.LLMAPIKey,
		llmfast.WithModel(cfg.LLMModel),
		llmfast.WithTimeout(time.Duration(cfg.LLMTimeoutSec)*time.Second),
		llmfast.WithMaxTokens(cfg.LLMMaxTokens),
		llmfast.WithTemperature(cfg.LLMTemperature),
		llmfast.WithUserAgent("movecoach/1.0"),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}

	// Cache (Redis required: live progress and finished reviews sit there)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for review storage")
	}
	cconf, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cacheSvc, err := cache.NewCacheService(*cconf, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	// Repository (Postgres optional; without it history lives in memory
	// and is lost on restart)
	var (
		repo review.Repository
		db   *sql.DB
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		// basic pool settings
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo, err = review.NewRepository(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("init repository: %w", err)
		}
	} else {
		logger.Info("DATABASE_URL not set, keeping review history in memory")
		repo = review.NewMemoryRepository()
	}

	catalog, err := promptcat.New(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompt catalog: %w", err)
	}

	svcCfg := review.Config{
		Model: client.Model(),
		Explain: explain.Settings{
			MaxLength:        cfg.ExplainMaxLength,
			ExplainExcellent: cfg.ExplainExcellent,
			ExplainOpening:   cfg.ExplainOpening,
			MinEvalChange:    cfg.ExplainMinEvalChange,
		},
		Concurrency: cfg.ExplainConcurrency,
		WindowPause: time.Duration(cfg.ExplainWindowPauseMs) * time.Millisecond,
		CacheTTL:    time.Duration(cfg.ExplanationsTTLHrs) * time.Hour,
	}

	service, err := review.NewService(client, catalog, cacheSvc, repo, svcCfg, logger)
	if err != nil {
		return nil, err
	}

	return &Deps{Reviews: service, Client: client, Cache: cacheSvc, Repo: repo, db: db}, nil
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
