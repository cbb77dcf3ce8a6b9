package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/explain"
	"github.com/boardwise/movecoach/internal/promptcat"
	"github.com/boardwise/movecoach/internal/service/cache"
)

var (
	ErrReviewInProgress = errors.New("review already in progress for game")
	ErrReviewNotFound   = errors.New("review not found")
	ErrNoActiveReview   = errors.New("no active review for game")
)

const (
	explanationsKeyPrefix  = "coach:explanations:"
	analysisKeyPrefix      = "coach:analysis:"
	defaultExplanationsTTL = 72 * time.Hour
	defaultHistoryLimit    = 10
	maxHistoryLimit        = 50
)

type Config struct {
	// Model is the label recorded on stored reviews.
	Model   string
	Explain explain.Settings
	// Concurrency is the dispatch window width.
	Concurrency int
	// WindowPause is the pause between dispatch windows. Zero disables
	// it.
	WindowPause time.Duration
	// CacheTTL bounds how long finished reviews stay in Redis.
	CacheTTL time.Duration
}

// Service runs move reviews end to end: it selects the moves worth
// explaining, fans them out to the model, and keeps the finished
// aggregate in Redis and the repository. One review per game runs at a
// time.
type Service struct {
	dispatcher *explain.Dispatcher
	cache      *cache.CacheService
	repo       Repository
	settings   explain.Settings
	model      string
	width      int
	ttl        time.Duration
	logger     *zap.Logger

	progress *progressHub

	mu      sync.Mutex
	running map[string]*runHandle
}

type runHandle struct {
	runID     string
	cancel    context.CancelFunc
	startedAt time.Time
}

// RunOption tunes a single review run without touching the service
// defaults.
type RunOption func(*runParams)

type runParams struct {
	settings explain.Settings
	width    int
}

// WithExplainExcellent includes or excludes excellent moves for one run.
func WithExplainExcellent(v bool) RunOption {
	return func(p *runParams) { p.settings.ExplainExcellent = v }
}

// WithExplainOpening includes or excludes book moves for one run.
func WithExplainOpening(v bool) RunOption {
	return func(p *runParams) { p.settings.ExplainOpening = v }
}

// WithMinEvalChange overrides the quiet-move swing threshold for one
// run. Values at or below zero mean the built-in threshold.
func WithMinEvalChange(v float64) RunOption {
	return func(p *runParams) { p.settings.MinEvalChange = v }
}

// WithConcurrency overrides the dispatch window width for one run.
func WithConcurrency(width int) RunOption {
	return func(p *runParams) {
		if width > 0 {
			p.width = width
		}
	}
}

func (s *Service) newRunParams(opts []RunOption) runParams {
	p := runParams{settings: s.settings, width: s.width}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func NewService(completer explain.Completer, catalog *promptcat.Catalog, cacheSvc *cache.CacheService, repo Repository, cfg Config, logger *zap.Logger) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("prompt catalog is required")
	}
	if cacheSvc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("review repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher, err := explain.NewDispatcher(completer, catalog, cfg.Explain, logger, explain.WithWindowPause(cfg.WindowPause))
	if err != nil {
		return nil, err
	}

	width := cfg.Concurrency
	if width <= 0 {
		width = explain.DefaultConcurrency
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultExplanationsTTL
	}

	return &Service{
		dispatcher: dispatcher,
		cache:      cacheSvc,
		repo:       repo,
		settings:   cfg.Explain,
		model:      strings.TrimSpace(cfg.Model),
		width:      width,
		ttl:        ttl,
		logger:     logger,
		progress:   newProgressHub(),
		running:    make(map[string]*runHandle),
	}, nil
}

// Review runs a full review synchronously and returns the stored
// aggregate. Progress for the game is queryable while it runs and
// cleared when it finishes, successful or not.
func (s *Service) Review(ctx context.Context, analysis *domain.GameAnalysis, opts ...RunOption) (*domain.GameExplanations, error) {
	params := s.newRunParams(opts)
	requests, err := explain.BuildRequests(analysis, params.settings)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	if err := s.acquire(analysis.GameID, runID, cancel); err != nil {
		cancel()
		return nil, err
	}
	defer s.release(analysis.GameID)

	return s.run(runCtx, analysis, runID, requests, params.width)
}

// StartReview validates the analysis, registers the run, and resolves
// it in the background. Follow it with Progress or Subscribe and fetch
// the result with Explanations.
func (s *Service) StartReview(analysis *domain.GameAnalysis, opts ...RunOption) (string, error) {
	params := s.newRunParams(opts)
	requests, err := explain.BuildRequests(analysis, params.settings)
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	if err := s.acquire(analysis.GameID, runID, cancel); err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer s.release(analysis.GameID)
		if _, err := s.run(runCtx, analysis, runID, requests, params.width); err != nil {
			s.logger.Warn("background review aborted",
				zap.String("game_id", analysis.GameID),
				zap.String("run_id", runID),
				zap.Error(err))
		}
	}()
	return runID, nil
}

// CancelReview stops a running review. The interrupted run discards
// its partial results.
func (s *Service) CancelReview(gameID string) error {
	s.mu.Lock()
	handle, ok := s.running[gameID]
	s.mu.Unlock()
	if !ok {
		return ErrNoActiveReview
	}
	handle.cancel()
	return nil
}

// Explanations returns the stored review for a game, checking Redis
// first and falling back to the repository.
func (s *Service) Explanations(ctx context.Context, gameID string) (*domain.GameExplanations, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, ErrReviewNotFound
	}

	var cached domain.GameExplanations
	err := s.cache.Get(ctx, explanationsKey(gameID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("explanations cache read failed", zap.String("game_id", gameID), zap.Error(err))
	}

	stored, err := s.repo.GetExplanations(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrReviewNotFound
	}
	if err := s.cache.Set(ctx, explanationsKey(gameID), stored, s.ttl); err != nil {
		s.logger.Warn("explanations cache backfill failed", zap.String("game_id", gameID), zap.Error(err))
	}
	return stored, nil
}

// Analysis returns the analysis payload behind the most recent review
// run of a game. It lives only in Redis, so it expires with the cache
// TTL; reports and board thumbnails degrade gracefully without it.
func (s *Service) Analysis(ctx context.Context, gameID string) (*domain.GameAnalysis, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, ErrReviewNotFound
	}
	var analysis domain.GameAnalysis
	err := s.cache.Get(ctx, analysisKey(gameID), &analysis)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Progress reports the snapshot of a running review.
func (s *Service) Progress(gameID string) (domain.BatchProgress, bool) {
	return s.progress.Current(gameID)
}

// Subscribe attaches to a running review's progress stream. The
// channel closes when the run finishes; call stop to detach early.
func (s *Service) Subscribe(gameID string) (<-chan domain.BatchProgress, func(), error) {
	ch, stop := s.progress.Subscribe(gameID)

	// Checked after subscribing so a run finishing in between still
	// closes the channel instead of stranding it.
	s.mu.Lock()
	_, ok := s.running[gameID]
	s.mu.Unlock()
	if !ok {
		stop()
		return nil, nil, ErrNoActiveReview
	}
	return ch, stop, nil
}

// Ping verifies the cache behind the service is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// History lists recent reviews, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ReviewSummary, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.RecentReviews(ctx, limit)
}

func (s *Service) run(ctx context.Context, analysis *domain.GameAnalysis, runID string, requests []domain.ExplanationRequest, width int) (*domain.GameExplanations, error) {
	gameID := analysis.GameID
	started := time.Now()
	s.progress.Publish(gameID, domain.BatchProgress{Total: len(requests)})

	// The raw analysis backs the report and thumbnail endpoints, so it
	// is kept from the moment the run starts.
	if err := s.cache.Set(ctx, analysisKey(gameID), analysis, s.ttl); err != nil {
		s.logger.Warn("cache analysis failed", zap.String("game_id", gameID), zap.Error(err))
	}

	results, itemErrs, err := s.dispatcher.Run(ctx, requests, width, func(p domain.BatchProgress) {
		s.progress.Publish(gameID, p)
	})
	if err != nil {
		return nil, fmt.Errorf("review %s: %w", gameID, err)
	}

	ge := &domain.GameExplanations{
		GameID:    gameID,
		RunID:     runID,
		Model:     s.model,
		Opening:   lastOpening(requests),
		Moves:     make(map[int]domain.MoveExplanation, len(results)),
		Errors:    itemErrs,
		CreatedAt: time.Now().UTC(),
	}
	for _, expl := range results {
		ge.Moves[expl.MoveIndex] = expl
	}

	if err := s.cache.Set(ctx, explanationsKey(gameID), ge, s.ttl); err != nil {
		s.logger.Warn("cache explanations failed", zap.String("game_id", gameID), zap.Error(err))
	}
	if err := s.repo.SaveExplanations(ctx, ge); err != nil {
		s.logger.Warn("persist explanations failed", zap.String("game_id", gameID), zap.Error(err))
	}

	s.logger.Info("review finished",
		zap.String("game_id", gameID),
		zap.String("run_id", runID),
		zap.Int("explained", len(results)),
		zap.Int("failed", len(itemErrs)),
		zap.Duration("took", time.Since(started)))
	return ge, nil
}

func (s *Service) acquire(gameID, runID string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[gameID]; busy {
		return ErrReviewInProgress
	}
	s.running[gameID] = &runHandle{runID: runID, cancel: cancel, startedAt: time.Now()}
	return nil
}

func (s *Service) release(gameID string) {
	s.mu.Lock()
	handle := s.running[gameID]
	delete(s.running, gameID)
	s.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
	s.progress.Clear(gameID)
}

func explanationsKey(gameID string) string {
	return explanationsKeyPrefix + gameID
}

func analysisKey(gameID string) string {
	return analysisKeyPrefix + gameID
}

// lastOpening picks the deepest book name the selected moves reached.
func lastOpening(requests []domain.ExplanationRequest) string {
	name := ""
	for _, req := range requests {
		if req.Opening != "" {
			name = req.Opening
		}
	}
	return name
}
