package explain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/promptcat"
)

const (
	DefaultConcurrency = 3
	DefaultWindowPause = 100 * time.Millisecond
)

var (
	ErrNoCompleter = errors.New("explain: completer required")
	ErrNoCatalog   = errors.New("explain: prompt catalog required")
)

// Completer is the remote model call the dispatcher fans out to.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// ProgressFunc receives a cumulative snapshot after every resolved
// request, in nondecreasing Completed order. It runs on the dispatch
// path, so keep it quick.
type ProgressFunc func(domain.BatchProgress)

// Dispatcher runs explanation requests against the model in
// consecutive windows: requests inside a window run concurrently,
// windows run one after another with a short pause in between. A
// failed request is recorded and the batch keeps going.
type Dispatcher struct {
	completer Completer
	catalog   *promptcat.Catalog
	settings  Settings
	system    string
	pause     time.Duration
	logger    *zap.Logger
}

type Option func(*Dispatcher)

// WithWindowPause overrides the pause between windows. Zero disables
// it.
func WithWindowPause(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d >= 0 {
			disp.pause = d
		}
	}
}

func NewDispatcher(completer Completer, catalog *promptcat.Catalog, settings Settings, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if completer == nil {
		return nil, ErrNoCompleter
	}
	if catalog == nil {
		return nil, ErrNoCatalog
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	system, err := catalog.Render("system", nil)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		completer: completer,
		catalog:   catalog,
		settings:  settings.withDefaults(),
		system:    system,
		pause:     DefaultWindowPause,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run dispatches the requests in windows of width (default 3) and
// returns the successful explanations sorted by move index, plus the
// per-request error strings. Cancellation is checked at each window
// boundary; on cancel the successes so far come back with the context
// error.
func (d *Dispatcher) Run(ctx context.Context, requests []domain.ExplanationRequest, width int, onProgress ProgressFunc) ([]domain.MoveExplanation, []string, error) {
	if d == nil || d.completer == nil {
		return nil, nil, ErrNoCompleter
	}
	if width <= 0 {
		width = DefaultConcurrency
	}

	var (
		mu        sync.Mutex
		results   = make([]domain.MoveExplanation, 0, len(requests))
		errs      = make([]string, 0)
		completed int
	)
	total := len(requests)

	// resolve publishes one finished request. The snapshot is built and
	// handed to onProgress under the lock so observers never see the
	// completed count move backwards.
	resolve := func(req domain.ExplanationRequest, expl *domain.MoveExplanation, itemErr error) {
		mu.Lock()
		defer mu.Unlock()
		var label string
		if itemErr != nil {
			errs = append(errs, fmt.Sprintf("move %d (%s): %v", req.MoveIndex, req.MoveUCI, itemErr))
			label = MoveLabel(req.MoveIndex, req.MoveUCI)
		} else {
			results = append(results, *expl)
			label = MoveLabel(expl.MoveIndex, expl.MoveSAN)
		}
		completed++
		if onProgress != nil {
			onProgress(domain.BatchProgress{
				Total:     total,
				Completed: completed,
				LastMove:  label,
				Errors:    append([]string(nil), errs...),
			})
		}
	}

	for start := 0; start < total; start += width {
		if err := ctx.Err(); err != nil {
			sortByMoveIndex(results)
			return results, errs, err
		}
		end := start + width
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, req := range requests[start:end] {
			wg.Add(1)
			go func(req domain.ExplanationRequest) {
				defer wg.Done()
				expl, err := d.explainOne(ctx, req)
				if err != nil {
					d.logger.Warn("move explanation failed",
						zap.String("game_id", req.GameID),
						zap.Int("move_index", req.MoveIndex),
						zap.Error(err))
					resolve(req, nil, err)
					return
				}
				resolve(req, expl, nil)
			}(req)
		}
		wg.Wait()

		if end < total && d.pause > 0 {
			if err := sleepWithContext(ctx, d.pause); err != nil {
				sortByMoveIndex(results)
				return results, errs, err
			}
		}
	}

	sortByMoveIndex(results)
	return results, errs, nil
}

func (d *Dispatcher) explainOne(ctx context.Context, req domain.ExplanationRequest) (*domain.MoveExplanation, error) {
	prompt, err := BuildPrompt(d.catalog, req)
	if err != nil {
		return nil, err
	}
	raw, err := d.completer.Complete(ctx, d.system, prompt)
	if err != nil {
		return nil, err
	}
	expl := ParseResponse(raw, req, d.settings)
	return &expl, nil
}

func sortByMoveIndex(list []domain.MoveExplanation) {
	sort.Slice(list, func(i, j int) bool { return list[i].MoveIndex < list[j].MoveIndex })
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
