// Package engine implements the workout session state machine and the
// façade the CLI and UI drive it through.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hammamikhairi/ottofit/internal/catalogue"
	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithSessionOptions sets the options every new session is created with.
func WithSessionOptions(opts ...Option) EngineOption {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, opts...)
	}
}

// WithHistoryLimit sets how many records History returns by default.
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		e.historyLimit = n
	}
}

// Engine creates sessions from the catalogue and reads back their history.
// It runs at most one session at a time.
type Engine struct {
	exercises    domain.ExerciseSource
	svc          Services
	log          *logger.Logger
	sessionOpts  []Option
	historyLimit int

	mu     sync.Mutex
	active *Controller
}

// New creates an engine with the given dependencies and options.
func New(exercises domain.ExerciseSource, svc Services, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		exercises:    exercises,
		svc:          svc,
		log:          log,
		historyLimit: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListExercises returns all available exercises.
func (e *Engine) ListExercises(ctx context.Context) ([]domain.ExerciseSummary, error) {
	return e.exercises.List(ctx)
}

// GetExercise returns a full exercise by ID.
func (e *Engine) GetExercise(ctx context.Context, id string) (*domain.Exercise, error) {
	return e.exercises.Get(ctx, id)
}

// StartSession resolves the selected exercise IDs, in order, and starts a
// session over them. Extra options are applied after the engine's own.
// The caller owns the returned controller and must Close it.
func (e *Engine) StartSession(ctx context.Context, ids []string, opts ...Option) (*Controller, error) {
	if len(ids) == 0 {
		return nil, domain.ErrNoExercises
	}
	exercises, err := catalogue.Resolve(ctx, e.exercises, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving exercises: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil && !e.activeDoneLocked() {
		return nil, fmt.Errorf("session %s: %w", e.active.ID(), domain.ErrAlreadyStarted)
	}

	all := append(append([]Option(nil), e.sessionOpts...), opts...)
	ctrl, err := NewController(exercises, e.svc, e.log, all...)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("starting session: %w", err)
	}
	e.active = ctrl

	e.log.Info("started session %s (%d exercises)", ctrl.ID(), len(exercises))
	return ctrl, nil
}

// Active returns the running session, or nil.
func (e *Engine) Active() *Controller {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil || e.activeDoneLocked() {
		return nil
	}
	return e.active
}

// History returns the most recent completion records, newest first. A
// non-positive limit uses the engine default.
func (e *Engine) History(ctx context.Context, limit int) ([]domain.CompletionRecord, error) {
	if e.svc.Store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = e.historyLimit
	}
	records, err := e.svc.Store.ListCompletions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completions: %w", err)
	}
	return records, nil
}

func (e *Engine) activeDoneLocked() bool {
	select {
	case <-e.active.Done():
		return true
	default:
		return false
	}
}
