// Package catalogue provides exercise source implementations.
package catalogue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// Compile-time interface check.
var _ domain.ExerciseSource = (*MemorySource)(nil)

// MemorySource holds exercises in memory. Safe for concurrent reads.
type MemorySource struct {
	mu        sync.RWMutex
	exercises map[string]*domain.Exercise
	log       *logger.Logger
}

// NewMemorySource creates an exercise source preloaded with the built-in
// exercises.
func NewMemorySource(log *logger.Logger) *MemorySource {
	src := NewEmptySource(log)
	src.seed()
	return src
}

// NewEmptySource creates a source with no exercises.
func NewEmptySource(log *logger.Logger) *MemorySource {
	return &MemorySource{
		exercises: make(map[string]*domain.Exercise),
		log:       log,
	}
}

// List returns summaries of all exercises, sorted by name.
func (s *MemorySource) List(ctx context.Context) ([]domain.ExerciseSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.log.Debug("listing all exercises, count=%d", len(s.exercises))

	out := make([]domain.ExerciseSummary, 0, len(s.exercises))
	for _, e := range s.exercises {
		out = append(out, summarize(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns an exercise by ID.
func (s *MemorySource) Get(ctx context.Context, id string) (*domain.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exercises[id]
	if !ok {
		s.log.Debug("exercise not found: %s", id)
		return nil, fmt.Errorf("exercise %q: %w", id, domain.ErrNotFound)
	}
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	return &cp, nil
}

// Add inserts or replaces an exercise.
func (s *MemorySource) Add(e *domain.Exercise) error {
	if e == nil || e.ID == "" || e.Name == "" {
		return fmt.Errorf("catalogue: exercise needs an id and a name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exercises[e.ID] = e
	return nil
}

// Search returns summaries whose name or tags contain the query
// (case-insensitive).
func (s *MemorySource) Search(ctx context.Context, query string) ([]domain.ExerciseSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.ExerciseSummary
	for _, e := range s.exercises {
		if matches(e, q) {
			out = append(out, summarize(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.log.Debug("search %q: %d results", query, len(out))
	return out, nil
}

// Resolve fetches the exercises for ids, in order. Duplicates are allowed.
func Resolve(ctx context.Context, src domain.ExerciseSource, ids []string) ([]domain.Exercise, error) {
	out := make([]domain.Exercise, 0, len(ids))
	for _, id := range ids {
		e, err := src.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func matches(e *domain.Exercise, q string) bool {
	if q == "" || strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func summarize(e *domain.Exercise) domain.ExerciseSummary {
	return domain.ExerciseSummary{ID: e.ID, Name: e.Name, Difficulty: e.Difficulty}
}

// ── Built-in exercises ───────────────────────────────────────────

func (s *MemorySource) seed() {
	for _, e := range builtin {
		s.exercises[e.ID] = e
	}
	s.log.Debug("seeded %d exercises", len(s.exercises))
}

var builtin = []*domain.Exercise{
	{ID: "jumping-jacks", Name: "Jumping Jacks", MediaRef: "jumping-jacks.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyEasy, Tags: []string{"cardio", "full-body"}},
	{ID: "squats", Name: "Squats", MediaRef: "squats.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyEasy, Tags: []string{"legs", "strength"}},
	{ID: "push-ups", Name: "Push-ups", MediaRef: "push-ups.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyMedium, Tags: []string{"chest", "arms", "strength"}},
	{ID: "lunges", Name: "Lunges", MediaRef: "lunges.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyMedium, Tags: []string{"legs", "balance"}},
	{ID: "plank", Name: "Plank", MediaRef: "plank.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyMedium, Tags: []string{"core"}},
	{ID: "mountain-climbers", Name: "Mountain Climbers", MediaRef: "mountain-climbers.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyHard, Tags: []string{"cardio", "core"}},
	{ID: "burpees", Name: "Burpees", MediaRef: "burpees.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyHard, Tags: []string{"cardio", "full-body"}},
	{ID: "glute-bridge", Name: "Glute Bridge", MediaRef: "glute-bridge.gif", WorkDuration: 20 * time.Second, Difficulty: domain.DifficultyEasy, Tags: []string{"legs", "core"}},
}
