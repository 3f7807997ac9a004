package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

func quiet() *logger.Logger { return logger.New(logger.LevelOff, nil) }

func TestMemorySourceList(t *testing.T) {
	src := NewMemorySource(quiet())
	list, err := src.List(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 6)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Name, list[i].Name)
	}
}

func TestMemorySourceGet(t *testing.T) {
	src := NewMemorySource(quiet())
	ctx := context.Background()

	tests := []struct {
		id      string
		wantErr error
	}{
		{"squats", nil},
		{"plank", nil},
		{"nonexistent", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e, err := src.Get(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, e.ID)
			assert.NotEmpty(t, e.Name)
		})
	}
}

func TestMemorySourceGetReturnsCopy(t *testing.T) {
	src := NewMemorySource(quiet())
	e, err := src.Get(context.Background(), "squats")
	require.NoError(t, err)
	e.Name = "changed"
	e.Tags[0] = "changed"

	again, err := src.Get(context.Background(), "squats")
	require.NoError(t, err)
	assert.Equal(t, "Squats", again.Name)
	assert.NotEqual(t, "changed", again.Tags[0])
}

func TestMemorySourceSearch(t *testing.T) {
	src := NewMemorySource(quiet())
	res, err := src.Search(context.Background(), "CORE")
	require.NoError(t, err)
	names := make([]string, 0, len(res))
	for _, r := range res {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "Plank")
	assert.NotContains(t, names, "Squats")
}

func TestResolveKeepsOrderAndDuplicates(t *testing.T) {
	src := NewMemorySource(quiet())
	got, err := Resolve(context.Background(), src, []string{"plank", "squats", "plank"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "plank", got[0].ID)
	assert.Equal(t, "squats", got[1].ID)
	assert.Equal(t, "plank", got[2].ID)

	_, err = Resolve(context.Background(), src, []string{"squats", "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exercises.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
exercises:
  - id: wall-sit
    name: Wall Sit
    media: wall-sit.gif
    duration: 45s
    difficulty: hard
    tags: [legs]
  - id: squats
    name: Air Squats
`), 0o644))

	src, err := LoadFile(path, quiet())
	require.NoError(t, err)

	e, err := src.Get(context.Background(), "wall-sit")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, e.WorkDuration)
	assert.Equal(t, domain.DifficultyHard, e.Difficulty)
	assert.Equal(t, []string{"legs"}, e.Tags)

	sq, err := src.Get(context.Background(), "squats")
	require.NoError(t, err)
	assert.Equal(t, "Air Squats", sq.Name, "file entries replace built-ins")
}

func TestLoadRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"unknown field": "exercises:\n  - id: a\n    name: A\n    reps: 10\n",
		"missing id":    "exercises:\n  - name: A\n",
		"missing name":  "exercises:\n  - id: a\n",
		"duplicate":     "exercises:\n  - id: a\n    name: A\n  - id: a\n    name: B\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewEmptySource(quiet()).Load(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	n, err := NewEmptySource(quiet()).Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)
}
