package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	name  string
	files map[string]string
	err   error
	calls int
}

func (s *mapSource) Fetch(_ context.Context, path string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(data), nil
}

func (s *mapSource) String() string { return s.name }

func TestManager_LastAddedWins(t *testing.T) {
	base := &mapSource{name: "base", files: map[string]string{"a.json": "base-a", "b.json": "base-b"}}
	override := &mapSource{name: "override", files: map[string]string{"a.json": "override-a"}}

	m := NewManager()
	m.AddSource(base)
	m.AddSource(override)

	ctx := context.Background()
	data, err := m.Load(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "override-a", string(data))

	data, err = m.Load(ctx, "b.json")
	require.NoError(t, err)
	assert.Equal(t, "base-b", string(data))
}

func TestManager_Cache(t *testing.T) {
	src := &mapSource{files: map[string]string{"a.json": "a"}}
	m := NewManager()
	m.AddSource(src)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.Load(ctx, "a.json")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)

	hits, misses := m.cache.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)

	m.Invalidate("a.json")
	_, err := m.Load(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestManager_Errors(t *testing.T) {
	m := NewManager()
	_, err := m.Load(context.Background(), "a.json")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("disk on fire")
	m.AddSource(&mapSource{name: "bad", err: boom})
	m.AddSource(&mapSource{name: "empty", files: map[string]string{}})

	_, err = m.Load(context.Background(), "a.json")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	m.Close()
	_, err = m.Load(context.Background(), "a.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
