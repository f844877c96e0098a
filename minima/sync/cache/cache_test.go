package cache

import (
	"path/filepath"
	"testing"
	"time"

	"minima/minima/sync/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "state", "minima.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSessionsRoundTrip(t *testing.T) {
	c := openTestCache(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := []model.Session{
		{ID: "a", UserID: "u1", Title: "older", CreatedAt: base, UpdatedAt: base},
		{ID: "b", UserID: "u1", Title: "newer", CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
	}
	require.NoError(t, c.SaveSessions(in))

	out, err := c.LoadSessions()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.True(t, out[0].UpdatedAt.Equal(base.Add(time.Hour)))
}

func TestSaveSessionsOverwrites(t *testing.T) {
	c := openTestCache(t)
	base := time.Now().UTC()

	require.NoError(t, c.SaveSessions([]model.Session{
		{ID: "a", UserID: "u1", Title: "first", CreatedAt: base, UpdatedAt: base},
	}))
	require.NoError(t, c.SaveSessions([]model.Session{
		{ID: "b", UserID: "u1", Title: "second", CreatedAt: base, UpdatedAt: base},
	}))

	out, err := c.LoadSessions()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestSaveSessionsEmptyClears(t *testing.T) {
	c := openTestCache(t)
	base := time.Now().UTC()
	require.NoError(t, c.SaveSessions([]model.Session{
		{ID: "a", UserID: "u1", Title: "t", CreatedAt: base, UpdatedAt: base},
	}))
	require.NoError(t, c.SaveSessions(nil))

	out, err := c.LoadSessions()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKVOperations(t *testing.T) {
	c := openTestCache(t)

	v, err := c.Get(DemoUserKey)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, c.Set(DemoUserKey, model.DemoEmail))
	v, err = c.Get(DemoUserKey)
	require.NoError(t, err)
	assert.Equal(t, model.DemoEmail, v)

	require.NoError(t, c.Set(DemoUserKey, "else@example.com"))
	v, err = c.Get(DemoUserKey)
	require.NoError(t, err)
	assert.Equal(t, "else@example.com", v)

	require.NoError(t, c.Delete(DemoUserKey))
	v, err = c.Get(DemoUserKey)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
