package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	value, err := s.Get(context.Background(), KeySessionToken)
	assert.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestStoreSetGetOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeySessionToken, "token-1"))

	value, err := s.Get(ctx, KeySessionToken)
	require.NoError(t, err)
	assert.Equal(t, "token-1", value)

	require.NoError(t, s.Set(ctx, KeySessionToken, "token-2"))

	value, err = s.Get(ctx, KeySessionToken)
	require.NoError(t, err)
	assert.Equal(t, "token-2", value)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyKicked, "1"))
	require.NoError(t, s.Delete(ctx, KeyKicked))

	value, err := s.Get(ctx, KeyKicked)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	// deleting an absent key is not an error
	assert.NoError(t, s.Delete(ctx, KeyKicked))
}
