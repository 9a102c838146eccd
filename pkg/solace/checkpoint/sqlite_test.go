package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)

	for seq := int64(1); seq <= 3; seq++ {
		_, err := store1.Append(ctx, "s1", turn("s1", seq, "u", "a"))
		require.NoError(t, err)
	}
	require.NoError(t, store1.SummarizeAndTruncate(ctx, "s1", "summary", 1))
	require.NoError(t, store1.Close())

	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	cps, err := store2.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, sequences(cps))

	sum, err := store2.Summary(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, int64(2), sum.ThroughSequence)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Append(ctx, "s1", turn("s1", 1, "u", "a"))
	require.NoError(t, err)

	cps, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cps, 1)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CancelledContext(t *testing.T) {
	s, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Append(ctx, "s1", turn("s1", 1, "u", "a"))
	assert.Error(t, err)

	cps, err := s.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, cps)
}
