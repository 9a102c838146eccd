package checkpoint_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lists every Store implementation under test.
func storeFactories(t *testing.T) map[string]func() checkpoint.Store {
	return map[string]func() checkpoint.Store{
		"memory": func() checkpoint.Store {
			return checkpoint.NewMemoryStore()
		},
		"sqlite": func() checkpoint.Store {
			s, err := checkpoint.NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func turn(session string, seq int64, user, assistant string) *checkpoint.Checkpoint {
	now := time.Now().UTC()
	return checkpoint.New(session, seq,
		checkpoint.Message{Role: checkpoint.RoleUser, Content: user, Timestamp: now},
		checkpoint.Message{Role: checkpoint.RoleAssistant, Content: assistant, Timestamp: now},
	)
}

func sequences(cps []*checkpoint.Checkpoint) []int64 {
	out := make([]int64, len(cps))
	for i, c := range cps {
		out[i] = c.Sequence
	}
	return out
}

func TestStore_Contract(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("append and load in order", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				for _, seq := range []int64{2, 1, 3} {
					ack, err := s.Append(ctx, "s1", turn("s1", seq, "hi", "hello"))
					require.NoError(t, err)
					assert.False(t, ack.Duplicate)
					assert.Equal(t, seq, ack.Sequence)
				}

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, []int64{1, 2, 3}, sequences(cps))

				first := cps[0]
				assert.Equal(t, "s1", first.SessionID)
				assert.Equal(t, checkpoint.Version, first.Version)
				require.Len(t, first.Messages, 2)
				assert.Equal(t, checkpoint.RoleUser, first.Messages[0].Role)
				assert.Equal(t, "hello", first.Messages[1].Content)
			})

			t.Run("duplicate append is a no-op", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				_, err := s.Append(ctx, "s1", turn("s1", 1, "original", "reply"))
				require.NoError(t, err)

				ack, err := s.Append(ctx, "s1", turn("s1", 1, "changed", "other"))
				require.NoError(t, err)
				assert.True(t, ack.Duplicate)

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				require.Len(t, cps, 1)
				assert.Equal(t, "original", cps[0].Messages[0].Content)
			})

			t.Run("sessions are isolated", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				_, err := s.Append(ctx, "a", turn("a", 1, "x", "y"))
				require.NoError(t, err)

				cps, err := s.Load(ctx, "b")
				require.NoError(t, err)
				assert.Empty(t, cps)
				assert.NotNil(t, cps)
			})

			t.Run("invalid appends rejected", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				_, err := s.Append(ctx, "", turn("", 1, "x", "y"))
				assert.ErrorIs(t, err, checkpoint.ErrSessionRequired)

				_, err = s.Append(ctx, "s1", nil)
				assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpoint)

				_, err = s.Append(ctx, "s1", turn("s1", 0, "x", "y"))
				assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpoint)

				_, err = s.Append(ctx, "s1", turn("other", 1, "x", "y"))
				assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpoint)
			})

			t.Run("summarize and truncate keeps the tail", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				for seq := int64(1); seq <= 5; seq++ {
					_, err := s.Append(ctx, "s1", turn("s1", seq, "u", "a"))
					require.NoError(t, err)
				}

				require.NoError(t, s.SummarizeAndTruncate(ctx, "s1", "user talked about work", 2))

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, []int64{4, 5}, sequences(cps))

				sum, err := s.Summary(ctx, "s1")
				require.NoError(t, err)
				require.NotNil(t, sum)
				assert.Equal(t, "user talked about work", sum.Text)
				assert.Equal(t, int64(3), sum.ThroughSequence)
				assert.Equal(t, "s1", sum.SessionID)
				assert.False(t, sum.UpdatedAt.IsZero())

				// Truncated sequences are never accepted again.
				ack, err := s.Append(ctx, "s1", turn("s1", 2, "late", "retry"))
				require.NoError(t, err)
				assert.True(t, ack.Duplicate)

				assert.Equal(t, int64(6), checkpoint.NextSequence(sum, cps))
			})

			t.Run("summarize keeps high-water mark when nothing dropped", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				for seq := int64(1); seq <= 3; seq++ {
					_, err := s.Append(ctx, "s1", turn("s1", seq, "u", "a"))
					require.NoError(t, err)
				}
				require.NoError(t, s.SummarizeAndTruncate(ctx, "s1", "first", 1))
				require.NoError(t, s.SummarizeAndTruncate(ctx, "s1", "second", 5))

				sum, err := s.Summary(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, "second", sum.Text)
				assert.Equal(t, int64(2), sum.ThroughSequence)

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, []int64{3}, sequences(cps))
			})

			t.Run("summarize with zero keep drops everything", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				for seq := int64(1); seq <= 2; seq++ {
					_, err := s.Append(ctx, "s1", turn("s1", seq, "u", "a"))
					require.NoError(t, err)
				}
				require.NoError(t, s.SummarizeAndTruncate(ctx, "s1", "all", 0))

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				assert.Empty(t, cps)

				sum, err := s.Summary(ctx, "s1")
				require.NoError(t, err)
				assert.Equal(t, int64(2), sum.ThroughSequence)
				assert.Equal(t, int64(3), checkpoint.NextSequence(sum, cps))
			})

			t.Run("summarize rejects bad arguments", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				assert.ErrorIs(t, s.SummarizeAndTruncate(ctx, "", "x", 1), checkpoint.ErrSessionRequired)
				assert.ErrorIs(t, s.SummarizeAndTruncate(ctx, "s1", "x", -1), checkpoint.ErrInvalidKeep)
			})

			t.Run("missing summary is nil", func(t *testing.T) {
				s := newStore()
				defer s.Close()

				sum, err := s.Summary(context.Background(), "nobody")
				require.NoError(t, err)
				assert.Nil(t, sum)
			})

			t.Run("concurrent appends of the same pair store one row", func(t *testing.T) {
				s := newStore()
				defer s.Close()
				ctx := context.Background()

				const writers = 20
				var wg sync.WaitGroup
				acks := make([]checkpoint.Ack, writers)
				for i := 0; i < writers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						ack, err := s.Append(ctx, "s1", turn("s1", 1, fmt.Sprintf("writer %d", i), "a"))
						assert.NoError(t, err)
						acks[i] = ack
					}(i)
				}
				wg.Wait()

				fresh := 0
				for _, ack := range acks {
					if !ack.Duplicate {
						fresh++
					}
				}
				assert.Equal(t, 1, fresh)

				cps, err := s.Load(ctx, "s1")
				require.NoError(t, err)
				assert.Len(t, cps, 1)
			})

			t.Run("closed store rejects operations", func(t *testing.T) {
				s := newStore()
				require.NoError(t, s.Close())
				require.NoError(t, s.Close())
				ctx := context.Background()

				_, err := s.Append(ctx, "s1", turn("s1", 1, "x", "y"))
				assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

				_, err = s.Load(ctx, "s1")
				assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

				_, err = s.Summary(ctx, "s1")
				assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

				assert.ErrorIs(t, s.SummarizeAndTruncate(ctx, "s1", "x", 0), checkpoint.ErrStoreClosed)
			})
		})
	}
}

func TestMemoryStore_LoadReturnsCopies(t *testing.T) {
	s := checkpoint.NewMemoryStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "s1", turn("s1", 1, "original", "a"))
	require.NoError(t, err)

	cps, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	cps[0].Messages[0].Content = "mutated"

	again, err := s.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Messages[0].Content)
}
