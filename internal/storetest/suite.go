// Package storetest holds the behaviour every domain.CodeRepository backend
// must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository. Cleanup is registered by the factory
// through t.Cleanup.
type Factory func(t *testing.T) domain.CodeRepository

var base = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func record(subject, code string, createdAt time.Time) *domain.CodeRecord {
	return domain.NewCodeRecord(subject, subject+"@example.com", code, createdAt, domain.DefaultCodeTTL)
}

// Run executes the shared repository tests.
func Run(t *testing.T, newRepo Factory) {
	t.Run("PutOverwrites", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.Put(ctx, record("u1", "111111", base)))
		_, err := repo.IncrementAttempts(ctx, "u1", domain.DefaultMaxAttempts)
		require.NoError(t, err)
		require.NoError(t, repo.MarkUsed(ctx, "u1", base))

		require.NoError(t, repo.Put(ctx, record("u1", "222222", base.Add(time.Minute))))
		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "222222", got.Code)
		assert.Zero(t, got.Attempts)
		assert.False(t, got.IsUsed)
		assert.Nil(t, got.UsedAt)
		assert.True(t, base.Add(time.Minute).Equal(got.CreatedAt))
		assert.Equal(t, domain.DefaultCodeTTL, got.ExpiresAt.Sub(got.CreatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), "nobody")
		assert.True(t, errors.Is(err, domain.ErrCodeNotFound), "got %v", err)
	})

	t.Run("PutRejectsMalformed", func(t *testing.T) {
		repo := newRepo(t)
		rec := record("u1", "12345", base)
		assert.ErrorIs(t, repo.Put(context.Background(), rec), domain.ErrMalformedRecord)
	})

	t.Run("SubjectsAreIndependent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, record("u1", "111111", base)))
		require.NoError(t, repo.Put(ctx, record("u2", "222222", base)))

		_, err := repo.IncrementAttempts(ctx, "u1", domain.DefaultMaxAttempts)
		require.NoError(t, err)

		got, err := repo.Get(ctx, "u2")
		require.NoError(t, err)
		assert.Zero(t, got.Attempts)
	})

	t.Run("IncrementAttemptsStopsAtLimit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, record("u1", "111111", base)))

		for want := 1; want <= 5; want++ {
			n, err := repo.IncrementAttempts(ctx, "u1", 5)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		_, err := repo.IncrementAttempts(ctx, "u1", 5)
		assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Attempts)

		_, err = repo.IncrementAttempts(ctx, "nobody", 5)
		assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	})

	t.Run("IncrementAttemptsConcurrent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, record("u1", "111111", base)))

		var ok atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.IncrementAttempts(ctx, "u1", 5); err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 5, ok.Load())
		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Attempts)
	})

	t.Run("MarkUsedOnce", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, record("u1", "111111", base)))

		var ok atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := repo.MarkUsed(ctx, "u1", base.Add(time.Minute)); err == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, ok.Load())

		assert.ErrorIs(t, repo.MarkUsed(ctx, "u1", base), domain.ErrCodeAlreadyUsed)
		assert.ErrorIs(t, repo.MarkUsed(ctx, "nobody", base), domain.ErrCodeNotFound)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, got.IsUsed)
		require.NotNil(t, got.UsedAt)
		assert.True(t, base.Add(time.Minute).Equal(*got.UsedAt))
	})

	t.Run("DeleteExpiredBefore", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, record("old", "111111", base.Add(-time.Hour))))
		require.NoError(t, repo.Put(ctx, record("edge", "222222", base.Add(-domain.DefaultCodeTTL))))
		require.NoError(t, repo.Put(ctx, record("fresh", "333333", base)))

		n, err := repo.DeleteExpiredBefore(ctx, base)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "a record expiring exactly now is kept")

		n, err = repo.DeleteExpiredBefore(ctx, base)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = repo.Get(ctx, "old")
		assert.ErrorIs(t, err, domain.ErrCodeNotFound)
		_, err = repo.Get(ctx, "edge")
		assert.NoError(t, err)
		_, err = repo.Get(ctx, "fresh")
		assert.NoError(t, err)
	})
}
