package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func setupTestDB(t *testing.T) (store *BBoltStore, dbPath string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "authcodes_bbolt_test_")
	require.NoError(t, err)

	dbPath = filepath.Join(tempDir, "nested", "codes.db")
	store, err = NewBBoltStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, store.Close(context.Background()), "Failed to close BBoltStore")
		assert.NoError(t, os.RemoveAll(tempDir), "Failed to remove temp dir")
	})
	return store, dbPath
}

func TestCodeBucket(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.CodeRepository {
		store, _ := setupTestDB(t)
		return store.CodeRepository(domain.CodeKindPasswordRecovery)
	})
}

func TestBBoltStore_KindsUseSeparateBuckets(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	rec := domain.NewCodeRecord("u1", "a@example.com", "123456", time.Now(), domain.DefaultCodeTTL)
	require.NoError(t, store.CodeRepository(domain.CodeKindPasswordRecovery).Put(ctx, rec))

	_, err := store.CodeRepository(domain.CodeKindEmailVerification).Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	assert.NoError(t, store.Ping(ctx))
}

func TestBBoltStore_CorruptEntry(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(domain.CodeKindEmailVerification)).Put([]byte("u1"), []byte("not gob"))
	})
	require.NoError(t, err)

	repo := store.CodeRepository(domain.CodeKindEmailVerification)
	_, err = repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrMalformedRecord)

	n, err := repo.DeleteExpiredBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBBoltStore_Reopen(t *testing.T) {
	store, dbPath := setupTestDB(t)
	ctx := context.Background()

	rec := domain.NewCodeRecord("u1", "a@example.com", "654321", time.Now(), domain.DefaultCodeTTL)
	require.NoError(t, store.CodeRepository(domain.CodeKindPasswordRecovery).Put(ctx, rec))
	require.NoError(t, store.db.Close())

	reopened, err := NewBBoltStore(dbPath)
	require.NoError(t, err)
	store.db = reopened.db

	got, err := reopened.CodeRepository(domain.CodeKindPasswordRecovery).Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "654321", got.Code)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}
