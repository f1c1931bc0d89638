// Package storage keeps code records in an embedded bbolt file for
// single-node deployments.
package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// BBoltStore owns the database file. Each code kind gets its own bucket.
type BBoltStore struct {
	db     *bbolt.DB
	stores map[domain.CodeKind]*CodeBucket
}

// NewBBoltStore opens (or creates) the database at dbPath and ensures a
// bucket per code kind.
func NewBBoltStore(dbPath string) (*BBoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	log.Info().Str("path", dbPath).Msg("Initializing BBoltDB")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	store := &BBoltStore{db: db, stores: make(map[domain.CodeKind]*CodeBucket)}
	for _, kind := range domain.CodeKinds() {
		if err := store.ensureBucket(string(kind)); err != nil {
			db.Close()
			return nil, err
		}
		store.stores[kind] = &CodeBucket{db: db, name: []byte(kind)}
	}
	return store, nil
}

func (s *BBoltStore) ensureBucket(bucketName string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
		}
		return nil
	})
}

var _ domain.CodeStoreProvider = (*BBoltStore)(nil)

// CodeRepository returns the bucket-backed repository for kind.
func (s *BBoltStore) CodeRepository(kind domain.CodeKind) domain.CodeRepository {
	return s.stores[kind]
}

// Ping checks the file is still open.
func (s *BBoltStore) Ping(context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// Close closes the database file.
func (s *BBoltStore) Close(context.Context) error {
	return s.db.Close()
}

// CodeBucket implements domain.CodeRepository over one bucket. Records are
// gob-encoded; every read-modify-write runs inside a single Update
// transaction, which bbolt serializes.
type CodeBucket struct {
	db   *bbolt.DB
	name []byte
}

var _ domain.CodeRepository = (*CodeBucket)(nil)

func (b *CodeBucket) Put(_ context.Context, rec *domain.CodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.name).Put([]byte(rec.SubjectID), data)
	})
}

func (b *CodeBucket) Get(_ context.Context, subjectID string) (*domain.CodeRecord, error) {
	var rec *domain.CodeRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = loadRecord(tx.Bucket(b.name), subjectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *CodeBucket) IncrementAttempts(_ context.Context, subjectID string, limit int) (int, error) {
	var attempts int
	err := b.update(subjectID, func(rec *domain.CodeRecord) error {
		if rec.Attempts >= limit {
			attempts = rec.Attempts
			return domain.ErrTooManyAttempts
		}
		rec.Attempts++
		attempts = rec.Attempts
		return nil
	})
	return attempts, err
}

func (b *CodeBucket) MarkUsed(_ context.Context, subjectID string, at time.Time) error {
	return b.update(subjectID, func(rec *domain.CodeRecord) error {
		if rec.IsUsed {
			return domain.ErrCodeAlreadyUsed
		}
		usedAt := at.UTC().Truncate(time.Millisecond)
		rec.IsUsed = true
		rec.UsedAt = &usedAt
		return nil
	})
}

func (b *CodeBucket) DeleteExpiredBefore(_ context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.name)
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				// Undecodable entries are swept too; nothing else can read them.
				log.Warn().Err(err).Str("bucket", string(b.name)).Str("subjectID", string(k)).Msg("Sweeping undecodable code record")
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			if rec.ExpiresAt.Before(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", k, err)
			}
		}
		deleted = int64(len(expired))
		return nil
	})
	return deleted, err
}

// update loads, mutates and stores the record in one transaction. fn's error
// aborts the write and is returned unchanged.
func (b *CodeBucket) update(subjectID string, fn func(rec *domain.CodeRecord) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.name)
		rec, err := loadRecord(bucket, subjectID)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(subjectID), data)
	})
}

func loadRecord(bucket *bbolt.Bucket, subjectID string) (*domain.CodeRecord, error) {
	raw := bucket.Get([]byte(subjectID))
	if raw == nil {
		return nil, domain.ErrCodeNotFound
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeRecord(rec *domain.CodeRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode code record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*domain.CodeRecord, error) {
	var rec domain.CodeRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return &rec, nil
}
