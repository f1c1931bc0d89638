package cache

import (
	"context"
	"sync"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultRetention keeps an expired record readable until the sweeper runs,
// so late verify calls still see DEADLINE_EXCEEDED instead of NOT_FOUND.
const DefaultRetention = 2 * time.Hour

// MemoryCodeStore implements domain.CodeRepository using ttlcache.
// The cache TTL is only a backstop; expiry semantics are decided by the
// service clock and DeleteExpiredBefore.
type MemoryCodeStore struct {
	mu        sync.Mutex
	cache     *ttlcache.Cache[string, domain.CodeRecord]
	retention time.Duration
}

// NewMemoryCodeStore creates a new in-memory code store with automatic cleanup.
func NewMemoryCodeStore(retention time.Duration) *MemoryCodeStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.CodeRecord](),
	)

	go cache.Start()

	return &MemoryCodeStore{
		cache:     cache,
		retention: retention,
	}
}

var _ domain.CodeRepository = (*MemoryCodeStore)(nil)

// Put implements domain.CodeRepository.Put.
func (s *MemoryCodeStore) Put(_ context.Context, rec *domain.CodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(rec.SubjectID, *rec, rec.ExpiresAt.Sub(rec.CreatedAt)+s.retention)
	return nil
}

// Get implements domain.CodeRepository.Get.
func (s *MemoryCodeStore) Get(_ context.Context, subjectID string) (*domain.CodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(subjectID)
	if item == nil {
		return nil, domain.ErrCodeNotFound
	}
	rec := item.Value()
	return &rec, nil
}

// IncrementAttempts implements domain.CodeRepository.IncrementAttempts.
func (s *MemoryCodeStore) IncrementAttempts(_ context.Context, subjectID string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(subjectID)
	if item == nil {
		return 0, domain.ErrCodeNotFound
	}
	rec := item.Value()
	if rec.Attempts >= limit {
		return rec.Attempts, domain.ErrTooManyAttempts
	}
	rec.Attempts++
	s.replace(item, rec)
	return rec.Attempts, nil
}

// MarkUsed implements domain.CodeRepository.MarkUsed.
func (s *MemoryCodeStore) MarkUsed(_ context.Context, subjectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(subjectID)
	if item == nil {
		return domain.ErrCodeNotFound
	}
	rec := item.Value()
	if rec.IsUsed {
		return domain.ErrCodeAlreadyUsed
	}
	usedAt := at.UTC().Truncate(time.Millisecond)
	rec.IsUsed = true
	rec.UsedAt = &usedAt
	s.replace(item, rec)
	return nil
}

// DeleteExpiredBefore implements domain.CodeRepository.DeleteExpiredBefore.
func (s *MemoryCodeStore) DeleteExpiredBefore(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, item := range s.cache.Items() {
		if item.Value().ExpiresAt.Before(now) {
			s.cache.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of records held, expired ones included.
func (s *MemoryCodeStore) Len() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryCodeStore) Close() error {
	s.cache.Stop()
	return nil
}

// replace writes rec back keeping the item's remaining lifetime.
func (s *MemoryCodeStore) replace(item *ttlcache.Item[string, domain.CodeRecord], rec domain.CodeRecord) {
	ttl := time.Until(item.ExpiresAt())
	if ttl <= 0 {
		ttl = time.Second
	}
	s.cache.Set(rec.SubjectID, rec, ttl)
}

// MemoryProvider serves one MemoryCodeStore per kind.
type MemoryProvider struct {
	stores map[domain.CodeKind]*MemoryCodeStore
}

// NewMemoryProvider creates stores for every code kind.
func NewMemoryProvider(retention time.Duration) *MemoryProvider {
	p := &MemoryProvider{stores: make(map[domain.CodeKind]*MemoryCodeStore)}
	for _, kind := range domain.CodeKinds() {
		p.stores[kind] = NewMemoryCodeStore(retention)
	}
	return p
}

var _ domain.CodeStoreProvider = (*MemoryProvider)(nil)

func (p *MemoryProvider) CodeRepository(kind domain.CodeKind) domain.CodeRepository {
	return p.stores[kind]
}

func (p *MemoryProvider) Ping(context.Context) error { return nil }

func (p *MemoryProvider) Close(context.Context) error {
	for _, s := range p.stores {
		_ = s.Close()
	}
	return nil
}
