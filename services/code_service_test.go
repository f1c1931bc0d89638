package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/biihlive/authcodes/cache"
	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared by a service and its test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 3, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentCode struct {
	kind domain.CodeKind
	to   string
	code string
}

// recordingSender keeps every delivered code, or fails when err is set.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (s *recordingSender) SendCode(_ context.Context, kind domain.CodeKind, to, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCode{kind: kind, to: to, code: code})
	return nil
}

func (s *recordingSender) last() sentCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return sentCode{}
	}
	return s.sent[len(s.sent)-1]
}

type codeServiceFixture struct {
	svc    *CodeService
	store  *cache.MemoryCodeStore
	sender *recordingSender
	clock  *fakeClock
}

func newCodeServiceFixture(t *testing.T, kind domain.CodeKind, codes ...string) *codeServiceFixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"123456"}
	}
	f := &codeServiceFixture{
		store:  cache.NewMemoryCodeStore(0),
		sender: &recordingSender{},
		clock:  newFakeClock(),
	}
	t.Cleanup(func() { _ = f.store.Close() })
	f.svc = NewCodeService(kind, f.store, otp.Sequence(codes...), f.sender, DefaultCodePolicy(), WithClock(f.clock.Now))
	return f
}

func TestCodeService_Issue(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery, "042137")

	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "042137", rec.Code)
	assert.Equal(t, "ana@example.com", rec.Email)
	assert.Equal(t, 10*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
	assert.Zero(t, rec.Attempts)
	assert.False(t, rec.IsUsed)

	assert.Equal(t, sentCode{kind: domain.CodeKindPasswordRecovery, to: "ana@example.com", code: "042137"}, f.sender.last())
}

func TestCodeService_IssueReplacesPending(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery, "111111", "222222")

	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
	_, err := f.svc.Check(ctx, "user-1", "999999")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)

	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
	_, err = f.svc.Check(ctx, "user-1", "111111")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch, "old code must stop working")

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts, "attempts restart with the new record")
	_, err = f.svc.Check(ctx, "user-1", "222222")
	assert.NoError(t, err)
}

func TestCodeService_IssueDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindEmailVerification)
	f.sender.err = errors.New("dial tcp: i/o timeout")

	err := f.svc.Issue(ctx, "user-1", "ana@example.com")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)

	_, err = f.store.Get(ctx, "user-1")
	assert.NoError(t, err, "record is stored before delivery")
}

func TestCodeService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("no record", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
		_, err := f.svc.Check(ctx, "user-1", "123456")
		assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	})

	t.Run("correct code does not mark used", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
		for i := 0; i < 3; i++ {
			_, err := f.svc.Check(ctx, "user-1", "123456")
			require.NoError(t, err)
		}
		rec, err := f.store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, rec.IsUsed)
	})

	t.Run("expires after ten minutes", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

		f.clock.Advance(10 * time.Minute)
		_, err := f.svc.Check(ctx, "user-1", "123456")
		require.NoError(t, err, "the expiry instant itself is still valid")

		f.clock.Advance(time.Minute)
		_, err = f.svc.Check(ctx, "user-1", "123456")
		assert.ErrorIs(t, err, domain.ErrCodeExpired)
	})

	t.Run("five wrong codes lock the record", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

		for i := 1; i <= 5; i++ {
			_, err := f.svc.Check(ctx, "user-1", "000000")
			require.ErrorIs(t, err, domain.ErrCodeMismatch, "attempt %d", i)
		}
		_, err := f.svc.Check(ctx, "user-1", "123456")
		assert.ErrorIs(t, err, domain.ErrTooManyAttempts, "even the right code is refused")

		rec, err := f.store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 5, rec.Attempts)
	})

	t.Run("expired wins over locked", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
		for i := 0; i < 5; i++ {
			_, _ = f.svc.Check(ctx, "user-1", "000000")
		}
		f.clock.Advance(11 * time.Minute)
		_, err := f.svc.Check(ctx, "user-1", "123456")
		assert.ErrorIs(t, err, domain.ErrCodeExpired)
	})
}

func TestCodeService_Consume(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

	rec, err := f.svc.Consume(ctx, "user-1", "123456")
	require.NoError(t, err)
	assert.True(t, rec.IsUsed)
	require.NotNil(t, rec.UsedAt)

	_, err = f.svc.Consume(ctx, "user-1", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
	_, err = f.svc.Check(ctx, "user-1", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
}

func TestCodeService_MarkUsed(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

	_, err := f.svc.Check(ctx, "user-1", "123456")
	require.NoError(t, err)
	usedAt, err := f.svc.MarkUsed(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().UTC().Truncate(time.Millisecond), usedAt)

	_, err = f.svc.MarkUsed(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
	_, err = f.svc.MarkUsed(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestCodeService_ConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Consume(ctx, "user-1", "123456")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
	}
	assert.Equal(t, 1, succeeded)
}

func TestCodeService_Resend(t *testing.T) {
	ctx := context.Background()

	t.Run("cooldown", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindEmailVerification, "111111", "222222")
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))

		f.clock.Advance(30 * time.Second)
		err := f.svc.Resend(ctx, "user-1", "ana@example.com")
		require.ErrorIs(t, err, domain.ErrResendTooSoon)
		assert.Len(t, f.sender.sent, 1)

		f.clock.Advance(31 * time.Second)
		require.NoError(t, f.svc.Resend(ctx, "user-1", "ana@example.com"))
		assert.Equal(t, "222222", f.sender.last().code)
	})

	t.Run("resets attempts", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindEmailVerification, "111111", "222222")
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
		for i := 0; i < 5; i++ {
			_, _ = f.svc.Check(ctx, "user-1", "000000")
		}
		f.clock.Advance(time.Minute)
		require.NoError(t, f.svc.Resend(ctx, "user-1", "ana@example.com"))

		rec, err := f.store.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Zero(t, rec.Attempts)
		_, err = f.svc.Consume(ctx, "user-1", "222222")
		assert.NoError(t, err)
	})

	t.Run("cooldown applies to used records", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindEmailVerification)
		require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
		_, err := f.svc.Consume(ctx, "user-1", "123456")
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.Resend(ctx, "user-1", "ana@example.com"), domain.ErrResendTooSoon)
	})

	t.Run("no record issues", func(t *testing.T) {
		f := newCodeServiceFixture(t, domain.CodeKindEmailVerification)
		require.NoError(t, f.svc.Resend(ctx, "user-1", "ana@example.com"))
		assert.Len(t, f.sender.sent, 1)
	})
}

func TestCodeService_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newCodeServiceFixture(t, domain.CodeKindPasswordRecovery)
	require.NoError(t, f.svc.Issue(ctx, "user-1", "ana@example.com"))
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.svc.Issue(ctx, "user-2", "luis@example.com"))

	f.clock.Advance(6 * time.Minute)
	n, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a second sweep finds nothing")

	_, err = f.store.Get(ctx, "user-2")
	assert.NoError(t, err)
}
