package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biihlive/authcodes/cache"
	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/biihlive/authcodes/otp"
	"github.com/biihlive/authcodes/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type nopSender struct{}

func (nopSender) SendCode(context.Context, domain.CodeKind, string, string) error { return nil }

type failingSweeper struct{}

func (failingSweeper) Sweep(context.Context) (int64, error) {
	return 0, errors.New("connection reset by peer")
}

func TestCodeCleanupJob(t *testing.T) {
	ctx := context.Background()
	issuedAt := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	now := issuedAt
	clock := func() time.Time { return now }

	sweepers := make(map[string]Sweeper)
	codeServices := make(map[domain.CodeKind]*services.CodeService)
	for _, kind := range domain.CodeKinds() {
		store := cache.NewMemoryCodeStore(0)
		t.Cleanup(func() { _ = store.Close() })
		svc := services.NewCodeService(kind, store, otp.Sequence("123456"), nopSender{}, services.DefaultCodePolicy(), services.WithClock(clock))
		codeServices[kind] = svc
		sweepers[string(kind)] = svc
	}

	require.NoError(t, codeServices[domain.CodeKindPasswordRecovery].Issue(ctx, "u1", "a@example.com"))
	require.NoError(t, codeServices[domain.CodeKindPasswordRecovery].Issue(ctx, "u2", "b@example.com"))
	require.NoError(t, codeServices[domain.CodeKindEmailVerification].Issue(ctx, "u1", "a@example.com"))
	now = issuedAt.Add(30 * time.Minute)
	require.NoError(t, codeServices[domain.CodeKindEmailVerification].Issue(ctx, "u3", "c@example.com"))

	before := testutil.ToFloat64(metrics.SweepDeletedTotal.WithLabelValues(string(domain.CodeKindPasswordRecovery)))

	job := NewCodeCleanupJob(sweepers, time.Second)
	r := newRunner(noop.NewTracerProvider())
	require.NoError(t, r.Run(ctx, job))

	after := testutil.ToFloat64(metrics.SweepDeletedTotal.WithLabelValues(string(domain.CodeKindPasswordRecovery)))
	assert.Equal(t, float64(2), after-before)

	result, err := SweepAll(ctx, sweepers)
	require.NoError(t, err)
	assert.Zero(t, result.Total(), "sweeping twice deletes nothing the second time")
}

func TestSweepAll_PartialFailure(t *testing.T) {
	store := cache.NewMemoryCodeStore(0)
	t.Cleanup(func() { _ = store.Close() })
	rec := domain.NewCodeRecord("u1", "a@example.com", "123456", time.Now().Add(-time.Hour), domain.DefaultCodeTTL)
	require.NoError(t, store.Put(context.Background(), rec))

	svc := services.NewCodeService(domain.CodeKindEmailVerification, store, otp.Sequence("123456"), nopSender{}, services.DefaultCodePolicy())
	result, err := SweepAll(context.Background(), map[string]Sweeper{
		"email_verification": svc,
		"password_recovery":  failingSweeper{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password_recovery")
	assert.Equal(t, int64(1), result["email_verification"])
}

func TestRunner_Timeout(t *testing.T) {
	job := NewJob("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)

	err := newRunner(noop.NewTracerProvider()).Run(context.Background(), job)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_RegisterCronJob(t *testing.T) {
	s, err := NewScheduler(noop.NewTracerProvider())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	job := NewJob(CodeCleanupJobName, func(context.Context) error { return nil }, 0)
	require.NoError(t, s.RegisterCronJob(DefaultCleanupCron, job))
	assert.Error(t, s.RegisterCronJob("not a cron", job))
	s.Start()
}
