package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biihlive/authcodes/internal/audit"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/biihlive/authcodes/services"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	CodeCleanupJobName = "CodeCleanup"
	// DefaultCleanupCron runs the sweep at the top of every hour.
	DefaultCleanupCron    = "0 * * * *"
	DefaultCleanupTimeout = 5 * time.Minute
)

// Sweeper deletes expired records of one code kind.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

var _ Sweeper = (*services.CodeService)(nil)

// SweepResult holds the deletion count per kind of one cleanup run.
type SweepResult map[string]int64

// Total returns the number of records deleted across kinds.
func (r SweepResult) Total() int64 {
	var total int64
	for _, n := range r {
		total += n
	}
	return total
}

// SweepAll runs every sweeper once. A failing kind does not stop the
// others; their errors are joined.
func SweepAll(ctx context.Context, sweepers map[string]Sweeper) (SweepResult, error) {
	logger := zerolog.Ctx(ctx)
	span := trace.SpanFromContext(ctx)

	result := make(SweepResult, len(sweepers))
	var errs []error
	for kind, sweeper := range sweepers {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			audit.Log("sweeper", audit.ActionCodesSwept, "", kind, "", false, err)
			continue
		}
		result[kind] = n
		metrics.SweepDeletedTotal.WithLabelValues(kind).Add(float64(n))
		span.SetAttributes(attribute.Int64("deleted."+kind, n))
		logger.Info().Str("kind", kind).Int64("deleted", n).Msg("Expired codes deleted")
		audit.Log("sweeper", audit.ActionCodesSwept, "", kind, fmt.Sprintf("deleted=%d", n), true, nil)
	}
	metrics.SweepLastRun.SetToCurrentTime()
	return result, errors.Join(errs...)
}

// NewCodeCleanupJob builds the hourly job sweeping every kind.
func NewCodeCleanupJob(sweepers map[string]Sweeper, timeout time.Duration) Job {
	return NewJob(CodeCleanupJobName, func(ctx context.Context) error {
		_, err := SweepAll(ctx, sweepers)
		return err
	}, timeout)
}
