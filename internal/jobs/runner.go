package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerScope = "github.com/biihlive/authcodes/internal/jobs"

type runner struct {
	tracer trace.Tracer
}

func newRunner(traceProvider trace.TracerProvider) *runner {
	return &runner{tracer: traceProvider.Tracer(tracerScope)}
}

func (r *runner) RunJobFunc(job Job) func(ctx context.Context) {
	return func(ctx context.Context) { _ = r.Run(ctx, job) }
}

// Run executes one run of job inside its own span.
func (r *runner) Run(ctx context.Context, job Job) error {
	logger := log.With().Str("job", job.name).Logger()

	ctx, span := r.tracer.Start(ctx, job.name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if job.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	logger.Info().Msg("Job started")

	err := job.Run(logger.WithContext(ctx))
	elapsed := time.Since(startedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job error")
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("Job failed")
	} else {
		span.SetStatus(codes.Ok, "job finished")
		logger.Info().Dur("elapsed", elapsed).Msg("Job finished")
	}
	return err
}
