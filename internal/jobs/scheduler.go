package jobs

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Scheduler runs registered jobs on cron schedules. A job never overlaps
// with itself; a run that is due while the previous one is still going is
// rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    *runner
}

func NewScheduler(traceProvider trace.TracerProvider) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLogger(&gocronLoggerAdapter{logger: log.With().Str("component", "scheduler").Logger()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: scheduler,
		runner:    newRunner(traceProvider),
	}, nil
}

func (s *Scheduler) RegisterCronJob(cron string, job Job) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(s.runner.RunJobFunc(job)),
		gocron.WithName(job.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Job scheduler starting")
	s.scheduler.Start()
}

func (s *Scheduler) Shutdown() error {
	log.Info().Msg("Job scheduler shutting down")
	return s.scheduler.Shutdown()
}

type gocronLoggerAdapter struct {
	logger zerolog.Logger
}

var _ gocron.Logger = (*gocronLoggerAdapter)(nil)

func (a *gocronLoggerAdapter) Debug(msg string, args ...any) {
	a.logger.Debug().Fields(args).Msg(msg)
}

func (a *gocronLoggerAdapter) Info(msg string, args ...any) {
	a.logger.Info().Fields(args).Msg(msg)
}

func (a *gocronLoggerAdapter) Warn(msg string, args ...any) {
	a.logger.Warn().Fields(args).Msg(msg)
}

func (a *gocronLoggerAdapter) Error(msg string, args ...any) {
	a.logger.Error().Fields(args).Msg(msg)
}
