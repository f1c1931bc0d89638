// Package app assembles the service from configuration: stores, mail
// transport, code services, RPC servers and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/biihlive/authcodes/config"
	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/auth"
	"github.com/biihlive/authcodes/internal/jobs"
	"github.com/biihlive/authcodes/internal/server"
	"github.com/biihlive/authcodes/log"
	"github.com/biihlive/authcodes/mail"
	"github.com/biihlive/authcodes/otp"
	"github.com/biihlive/authcodes/services"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type settings struct {
	now        func() time.Time
	generator  otp.Generator
	transport  mail.Transport
	bcryptCost int
	gatherer   prometheus.Gatherer
}

// Option customizes New.
type Option func(*settings)

// WithClock replaces time.Now in the code services and session tokens.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithGenerator(g otp.Generator) Option {
	return func(s *settings) { s.generator = g }
}

// WithTransport skips transport selection from configuration.
func WithTransport(t mail.Transport) Option {
	return func(s *settings) { s.transport = t }
}

func WithBcryptCost(cost int) Option {
	return func(s *settings) { s.bcryptCost = cost }
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *settings) { s.gatherer = g }
}

// App is the assembled service.
type App struct {
	Config    *config.ServerConfig
	Stores    *Stores
	Transport mail.Transport

	PasswordRecovery  *services.CodeService
	EmailVerification *services.CodeService
	SessionTokens     *auth.SessionTokens

	HTTPServer *http.Server
}

// New opens the stores and builds every component.
func New(ctx context.Context, cfg *config.ServerConfig, logger log.Logger, opts ...Option) (*App, error) {
	st := settings{now: time.Now, generator: otp.NewRandomGenerator()}
	for _, opt := range opts {
		opt(&st)
	}

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	transport := st.transport
	if transport == nil {
		transport, err = mail.NewTransport(ctx, mail.Config{
			Transport:    cfg.MailTransport,
			SMTPHost:     cfg.SMTPHost,
			SMTPPort:     cfg.SMTPPort,
			SMTPUser:     cfg.SMTPUser,
			SMTPPassword: cfg.SMTPPassword,
			From:         cfg.SMTPFrom,
			SESRegion:    cfg.SESRegion,
		})
		if err != nil {
			_ = stores.Close(ctx)
			return nil, fmt.Errorf("select mail transport: %w", err)
		}
	}
	renderer, err := mail.NewRenderer(cfg.AppName, cfg.CodeTTL)
	if err != nil {
		_ = stores.Close(ctx)
		return nil, err
	}
	mailer := mail.NewMailer(renderer, transport)

	policy := services.CodePolicy{
		TTL:            cfg.CodeTTL,
		MaxAttempts:    cfg.MaxAttempts,
		ResendCooldown: cfg.ResendCooldown,
	}
	newCodeService := func(kind domain.CodeKind) *services.CodeService {
		return services.NewCodeService(kind, stores.Codes.CodeRepository(kind), st.generator, mailer, policy, services.WithClock(st.now))
	}

	a := &App{
		Config:            cfg,
		Stores:            stores,
		Transport:         transport,
		PasswordRecovery:  newCodeService(domain.CodeKindPasswordRecovery),
		EmailVerification: newCodeService(domain.CodeKindEmailVerification),
		SessionTokens: auth.NewSessionTokens([]byte(cfg.SessionSigningKey), cfg.OtelServiceName, cfg.SessionTTL, stores.Sessions,
			auth.WithTokenClock(st.now)),
	}

	hasher := auth.NewBcryptPasswordHasher(st.bcryptCost)
	a.HTTPServer = server.NewHTTPServer(server.Options{
		Addr:               cfg.HTTPAddr,
		ServiceName:        cfg.OtelServiceName,
		Release:            cfg.IsProduction(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Health:             stores.Pingers(),
		Gatherer:           st.gatherer,
		PasswordRecovery:   services.NewPasswordRecoveryServer(stores.Users, stores.Sessions, hasher, a.PasswordRecovery),
		EmailVerification:  services.NewEmailVerificationServer(stores.Users, a.EmailVerification),
		Session:            services.NewSessionServer(),
		SessionValidator:   a.SessionTokens,
	})
	return a, nil
}

// Sweepers returns the cleanup target of every code kind.
func (a *App) Sweepers() map[string]jobs.Sweeper {
	return map[string]jobs.Sweeper{
		string(domain.CodeKindPasswordRecovery):  a.PasswordRecovery,
		string(domain.CodeKindEmailVerification): a.EmailVerification,
	}
}

// NewScheduler registers the hourly cleanup job.
func (a *App) NewScheduler(tp trace.TracerProvider) (*jobs.Scheduler, error) {
	scheduler, err := jobs.NewScheduler(tp)
	if err != nil {
		return nil, err
	}
	job := jobs.NewCodeCleanupJob(a.Sweepers(), a.Config.SweepTimeout)
	if err := scheduler.RegisterCronJob(a.Config.SweepCron, job); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return scheduler, nil
}

// Close releases the stores.
func (a *App) Close(ctx context.Context) error {
	return a.Stores.Close(ctx)
}
