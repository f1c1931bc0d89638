package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/log"
	"github.com/biihlive/authcodes/middleware"
	"github.com/biihlive/authcodes/rpc"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	RequestIDHeader   = "X-Request-ID"
	healthPingTimeout = 2 * time.Second
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds everything the HTTP surface is built from.
type Options struct {
	Addr               string
	ServiceName        string
	Release            bool
	RateLimitPerMinute int // 0 disables per-IP limiting

	Logger   log.Logger
	Health   []Pinger
	Gatherer prometheus.Gatherer

	PasswordRecovery  rpc.PasswordRecoveryServiceHandler
	EmailVerification rpc.EmailVerificationServiceHandler
	Session           rpc.SessionServiceHandler
	SessionValidator  middleware.SessionValidator
}

// NewRouter builds the gin engine serving health, metrics and the Connect
// services.
func NewRouter(opts Options) *gin.Engine {
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(opts.Logger))
	router.Use(otelgin.Middleware(opts.ServiceName))

	router.GET("/healthz", healthHandler(opts.Health))
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlerOpts := []connect.HandlerOption{
		connect.WithInterceptors(middleware.NewLoggingInterceptor()),
	}
	limit := rateLimiter(opts.RateLimitPerMinute)

	if opts.PasswordRecovery != nil {
		path, handler := rpc.NewPasswordRecoveryServiceHandler(opts.PasswordRecovery, handlerOpts...)
		mount(router, path, limit(handler))
	}
	if opts.EmailVerification != nil {
		path, handler := rpc.NewEmailVerificationServiceHandler(opts.EmailVerification, handlerOpts...)
		mount(router, path, limit(handler))
	}
	if opts.Session != nil && opts.SessionValidator != nil {
		path, handler := rpc.NewSessionServiceHandler(opts.Session, handlerOpts...)
		authenticated := middleware.NewSessionMiddleware(opts.SessionValidator, connect.WithCodec(rpc.Codec{})).Wrap(handler)
		mount(router, path, limit(authenticated))
	}

	return router
}

// NewHTTPServer serves the router over HTTP/1.1 and cleartext HTTP/2.
func NewHTTPServer(opts Options) *http.Server {
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           h2c.NewHandler(NewRouter(opts), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func mount(router *gin.Engine, path string, handler http.Handler) {
	router.Any(path+"*procedure", gin.WrapH(handler))
}

// rateLimiter answers over-limit callers with a Connect resource_exhausted
// error so clients see the same shape as any other RPC failure.
func rateLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	errWriter := connect.NewErrorWriter(connect.WithCodec(rpc.Codec{}))
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = errWriter.Write(w, r, connect.NewError(connect.CodeResourceExhausted, errors.New("demasiadas solicitudes, inténtalo más tarde")))
		}),
	)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(appLogger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if appLogger == nil {
			return
		}

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"request_id": c.GetString("request_id"),
		}
		if len(c.Errors) > 0 {
			appLogger.Error(c.Request.Context(), c.Errors.String(), c.Errors.Last().Err, fields)
			return
		}
		appLogger.Info(c.Request.Context(), "HTTP Request", fields)
	}
}

func healthHandler(pingers []Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		for _, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
