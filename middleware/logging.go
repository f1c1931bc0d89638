package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/biihlive/authcodes/internal/metrics"
	"github.com/rs/zerolog/log"
)

// NewLoggingInterceptor logs every unary call with its outcome, records the
// RPC metrics and turns handler panics into CodeInternal.
func NewLoggingInterceptor() connect.Interceptor {
	return connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
			procedure := req.Spec().Procedure
			start := time.Now()

			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("procedure", procedure).Interface("panic", r).Msg("Recovered from panic in RPC handler")
					resp, err = nil, connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
				}

				elapsed := time.Since(start)
				code := "ok"
				if err != nil {
					code = connect.CodeOf(err).String()
				}
				metrics.RPCRequestsTotal.WithLabelValues(procedure, code).Inc()
				metrics.RPCDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())

				event := log.Info()
				var cerr *connect.Error
				if err != nil && (!errors.As(err, &cerr) || cerr.Code() == connect.CodeInternal || cerr.Code() == connect.CodeUnknown) {
					event = log.Error().Err(err)
				} else if err != nil {
					event = log.Info().Str("error", cerr.Message())
				}
				event.Str("procedure", procedure).
					Str("peer", req.Peer().Addr).
					Str("code", code).
					Dur("elapsed", elapsed).
					Msg("RPC handled")
			}()

			return next(ctx, req)
		})
	})
}
