// Package log provides the application logger used by the server wiring.
// Library packages log through the global zerolog logger, which Setup
// configures with the same level and format.
package log

import "context"

// Logger is a structured logger that enriches every entry with the trace
// and span ids found in ctx.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) // exits the process
	With(fields map[string]interface{}) Logger
}
