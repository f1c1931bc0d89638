package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the application tracer, set by InitTracerProvider.
var Tracer trace.Tracer = otel.Tracer(tracerName)

const (
	defaultServiceName = "authcodes"
	tracerName         = "github.com/biihlive/authcodes"
)

// InitTracerProvider installs a global TracerProvider exporting spans to
// stdout and W3C trace context propagation.
func InitTracerProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	return InitTracerProviderWithWriter(serviceName, os.Stdout)
}

// InitTracerProviderWithWriter is InitTracerProvider with the span output
// redirected to w.
func InitTracerProviderWithWriter(serviceName string, w io.Writer) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tp.Tracer(tracerName)

	return tp, nil
}
