// Package telemetry configures the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Provider wraps the tracer provider and its shutdown.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(context.Context) error
}

// NewProvider creates a TracerProvider that exports via OTLP gRPC to endpoint.
// endpoint may be a URL; only host:port is used. With an empty endpoint spans
// are recorded but not exported. https endpoints use TLS unless insecure is set.
func NewProvider(ctx context.Context, endpoint, serviceName, environment string, insecure bool) (*Provider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("deployment.environment", environment),
	)

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		return &Provider{TracerProvider: tp, Shutdown: tp.Shutdown}, nil
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(u.Host)}
	if insecure || u.Scheme != "https" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	return &Provider{TracerProvider: tp, Shutdown: tp.Shutdown}, nil
}

// Install makes p the global tracer provider used by otel.Tracer.
func (p *Provider) Install() { otel.SetTracerProvider(p.TracerProvider) }
