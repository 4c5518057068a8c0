package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// TracerName is the instrumentation scope used for spans created by this module
const TracerName = "github.com/Ingenimax/llmops-agent"

// Config contains the OTLP exporter settings
type Config struct {
	// ServiceName is reported as service.name
	ServiceName string

	// ProjectName routes spans to a Phoenix project via openinference.project.name
	ProjectName string

	// Protocol is "http" or "grpc"
	Protocol string

	// Endpoint is the collector base URL for http, or host:port for grpc
	Endpoint string

	// Insecure disables TLS for grpc
	Insecure bool

	// Headers are sent with every export request
	Headers map[string]string
}

// Provider owns the tracer provider and its exporter
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider creates an OTLP exporting tracer provider
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newProvider(cfg, sdktrace.WithBatcher(exporter)), nil
}

// NewProviderWithExporter creates a provider that exports synchronously to exporter
func NewProviderWithExporter(cfg Config, exporter sdktrace.SpanExporter) *Provider {
	return newProvider(cfg, sdktrace.WithSyncer(exporter))
}

func newProvider(cfg Config, export sdktrace.TracerProviderOption) *Provider {
	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(newResource(cfg)),
	)
	return &Provider{tp: tp}
}

// newResource uses a schemaless resource so it never conflicts with the SDK default schema URL
func newResource(cfg Config) *resource.Resource {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "llmops-agent"
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
	}
	if cfg.ProjectName != "" {
		attrs = append(attrs, attribute.String("openinference.project.name", cfg.ProjectName))
	}
	return resource.NewSchemaless(attrs...)
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("tracing endpoint is required")
	}

	switch strings.ToLower(cfg.Protocol) {
	case "http", "":
		endpoint, err := tracesURL(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP http exporter: %w", err)
		}
		return exporter, nil

	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(hostPort(cfg.Endpoint)),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("llmops-agent")),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP grpc exporter: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("unsupported tracing protocol: %s", cfg.Protocol)
	}
}

// tracesURL appends the OTLP traces path to a collector base URL
func tracesURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid tracing endpoint %q", endpoint)
	}
	if !strings.HasSuffix(u.Path, "/v1/traces") {
		u.Path += "/v1/traces"
	}
	return u.String(), nil
}

// hostPort strips a scheme and path from a grpc endpoint
func hostPort(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimRight(endpoint, "/")
}

// Tracer returns a tracer from this provider
func (p *Provider) Tracer(name string) trace.Tracer {
	if name == "" {
		name = TracerName
	}
	return p.tp.Tracer(name)
}

// TracerProvider returns the underlying SDK provider
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.tp
}

// SetGlobal installs the provider and the W3C propagator as process defaults
func (p *Provider) SetGlobal() {
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

// ForceFlush exports any buffered spans
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
