// Package telemetry installs the OpenTelemetry metrics pipeline for modeld.
//
// Instruments are created against the global meter provider throughout the
// codebase; Setup makes those instruments real by exporting them through a
// Prometheus registerer, so /metrics carries pipeline and HTTP counters next
// to the default Go collectors.
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Setup installs the global MeterProvider backed by reg. It must run before
// any package creates its instruments. The returned function flushes and
// shuts the provider down.
func Setup(serviceName, serviceVersion string, reg prometheus.Registerer) (func(context.Context) error, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
