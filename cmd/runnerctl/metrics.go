// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ProbeMetrics is the instrument set behind /metrics. The OTel
// prometheus exporter registers with the default prometheus registry,
// so promhttp.Handler() serves everything recorded here.
type ProbeMetrics struct {
	ready       metric.Int64Gauge
	checkStatus metric.Int64Gauge
	duration    metric.Float64Histogram
	restarts    metric.Int64Counter
}

// InitProbeMetrics builds the OTel metric pipeline with a Prometheus
// reader and returns the instruments, the /metrics handler, and a
// shutdown function. Call once at serve startup.
func InitProbeMetrics(serviceName string) (*ProbeMetrics, http.Handler, func(context.Context) error, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", serviceName),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	meter := provider.Meter("runnerctl")

	m := &ProbeMetrics{}

	m.ready, err = meter.Int64Gauge("runnerctl_ready",
		metric.WithDescription("1 when the container readiness verdict is healthy"))
	if err != nil {
		return nil, nil, nil, err
	}

	m.checkStatus, err = meter.Int64Gauge("runnerctl_check_status",
		metric.WithDescription("Per-check status: 0 healthy, 1 unhealthy, 2 warning, 3 info"))
	if err != nil {
		return nil, nil, nil, err
	}

	m.duration, err = meter.Float64Histogram("runnerctl_readiness_duration_seconds",
		metric.WithDescription("Wall time of one full readiness evaluation"))
	if err != nil {
		return nil, nil, nil, err
	}

	m.restarts, err = meter.Int64Counter("runnerctl_collector_restarts_total",
		metric.WithDescription("Times the supervised OTEL collector was restarted"))
	if err != nil {
		return nil, nil, nil, err
	}

	return m, promhttp.Handler(), provider.Shutdown, nil
}

// ObserveReport records one readiness evaluation.
func (m *ProbeMetrics) ObserveReport(ctx context.Context, report *HealthReport, elapsed time.Duration) {
	readyVal := int64(0)
	if report.Status == CheckStatusHealthy {
		readyVal = 1
	}
	m.ready.Record(ctx, readyVal)
	m.duration.Record(ctx, elapsed.Seconds())

	for key, result := range report.Checks {
		m.checkStatus.Record(ctx, statusCode(result.Status),
			metric.WithAttributes(attribute.String("check", key)))
	}
}

// RecordRestart counts one supervised collector restart.
func (m *ProbeMetrics) RecordRestart(ctx context.Context, reason string) {
	m.restarts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func statusCode(s CheckStatus) int64 {
	switch s {
	case CheckStatusHealthy:
		return 0
	case CheckStatusUnhealthy:
		return 1
	case CheckStatusWarning:
		return 2
	default:
		return 3
	}
}
