// Copyright 2026 The Monite SDK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: noop.NewMeterProvider().Meter(serviceName),
		}, nil
	}

	// the global provider is configured by the OTEL SDK environment
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// CreateUpDownCounter creates a new up/down counter metric
func (m *Meter) CreateUpDownCounter(name, description string) (metric.Int64UpDownCounter, error) {
	counter, err := m.meter.Int64UpDownCounter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create up/down counter %s: %w", name, err)
	}
	return counter, nil
}

// Instruments groups the instruments recorded by the API client, the query
// cache and the permission resolver. A nil *Instruments records nothing.
type Instruments struct {
	apiRequests         metric.Int64Counter
	apiLatency          metric.Float64Histogram
	permissionDecisions metric.Int64Counter
	queriesInFlight     metric.Int64UpDownCounter
}

// NewInstruments registers every instrument on the given meter.
func NewInstruments(m *Meter) (*Instruments, error) {
	apiRequests, err := m.CreateCounter("monite.api.requests", "Monite API requests by method and status")
	if err != nil {
		return nil, err
	}
	apiLatency, err := m.CreateHistogram("monite.api.duration", "Monite API request latency", "ms")
	if err != nil {
		return nil, err
	}
	decisions, err := m.CreateCounter("monite.permission.decisions", "Permission evaluations by method, action and outcome")
	if err != nil {
		return nil, err
	}
	inFlight, err := m.CreateUpDownCounter("monite.query.in_flight", "Query fetches currently running")
	if err != nil {
		return nil, err
	}
	return &Instruments{
		apiRequests:         apiRequests,
		apiLatency:          apiLatency,
		permissionDecisions: decisions,
		queriesInFlight:     inFlight,
	}, nil
}

// RecordAPIRequest records one finished Monite API call.
func (i *Instruments) RecordAPIRequest(ctx context.Context, method, route string, status int, ms float64) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	i.apiRequests.Add(ctx, 1, attrs)
	i.apiLatency.Record(ctx, ms, attrs)
}

// RecordDecision records one permission evaluation outcome.
func (i *Instruments) RecordDecision(ctx context.Context, method, action string, allowed bool) {
	if i == nil {
		return
	}
	i.permissionDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("action", action),
		attribute.Bool("allowed", allowed),
	))
}

// QueryStarted and QueryFinished bracket one query fetch.
func (i *Instruments) QueryStarted(ctx context.Context) {
	if i == nil {
		return
	}
	i.queriesInFlight.Add(ctx, 1)
}

func (i *Instruments) QueryFinished(ctx context.Context) {
	if i == nil {
		return
	}
	i.queriesInFlight.Add(ctx, -1)
}
