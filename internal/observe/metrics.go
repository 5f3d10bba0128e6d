// Package observe provides the observability primitives shared by every
// ticketvox component: OpenTelemetry metrics, tracing, context-aware
// logging, and the HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter installed by [InitProvider]. Tests should use
// [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/ticketvox"

// Metrics holds the metric instruments of the application. All fields are
// safe for concurrent use.
type Metrics struct {
	// LLMDuration tracks ticket generation latency.
	LLMDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text inference latency.
	STTDuration metric.Float64Histogram

	// BoardDuration tracks card creation latency on the board API.
	BoardDuration metric.Float64Histogram

	// HTTPRequestDuration tracks API request time. Attributes: method, route.
	HTTPRequestDuration metric.Float64Histogram

	// ProviderRequests counts outbound provider calls. Attributes:
	// provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// TicketsGenerated counts tickets parsed from model output.
	TicketsGenerated metric.Int64Counter

	// TicketsInvalid counts tickets with a field outside the accepted
	// domain. Attribute: reason.
	TicketsInvalid metric.Int64Counter

	// BoardSubmissions counts card submissions. Attribute: status.
	BoardSubmissions metric.Int64Counter

	// SessionTransitions counts workflow state changes. Attributes: from, to.
	SessionTransitions metric.Int64Counter
}

// latencyBuckets are histogram boundaries in seconds. Model round trips
// dominate, so the tail reaches a minute.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.LLMDuration, "ticketvox.llm.duration", "Latency of ticket generation by the language model."},
		{&met.STTDuration, "ticketvox.stt.duration", "Latency of speech-to-text inference."},
		{&met.BoardDuration, "ticketvox.board.duration", "Latency of board card creation."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("ticketvox.http.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.ProviderRequests, "ticketvox.provider.requests", "Provider API requests by provider, kind and status."},
		{&met.ProviderErrors, "ticketvox.provider.errors", "Provider errors by provider and kind."},
		{&met.TicketsGenerated, "ticketvox.tickets.generated", "Tickets parsed from model output."},
		{&met.TicketsInvalid, "ticketvox.tickets.invalid", "Generated tickets with out-of-domain fields."},
		{&met.BoardSubmissions, "ticketvox.board.submissions", "Board card submissions by status."},
		{&met.SessionTransitions, "ticketvox.session.transitions", "Workflow state transitions."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on
// [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTickets adds n to the generated tickets counter.
func (m *Metrics) RecordTickets(ctx context.Context, n int) {
	m.TicketsGenerated.Add(ctx, int64(n))
}

// RecordInvalidTicket counts a ticket with an out-of-domain field.
func (m *Metrics) RecordInvalidTicket(ctx context.Context, reason string) {
	m.TicketsInvalid.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSubmission counts one board submission outcome.
func (m *Metrics) RecordSubmission(ctx context.Context, status string) {
	m.BoardSubmissions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTransition counts one workflow state change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.SessionTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
