package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal        metric.Int64Counter
	HTTPRequestDuration      metric.Float64Histogram
	AuthRequestsTotal        metric.Int64Counter
	GatekeeperDecisionsTotal metric.Int64Counter
	GuardDenialsTotal        metric.Int64Counter
	EventSearchesTotal       metric.Int64Counter
	RegistrationsTotal       metric.Int64Counter
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("city-event-search")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of authentication requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.GatekeeperDecisionsTotal, err = meter.Int64Counter(
			"gatekeeper_decisions_total",
			metric.WithDescription("Edge middleware decisions by route class and outcome"),
			metric.WithUnit("{decision}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create gatekeeper_decisions_total: %v", err)
		}

		m.GuardDenialsTotal, err = meter.Int64Counter(
			"guard_denials_total",
			metric.WithDescription("Authoritative access denials at render time"),
			metric.WithUnit("{denial}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create guard_denials_total: %v", err)
		}

		m.EventSearchesTotal, err = meter.Int64Counter(
			"event_searches_total",
			metric.WithDescription("Total number of event discovery requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create event_searches_total: %v", err)
		}

		m.RegistrationsTotal, err = meter.Int64Counter(
			"event_registrations_total",
			metric.WithDescription("Total number of event sign-ups"),
			metric.WithUnit("{registration}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create event_registrations_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, or nil when
// InitAppMetrics has not run. Callers on hot paths nil-check instead of
// panicking so tests can exercise middleware without observability.
func Get() *AppMetrics {
	return appMetrics
}
