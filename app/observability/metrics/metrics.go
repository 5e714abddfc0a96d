package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal            metric.Int64Counter
	GenerationsStartedTotal   metric.Int64Counter
	GenerationsFailedTotal    metric.Int64Counter
	GenerationDurationSeconds metric.Float64Histogram
	LlmCallDurationSeconds    metric.Float64Histogram
	LlmCallErrorsTotal        metric.Int64Counter
	ParserFallbacksTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Get returns the global AppMetrics instance, initializing it on first use.
// With no MeterProvider configured the global meter is a no-op, so tests can
// call this without any observability setup.
func Get() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripLoomAI")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of chat turns handled"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.GenerationsStartedTotal, err = meter.Int64Counter(
			"generations_started_total",
			metric.WithDescription("Total number of itinerary generations started"),
			metric.WithUnit("{generation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generations_started_total: %v", err)
		}

		m.GenerationsFailedTotal, err = meter.Int64Counter(
			"generations_failed_total",
			metric.WithDescription("Total number of itinerary generations that ended in a terminal error"),
			metric.WithUnit("{generation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generations_failed_total: %v", err)
		}

		m.GenerationDurationSeconds, err = meter.Float64Histogram(
			"generation_duration_seconds",
			metric.WithDescription("End-to-end duration of itinerary generations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_duration_seconds: %v", err)
		}

		m.LlmCallDurationSeconds, err = meter.Float64Histogram(
			"llm_call_duration_seconds",
			metric.WithDescription("Duration of individual LLM calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_call_duration_seconds: %v", err)
		}

		m.LlmCallErrorsTotal, err = meter.Int64Counter(
			"llm_call_errors_total",
			metric.WithDescription("Total number of failed LLM calls"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_call_errors_total: %v", err)
		}

		m.ParserFallbacksTotal, err = meter.Int64Counter(
			"parser_fallbacks_total",
			metric.WithDescription("Total number of turns where the deterministic parser came up empty and the model was consulted"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create parser_fallbacks_total: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}
