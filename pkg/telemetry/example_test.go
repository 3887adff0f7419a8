package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openlosa/losa/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "losa"
	cfg.ServiceVersion = "1.0.0"
	cfg.Metrics.Enabled = false // Don't bind a port in the example

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Engine started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("engine")

	// Add context fields
	logger = logger.
		WithApplicationID("APP-20260115-A1B2C3").
		WithStage("credit_check")

	// Log at different levels
	logger.Debug("Pulling credit report")
	logger.Info("Credit report obtained")
	logger.Warn("Bureau response was slow")

	// Log with error
	err := fmt.Errorf("bureau timeout")
	logger.WithError(err).Error("Credit bureau call failed")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "none"
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start an advance span
	ctx, span := tel.Tracer.StartAdvanceSpan(ctx, "APP-20260115-A1B2C3")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		telemetry.AttrProduct.String("personal"),
		attribute.Float64("application.amount", 25000),
	)

	// Record a status transition
	telemetry.AddTransitionEvent(span, "checking_credit", "assessing_risk")

	// Nested stage span
	_, stageSpan := tel.Tracer.StartStageSpan(ctx, "APP-20260115-A1B2C3", "assess_risk")
	defer stageSpan.End()

	stageSpan.SetAttributes(
		telemetry.AttrRiskBand.String("medium"),
	)

	// Record success
	telemetry.RecordSuccess(stageSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record intake
	tel.Metrics.RecordSubmission("personal")

	// Record an advance
	tel.Metrics.RecordAdvanceStarted()

	start := time.Now()
	time.Sleep(5 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordAdvanceCompleted("approved", duration)

	// Record stage metrics
	tel.Metrics.RecordStageExecution("credit_check", "advance", 2*time.Millisecond)
	tel.Metrics.RecordStageRetry("credit_check")

	// Record capability metrics
	tel.Metrics.RecordCapabilityCall("credit_bureau", "pull", time.Millisecond)

	// Record decision and error metrics
	tel.Metrics.RecordDecision("approved")
	tel.Metrics.RecordError("transient", "BUREAU_FAILED")

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishApplicationSubmitted("APP-20260115-A1B2C3", "personal", 25000)
	tel.Events.PublishStatusChanged("APP-20260115-A1B2C3", "decide", "deciding", "approved")
	tel.Events.PublishDecisionMade("APP-20260115-A1B2C3", "approved", "system")

	// Output varies due to async delivery, no output specified
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only decisions)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Decision: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeDecisionMade))

	// Publish various events
	tel.Events.PublishApplicationSubmitted("APP-1", "personal", 10000)  // Info
	tel.Events.PublishStageRetried("APP-1", "credit_check", 2, "bureau timeout") // Warning
	tel.Events.PublishApplicationFailed("APP-1", "retries exhausted")   // Error

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "losa"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "losa"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}
