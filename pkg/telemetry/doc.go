// Package telemetry provides observability instrumentation for the LOSA engine.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging loan workflow operations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "losa"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithApplicationID("APP-20260115-A1B2C3").WithStage("credit_check")
//	logger.Info("Pulling credit report")
//	logger.WithError(err).Error("Credit bureau call failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into request flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    telemetry.AttrApplicationID.String(appID),
//	    telemetry.AttrStage.String("decide"),
//	)
//
//	// Record events
//	telemetry.AddTransitionEvent(span, "checking_credit", "assessing_risk")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), None (testing)
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record application intake
//	tel.Metrics.RecordSubmission("personal")
//
//	// Record advance operations
//	tel.Metrics.RecordAdvanceStarted()
//	tel.Metrics.RecordAdvanceCompleted("approved", duration)
//
//	// Record stage execution
//	tel.Metrics.RecordStageExecution("credit_check", "advance", duration)
//	tel.Metrics.RecordStageRetry("credit_check")
//
//	// Record capability client calls
//	tel.Metrics.RecordCapabilityCall("credit_bureau", "pull", duration)
//
//	// Record errors
//	tel.Metrics.RecordError("transient", "BUREAU_FAILED")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishApplicationSubmitted(appID, "personal", 25000)
//	tel.Events.PublishStatusChanged(appID, "decide", "deciding", "approved")
//	tel.Events.PublishDecisionMade(appID, "approved", "system")
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByApplicationID
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - losa_applications_submitted_total{product}
//  - losa_advances_started_total
//  - losa_advances_completed_total{status}
//  - losa_advance_duration_seconds{status}
//  - losa_stage_executions_total{stage,outcome}
//  - losa_stage_duration_seconds{stage}
//  - losa_stage_retries_total{stage}
//  - losa_decisions_total{outcome}
//  - losa_version_conflicts_total
//  - losa_capability_calls_total{capability,operation}
//  - losa_errors_by_class_total{class}
//  - losa_active_advances
//
// # Security Considerations
//
//  - Never log applicant PII (SSN, date of birth, full addresses)
//  - Use application IDs rather than applicant names in telemetry
//  - Use secure connections (TLS) for trace exporters in production
//  - Limit metrics endpoint access via network policies
package telemetry
