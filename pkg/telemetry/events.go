package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the loan workflow.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ApplicationID is the associated application, if applicable.
	ApplicationID string `json:"application_id,omitempty"`

	// Stage is the associated workflow stage, if applicable.
	Stage string `json:"stage,omitempty"`

	// Status is the application status after the event, if applicable.
	Status string `json:"status,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeApplicationSubmitted = "application.submitted"
	EventTypeStatusChanged        = "application.status_changed"
	EventTypeStageRetried         = "stage.retried"
	EventTypeDocumentsRequested   = "documents.requested"
	EventTypeDocumentAttached     = "document.attached"
	EventTypeReviewRequested      = "review.requested"
	EventTypeDecisionMade         = "decision.made"
	EventTypeApplicationFailed    = "application.failed"
	EventTypePolicyViolation      = "policy.violation"
	EventTypeError                = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishApplicationSubmitted publishes an application submitted event.
func (ep *EventPublisher) PublishApplicationSubmitted(applicationID, product string, amount float64) error {
	return ep.Publish(Event{
		Type:          EventTypeApplicationSubmitted,
		Source:        "engine",
		ApplicationID: applicationID,
		Message:       fmt.Sprintf("Application %s submitted: %s loan for %.2f", applicationID, product, amount),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"product": product,
			"amount":  amount,
		},
	})
}

// PublishStatusChanged publishes a status change event.
func (ep *EventPublisher) PublishStatusChanged(applicationID, stage, from, to string) error {
	return ep.Publish(Event{
		Type:          EventTypeStatusChanged,
		Source:        "engine",
		ApplicationID: applicationID,
		Stage:         stage,
		Status:        to,
		Message:       fmt.Sprintf("Application %s moved from %s to %s", applicationID, from, to),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
}

// PublishStageRetried publishes a stage retry event.
func (ep *EventPublisher) PublishStageRetried(applicationID, stage string, attempt int, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeStageRetried,
		Source:        "engine",
		ApplicationID: applicationID,
		Stage:         stage,
		Message:       fmt.Sprintf("Stage %s retried (attempt %d): %s", stage, attempt, reason),
		Level:         EventLevelWarning,
		Data: map[string]interface{}{
			"attempt": attempt,
			"reason":  reason,
		},
	})
}

// PublishDocumentsRequested publishes a documents requested event.
func (ep *EventPublisher) PublishDocumentsRequested(applicationID string, missing []string) error {
	return ep.Publish(Event{
		Type:          EventTypeDocumentsRequested,
		Source:        "engine",
		ApplicationID: applicationID,
		Stage:         "verify_documents",
		Message:       fmt.Sprintf("Application %s is waiting on %d document(s)", applicationID, len(missing)),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"missing": missing,
		},
	})
}

// PublishReviewRequested publishes a human review requested event.
func (ep *EventPublisher) PublishReviewRequested(applicationID, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeReviewRequested,
		Source:        "engine",
		ApplicationID: applicationID,
		Stage:         "human_review",
		Message:       fmt.Sprintf("Application %s routed to human review: %s", applicationID, reason),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishDecisionMade publishes a final decision event.
func (ep *EventPublisher) PublishDecisionMade(applicationID, outcome, decidedBy string) error {
	return ep.Publish(Event{
		Type:          EventTypeDecisionMade,
		Source:        "engine",
		ApplicationID: applicationID,
		Message:       fmt.Sprintf("Application %s decided: %s (by %s)", applicationID, outcome, decidedBy),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"outcome":    outcome,
			"decided_by": decidedBy,
		},
	})
}

// PublishApplicationFailed publishes an application failed event.
func (ep *EventPublisher) PublishApplicationFailed(applicationID, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeApplicationFailed,
		Source:        "engine",
		ApplicationID: applicationID,
		Message:       fmt.Sprintf("Application %s failed: %s", applicationID, reason),
		Level:         EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(applicationID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypePolicyViolation,
		Source:        "policy_engine",
		ApplicationID: applicationID,
		Message:       fmt.Sprintf("Policy violation on application %s: %s - %s", applicationID, policyName, reason),
		Level:         EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByApplicationID creates a filter that only allows events for a
// specific application.
func FilterByApplicationID(applicationID string) EventFilter {
	return func(event Event) bool {
		return event.ApplicationID == applicationID
	}
}
