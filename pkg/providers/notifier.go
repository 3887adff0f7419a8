package providers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openlosa/losa/pkg/engine"
	"github.com/openlosa/losa/pkg/telemetry"
)

// LogNotifier writes notifications to the structured log. It stands in
// for an outbound email or queue integration.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a notifier writing to the given logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, notification engine.Notification) error {
	n.logger.Info().
		Str("application", notification.ApplicationID).
		Str("event", notification.Event).
		Str("status", string(notification.Status)).
		Str("detail", notification.Detail).
		Msg("Notification")
	return nil
}

// EventNotifier forwards notifications to the telemetry event publisher
// so subscribers see workflow events alongside the rest of the stream.
type EventNotifier struct {
	events *telemetry.EventPublisher
}

// NewEventNotifier returns a notifier publishing to the given publisher.
func NewEventNotifier(events *telemetry.EventPublisher) *EventNotifier {
	return &EventNotifier{events: events}
}

// Notify publishes the notification as a telemetry event.
func (n *EventNotifier) Notify(_ context.Context, notification engine.Notification) error {
	eventType, level := classifyNotification(notification.Event)
	return n.events.Publish(telemetry.Event{
		Type:          eventType,
		Source:        "engine",
		ApplicationID: notification.ApplicationID,
		Status:        string(notification.Status),
		Message:       notification.Detail,
		Level:         level,
	})
}

// classifyNotification maps an engine notification event to a telemetry
// event type and severity.
func classifyNotification(event string) (string, string) {
	switch event {
	case "application_received":
		return telemetry.EventTypeApplicationSubmitted, telemetry.EventLevelInfo
	case "documents_requested":
		return telemetry.EventTypeDocumentsRequested, telemetry.EventLevelInfo
	case "review_requested":
		return telemetry.EventTypeReviewRequested, telemetry.EventLevelInfo
	case "decision_made":
		return telemetry.EventTypeDecisionMade, telemetry.EventLevelInfo
	case "application_failed":
		return telemetry.EventTypeApplicationFailed, telemetry.EventLevelError
	default:
		return telemetry.EventTypeStatusChanged, telemetry.EventLevelInfo
	}
}

// MultiNotifier fans a notification out to several senders. The first
// error is returned after every sender has been attempted.
type MultiNotifier []engine.NotificationSender

// Notify delivers to every sender.
func (m MultiNotifier) Notify(ctx context.Context, notification engine.Notification) error {
	var first error
	for _, sender := range m {
		if err := sender.Notify(ctx, notification); err != nil && first == nil {
			first = err
		}
	}
	return first
}
