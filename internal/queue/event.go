// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationQueueName is the durable queue carrying outbound rider
// notifications. The API publishes to it at schedule finalization and
// the background consumer drains it.
const NotificationQueueName = "trip.notifications"

// TripNotificationEvent is published for every rider whose trip was
// finalized. It carries everything a delivery worker needs to render and
// send the message without querying the primary database.
type TripNotificationEvent struct {
	Contact    string            `json:"contact"`
	TemplateID string            `json:"template_id"`
	Data       map[string]string `json:"data"`
	QueuedAt   string            `json:"queued_at"`
}
