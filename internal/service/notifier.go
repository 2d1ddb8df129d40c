// Package service provides outbound integrations. The notifier hands
// rider notifications to RabbitMQ; errors are logged and returned so the
// caller can ignore delivery failures without interrupting the request
// flow.
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/vtransit/shuttle-booking/internal/queue"
)

// AMQPNotifier publishes trip notifications to the trip.notifications
// queue. It satisfies the allocation engine's Notifier interface. A
// fresh connection per send keeps the implementation robust against
// broker restarts at the cost of throughput, which is fine at
// finalization volumes (one burst per schedule per day).
type AMQPNotifier struct {
	URL string
}

// NewAMQPNotifier returns a notifier publishing to the given broker URL.
func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{URL: url}
}

// Send publishes one notification event. Messages are marked persistent
// so they survive broker restarts.
func (n *AMQPNotifier) Send(ctx context.Context, contact, templateID string, data map[string]string) error {
	conn, err := amqp.Dial(n.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive
	// broker restarts.
	if _, err := ch.QueueDeclare(
		q.NotificationQueueName, // name
		true,                    // durable
		false,                   // autoDelete
		false,                   // exclusive
		false,                   // noWait
		nil,                     // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(q.TripNotificationEvent{
		Contact:    contact,
		TemplateID: templateID,
		Data:       data,
		QueuedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",                      // default exchange
		q.NotificationQueueName, // routing key = queue name
		false,                   // mandatory
		false,                   // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
