package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/decision-board/internal/queue"
)

// EventPublisher delivers domain events after the state change that
// produced them has committed.
type EventPublisher interface {
	PublishDecisionDecided(ctx context.Context, event q.DecisionDecidedEvent) error
}

// NopPublisher drops every event.  Used when the audit trail is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishDecisionDecided(context.Context, q.DecisionDecidedEvent) error { return nil }

// AMQPPublisher publishes events to RabbitMQ, dialing once per publish.
type AMQPPublisher struct {
	URL         string
	DialTimeout time.Duration
}

// PublishDecisionDecided publishes event to the decision.decided queue as
// a persistent JSON message.
func (p *AMQPPublisher) PublishDecisionDecided(ctx context.Context, event q.DecisionDecidedEvent) error {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(timeout)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.DecisionDecidedQueue, // name
		true,                   // durable
		false,                  // autoDelete
		false,                  // exclusive
		false,                  // noWait
		nil,                    // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",                     // default exchange
		q.DecisionDecidedQueue, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
