package queue

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends domain events to the broker.  Failures are returned so
// callers can log them; they never undo the write that produced the event.
type Publisher interface {
	PublishMatchScored(ctx context.Context, ev MatchScoredEvent) error
	PublishFixturesSynced(ctx context.Context, ev FixturesSyncedEvent) error
}

// AMQPPublisher opens a short-lived connection per event.  Events are rare
// (admin edits and sync runs) so no connection is held between them.
type AMQPPublisher struct {
	url string
	log *zap.Logger
}

func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log.Named("publisher")}
}

func (p *AMQPPublisher) PublishMatchScored(ctx context.Context, ev MatchScoredEvent) error {
	return p.publish(ctx, MatchScoredQueue, ev)
}

func (p *AMQPPublisher) PublishFixturesSynced(ctx context.Context, ev FixturesSyncedEvent) error {
	return p.publish(ctx, FixturesSyncedQueue, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, queueName string, event any) error {
	log := p.log.With(zap.String("queue", queueName))

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := sonic.Marshal(event)
	if err != nil {
		log.Warn("marshal event failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		log.Warn("publish failed", zap.Error(err))
		return err
	}
	return nil
}

// NopPublisher drops every event.  Used when QUEUE_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) PublishMatchScored(context.Context, MatchScoredEvent) error       { return nil }
func (NopPublisher) PublishFixturesSynced(context.Context, FixturesSyncedEvent) error { return nil }
