package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/events"
)

// DefaultExchange is the topic exchange lifecycle events are exported to.
const DefaultExchange = "helpdesk.events"

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher exports domain events to a RabbitMQ topic exchange with routing
// key "issue.<type>" (or "performance.reset").
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewPublisher dials url and declares the durable exchange.
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	publisher := newPublisher(ch, exchange, logger)
	publisher.conn = conn
	return publisher, nil
}

func newPublisher(ch channel, exchange string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		cb:       NewCircuitBreaker("RabbitMQ-Publisher", 30*time.Second, logger),
		logger:   logger,
	}
}

// Export publishes event as a persistent JSON message.
func (p *Publisher) Export(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return ctx.Err()
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.ch.PublishWithContext(
			ctx,
			p.exchange,
			RoutingKey(event.Type),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    event.ID,
				Timestamp:    event.Timestamp,
				Type:         string(event.Type),
				Body:         body,
			},
		)
	})
	if err != nil {
		p.logger.Warn("event export failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
	return err
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RoutingKey maps an event type onto the exchange's routing key.
func RoutingKey(eventType events.EventType) string {
	switch eventType {
	case events.EventIssueCreated:
		return "issue.created"
	case events.EventIssueReplied:
		return "issue.replied"
	case events.EventIssueAccepted:
		return "issue.accepted"
	case events.EventIssueSolved:
		return "issue.solved"
	case events.EventIssueFailed:
		return "issue.failed"
	case events.EventPerformanceReset:
		return "performance.reset"
	}
	return "issue." + string(eventType)
}
