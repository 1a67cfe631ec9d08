package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/publish"

	"github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "pubsub_exchange"

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// TopicPublisher publishes events to a topic exchange. The routing key is
// "<channel>.<event>" so subscribers can bind per channel or per event.
type TopicPublisher struct {
	ch       amqpChannel
	exchange string
}

// NewTopicPublisher opens a channel on conn and declares the exchange.
func NewTopicPublisher(conn *amqp091.Connection, exchange string) (*TopicPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	p, err := newTopicPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newTopicPublisher(ch amqpChannel, exchange string) (*TopicPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &TopicPublisher{ch: ch, exchange: exchange}, nil
}

func RoutingKey(channel, event string) string {
	return channel + "." + event
}

func (p *TopicPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := publish.Encode(event, payload)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Type:         event,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(channel, event), false, false, publishing); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event, channel, err)
	}
	return nil
}

func (p *TopicPublisher) Close() error {
	return p.ch.Close()
}
