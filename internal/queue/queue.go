package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// RetryDelay is how long a message waits in a retry queue before it is
// dead-lettered back to its main queue.
const RetryDelay = 10 * time.Second

// Channel is the subset of *amqp091.Channel used by this package.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ConnectionURL builds the broker URL from the RABBITMQ_* variables.
func ConnectionURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

func Dial() (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(ConnectionURL())
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// Init connects to RabbitMQ and exits the process on failure.
func Init() *amqp091.Connection {
	conn, err := Dial()
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares every queue together with its "_retry" and "_dlq"
// companions. Retry queues dead-letter back to the main queue after RetryDelay.
func SetupQueues(ch Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

func PublishFIFO(ctx context.Context, ch Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}
