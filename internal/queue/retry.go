package queue

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/followgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const retriesHeader = "x-retries"

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

// HandleProcessingError routes a failed delivery to "<queue>_retry", or to
// "<queue>_dlq" once maxRetries is reached or the message is malformed.
// The original delivery is acked after the copy is published and nacked
// with requeue if publishing fails.
func HandleProcessingError(ctx context.Context, ch Channel, msg amqp091.Delivery, queueName string, maxRetries int, cause error) {
	retries := retryCount(msg.Headers)

	if retries >= maxRetries || errors.Is(cause, ErrMalformedMessage) {
		dlqName := queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries, "err", cause)
		pubErr := ch.PublishWithContext(ctx, "", dlqName, false, false, amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      msg.Headers,
			DeliveryMode: amqp091.Persistent,
		})
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)

	pubErr := ch.PublishWithContext(ctx, "", retryName, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
