package queue

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// ConsumeWithRetry pulls from queue until ctx is cancelled or the channel
// closes. A failed delivery is republished with an incremented retry counter
// after retryDelay; once the counter reaches maxRetries the message is
// dropped with a log line instead of poisoning the queue.
func (c *Client) ConsumeWithRetry(ctx context.Context, queue string, handler HandlerFunc, maxRetries int, retryDelay time.Duration) error {
	msgs, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("consumer channel closed")
			}
			c.handleDelivery(ctx, queue, msg, handler, maxRetries, retryDelay)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, queue string, msg amqp.Delivery, handler HandlerFunc, maxRetries int, retryDelay time.Duration) {
	err := handler(ctx, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", zap.String("queue", queue), zap.Error(ackErr))
		}
		return
	}

	attempt := retryCount(msg.Headers)
	if attempt >= maxRetries {
		c.logger.Warn("dropping message after retries",
			zap.String("queue", queue),
			zap.Int("attempts", attempt),
			zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", zap.String("queue", queue), zap.Error(nackErr))
		}
		return
	}

	select {
	case <-ctx.Done():
		// Shutting down; leave the delivery unacked so the broker redelivers.
		_ = msg.Nack(false, true)
		return
	case <-time.After(retryDelay):
	}

	pubErr := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: msg.ContentType,
		Body:        msg.Body,
		Headers:     withRetryCount(msg.Headers, attempt+1),
		Timestamp:   time.Now(),
	})
	if pubErr != nil {
		// Keep the original delivery alive rather than losing the message.
		c.logger.Error("requeue publish failed", zap.String("queue", queue), zap.Error(pubErr))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			c.logger.Error("nack failed", zap.String("queue", queue), zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("ack failed", zap.String("queue", queue), zap.Error(ackErr))
	}
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	if v, ok := headers["x-retry-count"]; ok {
		switch t := v.(type) {
		case int32:
			return int(t)
		case int64:
			return int(t)
		case int:
			return t
		}
	}
	return 0
}

// withRetryCount copies the headers instead of mutating the delivery's table,
// which the broker still owns until the ack.
func withRetryCount(headers amqp.Table, count int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out["x-retry-count"] = int32(count)
	return out
}
