package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/garnizeh/hireflow/internal/models"
)

// ConsumeChannel is the part of *amqp.Channel the consumer uses.
type ConsumeChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer reads analyzer results from a queue and merges them.
type Consumer struct {
	ch     ConsumeChannel
	queue  string
	merger *Merger
}

func NewConsumer(ch ConsumeChannel, queue string, m *Merger) *Consumer {
	return &Consumer{ch: ch, queue: queue, merger: m}
}

// Run consumes until ctx is done or the delivery channel closes. Messages
// are acked manually: rejected results are dropped, other failures are
// requeued.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "hireflow-results", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", c.queue, err)
	}
	logger.Info("consuming analyzer results", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("result delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var r Result
	err := json.Unmarshal(d.Body, &r)
	if err != nil {
		err = fmt.Errorf("decode result: %v: %w", err, models.ErrValidation)
	} else {
		err = c.merger.Apply(ctx, r)
	}

	switch {
	case err == nil:
		if aerr := d.Ack(false); aerr != nil {
			logger.Error("ack failed", "delivery_tag", d.DeliveryTag, "err", aerr)
		}
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotFound):
		logger.Warn("analyzer result rejected", "application_id", r.ApplicationID, "kind", r.Kind, "err", err)
		if nerr := d.Nack(false, false); nerr != nil {
			logger.Error("nack failed", "delivery_tag", d.DeliveryTag, "err", nerr)
		}
	default:
		logger.Error("analyzer result merge failed, requeueing", "application_id", r.ApplicationID, "kind", r.Kind, "err", err)
		if nerr := d.Nack(false, true); nerr != nil {
			logger.Error("nack failed", "delivery_tag", d.DeliveryTag, "err", nerr)
		}
	}
}
