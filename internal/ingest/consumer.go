package ingest

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"toperty/server/config"
	"toperty/server/internal/logging"
	"toperty/server/internal/models"
	"toperty/server/internal/queue"
)

// Pusher accepts decoded batches. *queue.ListingQueue satisfies it.
type Pusher interface {
	Push(listings []*models.Listing) error
}

// Consumer reads listing batches from an AMQP queue and hands them to the
// in-memory listing queue.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	pusher   Pusher
	maxBatch int
	logger   *logrus.Logger
}

// Dial connects to the broker and declares the listings queue.
func Dial(cfg *config.Config, pusher Pusher, logger *logrus.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.Ingest.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if cfg.Ingest.Prefetch > 0 {
		if err := ch.Qos(cfg.Ingest.Prefetch, 0, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}
	if _, err := ch.QueueDeclare(cfg.Ingest.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue '%s': %w", cfg.Ingest.Queue, err)
	}

	return &Consumer{
		conn:     conn,
		channel:  ch,
		queue:    cfg.Ingest.Queue,
		pusher:   pusher,
		maxBatch: cfg.BatchProcessing.MaxBatchSize,
		logger:   logger,
	}, nil
}

// Run consumes until ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming '%s': %w", c.queue, err)
	}
	c.logger.WithField("queue", c.queue).Info("Consuming listing batches")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handle(d)
		}
	}
}

// handle acks accepted batches, drops invalid ones and requeues batches the
// listing queue could not take.
func (c *Consumer) handle(d amqp.Delivery) {
	entry := c.logger.WithFields(logrus.Fields{"delivery_tag": d.DeliveryTag, "message_id": d.MessageId})

	listings, err := Decode(d.Body, c.maxBatch)
	if err != nil {
		entry.WithError(err).WithField(logging.FieldErrorKind, logging.KindInput).Warn("Rejecting invalid listing batch")
		if nackErr := d.Nack(false, false); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack delivery")
		}
		return
	}

	if err := c.pusher.Push(listings); err != nil {
		kind := logging.KindInfrastructure
		if errors.Is(err, queue.ErrQueueFull) {
			entry.WithError(err).WithField(logging.FieldErrorKind, kind).Warn("Listing queue full, requeueing batch")
		} else {
			entry.WithError(err).WithField(logging.FieldErrorKind, kind).Error("Failed to enqueue batch, requeueing")
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			entry.WithError(nackErr).Error("Failed to nack delivery")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		entry.WithError(err).Error("Failed to ack delivery")
		return
	}
	entry.WithField("batch_size", len(listings)).Debug("Accepted listing batch")
}

func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}
