// Package events publishes booking and checkout operation records to
// RabbitMQ for downstream consumers (kitchen displays, analytics).
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

// QueueName receives every operation record as a persistent JSON message.
const QueueName = "tablebook.operations"

// operationEvent is the wire form of an OperationLog.
type operationEvent struct {
	Operation   string    `json:"operation"`
	GuestID     int64     `json:"guest_id"`
	TableID     int       `json:"table_id,omitempty"`
	Date        string    `json:"date,omitempty"`
	TimeOfDay   string    `json:"time,omitempty"`
	OrderID     int64     `json:"order_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Publisher implements tablebook.OperationLogger over an AMQP channel.
// Publish failures are logged and swallowed; event delivery never blocks
// or fails the originating operation.
type Publisher struct {
	channel *amqp.Channel
	logger  *zap.Logger
	nowFn   func() time.Time
}

// NewPublisher declares the durable operations queue and returns a
// Publisher bound to the channel.
func NewPublisher(channel *amqp.Channel, logger *zap.Logger) (*Publisher, error) {
	if _, err := channel.QueueDeclare(
		QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return nil, err
	}
	return &Publisher{channel: channel, logger: logger, nowFn: time.Now}, nil
}

// LogOperation publishes the record to the operations queue.
func (publisher *Publisher) LogOperation(ctx context.Context, entry tablebook.OperationLog) {
	event := operationEvent{
		Operation:   entry.Operation,
		GuestID:     int64(entry.GuestID),
		TableID:     int(entry.TableID),
		Date:        entry.Date,
		TimeOfDay:   entry.TimeOfDay,
		OrderID:     entry.OrderID,
		AmountCents: entry.AmountCents,
		Status:      entry.Status,
		EmittedAt:   publisher.nowFn().UTC(),
	}
	if entry.Error != nil {
		event.Error = entry.Error.Error()
	}
	body, err := json.Marshal(event)
	if err != nil {
		publisher.logger.Error("encode operation event", zap.Error(err))
		return
	}
	err = publisher.channel.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.EmittedAt,
			Body:         body,
		},
	)
	if err != nil {
		publisher.logger.Error("publish operation event",
			zap.String("operation", entry.Operation),
			zap.Error(err),
		)
	}
}
