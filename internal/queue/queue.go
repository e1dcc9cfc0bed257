package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/agent"
	"github.com/redstring/corkboard/pkg/logger"
)

const exchangeName = "pubsub"

// Sink publishes run progress events to a RabbitMQ topic exchange with
// routing key board.<run_id>. External consumers (dashboards, recorders)
// subscribe with their own bindings.
//
// Delivery is best-effort: a broken channel or broker is logged by the
// caller and never affects the run.
type Sink struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

// Init connects to RabbitMQ from RABBITMQ_* env vars and declares the
// exchange.
func Init() (*Sink, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnv("RABBITMQ_PORT"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		"topic",
		false, // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("[Queue] Connected to RabbitMQ", "exchange", exchangeName)
	return &Sink{conn: conn, ch: ch}, nil
}

// Publish sends one JSON-encoded event to the exchange.
func (s *Sink) Publish(ctx context.Context, event agent.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Transient,
		Timestamp:    time.Now(),
	}

	return s.ch.PublishWithContext(
		ctx,
		exchangeName,
		"board."+event.RunID,
		false, // mandatory
		false, // immediate
		publishing,
	)
}

// Close releases the channel and connection.
func (s *Sink) Close() {
	if s.ch != nil {
		s.ch.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
