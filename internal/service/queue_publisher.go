package service

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
)

// Publisher sends a JSON payload to a named durable queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// AMQPPublisher publishes to RabbitMQ through the default exchange. It
// dials per message; publish volume is a handful per user action.
// Errors are logged and returned so callers can ignore them without
// interrupting the request.
type AMQPPublisher struct {
	url string
}

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{url: url} }

func (p *AMQPPublisher) Publish(ctx context.Context, queue string, payload any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			logging.Ctx(ctx).Warn().Err(err).Str("queue", queue).Msg("rabbitmq: publish failed")
		}
		metrics.EventsPublished.WithLabelValues(queue, outcome).Inc()
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(3 * time.Second)})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// ErrNoBroker is returned by NopPublisher.
var ErrNoBroker = errors.New("no message broker configured")

// NopPublisher drops every message. Used when RABBITMQ_URL is "off".
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return ErrNoBroker }
