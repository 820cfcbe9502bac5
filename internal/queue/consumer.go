// Package queue contains the background consumers that listen to the
// RabbitMQ queues: user.activity is appended to logs/activity.log and
// cache.purge triggers an expired-cache purge.
package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/onstream-api/internal/logging"
)

// Handler processes one delivery body. A non-nil error rejects the message
// without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// Consumer drains one durable queue, reconnecting with exponential
// backoff (1s doubling up to 30s) whenever the broker goes away.
type Consumer struct {
	url      string
	queue    string
	handle   Handler
	prefetch int
}

func NewConsumer(url, queue string, h Handler) *Consumer {
	return &Consumer{url: url, queue: queue, handle: h, prefetch: 50}
}

// Run blocks until ctx is cancelled and then returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	log := logging.With().Str("queue", c.queue).Logger()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		logging.Warn().Err(err).Str("queue", c.queue).Msg("consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logging.Info().Str("queue", c.queue).Msg("consumer: listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				logging.Error().Err(err).Str("queue", c.queue).Msg("consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ActivityLog appends one line per ActivityEvent to a file.
type ActivityLog struct {
	mu   sync.Mutex
	path string
}

// NewActivityLog writes to dir/activity.log, creating dir on first use.
func NewActivityLog(dir string) *ActivityLog {
	return &ActivityLog{path: filepath.Join(dir, "activity.log")}
}

// Path returns the log file location.
func (l *ActivityLog) Path() string { return l.path }

// Handle is a Handler for the user.activity queue.
func (l *ActivityLog) Handle(_ context.Context, body []byte) error {
	var ev ActivityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return l.Append(ev)
}

// Append writes ev as a single line.
func (l *ActivityLog) Append(ev ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | user=%s | tmdb_id=%d | title=%q",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Kind, ev.Username, ev.TMDBID, ev.Title)
	if ev.Progress != nil {
		line += fmt.Sprintf(" | progress=%.2f", *ev.Progress)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
