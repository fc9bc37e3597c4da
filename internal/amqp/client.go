package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrPermanent marks handler errors that a redelivery cannot fix; such
// messages are dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// Client publishes bill events and reminders to a durable direct exchange
// and consumes bill events. Publishing goes through a circuit breaker so a
// broker outage fails fast instead of blocking request handlers.
type Client struct {
	url           string
	exchangeName  string
	queueName     string
	reminderQueue string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	breaker *gobreaker.CircuitBreaker
}

func NewClient(url, exchangeName, queueName, reminderQueue string) (*Client, error) {
	c := newClient(url, exchangeName, queueName, reminderQueue)
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(url, exchangeName, queueName, reminderQueue string) *Client {
	return &Client{
		url:           url,
		exchangeName:  exchangeName,
		queueName:     queueName,
		reminderQueue: reminderQueue,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "amqp-publish",
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Circuit breaker state changed",
					"component", "amqp", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// connect must be called with c.mu held or before the client is shared.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{c.queueName, c.reminderQueue} {
		if q == "" {
			continue
		}
		if _, err := c.channel.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// Direct exchange: the routing key is the queue name.
		if err := c.channel.QueueBind(q, q, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// Reconnect drops the current connection and dials again.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	if err := c.connect(); err != nil {
		return err
	}
	slog.Info("Reconnected to AMQP broker", "component", "amqp", "exchange", c.exchangeName)
	return nil
}

// newReconnectBackOff waits 1s, 2s, 4s, ... between reconnects, capped at
// maxBackoff, and never gives up on its own.
func newReconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.send(ctx, routingKey, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	return err
}

func (c *Client) send(ctx context.Context, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if err := c.connect(); err != nil {
			return fmt.Errorf("reconnect before publish: %w", err)
		}
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		pctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.closeLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishBillEvent publishes a change notification to the bill events queue.
func (c *Client) PublishBillEvent(ctx context.Context, msg *BillEventMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published bill event",
		"component", "amqp",
		"type", msg.Type,
		"bill_id", msg.BillID,
		"payment_id", msg.PaymentID,
		"version", msg.Version)
	return nil
}

// PublishReminder publishes a due reminder to the reminder queue.
func (c *Client) PublishReminder(ctx context.Context, msg *ReminderMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.reminderQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published reminder",
		"component", "amqp",
		"reminder_id", msg.ReminderID,
		"bill_id", msg.BillID,
		"due_date", msg.DueDate)
	return nil
}

// BillEventHandler processes one event. Returning an error requeues it
// unless the error wraps ErrPermanent.
type BillEventHandler func(ctx context.Context, msg *BillEventMessage) error

// ConsumeBillEvents consumes until ctx is done or the delivery channel
// closes. Malformed messages are rejected without requeue.
func (c *Client) ConsumeBillEvents(ctx context.Context, prefetch int, handler BillEventHandler) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("start consuming: %w", amqp091.ErrClosed)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming bill events", "component", "amqp", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "component", "amqp", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: %w", amqp091.ErrClosed)
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler BillEventHandler) {
	msg, err := BillEventMessageFromJSON(delivery.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode bill event", "component", "amqp", "error", err)
		_ = delivery.Nack(false, false)
		return
	}
	if err := handler(ctx, msg); err != nil {
		requeue := !errors.Is(err, ErrPermanent)
		slog.ErrorContext(ctx, "Failed to handle bill event",
			"component", "amqp",
			"error", err,
			"type", msg.Type,
			"bill_id", msg.BillID,
			"requeue", requeue)
		_ = delivery.Nack(false, requeue)
		return
	}
	_ = delivery.Ack(false)
}

// ConsumeBillEventsWithRetry keeps consuming across broker restarts,
// reconnecting with exponential backoff until ctx is done.
func (c *Client) ConsumeBillEventsWithRetry(ctx context.Context, prefetch int, handler BillEventHandler) error {
	bo := backoff.WithContext(newReconnectBackOff(), ctx)
	for attempt := 1; ; attempt++ {
		err := c.ConsumeBillEvents(ctx, prefetch, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		slog.WarnContext(ctx, "Bill event consumer stopped, retrying",
			"component", "amqp", "error", err, "attempt", attempt, "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if rerr := c.Reconnect(); rerr != nil {
			continue
		}
		bo.Reset()
		attempt = 0
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
