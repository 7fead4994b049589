package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymiscarriage/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes through a single topic exchange. Publishing
// shares one AMQP channel guarded by a mutex; every subscription opens its
// own channel so consumers never block publishers.
type RabbitMQClient struct {
	conn     *amqp.Connection
	exchange string
	durable  bool
	autoDel  bool
	prefetch int

	mu      sync.Mutex
	publish *amqp.Channel
	bound   map[string]bool
}

// NewRabbitMQClient dials the broker and declares the exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, cfg.QueueDurable, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	return &RabbitMQClient{
		conn:     conn,
		exchange: exchange,
		durable:  cfg.QueueDurable,
		autoDel:  cfg.QueueAutoDelete,
		prefetch: cfg.PrefetchCount,
		publish:  ch,
		bound:    make(map[string]bool),
	}, nil
}

// Publish routes data to the exchange using channel as the routing key.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := uuid.NewString()
	msg := amqp.Publishing{
		ContentType:  contentType(attrs),
		DeliveryMode: r.deliveryMode(),
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.bound[channel] {
		if err := r.bindQueue(r.publish, channel); err != nil {
			return "", err
		}
		r.bound[channel] = true
	}
	if err := r.publish.PublishWithContext(ctx, r.exchange, channel, false, false, msg); err != nil {
		return "", fmt.Errorf("publish %s: %w", channel, err)
	}
	return messageID, nil
}

// bindQueue declares the queue for channel and binds it to the exchange.
// Publishers bind too, so events wait in the queue until a worker starts.
func (r *RabbitMQClient) bindQueue(ch *amqp.Channel, channel string) error {
	if _, err := ch.QueueDeclare(channel, r.durable, r.autoDel, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", channel, err)
	}
	if err := ch.QueueBind(channel, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", channel, err)
	}
	return nil
}

// Subscribe binds a queue named after channel and consumes it until ctx
// is done. A failed delivery is requeued once; a second failure drops it.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	if err := r.bindQueue(ch, channel); err != nil {
		return err
	}

	consumerTag := "testimonyd-" + uuid.NewString()
	deliveries, err := ch.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", channel, err)
	}
	defer func() { _ = ch.Cancel(consumerTag, false) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publish channel and the connection. Subscriber
// channels close with the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publish != nil {
		_ = r.publish.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) deliveryMode() uint8 {
	if r.durable {
		return amqp.Persistent
	}
	return amqp.Transient
}

func contentType(attrs map[string]string) string {
	if value := attrs["content-type"]; value != "" {
		return value
	}
	return "application/octet-stream"
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
