package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

const (
	defaultConnectRetries = 5
	defaultRetryDelay     = 5 * time.Second
)

// ErrConsumerClosed возвращается, если потребитель закрыт или брокер разорвал канал.
var ErrConsumerClosed = errors.New("rabbitmq: consumer closed")

// RabbitConfig описывает топологию, из которой читаются события.
type RabbitConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// RabbitConsumer читает события из очереди, привязанной к fanout-обменнику.
type RabbitConsumer struct {
	cfg        RabbitConfig
	logger     zerolog.Logger
	retries    int
	retryDelay time.Duration

	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	closed     bool
}

var _ domain.EventQueue = (*RabbitConsumer)(nil)

// NewRabbitConsumer создаёт потребителя. Подключение происходит при первом Receive.
func NewRabbitConsumer(cfg RabbitConfig, logger zerolog.Logger) (*RabbitConsumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if cfg.Queue == "" {
		return nil, errors.New("queue name is empty")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &RabbitConsumer{
		cfg:        cfg,
		logger:     logger.With().Str("component", "rabbitmq").Str("queue", cfg.Queue).Logger(),
		retries:    defaultConnectRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// Receive блокирующе ждёт следующее сообщение.
// Возвращённую AckFunc нужно вызвать ровно один раз.
func (c *RabbitConsumer) Receive(ctx context.Context) ([]byte, domain.AckFunc, error) {
	deliveries, err := c.ensureConsuming(ctx)
	if err != nil {
		return nil, nil, err
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			c.reset()
			return nil, nil, ErrConsumerClosed
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return d.Body, ack, nil
	}
}

// Close закрывает канал и соединение.
func (c *RabbitConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeLocked()
}

func (c *RabbitConsumer) ensureConsuming(ctx context.Context) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConsumerClosed
	}
	if c.deliveries != nil && c.conn != nil && !c.conn.IsClosed() {
		return c.deliveries, nil
	}
	_ = c.closeLocked()

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.connectLocked(); err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("rabbitmq: connect failed")
			if attempt == c.retries {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
			continue
		}
		c.logger.Info().Str("exchange", c.cfg.Exchange).Msg("rabbitmq: consuming")
		return c.deliveries, nil
	}
	return nil, fmt.Errorf("rabbitmq: connect after %d attempts: %w", c.retries, lastErr)
}

func (c *RabbitConsumer) connectLocked() error {
	start := time.Now()
	conn, err := amqp.Dial(c.cfg.URL)
	metrics.ObserveNetworkRequest("rabbitmq", "dial", c.cfg.Queue, start, err)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	deliveries, err := declareAndConsume(ch, c.cfg)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	c.conn, c.ch, c.deliveries = conn, ch, deliveries
	return nil
}

func declareAndConsume(ch *amqp.Channel, cfg RabbitConfig) (<-chan amqp.Delivery, error) {
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
		}
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(cfg.Queue, "", cfg.Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
		}
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", cfg.Queue, err)
	}
	return deliveries, nil
}

func (c *RabbitConsumer) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.closeLocked()
}

func (c *RabbitConsumer) closeLocked() error {
	var errs []error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.conn, c.ch, c.deliveries = nil, nil, nil
	return errors.Join(errs...)
}
