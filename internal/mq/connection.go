package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected — канал недоступен (соединение разорвано или закрыто).
var ErrNotConnected = errors.New("amqp: not connected")

const (
	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second
)

// Connection — AMQP соединение с одним каналом и автоматическим reconnect.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done chan struct{}
}

// NewConnection подключается к RabbitMQ и следит за соединением в фоне.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:    url,
		logger: logger,
		done:   make(chan struct{}),
	}

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	go c.watch(conn)

	return c, nil
}

// dial открывает соединение и канал и подменяет текущие.
func (c *Connection) dial() (*amqp.Connection, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		ch.Close()
		conn.Close()
		return nil, ErrNotConnected
	}
	c.conn, c.channel = conn, ch

	c.logger.Info("connected to RabbitMQ")
	return conn, nil
}

// watch ждёт разрыва соединения и переподключается
// с экспоненциальной задержкой до Close.
func (c *Connection) watch(conn *amqp.Connection) {
	for {
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case err := <-notify:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		next, ok := c.redial()
		if !ok {
			return
		}
		conn = next
	}
}

func (c *Connection) redial() (*amqp.Connection, bool) {
	delay := reconnectMinDelay
	for {
		select {
		case <-c.done:
			return nil, false
		case <-time.After(delay):
		}

		conn, err := c.dial()
		if err == nil {
			c.logger.Info("reconnected to RabbitMQ")
			return conn, true
		}
		if errors.Is(err, ErrNotConnected) {
			return nil, false
		}

		c.logger.Warn("reconnect failed", "error", err, "next_delay", delay)
		delay = min(delay*2, reconnectMaxDelay)
	}
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return ErrNotConnected
	}
	return fn(ch)
}

// IsConnected сообщает, открыто ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return errors.Join(errs...)
}
