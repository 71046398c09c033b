package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Fanout/internal/domain"
)

// MessageType — тип события.
type MessageType string

// Типы событий.
const (
	MessageTypeUserCreated MessageType = "user.created"
)

// publishTimeout ограничивает публикацию одного события.
const publishTimeout = 3 * time.Second

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// RequestID — X-Request-Id запроса, породившего событие.
	RequestID string `json:"request_id,omitempty"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// UserCreatedPayload — payload события user.created.
type UserCreatedPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher публикует события в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/json",
				DeliveryMode:  amqp.Persistent,
				MessageId:     msg.ID,
				CorrelationId: msg.RequestID,
				Type:          string(msg.Type),
				Timestamp:     msg.Timestamp,
				Body:          body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishUserCreated публикует событие о созданном пользователе.
func (p *Publisher) PublishUserCreated(ctx context.Context, requestID string, user *domain.User) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeUserCreated,
		RequestID: requestID,
		Payload: UserCreatedPayload{
			UserID:    user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
		Timestamp: time.Now().UTC(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyUserCreated, msg)
}
