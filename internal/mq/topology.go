package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEvents — topic-обменник доменных событий gateway.
const ExchangeEvents Exchange = "fanout.events"

// QueueUserEvents — очередь событий пользователей для внешних потребителей.
const QueueUserEvents Queue = "fanout.user-events"

// Routing keys.
const (
	RoutingKeyUserCreated RoutingKey = "user.created"

	// routingKeyUserAll — шаблон binding'а для всех событий пользователей.
	routingKeyUserAll RoutingKey = "user.*"
)

// SetupTopology объявляет exchange, очередь и binding.
// Операции идемпотентны, вызывается при каждом старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueUserEvents), // name
			true,                    // durable
			false,                   // delete when unused
			false,                   // exclusive
			false,                   // no-wait
			nil,                     // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueUserEvents, err)
		}

		err = ch.QueueBind(
			string(QueueUserEvents),
			string(routingKeyUserAll),
			string(ExchangeEvents),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueUserEvents, ExchangeEvents, err)
		}

		return nil
	})
}
