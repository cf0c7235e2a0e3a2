package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

const (
	routingKeySuccess = "transfer.completed"
	routingKeyFailed  = "transfer.failed"
)

// AMQPNotifier publishes transfer outcomes to a topic exchange so the
// notification service can fan them out to email/SMS without this process
// knowing about delivery.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func NewAMQPNotifier(amqpURL, exchange string, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("NewAMQPNotifier: dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("NewAMQPNotifier: channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("NewAMQPNotifier: declare exchange: %w", err)
	}

	return &AMQPNotifier{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (n *AMQPNotifier) TransferOutcome(ctx context.Context, o Outcome) {
	body, err := json.Marshal(o)
	if err != nil {
		n.logger.Error("failed to marshal transfer outcome", "error", err, "reference", o.Reference)
		return
	}

	key := routingKeySuccess
	if o.Status != "SUCCESS" {
		key = routingKeyFailed
	}

	err = n.channel.PublishWithContext(ctx, n.exchange, key, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		n.logger.Error("failed to publish transfer outcome", "error", err, "reference", o.Reference)
	}
}

func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
