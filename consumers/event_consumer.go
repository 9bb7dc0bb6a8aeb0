package consumers

import (
	"context"
	"encoding/json"

	"groupbuy-service/config"
	"groupbuy-service/pkg/logger"
	"groupbuy-service/rabbitmq"
	"groupbuy-service/services"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventConsumer drains the event queue and the dead letter queue. Its only
// mutating action is the delayed pickup check, which hands the decision back
// to the workflow engine.
type EventConsumer struct {
	channel *amqp.Channel
	cfg     *config.MQConfig
	orders  services.OrderServiceInterface
}

func NewEventConsumer(channel *amqp.Channel, cfg *config.MQConfig, orders services.OrderServiceInterface) *EventConsumer {
	return &EventConsumer{channel: channel, cfg: cfg, orders: orders}
}

// Start registers the consumers and processes deliveries until the channel
// closes.
func (c *EventConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.cfg.EventQueue,
		"groupbuy-service", // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			c.processEvent(ctx, msg)
		}
	}()

	dlqMsgs, err := c.channel.Consume(
		c.cfg.DeadLetterQueue,
		"groupbuy-service-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range dlqMsgs {
			c.processDeadLetter(msg)
		}
	}()

	return nil
}

func (c *EventConsumer) processEvent(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered from panic in event processing", "panic", r)
		}
	}()

	var event rabbitmq.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Warn("invalid event body", "body", string(msg.Body))
		msg.Nack(false, false) // reject without requeue, lands in the DLQ
		return
	}

	switch event.Type {
	case services.EventGroupClosed:
		c.handleGroupClosed(event.EntityID)
	case services.EventOrderStatusChanged:
		c.handleStatusChanged(event.EntityID)
	case services.EventPickupCheck:
		c.handlePickupCheck(ctx, event.EntityID)
	default:
		logger.Warn("unknown event type", "type", event.Type)
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("failed to ack event", "error", err)
	}
}

func (c *EventConsumer) processDeadLetter(msg amqp.Delivery) {
	logger.Warn("received dead letter", "body", string(msg.Body))
	if err := msg.Ack(false); err != nil {
		logger.Error("failed to ack dead letter", "error", err)
	}
}

func (c *EventConsumer) handleGroupClosed(groupID int64) {
	// Downstream notification fan-out lives outside this service; the event
	// is logged so operators can trace closes end to end.
	logger.Info("group closed event", "group_id", groupID)
}

func (c *EventConsumer) handleStatusChanged(orderID int64) {
	logger.Info("order status changed event", "order_id", orderID)
}

// handlePickupCheck fires when an order's pickup window has fully elapsed.
// Whether anything happens is the engine's call, driven by live settings.
func (c *EventConsumer) handlePickupCheck(ctx context.Context, orderID int64) {
	marked, err := c.orders.AutoMarkOverdue(ctx, orderID)
	if err != nil {
		logger.Error("pickup check failed", "order_id", orderID, "error", err)
		return
	}
	if marked {
		logger.Info("order auto-marked not picked up", "order_id", orderID)
	}
}
