package rabbitmq

import (
	"encoding/json"
	"time"

	"groupbuy-service/config"
	"groupbuy-service/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Event is the JSON body of every published message.
type Event struct {
	EntityID int64     `json:"entity_id"`
	Type     string    `json:"type"`
	Occurred time.Time `json:"occurred"`
}

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.MQConfig
}

func New(cfg *config.MQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

// SetupTopology declares the event exchange, the priority event queue with
// dead-lettering, the dead letter queue, and the delayed exchange used for
// pickup-deadline checks.
func (r *RabbitMQ) SetupTopology() error {
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.EventExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-queue-type": "classic",
		},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.DeadLetterQueue,
		"",
		r.Cfg.DeadLetterQueue+"_exchange",
		false,
		nil,
	); err != nil {
		return err
	}

	// Requires the rabbitmq-delayed-message-exchange plugin; delayed pickup
	// checks degrade to a warning without it.
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		logger.Warn("delayed exchange not supported", "error", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.EventQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.EventQueue,
		"",
		r.Cfg.EventExchange,
		false,
		nil,
	); err != nil {
		return err
	}

	return r.Channel.QueueBind(
		r.Cfg.EventQueue,
		"",
		r.Cfg.DelayExchange,
		false,
		nil,
	)
}

// PublishGroupEvent publishes a group lifecycle event.
func (r *RabbitMQ) PublishGroupEvent(groupID int64, eventType string, priority int) error {
	return r.publish(r.Cfg.EventExchange, Event{EntityID: groupID, Type: eventType, Occurred: time.Now()}, priority, nil)
}

// PublishOrderEvent publishes an order workflow event.
func (r *RabbitMQ) PublishOrderEvent(orderID int64, eventType string, priority int) error {
	return r.publish(r.Cfg.EventExchange, Event{EntityID: orderID, Type: eventType, Occurred: time.Now()}, priority, nil)
}

// PublishDelayedOrderEvent schedules an order event for future delivery via
// the delayed exchange.
func (r *RabbitMQ) PublishDelayedOrderEvent(orderID int64, eventType string, delay time.Duration) error {
	headers := amqp.Table{"x-delay": delay.Milliseconds()}
	return r.publish(r.Cfg.DelayExchange, Event{EntityID: orderID, Type: eventType, Occurred: time.Now()}, 0, headers)
}

func (r *RabbitMQ) publish(exchange string, event Event, priority int, headers amqp.Table) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Body:         body,
		Priority:     uint8(priority),
		Headers:      headers,
	}

	return r.Channel.Publish(
		exchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		r.Conn.Close()
	}
}
