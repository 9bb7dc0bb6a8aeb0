package services

import "time"

// Event types published after successful commits.
const (
	EventGroupClosed        = "group.closed"
	EventOrderStatusChanged = "order.status_changed"
	EventPickupCheck        = "pickup.check"
)

// EventPublisher decouples the engines from the broker. Publishing happens
// strictly after the owning transaction commits; a publish failure never
// rolls back state, it is only logged.
type EventPublisher interface {
	PublishGroupEvent(groupID int64, eventType string, priority int) error
	PublishOrderEvent(orderID int64, eventType string, priority int) error
	PublishDelayedOrderEvent(orderID int64, eventType string, delay time.Duration) error
}
