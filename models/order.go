package models

import "time"

// Order statuses. picked_up and cancelled are terminal under the default
// transition table.
const (
	OrderStatusReceived       = "received"
	OrderStatusPreparing      = "preparing"
	OrderStatusReadyForPickup = "ready_for_pickup"
	OrderStatusPickedUp       = "picked_up"
	OrderStatusNotPickedUp    = "not_picked_up"
	OrderStatusCancelled      = "cancelled"
)

// OrderStatuses is the closed set of valid status values.
var OrderStatuses = map[string]bool{
	OrderStatusReceived:       true,
	OrderStatusPreparing:      true,
	OrderStatusReadyForPickup: true,
	OrderStatusPickedUp:       true,
	OrderStatusNotPickedUp:    true,
	OrderStatusCancelled:      true,
}

// Order is a checkout instance. Items are a snapshot with no referential
// integrity back to products; Total is an exact decimal string.
type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	Items           []OrderItem `json:"items"`
	Total           string      `json:"total"`
	Status          string      `json:"status"`
	FulfillmentType string      `json:"fulfillment_type"`
	PickupPointID   *int64      `json:"pickup_point_id,omitempty"`
	StatusChangedAt time.Time   `json:"status_changed_at"`
	PickupDeadline  *time.Time  `json:"pickup_deadline,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// OrderItem is one snapshotted line item.
type OrderItem struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	Price       string `json:"price" binding:"required"`
}

// OrderStatusHistory is one append-only audit row per status change.
// Forced is true when the move was admitted only because admin override
// was enabled at the time.
type OrderStatusHistory struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    int64     `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	Reason     string    `json:"reason"`
	Forced     bool      `json:"forced"`
	CreatedAt  time.Time `json:"created_at"`
}
