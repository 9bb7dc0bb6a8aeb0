package models

import "time"

// Sale modes.
const (
	SaleModeGroup = "group"
	SaleModeNow   = "now"
)

// Fulfillment types.
const (
	FulfillmentPickup   = "pickup"
	FulfillmentDelivery = "delivery"
)

// Product is a sellable item. Monetary fields are exact decimal strings,
// never floats.
type Product struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	ImageURL        string    `json:"image_url"`
	OriginalPrice   string    `json:"original_price"`
	GroupPrice      string    `json:"group_price"`
	NowPrice        *string   `json:"now_price,omitempty"`
	MinPeople       int       `json:"min_people"`
	Stock           int       `json:"stock"`
	SaleMode        string    `json:"sale_mode"`
	FulfillmentType string    `json:"fulfillment_type"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}
