package models

import "time"

// Group statuses. A group moves open -> closed exactly once, the moment
// current_people reaches min_people.
const (
	GroupStatusOpen   = "open"
	GroupStatusClosed = "closed"
)

// Member reservation statuses, mutated only by admin.
const (
	ReserveStatusPending = "pending"
	ReserveStatusPaid    = "paid"
	ReserveStatusNone    = "none"
)

// Group is one group-buy campaign for a single product. MinPeople is frozen
// from the product at creation time so later product edits never change an
// in-flight quota.
type Group struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	CurrentPeople int       `json:"current_people"`
	MinPeople     int       `json:"min_people"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Member is one person's commitment to a group. Phone is the dedup key:
// at most one member row exists per (group_id, phone).
type Member struct {
	ID            int64     `json:"id"`
	GroupID       int64     `json:"group_id"`
	UserID        *int64    `json:"user_id,omitempty"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Quantity      int       `json:"quantity"`
	ReserveStatus string    `json:"reserve_status"`
	CreatedAt     time.Time `json:"created_at"`
}
