package models

import (
	"fmt"
	"time"
)

// Overdue stock disposition policies, consumed by external fulfillment.
const (
	OverdueActionHold    = "hold"
	OverdueActionRelease = "release"
)

// TransitionTable maps each order status to the set of statuses it may
// legally move to next. It is data, not code: admins edit it at runtime.
type TransitionTable map[string][]string

// Allowed reports whether from -> to is an edge of the table.
func (t TransitionTable) Allowed(from, to string) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate rejects tables naming statuses outside the closed set, so a typo
// cannot introduce a silent dead end.
func (t TransitionTable) Validate() error {
	for from, targets := range t {
		if !OrderStatuses[from] {
			return fmt.Errorf("unknown status %q in transition table", from)
		}
		for _, to := range targets {
			if !OrderStatuses[to] {
				return fmt.Errorf("unknown target status %q for %q", to, from)
			}
		}
	}
	return nil
}

// DefaultTransitions returns the shipped transition graph.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		OrderStatusReceived:       {OrderStatusPreparing, OrderStatusCancelled},
		OrderStatusPreparing:      {OrderStatusReadyForPickup, OrderStatusCancelled},
		OrderStatusReadyForPickup: {OrderStatusPickedUp, OrderStatusNotPickedUp, OrderStatusCancelled},
		OrderStatusNotPickedUp:    {OrderStatusReadyForPickup, OrderStatusPickedUp, OrderStatusCancelled},
		OrderStatusPickedUp:       {},
		OrderStatusCancelled:      {},
	}
}

// OrderSettings is the singleton configuration row for the workflow engine,
// loaded fresh on every transition.
type OrderSettings struct {
	Transitions          TransitionTable `json:"transitions"`
	AdminOverride        bool            `json:"admin_override"`
	PickupWindowHours    int             `json:"pickup_window_hours"`
	PickupToleranceHours int             `json:"pickup_tolerance_hours"`
	AutoMarkOverdue      bool            `json:"auto_mark_overdue"`
	OverdueAction        string          `json:"overdue_action"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// DefaultOrderSettings returns the settings seeded on first run.
func DefaultOrderSettings() OrderSettings {
	return OrderSettings{
		Transitions:          DefaultTransitions(),
		AdminOverride:        false,
		PickupWindowHours:    48,
		PickupToleranceHours: 4,
		AutoMarkOverdue:      false,
		OverdueAction:        OverdueActionHold,
	}
}
