package services

import (
	"context"
	"fmt"
	"time"

	"groupbuy-service/models"
	"groupbuy-service/pkg/logger"
	"groupbuy-service/repositories"

	"github.com/shopspring/decimal"
)

// CheckoutInput translates a client cart into an order.
type CheckoutInput struct {
	UserID          int64
	Items           []models.OrderItem
	FulfillmentType string
	PickupPointID   *int64
}

// ChangeStatusInput is one requested move on the status graph.
type ChangeStatusInput struct {
	OrderID   int64
	NewStatus string
	ActorID   int64
	ActorName string
	Reason    string
}

// OrderServiceInterface is the order workflow engine surface.
type OrderServiceInterface interface {
	Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ChangeStatus(ctx context.Context, in ChangeStatusInput) (*models.Order, error)
	History(ctx context.Context, orderID int64) ([]models.OrderStatusHistory, error)
	OverdueOrders(ctx context.Context) ([]models.Order, error)
	Settings(ctx context.Context) (*models.OrderSettings, error)
	UpdateSettings(ctx context.Context, s models.OrderSettings) (*models.OrderSettings, error)
	AutoMarkOverdue(ctx context.Context, orderID int64) (bool, error)
}

// OrderStatusService enforces the configurable transition graph over order
// status, records every change in the audit trail, and derives overdue state.
type OrderStatusService struct {
	orders   repositories.OrderRepositoryInterface
	settings repositories.SettingsRepositoryInterface
	events   EventPublisher
	now      func() time.Time
}

func NewOrderStatusService(
	orders repositories.OrderRepositoryInterface,
	settings repositories.SettingsRepositoryInterface,
	events EventPublisher,
) *OrderStatusService {
	return &OrderStatusService{
		orders:   orders,
		settings: settings,
		events:   events,
		now:      time.Now,
	}
}

// Checkout creates an order in the initial received state. The total is
// computed with exact decimal arithmetic and stored as a string; items are
// kept as an opaque snapshot.
func (s *OrderStatusService) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item: %w", models.ErrInvalidInput)
	}
	if in.FulfillmentType != models.FulfillmentPickup && in.FulfillmentType != models.FulfillmentDelivery {
		return nil, fmt.Errorf("fulfillment_type must be pickup or delivery: %w", models.ErrInvalidInput)
	}
	if in.FulfillmentType == models.FulfillmentPickup && in.PickupPointID == nil {
		return nil, fmt.Errorf("pickup_point_id is required for pickup orders: %w", models.ErrInvalidInput)
	}

	total := decimal.Zero
	for _, item := range in.Items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("item price %q is not a valid decimal: %w", item.Price, models.ErrInvalidInput)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item quantity must be at least 1: %w", models.ErrInvalidInput)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &models.Order{
		UserID:          in.UserID,
		Items:           in.Items,
		Total:           total.StringFixed(2),
		Status:          models.OrderStatusReceived,
		FulfillmentType: in.FulfillmentType,
		PickupPointID:   in.PickupPointID,
		StatusChangedAt: s.now(),
	}
	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	logger.Info("order created", "order_id", created.ID, "user_id", in.UserID, "total", created.Total)
	return created, nil
}

func (s *OrderStatusService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

// ChangeStatus moves an order along the graph. The transition table and the
// override flag are read fresh from the settings row on every call. A history
// row is appended for every successful change, override-forced or not; the
// forced flag records which it was.
func (s *OrderStatusService) ChangeStatus(ctx context.Context, in ChangeStatusInput) (*models.Order, error) {
	if !models.OrderStatuses[in.NewStatus] {
		return nil, fmt.Errorf("unknown status %q: %w", in.NewStatus, models.ErrInvalidInput)
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	allowed := settings.Transitions.Allowed(order.Status, in.NewStatus)
	if !allowed && !settings.AdminOverride {
		return nil, &models.InvalidTransitionError{From: order.Status, To: in.NewStatus}
	}

	changedAt := s.now()
	change := repositories.StatusChange{
		OrderID:    in.OrderID,
		FromStatus: order.Status,
		ToStatus:   in.NewStatus,
		ActorID:    in.ActorID,
		ActorName:  in.ActorName,
		Reason:     in.Reason,
		Forced:     !allowed,
		ChangedAt:  changedAt,
	}

	var pickupDelay time.Duration
	if in.NewStatus == models.OrderStatusReadyForPickup {
		pickupDelay = time.Duration(settings.PickupWindowHours+settings.PickupToleranceHours) * time.Hour
		deadline := changedAt.Add(pickupDelay)
		change.PickupDeadline = &deadline
	}

	if err := s.orders.ApplyStatusChange(ctx, change); err != nil {
		return nil, err
	}
	logger.Info("order status changed",
		"order_id", in.OrderID, "from", order.Status, "to", in.NewStatus,
		"actor", in.ActorName, "forced", change.Forced)

	if s.events != nil {
		priority := 5
		if in.NewStatus == models.OrderStatusCancelled {
			priority = 8
		}
		if err := s.events.PublishOrderEvent(in.OrderID, EventOrderStatusChanged, priority); err != nil {
			logger.Error("failed to publish status change event", "order_id", in.OrderID, "error", err)
		}
		if in.NewStatus == models.OrderStatusReadyForPickup {
			if err := s.events.PublishDelayedOrderEvent(in.OrderID, EventPickupCheck, pickupDelay); err != nil {
				logger.Error("failed to publish pickup check event", "order_id", in.OrderID, "error", err)
			}
		}
	}

	return s.orders.GetOrder(ctx, in.OrderID)
}

func (s *OrderStatusService) History(ctx context.Context, orderID int64) ([]models.OrderStatusHistory, error) {
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.ListHistory(ctx, orderID)
}

// OverdueOrders is a derived read: orders whose pickup deadline elapsed while
// the status is still actionable. Nothing is mutated here.
func (s *OrderStatusService) OverdueOrders(ctx context.Context) ([]models.Order, error) {
	return s.orders.ListOverdue(ctx, s.now())
}

func (s *OrderStatusService) Settings(ctx context.Context) (*models.OrderSettings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings validates the uploaded table against the closed status set
// before persisting, so a typo cannot create a silent dead end.
func (s *OrderStatusService) UpdateSettings(ctx context.Context, settings models.OrderSettings) (*models.OrderSettings, error) {
	if err := settings.Transitions.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}
	if settings.OverdueAction != models.OverdueActionHold && settings.OverdueAction != models.OverdueActionRelease {
		return nil, fmt.Errorf("overdue_action must be hold or release: %w", models.ErrInvalidInput)
	}
	if settings.PickupWindowHours < 0 || settings.PickupToleranceHours < 0 {
		return nil, fmt.Errorf("pickup hours must not be negative: %w", models.ErrInvalidInput)
	}
	updated, err := s.settings.Update(ctx, settings)
	if err != nil {
		return nil, err
	}
	logger.Info("order settings updated", "admin_override", updated.AdminOverride)
	return updated, nil
}

// AutoMarkOverdue marks a single elapsed order not_picked_up, if and only if
// the policy enables auto-marking and the order is actually overdue. Returns
// whether a mark happened. Stock disposition (hold vs release) is left to
// external fulfillment.
func (s *OrderStatusService) AutoMarkOverdue(ctx context.Context, orderID int64) (bool, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !settings.AutoMarkOverdue {
		return false, nil
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != models.OrderStatusReadyForPickup {
		return false, nil
	}
	if order.PickupDeadline == nil || order.PickupDeadline.After(s.now()) {
		return false, nil
	}

	_, err = s.ChangeStatus(ctx, ChangeStatusInput{
		OrderID:   orderID,
		NewStatus: models.OrderStatusNotPickedUp,
		ActorID:   0,
		ActorName: "system",
		Reason:    "pickup deadline elapsed",
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
