package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"groupbuy-service/models"
	"groupbuy-service/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]models.Order
	history map[int64][]models.OrderStatusHistory
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:  make(map[int64]models.Order),
		history: make(map[int64][]models.OrderStatusHistory),
	}
}

func (s *fakeOrderStore) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = s.nextID
	o.CreatedAt = time.Now()
	s.orders[o.ID] = *o
	return o, nil
}

func (s *fakeOrderStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (s *fakeOrderStore) ApplyStatusChange(ctx context.Context, change repositories.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[change.OrderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if o.Status != change.FromStatus {
		return models.ErrStatusConflict
	}
	o.Status = change.ToStatus
	o.StatusChangedAt = change.ChangedAt
	if change.PickupDeadline != nil {
		o.PickupDeadline = change.PickupDeadline
	}
	s.orders[o.ID] = o
	s.history[o.ID] = append(s.history[o.ID], models.OrderStatusHistory{
		ID:         int64(len(s.history[o.ID]) + 1),
		OrderID:    change.OrderID,
		FromStatus: change.FromStatus,
		ToStatus:   change.ToStatus,
		ActorID:    change.ActorID,
		ActorName:  change.ActorName,
		Reason:     change.Reason,
		Forced:     change.Forced,
		CreatedAt:  change.ChangedAt,
	})
	return nil
}

func (s *fakeOrderStore) ListHistory(ctx context.Context, orderID int64) ([]models.OrderStatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrderStatusHistory(nil), s.history[orderID]...), nil
}

func (s *fakeOrderStore) ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	overdue := make([]models.Order, 0)
	for id := int64(1); id <= s.nextID; id++ {
		o, ok := s.orders[id]
		if !ok || o.PickupDeadline == nil || !o.PickupDeadline.Before(now) {
			continue
		}
		switch o.Status {
		case models.OrderStatusPickedUp, models.OrderStatusCancelled, models.OrderStatusNotPickedUp:
			continue
		}
		overdue = append(overdue, o)
	}
	return overdue, nil
}

type fakeSettingsStore struct {
	mu       sync.Mutex
	settings models.OrderSettings
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{settings: models.DefaultOrderSettings()}
}

func (s *fakeSettingsStore) Get(ctx context.Context) (*models.OrderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := s.settings
	return &copied, nil
}

func (s *fakeSettingsStore) Update(ctx context.Context, settings models.OrderSettings) (*models.OrderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = time.Now()
	s.settings = settings
	return &settings, nil
}

func newOrderFixture(t *testing.T) (*OrderStatusService, *fakeOrderStore, *fakeSettingsStore, *fakePublisher, time.Time) {
	t.Helper()
	orders := newFakeOrderStore()
	settings := newFakeSettingsStore()
	events := &fakePublisher{}
	svc := NewOrderStatusService(orders, settings, events)
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, orders, settings, events, fixed
}

func pickupPoint() *int64 {
	id := int64(7)
	return &id
}

func createTestOrder(t *testing.T, svc *OrderStatusService) *models.Order {
	t.Helper()
	order, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID: 42,
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "veggie box", Quantity: 2, Price: "3.50"},
			{ProductID: 2, ProductName: "eggs", Quantity: 1, Price: "10.00"},
		},
		FulfillmentType: models.FulfillmentPickup,
		PickupPointID:   pickupPoint(),
	})
	require.NoError(t, err)
	return order
}

func TestCheckoutComputesTotal(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)

	order := createTestOrder(t, svc)
	assert.Equal(t, "17.00", order.Total)
	assert.Equal(t, models.OrderStatusReceived, order.Status)
	assert.Len(t, order.Items, 2)
}

func TestCheckoutValidation(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, CheckoutInput{UserID: 1, FulfillmentType: models.FulfillmentDelivery})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	items := []models.OrderItem{{ProductID: 1, ProductName: "x", Quantity: 1, Price: "1.00"}}

	_, err = svc.Checkout(ctx, CheckoutInput{UserID: 1, Items: items, FulfillmentType: "teleport"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.Checkout(ctx, CheckoutInput{UserID: 1, Items: items, FulfillmentType: models.FulfillmentPickup})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bad := []models.OrderItem{{ProductID: 1, ProductName: "x", Quantity: 1, Price: "not-a-number"}}
	_, err = svc.Checkout(ctx, CheckoutInput{UserID: 1, Items: bad, FulfillmentType: models.FulfillmentDelivery})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestChangeStatusFollowsGraph(t *testing.T) {
	svc, orders, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	updated, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPreparing,
		ActorID: 9, ActorName: "staff", Reason: "kitchen started",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, updated.Status)

	history, err := orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusReceived, history[0].FromStatus)
	assert.Equal(t, models.OrderStatusPreparing, history[0].ToStatus)
	assert.Equal(t, "staff", history[0].ActorName)
	assert.False(t, history[0].Forced)
}

func TestChangeStatusRejectsIllegalTransition(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPickedUp, ActorID: 9, ActorName: "staff",
	})
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.OrderStatusReceived, invalid.From)
	assert.Equal(t, models.OrderStatusPickedUp, invalid.To)
}

func TestChangeStatusTerminalStatesAreDeadEnds(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	for _, status := range []string{models.OrderStatusPreparing, models.OrderStatusReadyForPickup, models.OrderStatusPickedUp} {
		_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
			OrderID: order.ID, NewStatus: status, ActorID: 9, ActorName: "staff",
		})
		require.NoError(t, err)
	}

	_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPreparing, ActorID: 9, ActorName: "staff",
	})
	var invalid *models.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestChangeStatusCancelledIsFinal(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusCancelled,
		ActorID: 9, ActorName: "staff", Reason: "customer changed their mind",
	})
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPreparing, ActorID: 9, ActorName: "staff",
	})
	var invalid *models.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.OrderStatusCancelled, invalid.From)
}

func TestChangeStatusUnknownStatus(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusInput{
		OrderID: order.ID, NewStatus: "shipped", ActorID: 9, ActorName: "staff",
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestChangeStatusAdminOverride(t *testing.T) {
	svc, orders, settings, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	current, err := settings.Get(ctx)
	require.NoError(t, err)
	current.AdminOverride = true
	_, err = settings.Update(ctx, *current)
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPickedUp,
		ActorID: 9, ActorName: "admin", Reason: "customer picked up at counter",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPickedUp, updated.Status)

	history, err := orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Forced)
}

func TestChangeStatusOverrideDoesNotMarkLegalMovesForced(t *testing.T) {
	svc, orders, settings, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	current, err := settings.Get(ctx)
	require.NoError(t, err)
	current.AdminOverride = true
	_, err = settings.Update(ctx, *current)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPreparing, ActorID: 9, ActorName: "staff",
	})
	require.NoError(t, err)

	history, err := orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Forced)
}

func TestHistoryRecordsEveryChange(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	path := []string{models.OrderStatusPreparing, models.OrderStatusReadyForPickup, models.OrderStatusPickedUp}
	for _, status := range path {
		_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
			OrderID: order.ID, NewStatus: status, ActorID: 9, ActorName: "staff",
		})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, len(path))
	from := models.OrderStatusReceived
	for i, status := range path {
		assert.Equal(t, from, history[i].FromStatus)
		assert.Equal(t, status, history[i].ToStatus)
		from = status
	}
}

func TestReadyForPickupSetsDeadlineAndSchedulesCheck(t *testing.T) {
	svc, _, _, events, fixed := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusPreparing, ActorID: 9, ActorName: "staff",
	})
	require.NoError(t, err)

	updated, err := svc.ChangeStatus(ctx, ChangeStatusInput{
		OrderID: order.ID, NewStatus: models.OrderStatusReadyForPickup, ActorID: 9, ActorName: "staff",
	})
	require.NoError(t, err)

	// Default window 48h plus tolerance 4h.
	wantDelay := 52 * time.Hour
	require.NotNil(t, updated.PickupDeadline)
	assert.Equal(t, fixed.Add(wantDelay), *updated.PickupDeadline)

	checks := events.byType(EventPickupCheck)
	require.Len(t, checks, 1)
	assert.Equal(t, order.ID, checks[0].entityID)
	assert.Equal(t, wantDelay, checks[0].delay)
}

func TestUpdateSettingsValidation(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t)
	ctx := context.Background()

	good := models.DefaultOrderSettings()
	updated, err := svc.UpdateSettings(ctx, good)
	require.NoError(t, err)
	assert.False(t, updated.AdminOverride)

	typo := models.DefaultOrderSettings()
	typo.Transitions["received"] = []string{"prepairing"}
	_, err = svc.UpdateSettings(ctx, typo)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	badAction := models.DefaultOrderSettings()
	badAction.OverdueAction = "discard"
	_, err = svc.UpdateSettings(ctx, badAction)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	negative := models.DefaultOrderSettings()
	negative.PickupWindowHours = -1
	_, err = svc.UpdateSettings(ctx, negative)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestOverdueOrders(t *testing.T) {
	svc, _, _, _, fixed := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	for _, status := range []string{models.OrderStatusPreparing, models.OrderStatusReadyForPickup} {
		_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
			OrderID: order.ID, NewStatus: status, ActorID: 9, ActorName: "staff",
		})
		require.NoError(t, err)
	}

	overdue, err := svc.OverdueOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	svc.now = func() time.Time { return fixed.Add(53 * time.Hour) }
	overdue, err = svc.OverdueOrders(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, order.ID, overdue[0].ID)
}

func TestAutoMarkOverdue(t *testing.T) {
	svc, orders, settings, _, fixed := newOrderFixture(t)
	order := createTestOrder(t, svc)
	ctx := context.Background()

	for _, status := range []string{models.OrderStatusPreparing, models.OrderStatusReadyForPickup} {
		_, err := svc.ChangeStatus(ctx, ChangeStatusInput{
			OrderID: order.ID, NewStatus: status, ActorID: 9, ActorName: "staff",
		})
		require.NoError(t, err)
	}

	// Disabled policy: nothing happens even past the deadline.
	svc.now = func() time.Time { return fixed.Add(60 * time.Hour) }
	marked, err := svc.AutoMarkOverdue(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	current, err := settings.Get(ctx)
	require.NoError(t, err)
	current.AutoMarkOverdue = true
	_, err = settings.Update(ctx, *current)
	require.NoError(t, err)

	// Enabled but deadline not elapsed.
	svc.now = func() time.Time { return fixed.Add(1 * time.Hour) }
	marked, err = svc.AutoMarkOverdue(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	// Enabled and elapsed.
	svc.now = func() time.Time { return fixed.Add(60 * time.Hour) }
	marked, err = svc.AutoMarkOverdue(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	final, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNotPickedUp, final.Status)

	history, err := orders.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, "system", last.ActorName)
	assert.False(t, last.Forced)

	// Second pass is a no-op: the order is no longer ready_for_pickup.
	marked, err = svc.AutoMarkOverdue(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestApplyStatusChangeConflict(t *testing.T) {
	store := newFakeOrderStore()
	ctx := context.Background()
	order, err := store.CreateOrder(ctx, &models.Order{
		UserID: 1, Status: models.OrderStatusReceived, Total: "1.00",
		Items: []models.OrderItem{{ProductID: 1, ProductName: "x", Quantity: 1, Price: "1.00"}},
	})
	require.NoError(t, err)

	err = store.ApplyStatusChange(ctx, repositories.StatusChange{
		OrderID: order.ID, FromStatus: models.OrderStatusPreparing, ToStatus: models.OrderStatusReadyForPickup,
	})
	assert.ErrorIs(t, err, models.ErrStatusConflict)
}
