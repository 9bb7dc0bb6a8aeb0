package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"groupbuy-service/models"
)

// StatusChange carries everything one transition writes: the compare-and-swap
// on the order row plus its audit trail entry.
type StatusChange struct {
	OrderID        int64
	FromStatus     string
	ToStatus       string
	ActorID        int64
	ActorName      string
	Reason         string
	Forced         bool
	ChangedAt      time.Time
	PickupDeadline *time.Time
}

// OrderRepositoryInterface is the persistence surface of the workflow engine.
type OrderRepositoryInterface interface {
	CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ApplyStatusChange(ctx context.Context, change StatusChange) error
	ListHistory(ctx context.Context, orderID int64) ([]models.OrderStatusHistory, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = "id, user_id, items, total, status, fulfillment_type, pickup_point_id, status_changed_at, pickup_deadline, created_at"

func (r *OrderRepository) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO orders (user_id, items, total, status, fulfillment_type, pickup_point_id, status_changed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		o.UserID, items, o.Total, o.Status, o.FulfillmentType, o.PickupPointID, o.StatusChangedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, id)
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := r.scanOrder(r.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

// ApplyStatusChange performs the status write and the history append in one
// transaction. The WHERE clause on the current status makes the write a
// compare-and-swap: if another transition committed first, nothing happens
// and ErrStatusConflict is returned.
func (r *OrderRepository) ApplyStatusChange(ctx context.Context, change StatusChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if change.PickupDeadline != nil {
		res, err = tx.ExecContext(ctx,
			"UPDATE orders SET status = ?, status_changed_at = ?, pickup_deadline = ? WHERE id = ? AND status = ?",
			change.ToStatus, change.ChangedAt, change.PickupDeadline, change.OrderID, change.FromStatus)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE orders SET status = ?, status_changed_at = ? WHERE id = ? AND status = ?",
			change.ToStatus, change.ChangedAt, change.OrderID, change.FromStatus)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrStatusConflict
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, actor_name, reason, forced, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		change.OrderID, change.FromStatus, change.ToStatus, change.ActorID, change.ActorName,
		change.Reason, change.Forced, change.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit()
}

func (r *OrderRepository) ListHistory(ctx context.Context, orderID int64) ([]models.OrderStatusHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, order_id, from_status, to_status, actor_id, actor_name, reason, forced, created_at FROM order_status_history WHERE order_id = ? ORDER BY id ASC",
		orderID)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	history := make([]models.OrderStatusHistory, 0)
	for rows.Next() {
		var h models.OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus,
			&h.ActorID, &h.ActorName, &h.Reason, &h.Forced, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListOverdue returns orders whose pickup deadline elapsed while the status
// is still actionable. Terminal orders and ones already marked not_picked_up
// are excluded.
func (r *OrderRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE pickup_deadline IS NOT NULL AND pickup_deadline < ? AND status NOT IN (?, ?, ?) ORDER BY pickup_deadline ASC",
		now, models.OrderStatusPickedUp, models.OrderStatusCancelled, models.OrderStatusNotPickedUp)
	if err != nil {
		return nil, fmt.Errorf("select overdue orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := r.scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) scanOrder(row *sql.Row) (*models.Order, error) {
	var o models.Order
	var items []byte
	err := row.Scan(&o.ID, &o.UserID, &items, &o.Total, &o.Status, &o.FulfillmentType,
		&o.PickupPointID, &o.StatusChangedAt, &o.PickupDeadline, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) scanOrderRows(rows *sql.Rows) (*models.Order, error) {
	var o models.Order
	var items []byte
	err := rows.Scan(&o.ID, &o.UserID, &items, &o.Total, &o.Status, &o.FulfillmentType,
		&o.PickupPointID, &o.StatusChangedAt, &o.PickupDeadline, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return &o, nil
}
