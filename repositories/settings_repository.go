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

// SettingsRepositoryInterface reads and writes the singleton workflow
// settings row. Reads are intentionally uncached: every transition sees the
// settings as they are at that moment.
type SettingsRepositoryInterface interface {
	Get(ctx context.Context) (*models.OrderSettings, error)
	Update(ctx context.Context, s models.OrderSettings) (*models.OrderSettings, error)
}

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row, falling back to the shipped defaults when the
// row was never written.
func (r *SettingsRepository) Get(ctx context.Context) (*models.OrderSettings, error) {
	var (
		s           models.OrderSettings
		transitions []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT transitions, admin_override, pickup_window_hours, pickup_tolerance_hours, auto_mark_overdue, overdue_action, updated_at FROM order_settings WHERE id = 1",
	).Scan(&transitions, &s.AdminOverride, &s.PickupWindowHours, &s.PickupToleranceHours,
		&s.AutoMarkOverdue, &s.OverdueAction, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := models.DefaultOrderSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select order settings: %w", err)
	}
	if err := json.Unmarshal(transitions, &s.Transitions); err != nil {
		return nil, fmt.Errorf("unmarshal transitions: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) Update(ctx context.Context, s models.OrderSettings) (*models.OrderSettings, error) {
	transitions, err := json.Marshal(s.Transitions)
	if err != nil {
		return nil, fmt.Errorf("marshal transitions: %w", err)
	}
	s.UpdatedAt = time.Now()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO order_settings (id, transitions, admin_override, pickup_window_hours, pickup_tolerance_hours, auto_mark_overdue, overdue_action, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE transitions = VALUES(transitions), admin_override = VALUES(admin_override),
		 pickup_window_hours = VALUES(pickup_window_hours), pickup_tolerance_hours = VALUES(pickup_tolerance_hours),
		 auto_mark_overdue = VALUES(auto_mark_overdue), overdue_action = VALUES(overdue_action), updated_at = VALUES(updated_at)`,
		transitions, s.AdminOverride, s.PickupWindowHours, s.PickupToleranceHours,
		s.AutoMarkOverdue, s.OverdueAction, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert order settings: %w", err)
	}
	return &s, nil
}
