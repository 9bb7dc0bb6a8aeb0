package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"groupbuy-service/models"
)

// GroupTx is the view of a group transaction exposed to the lifecycle engine.
// LockGroup must be called first: it takes the exclusive row lock every later
// read and write in the transaction relies on.
type GroupTx interface {
	LockGroup(ctx context.Context, id int64) (*models.Group, error)
	MemberByPhone(ctx context.Context, groupID int64, phone string) (*models.Member, error)
	InsertMember(ctx context.Context, m *models.Member) error
	UpdateGroupState(ctx context.Context, id int64, currentPeople int, status string) error
}

// GroupRepositoryInterface is the persistence surface of the group engine.
type GroupRepositoryInterface interface {
	InTx(ctx context.Context, fn func(GroupTx) error) error
	CreateGroup(ctx context.Context, productID int64, minPeople int) (*models.Group, error)
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	FindOpenGroup(ctx context.Context, productID int64) (*models.Group, error)
	ListMembers(ctx context.Context, groupID int64) ([]models.Member, error)
	SetGroupStatus(ctx context.Context, id int64, status string) (*models.Group, error)
}

type GroupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const groupColumns = "id, product_id, current_people, min_people, status, created_at"

func scanGroup(row *sql.Row) (*models.Group, error) {
	var g models.Group
	err := row.Scan(&g.ID, &g.ProductID, &g.CurrentPeople, &g.MinPeople, &g.Status, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// InTx runs fn inside one transaction; any error rolls back everything.
func (r *GroupRepository) InTx(ctx context.Context, fn func(GroupTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&groupTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *GroupRepository) CreateGroup(ctx context.Context, productID int64, minPeople int) (*models.Group, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO `groups` (product_id, current_people, min_people, status) VALUES (?, 0, ?, ?)",
		productID, minPeople, models.GroupStatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetGroup(ctx, id)
}

func (r *GroupRepository) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM `groups` WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select group: %w", err)
	}
	return g, nil
}

// FindOpenGroup returns the oldest open group for the product, or nil.
func (r *GroupRepository) FindOpenGroup(ctx context.Context, productID int64) (*models.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM `groups` WHERE product_id = ? AND status = ? ORDER BY id ASC LIMIT 1",
		productID, models.GroupStatusOpen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select open group: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID int64) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, group_id, user_id, name, phone, quantity, reserve_status, created_at FROM members WHERE group_id = ? ORDER BY id ASC",
		groupID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Name, &m.Phone,
			&m.Quantity, &m.ReserveStatus, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SetGroupStatus writes status unconditionally, bypassing quota logic.
func (r *GroupRepository) SetGroupStatus(ctx context.Context, id int64, status string) (*models.Group, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE `groups` SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return nil, fmt.Errorf("update group status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish no-op writes from missing rows.
		if _, err := r.GetGroup(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.GetGroup(ctx, id)
}

type groupTx struct {
	tx *sql.Tx
}

// LockGroup reads the group row under an exclusive lock. Concurrent joins to
// the same group serialize here; joins to other groups are unaffected.
func (t *groupTx) LockGroup(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	err := t.tx.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM `groups` WHERE id = ? FOR UPDATE", id,
	).Scan(&g.ID, &g.ProductID, &g.CurrentPeople, &g.MinPeople, &g.Status, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock group: %w", err)
	}
	return &g, nil
}

func (t *groupTx) MemberByPhone(ctx context.Context, groupID int64, phone string) (*models.Member, error) {
	var m models.Member
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, group_id, user_id, name, phone, quantity, reserve_status, created_at FROM members WHERE group_id = ? AND phone = ?",
		groupID, phone,
	).Scan(&m.ID, &m.GroupID, &m.UserID, &m.Name, &m.Phone, &m.Quantity, &m.ReserveStatus, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select member by phone: %w", err)
	}
	return &m, nil
}

func (t *groupTx) InsertMember(ctx context.Context, m *models.Member) error {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO members (group_id, user_id, name, phone, quantity, reserve_status) VALUES (?, ?, ?, ?, ?, ?)",
		m.GroupID, m.UserID, m.Name, m.Phone, m.Quantity, m.ReserveStatus)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// UpdateGroupState writes the counter and status in a single statement so the
// quota decision and the count can never diverge.
func (t *groupTx) UpdateGroupState(ctx context.Context, id int64, currentPeople int, status string) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE `groups` SET current_people = ?, status = ? WHERE id = ?",
		currentPeople, status, id)
	if err != nil {
		return fmt.Errorf("update group state: %w", err)
	}
	return nil
}
