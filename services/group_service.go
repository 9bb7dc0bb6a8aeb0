package services

import (
	"context"
	"fmt"

	"groupbuy-service/models"
	"groupbuy-service/pkg/logger"
	"groupbuy-service/repositories"
)

// JoinInput is one person's commitment to a group.
type JoinInput struct {
	UserID   *int64
	Name     string
	Phone    string
	Quantity int
}

// CreateGroupInput opens (or reuses) a campaign for a product. When Join is
// set, the caller is admitted as the first member.
type CreateGroupInput struct {
	ProductID int64
	Join      *JoinInput
}

// GroupServiceInterface is the group lifecycle engine surface.
type GroupServiceInterface interface {
	CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error)
	JoinGroup(ctx context.Context, groupID int64, in JoinInput) (*models.Group, error)
	Members(ctx context.Context, groupID int64) ([]models.Member, error)
	OverrideStatus(ctx context.Context, groupID int64, status string) (*models.Group, error)
}

// GroupService owns the group/member invariants: atomic join with phone
// dedup, and the open -> closed transition happening exactly once, exactly
// when the quota is met.
type GroupService struct {
	groups   repositories.GroupRepositoryInterface
	products repositories.ProductRepositoryInterface
	events   EventPublisher
}

func NewGroupService(
	groups repositories.GroupRepositoryInterface,
	products repositories.ProductRepositoryInterface,
	events EventPublisher,
) *GroupService {
	return &GroupService{groups: groups, products: products, events: events}
}

// CreateGroup verifies the product, reuses an existing open group for it when
// one exists, and otherwise creates a fresh one with the product's quota
// frozen in. The creator joins immediately when join details are provided.
func (s *GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	product, err := s.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, models.ErrProductNotFound
	}

	minPeople := product.MinPeople
	if minPeople < 1 {
		minPeople = 1
	}

	group, err := s.groups.FindOpenGroup(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		group, err = s.groups.CreateGroup(ctx, in.ProductID, minPeople)
		if err != nil {
			return nil, err
		}
		logger.Info("group created", "group_id", group.ID, "product_id", in.ProductID, "min_people", minPeople)
	}

	if in.Join == nil {
		return group, nil
	}

	joined, err := s.JoinGroup(ctx, group.ID, *in.Join)
	if err == models.ErrGroupClosed {
		// The reused group filled up under our feet; open a fresh campaign.
		group, err = s.groups.CreateGroup(ctx, in.ProductID, minPeople)
		if err != nil {
			return nil, err
		}
		return s.JoinGroup(ctx, group.ID, *in.Join)
	}
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// JoinGroup admits a member atomically. The group row is locked before any
// read the decision depends on, so concurrent joins to the same group
// serialize and the counter can never lose an update. A repeat join with the
// same phone is a successful no-op. The quota counts distinct participants:
// the counter moves by 1 per member, never by quantity.
func (s *GroupService) JoinGroup(ctx context.Context, groupID int64, in JoinInput) (*models.Group, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("member name is required: %w", models.ErrInvalidInput)
	}
	if in.Phone == "" {
		return nil, fmt.Errorf("member phone is required: %w", models.ErrInvalidInput)
	}
	if in.Quantity < 1 {
		in.Quantity = 1
	}

	var (
		result    *models.Group
		closedNow bool
	)
	err := s.groups.InTx(ctx, func(tx repositories.GroupTx) error {
		group, err := tx.LockGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status != models.GroupStatusOpen {
			return models.ErrGroupClosed
		}

		existing, err := tx.MemberByPhone(ctx, groupID, in.Phone)
		if err != nil {
			return err
		}
		if existing != nil {
			// Idempotent duplicate: no new row, no counter bump.
			result = group
			return nil
		}

		member := &models.Member{
			GroupID:       groupID,
			UserID:        in.UserID,
			Name:          in.Name,
			Phone:         in.Phone,
			Quantity:      in.Quantity,
			ReserveStatus: models.ReserveStatusPending,
		}
		if err := tx.InsertMember(ctx, member); err != nil {
			return err
		}

		group.CurrentPeople++
		if group.CurrentPeople >= group.MinPeople {
			group.Status = models.GroupStatusClosed
			closedNow = true
		}
		if err := tx.UpdateGroupState(ctx, group.ID, group.CurrentPeople, group.Status); err != nil {
			return err
		}
		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}

	if closedNow {
		logger.Info("group closed on quota", "group_id", result.ID, "people", result.CurrentPeople)
		if s.events != nil {
			if err := s.events.PublishGroupEvent(result.ID, EventGroupClosed, 8); err != nil {
				logger.Error("failed to publish group closed event", "group_id", result.ID, "error", err)
			}
		}
	}
	return result, nil
}

func (s *GroupService) Members(ctx context.Context, groupID int64) ([]models.Member, error) {
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.groups.ListMembers(ctx, groupID)
}

// OverrideStatus writes the status unconditionally. This is the admin escape
// hatch: reopening a closed group or force-closing an under-quota one, with
// no validation against the counter.
func (s *GroupService) OverrideStatus(ctx context.Context, groupID int64, status string) (*models.Group, error) {
	if status != models.GroupStatusOpen && status != models.GroupStatusClosed {
		return nil, fmt.Errorf("status must be open or closed: %w", models.ErrInvalidInput)
	}
	group, err := s.groups.SetGroupStatus(ctx, groupID, status)
	if err != nil {
		return nil, err
	}
	logger.Info("group status overridden", "group_id", groupID, "status", status)
	return group, nil
}
