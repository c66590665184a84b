package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"

	"luna/internal/model"
	"luna/internal/queue"
	"luna/internal/repository"
)

// GroupService handles groups and their invite lifecycle. The creator
// becomes the owner member; any member may invite a non-member; the invitee
// accepts or declines exactly once.
type GroupService struct {
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	db        *sqlx.DB
	publisher queue.Publisher
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		db:        db,
		publisher: publisher,
	}
}

// Create makes a new group with the creator as its owner member.
func (s *GroupService) Create(ctx context.Context, ownerID int64, req model.CreateGroupRequest) (*model.Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.ErrGroupNameRequired
	}
	if len(name) > model.MaxGroupNameLength {
		return nil, model.ErrGroupNameTooLong
	}
	if req.Description != nil && len(*req.Description) > model.MaxGroupDescriptionLength {
		return nil, fmt.Errorf("group description too long")
	}

	group, err := s.groupRepo.Create(ctx, ownerID, name, req.Description)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	log.Printf("[GroupService] Create OK: group=%d owner=%d", group.ID, ownerID)
	return group, nil
}

// GetByID returns one group with its owner summary joined.
func (s *GroupService) GetByID(ctx context.Context, groupID int64) (*model.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRepo.GetByID(ctx, group.OwnerID)
	if err == nil {
		group.Owner = &model.UserSummary{
			ID:          owner.ID,
			Username:    owner.Username,
			DisplayName: owner.DisplayName,
			AvatarURL:   owner.AvatarURL,
		}
	}

	return group, nil
}

// ListForUser returns the groups the user belongs to.
func (s *GroupService) ListForUser(ctx context.Context, userID int64) ([]model.Group, error) {
	return s.groupRepo.GetGroupsForUser(ctx, userID)
}

// GetMembers lists a group's members. Only members may see the roster.
func (s *GroupService) GetMembers(ctx context.Context, groupID, viewerID int64) ([]model.GroupMember, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	isMember, err := s.groupRepo.IsMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, model.ErrNotGroupMember
	}

	return s.groupRepo.GetMembers(ctx, groupID)
}

// Invite sends a group invite. Any member may invite; the invitee must exist
// and not already be a member. At most one pending invite per (group,
// invitee) pair exists, enforced by the store.
func (s *GroupService) Invite(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error) {
	if inviterID == inviteeID {
		return nil, model.ErrCannotInviteSelf
	}

	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	isMember, err := s.groupRepo.IsMember(ctx, groupID, inviterID)
	if err != nil {
		return nil, fmt.Errorf("check inviter membership: %w", err)
	}
	if !isMember {
		return nil, model.ErrNotGroupMember
	}

	if _, err := s.userRepo.GetByID(ctx, inviteeID); err != nil {
		return nil, err
	}

	inviteeMember, err := s.groupRepo.IsMember(ctx, groupID, inviteeID)
	if err != nil {
		return nil, fmt.Errorf("check invitee membership: %w", err)
	}
	if inviteeMember {
		return nil, model.ErrAlreadyGroupMember
	}

	invite, err := s.groupRepo.CreateInvite(ctx, groupID, inviterID, inviteeID)
	if err != nil {
		return nil, err
	}

	log.Printf("[GroupService] Invite OK: group=%d inviter=%d invitee=%d", groupID, inviterID, inviteeID)

	// Publish event so the worker notifies the invitee (best-effort)
	if s.publisher != nil {
		event := queue.NewGroupInvitedEvent(groupID, inviterID, inviteeID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[GroupService] Failed to publish GroupInvited event: %v", err)
		}
	}

	return invite, nil
}

// ListInvitesForUser returns the user's pending invites.
func (s *GroupService) ListInvitesForUser(ctx context.Context, userID int64) ([]model.GroupInvite, error) {
	return s.groupRepo.GetPendingInvitesForUser(ctx, userID)
}

// AcceptInvite turns a pending invite into a membership. Decide + join +
// counter bump share one transaction; a concurrent decision loses with
// ErrInviteNotPending.
func (s *GroupService) AcceptInvite(ctx context.Context, inviteID, userID int64) error {
	invite, err := s.groupRepo.GetInviteByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.InviteeID != userID {
		return model.ErrNotInvitee
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.groupRepo.DecideInvite(ctx, tx, inviteID, model.InviteStatusAccepted); err != nil {
		return err
	}

	added, err := s.groupRepo.AddMember(ctx, tx, invite.GroupID, userID, model.GroupRoleMember)
	if err != nil {
		return err
	}
	if added {
		if err := s.groupRepo.IncrementMemberCount(ctx, tx, invite.GroupID, 1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[GroupService] AcceptInvite OK: invite=%d group=%d user=%d", inviteID, invite.GroupID, userID)
	return nil
}

// DeclineInvite marks a pending invite declined.
func (s *GroupService) DeclineInvite(ctx context.Context, inviteID, userID int64) error {
	invite, err := s.groupRepo.GetInviteByID(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite.InviteeID != userID {
		return model.ErrNotInvitee
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.groupRepo.DecideInvite(ctx, tx, inviteID, model.InviteStatusDeclined); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[GroupService] DeclineInvite OK: invite=%d user=%d", inviteID, userID)
	return nil
}

// Leave removes the caller's membership. The owner cannot leave while other
// members remain.
func (s *GroupService) Leave(ctx context.Context, groupID, userID int64) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == userID && group.MemberCount > 1 {
		return model.ErrOwnerCannotLeave
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.groupRepo.RemoveMember(ctx, tx, groupID, userID); err != nil {
		return err
	}

	if err := s.groupRepo.IncrementMemberCount(ctx, tx, groupID, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[GroupService] Leave OK: group=%d user=%d", groupID, userID)
	return nil
}
