package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"luna/internal/model"
)

type groupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) GroupRepository {
	return &groupRepository{db: db}
}

const groupColumns = `id, name, description, owner_id, member_count, created_at`

// Create inserts a group and its owner membership in one transaction.
func (r *groupRepository) Create(ctx context.Context, ownerID int64, name string, description *string) (*model.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var group model.Group
	query := `
		INSERT INTO groups (name, description, owner_id, member_count)
		VALUES ($1, $2, $3, 1)
		RETURNING ` + groupColumns + `
	`
	err = tx.GetContext(ctx, &group, query, name, description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
	`, group.ID, ownerID, model.GroupRoleOwner)
	if err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &group, nil
}

func (r *groupRepository) GetByID(ctx context.Context, groupID int64) (*model.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	var group model.Group
	err := r.db.GetContext(ctx, &group, query, groupID)
	if err == sql.ErrNoRows {
		return nil, model.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}

// GetGroupsForUser returns all groups the user is a member of.
func (r *groupRepository) GetGroupsForUser(ctx context.Context, userID int64) ([]model.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.owner_id, g.member_count, g.created_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY gm.joined_at DESC
	`
	var groups []model.Group
	err := r.db.SelectContext(ctx, &groups, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get groups for user: %w", err)
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

// GetMembers returns all members of a group with user info, owner first.
func (r *groupRepository) GetMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error) {
	query := `
		SELECT gm.group_id, gm.user_id, gm.role, gm.joined_at,
		       u.id as "user.id", u.username as "user.username",
		       u.display_name as "user.display_name", u.avatar_url as "user.avatar_url"
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY (gm.role = 'owner') DESC, gm.joined_at ASC
	`

	type memberRow struct {
		model.GroupMember
		UserIDJoined int64   `db:"user.id"`
		Username     string  `db:"user.username"`
		DisplayName  *string `db:"user.display_name"`
		AvatarURL    *string `db:"user.avatar_url"`
	}

	var rows []memberRow
	err := r.db.SelectContext(ctx, &rows, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}

	members := make([]model.GroupMember, len(rows))
	for i, row := range rows {
		m := row.GroupMember
		m.User = &model.UserSummary{
			ID:          row.UserIDJoined,
			Username:    row.Username,
			DisplayName: row.DisplayName,
			AvatarURL:   row.AvatarURL,
		}
		members[i] = m
	}
	return members, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// AddMember inserts a membership row. Returns false if it already existed.
func (r *groupRepository) AddMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, role string) (bool, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, groupID, userID, role)
	if err != nil {
		return false, fmt.Errorf("insert membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *groupRepository) RemoveMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	result, err := tx.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotGroupMember
	}
	return nil
}

func (r *groupRepository) IncrementMemberCount(ctx context.Context, tx *sqlx.Tx, groupID int64, delta int) error {
	query := `UPDATE groups SET member_count = member_count + $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, delta, groupID)
	if err != nil {
		return fmt.Errorf("update member count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrGroupNotFound
	}
	return nil
}

const inviteColumns = `id, group_id, inviter_id, invitee_id, status, created_at, decided_at`

// CreateInvite inserts a pending invite. The partial unique index on
// (group_id, invitee_id) WHERE status = 'pending' rejects duplicates while
// still allowing re-invites after a decline.
func (r *groupRepository) CreateInvite(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error) {
	query := `
		INSERT INTO group_invites (group_id, inviter_id, invitee_id)
		VALUES ($1, $2, $3)
		RETURNING ` + inviteColumns + `
	`
	var invite model.GroupInvite
	err := r.db.GetContext(ctx, &invite, query, groupID, inviterID, inviteeID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, model.ErrInviteAlreadySent
		}
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	return &invite, nil
}

func (r *groupRepository) GetInviteByID(ctx context.Context, inviteID int64) (*model.GroupInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM group_invites WHERE id = $1`

	var invite model.GroupInvite
	err := r.db.GetContext(ctx, &invite, query, inviteID)
	if err == sql.ErrNoRows {
		return nil, model.ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return &invite, nil
}

// GetPendingInvitesForUser returns pending invites with group and inviter joined.
func (r *groupRepository) GetPendingInvitesForUser(ctx context.Context, userID int64) ([]model.GroupInvite, error) {
	query := `
		SELECT i.id, i.group_id, i.inviter_id, i.invitee_id, i.status, i.created_at, i.decided_at,
		       g.id as "group.id", g.name as "group.name", g.member_count as "group.member_count",
		       u.id as "inviter.id", u.username as "inviter.username",
		       u.display_name as "inviter.display_name", u.avatar_url as "inviter.avatar_url"
		FROM group_invites i
		JOIN groups g ON g.id = i.group_id
		JOIN users u ON u.id = i.inviter_id
		WHERE i.invitee_id = $1 AND i.status = 'pending'
		ORDER BY i.created_at DESC
	`

	type inviteRow struct {
		model.GroupInvite
		GroupIDJoined    int64   `db:"group.id"`
		GroupName        string  `db:"group.name"`
		GroupMemberCount int     `db:"group.member_count"`
		InviterIDJoined  int64   `db:"inviter.id"`
		InviterUsername  string  `db:"inviter.username"`
		InviterDisplay   *string `db:"inviter.display_name"`
		InviterAvatar    *string `db:"inviter.avatar_url"`
	}

	var rows []inviteRow
	err := r.db.SelectContext(ctx, &rows, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get pending invites: %w", err)
	}

	invites := make([]model.GroupInvite, len(rows))
	for i, row := range rows {
		inv := row.GroupInvite
		inv.Group = &model.Group{
			ID:          row.GroupIDJoined,
			Name:        row.GroupName,
			MemberCount: row.GroupMemberCount,
		}
		inv.Inviter = &model.UserSummary{
			ID:          row.InviterIDJoined,
			Username:    row.InviterUsername,
			DisplayName: row.InviterDisplay,
			AvatarURL:   row.InviterAvatar,
		}
		invites[i] = inv
	}
	return invites, nil
}

// DecideInvite flips a pending invite to accepted or declined. The status
// guard in the WHERE clause makes concurrent decisions race-safe: exactly
// one wins, the loser sees ErrInviteNotPending.
func (r *groupRepository) DecideInvite(ctx context.Context, tx *sqlx.Tx, inviteID int64, status string) error {
	query := `
		UPDATE group_invites
		SET status = $2, decided_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	result, err := tx.ExecContext(ctx, query, inviteID, status)
	if err != nil {
		return fmt.Errorf("decide invite: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrInviteNotPending
	}
	return nil
}
