package model

import (
	"errors"
	"time"
)

// Group represents a user-created group.
type Group struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	OwnerID     int64     `db:"owner_id" json:"owner_id"`
	MemberCount int       `db:"member_count" json:"member_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// Joined field
	Owner *UserSummary `json:"owner,omitempty"`
}

// GroupMember is one membership row, enriched with user info for display.
type GroupMember struct {
	GroupID  int64     `db:"group_id" json:"-"`
	UserID   int64     `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"` // "owner" or "member"
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`

	User *UserSummary `json:"user,omitempty"`
}

// Invite lifecycle states.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// GroupInvite represents an invitation of a user into a group.
// Only one pending invite may exist per (group, invitee) pair.
type GroupInvite struct {
	ID        int64      `db:"id" json:"id"`
	GroupID   int64      `db:"group_id" json:"group_id"`
	InviterID int64      `db:"inviter_id" json:"inviter_id"`
	InviteeID int64      `db:"invitee_id" json:"invitee_id"`
	Status    string     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DecidedAt *time.Time `db:"decided_at" json:"decided_at,omitempty"`

	// Joined fields
	Group   *Group       `json:"group,omitempty"`
	Inviter *UserSummary `json:"inviter,omitempty"`
}

// Member roles.
const (
	GroupRoleOwner  = "owner"
	GroupRoleMember = "member"
)

// Group constraints
const (
	MaxGroupNameLength        = 100
	MaxGroupDescriptionLength = 500
)

// CreateGroupRequest is the request body for creating a group.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// InviteRequest is the request body for inviting a user into a group.
type InviteRequest struct {
	UserID int64 `json:"user_id"`
}

// Group errors
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupNameRequired  = errors.New("group name is required")
	ErrGroupNameTooLong   = errors.New("group name too long")
	ErrNotGroupMember     = errors.New("not a member of this group")
	ErrAlreadyGroupMember = errors.New("already a member of this group")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrInviteAlreadySent  = errors.New("invite already pending")
	ErrInviteNotPending   = errors.New("invite already decided")
	ErrNotInvitee         = errors.New("invite addressed to another user")
	ErrOwnerCannotLeave   = errors.New("owner cannot leave a group with members")
	ErrCannotInviteSelf   = errors.New("cannot invite yourself")
)
