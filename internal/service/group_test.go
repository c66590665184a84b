package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"luna/internal/model"
	"luna/internal/queue"
)

func existingGroup(id, ownerID int64) *model.Group {
	return &model.Group{ID: id, Name: "book club", OwnerID: ownerID, MemberCount: 2}
}

func TestGroupService_Create_Validation(t *testing.T) {
	svc := NewGroupService(&mockGroupRepository{}, &mockUserRepository{}, nil, &mockPublisher{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, model.CreateGroupRequest{Name: "   "}); !errors.Is(err, model.ErrGroupNameRequired) {
		t.Errorf("blank name: error = %v, want %v", err, model.ErrGroupNameRequired)
	}

	longName := strings.Repeat("a", model.MaxGroupNameLength+1)
	if _, err := svc.Create(ctx, 1, model.CreateGroupRequest{Name: longName}); !errors.Is(err, model.ErrGroupNameTooLong) {
		t.Errorf("long name: error = %v, want %v", err, model.ErrGroupNameTooLong)
	}
}

func TestGroupService_Create_TrimsName(t *testing.T) {
	var gotName string
	groupRepo := &mockGroupRepository{
		createFn: func(ctx context.Context, ownerID int64, name string, description *string) (*model.Group, error) {
			gotName = name
			return &model.Group{ID: 1, Name: name, OwnerID: ownerID, MemberCount: 1}, nil
		},
	}
	svc := NewGroupService(groupRepo, &mockUserRepository{}, nil, &mockPublisher{})

	group, err := svc.Create(context.Background(), 1, model.CreateGroupRequest{Name: "  book club  "})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotName != "book club" {
		t.Errorf("stored name = %q, want trimmed %q", gotName, "book club")
	}
	if group.MemberCount != 1 {
		t.Errorf("member count = %d, want 1 (the owner)", group.MemberCount)
	}
}

func TestGroupService_GetMembers_MembersOnly(t *testing.T) {
	groupRepo := &mockGroupRepository{
		getByIDFn: func(ctx context.Context, groupID int64) (*model.Group, error) {
			return existingGroup(groupID, 1), nil
		},
		isMemberFn: func(ctx context.Context, groupID, userID int64) (bool, error) {
			return userID == 1 || userID == 2, nil
		},
		getMembersFn: func(ctx context.Context, groupID int64) ([]model.GroupMember, error) {
			return []model.GroupMember{
				{GroupID: groupID, UserID: 1, Role: model.GroupRoleOwner},
				{GroupID: groupID, UserID: 2, Role: model.GroupRoleMember},
			}, nil
		},
	}
	svc := NewGroupService(groupRepo, &mockUserRepository{}, nil, &mockPublisher{})

	members, err := svc.GetMembers(context.Background(), 10, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("got %d members, want 2", len(members))
	}

	// Non-member is refused the roster
	if _, err := svc.GetMembers(context.Background(), 10, 3); !errors.Is(err, model.ErrNotGroupMember) {
		t.Errorf("non-member roster: error = %v, want %v", err, model.ErrNotGroupMember)
	}
}

func TestGroupService_Invite_Success(t *testing.T) {
	groupRepo := &mockGroupRepository{
		getByIDFn: func(ctx context.Context, groupID int64) (*model.Group, error) {
			return existingGroup(groupID, 1), nil
		},
		isMemberFn: func(ctx context.Context, groupID, userID int64) (bool, error) {
			return userID == 1, nil // only the inviter is a member
		},
	}
	userRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "invitee"}, nil
		},
	}
	publisher := &mockPublisher{}
	svc := NewGroupService(groupRepo, userRepo, nil, publisher)

	invite, err := svc.Invite(context.Background(), 10, 1, 5)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if invite.Status != model.InviteStatusPending {
		t.Errorf("invite status = %q, want %q", invite.Status, model.InviteStatusPending)
	}

	// The invitee gets notified via the event stream
	if len(publisher.events) != 1 || publisher.events[0].Type != queue.EventGroupInvited {
		t.Fatalf("expected one %s event, got %v", queue.EventGroupInvited, publisher.events)
	}
	if publisher.events[0].RecipientID != 5 {
		t.Errorf("event recipient = %d, want 5", publisher.events[0].RecipientID)
	}
}

func TestGroupService_Invite_Failures(t *testing.T) {
	groupRepo := &mockGroupRepository{
		getByIDFn: func(ctx context.Context, groupID int64) (*model.Group, error) {
			if groupID == 10 {
				return existingGroup(groupID, 1), nil
			}
			return nil, model.ErrGroupNotFound
		},
		isMemberFn: func(ctx context.Context, groupID, userID int64) (bool, error) {
			return userID == 1 || userID == 2, nil
		},
		createInviteFn: func(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error) {
			return nil, model.ErrInviteAlreadySent
		},
	}
	userRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			if id == 99 {
				return nil, model.ErrUserNotFound
			}
			return &model.User{ID: id}, nil
		},
	}
	svc := NewGroupService(groupRepo, userRepo, nil, &mockPublisher{})
	ctx := context.Background()

	cases := []struct {
		name      string
		groupID   int64
		inviterID int64
		inviteeID int64
		want      error
	}{
		{"self invite", 10, 1, 1, model.ErrCannotInviteSelf},
		{"unknown group", 11, 1, 5, model.ErrGroupNotFound},
		{"inviter not member", 10, 3, 5, model.ErrNotGroupMember},
		{"unknown invitee", 10, 1, 99, model.ErrUserNotFound},
		{"invitee already member", 10, 1, 2, model.ErrAlreadyGroupMember},
		{"duplicate pending invite", 10, 1, 5, model.ErrInviteAlreadySent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Invite(ctx, tc.groupID, tc.inviterID, tc.inviteeID)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGroupService_ListInvitesForUser(t *testing.T) {
	groupRepo := &mockGroupRepository{
		getPendingInvitesForUserFn: func(ctx context.Context, userID int64) ([]model.GroupInvite, error) {
			return []model.GroupInvite{
				{ID: 1, GroupID: 10, InviterID: 1, InviteeID: userID, Status: model.InviteStatusPending},
			}, nil
		},
	}
	svc := NewGroupService(groupRepo, &mockUserRepository{}, nil, &mockPublisher{})

	invites, err := svc.ListInvitesForUser(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(invites) != 1 || invites[0].InviteeID != 5 {
		t.Errorf("invites = %v, want one invite addressed to user 5", invites)
	}
}
