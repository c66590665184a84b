package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"luna/internal/model"
	"luna/internal/queue"
)

func TestFollowService_Follow(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewFollowService(&mockFollowRepository{}, knownUsers(2), newTestDB(), publisher)

	if err := svc.Follow(context.Background(), 1, 2); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// The worker backfill event carries the edge, published after commit.
	if len(publisher.events) != 1 || publisher.events[0].Type != queue.EventUserFollowed {
		t.Fatalf("expected one %s event, got %v", queue.EventUserFollowed, publisher.events)
	}
	if publisher.events[0].FollowerID != 1 || publisher.events[0].FolloweeID != 2 {
		t.Errorf("event edge = %d->%d, want 1->2", publisher.events[0].FollowerID, publisher.events[0].FolloweeID)
	}
}

func TestFollowService_Follow_Errors(t *testing.T) {
	cases := []struct {
		name       string
		followerID int64
		followeeID int64
		followRepo *mockFollowRepository
		userRepo   *mockUserRepository
		want       error
	}{
		{
			name:       "self follow",
			followerID: 1,
			followeeID: 1,
			followRepo: &mockFollowRepository{},
			userRepo:   knownUsers(1),
			want:       model.ErrCannotFollowSelf,
		},
		{
			name:       "unknown followee",
			followerID: 1,
			followeeID: 99,
			followRepo: &mockFollowRepository{},
			userRepo:   knownUsers(2),
			want:       model.ErrUserNotFound,
		},
		{
			name:       "already following",
			followerID: 1,
			followeeID: 2,
			followRepo: &mockFollowRepository{
				createFn: func(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error) {
					return false, nil
				},
			},
			userRepo: knownUsers(2),
			want:     model.ErrAlreadyFollowing,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			publisher := &mockPublisher{}
			svc := NewFollowService(tc.followRepo, tc.userRepo, newTestDB(), publisher)

			if err := svc.Follow(context.Background(), tc.followerID, tc.followeeID); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
			if len(publisher.events) != 0 {
				t.Error("no event should be published for a failed follow")
			}
		})
	}
}

func TestFollowService_Unfollow(t *testing.T) {
	publisher := &mockPublisher{}
	svc := NewFollowService(&mockFollowRepository{}, knownUsers(2), newTestDB(), publisher)

	if err := svc.Unfollow(context.Background(), 1, 2); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(publisher.events) != 1 || publisher.events[0].Type != queue.EventUserUnfollowed {
		t.Fatalf("expected one %s event, got %v", queue.EventUserUnfollowed, publisher.events)
	}
}

func TestFollowService_GetFollowers_CursorKeepsSubSecondPrecision(t *testing.T) {
	// follows.created_at is a timestamptz with microseconds. If the next
	// cursor were truncated to whole seconds, the strict created_at < cursor
	// comparison on the next page would skip every edge created within the
	// boundary second.
	pageEnd := time.Date(2026, 8, 30, 10, 0, 0, 100_000_000, time.UTC)
	followRepo := &mockFollowRepository{
		getFollowersFn: func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
			return []model.UserSummary{{ID: 10, Username: "ada"}}, &pageEnd, nil
		},
	}
	svc := NewFollowService(followRepo, &mockUserRepository{}, nil, &mockPublisher{})

	resp, err := svc.GetFollowers(context.Background(), 4, nil, 10, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !resp.HasMore || resp.NextCursor == nil {
		t.Fatalf("expected a next cursor, got %+v", resp)
	}

	parsed, err := time.Parse(time.RFC3339Nano, *resp.NextCursor)
	if err != nil {
		t.Fatalf("next cursor %q does not parse: %v", *resp.NextCursor, err)
	}
	if !parsed.Equal(pageEnd) {
		t.Errorf("cursor round-tripped to %v, want %v (sub-second precision lost)", parsed, pageEnd)
	}
}

func TestFollowService_GetFollowers_LastPageHasNoCursor(t *testing.T) {
	followRepo := &mockFollowRepository{
		getFollowersFn: func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
			return []model.UserSummary{{ID: 10, Username: "ada"}}, nil, nil
		},
	}
	svc := NewFollowService(followRepo, &mockUserRepository{}, nil, &mockPublisher{})

	resp, err := svc.GetFollowers(context.Background(), 4, nil, 10, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.HasMore || resp.NextCursor != nil {
		t.Errorf("last page must carry no cursor, got %+v", resp)
	}
}

func TestFollowService_GetFollowing_EnrichesFollowStatus(t *testing.T) {
	followRepo := &mockFollowRepository{
		getFollowingFn: func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
			return []model.UserSummary{{ID: 10}, {ID: 11}}, nil, nil
		},
		checkFollowsFn: func(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
			return map[int64]bool{10: true}, nil
		},
	}
	svc := NewFollowService(followRepo, &mockUserRepository{}, nil, &mockPublisher{})

	viewer := int64(1)
	resp, err := svc.GetFollowing(context.Background(), 4, nil, 10, &viewer)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !resp.Users[0].IsFollowing || resp.Users[1].IsFollowing {
		t.Errorf("follow status = [%v %v], want [true false]", resp.Users[0].IsFollowing, resp.Users[1].IsFollowing)
	}
}
