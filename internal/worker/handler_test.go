package worker

import (
	"context"
	"errors"
	"testing"

	"luna/internal/cache"
	"luna/internal/model"
	"luna/internal/queue"
)

// fakeFeedCache records feed cache mutations per user.
type fakeFeedCache struct {
	added   map[int64][]int64 // userID -> postIDs added
	removed map[int64][]int64 // userID -> postIDs removed

	addPostFn func(ctx context.Context, userID, postID int64, timestamp int64) error
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{
		added:   make(map[int64][]int64),
		removed: make(map[int64][]int64),
	}
}

func (f *fakeFeedCache) AddPost(ctx context.Context, userID, postID int64, timestamp int64) error {
	if f.addPostFn != nil {
		if err := f.addPostFn(ctx, userID, postID, timestamp); err != nil {
			return err
		}
	}
	f.added[userID] = append(f.added[userID], postID)
	return nil
}

func (f *fakeFeedCache) RemovePost(ctx context.Context, userID, postID int64) error {
	f.removed[userID] = append(f.removed[userID], postID)
	return nil
}

func (f *fakeFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	return nil, nil, nil
}

func (f *fakeFeedCache) WarmCache(ctx context.Context, userID int64, posts []cache.PostScore) error {
	return nil
}

func (f *fakeFeedCache) RemoveAuthorPosts(ctx context.Context, userID int64, postIDs []int64) error {
	f.removed[userID] = append(f.removed[userID], postIDs...)
	return nil
}

func (f *fakeFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}

type fakeFollowerProvider struct {
	followers map[int64][]int64
	err       error
}

func (f *fakeFollowerProvider) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.followers[userID], nil
}

type fakePostsProvider struct {
	posts map[int64][]cache.PostScore

	gotLimit int
}

func (f *fakePostsProvider) GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error) {
	f.gotLimit = limit
	return f.posts[userID], nil
}

type notifCall struct {
	userID    int64
	actorID   int64
	notifType string
	postID    *int64
	commentID *int64
	groupID   *int64
}

type fakeNotifCreator struct {
	calls []notifCall
	err   error
}

func (f *fakeNotifCreator) CreateNotification(ctx context.Context, userID, actorID int64, notifType string, postID, commentID, groupID *int64) error {
	f.calls = append(f.calls, notifCall{userID, actorID, notifType, postID, commentID, groupID})
	return f.err
}

func containsID(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestHandler_PostCreated_FansOutToFollowersAndAuthor(t *testing.T) {
	feedCache := newFakeFeedCache()
	followers := &fakeFollowerProvider{followers: map[int64][]int64{2: {10, 11, 12}}}
	h := NewHandler(feedCache, followers, &fakePostsProvider{})

	event := queue.FeedEvent{Type: queue.EventPostCreated, PostID: 5, AuthorID: 2, Timestamp: 1700000000}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// Every follower's feed plus the author's own received the post.
	for _, userID := range []int64{10, 11, 12, 2} {
		if !containsID(feedCache.added[userID], 5) {
			t.Errorf("post 5 missing from user %d's feed: %v", userID, feedCache.added[userID])
		}
	}
}

func TestHandler_PostCreated_ToleratesPerFollowerFailures(t *testing.T) {
	// A single follower's cache failure must not abort the fan-out.
	feedCache := newFakeFeedCache()
	feedCache.addPostFn = func(ctx context.Context, userID, postID int64, timestamp int64) error {
		if userID == 11 {
			return errors.New("redis timeout")
		}
		return nil
	}
	followers := &fakeFollowerProvider{followers: map[int64][]int64{2: {10, 11, 12}}}
	h := NewHandler(feedCache, followers, &fakePostsProvider{})

	event := queue.FeedEvent{Type: queue.EventPostCreated, PostID: 5, AuthorID: 2, Timestamp: 1700000000}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("fan-out must tolerate per-follower failures, got: %v", err)
	}
	if !containsID(feedCache.added[12], 5) {
		t.Error("followers after the failing one were skipped")
	}
}

func TestHandler_PostDeleted_RemovesFromAllFeeds(t *testing.T) {
	feedCache := newFakeFeedCache()
	followers := &fakeFollowerProvider{followers: map[int64][]int64{2: {10, 11}}}
	h := NewHandler(feedCache, followers, &fakePostsProvider{})

	event := queue.FeedEvent{Type: queue.EventPostDeleted, PostID: 5, AuthorID: 2}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	for _, userID := range []int64{10, 11, 2} {
		if !containsID(feedCache.removed[userID], 5) {
			t.Errorf("post 5 not removed from user %d's feed", userID)
		}
	}
}

func TestHandler_UserFollowed_BackfillsAndNotifies(t *testing.T) {
	feedCache := newFakeFeedCache()
	posts := &fakePostsProvider{posts: map[int64][]cache.PostScore{
		4: {{PostID: 100, Timestamp: 1700000000}, {PostID: 101, Timestamp: 1700000100}},
	}}
	notifs := &fakeNotifCreator{}
	h := NewHandler(feedCache, &fakeFollowerProvider{}, posts)
	h.SetNotificationCreator(notifs)

	event := queue.FeedEvent{Type: queue.EventUserFollowed, FollowerID: 1, FolloweeID: 4}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(feedCache.added[1]) != 2 {
		t.Errorf("backfilled %d posts into follower's feed, want 2", len(feedCache.added[1]))
	}
	if posts.gotLimit != 20 {
		t.Errorf("backfill limit = %d, want 20", posts.gotLimit)
	}

	if len(notifs.calls) != 1 {
		t.Fatalf("created %d notifications, want 1", len(notifs.calls))
	}
	call := notifs.calls[0]
	if call.userID != 4 || call.actorID != 1 || call.notifType != model.NotificationTypeFollow {
		t.Errorf("follow notification = %+v, want followee 4 notified about follower 1", call)
	}
}

func TestHandler_UserFollowed_NotificationFailureIsNonFatal(t *testing.T) {
	feedCache := newFakeFeedCache()
	posts := &fakePostsProvider{}
	h := NewHandler(feedCache, &fakeFollowerProvider{}, posts)
	h.SetNotificationCreator(&fakeNotifCreator{err: errors.New("db down")})

	event := queue.FeedEvent{Type: queue.EventUserFollowed, FollowerID: 1, FolloweeID: 4}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("a lost follow notification must not fail the backfill: %v", err)
	}
}

func TestHandler_UserUnfollowed_RemovesFolloweePosts(t *testing.T) {
	feedCache := newFakeFeedCache()
	posts := &fakePostsProvider{posts: map[int64][]cache.PostScore{
		4: {{PostID: 100}, {PostID: 101}, {PostID: 102}},
	}}
	h := NewHandler(feedCache, &fakeFollowerProvider{}, posts)

	event := queue.FeedEvent{Type: queue.EventUserUnfollowed, FollowerID: 1, FolloweeID: 4}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []int64{100, 101, 102}
	got := feedCache.removed[1]
	if len(got) != len(want) {
		t.Fatalf("removed %v from follower's feed, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("removed %v, want %v", got, want)
		}
	}
}

func TestHandler_UserUnfollowed_NoPostsIsNoop(t *testing.T) {
	feedCache := newFakeFeedCache()
	h := NewHandler(feedCache, &fakeFollowerProvider{}, &fakePostsProvider{})

	event := queue.FeedEvent{Type: queue.EventUserUnfollowed, FollowerID: 1, FolloweeID: 4}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(feedCache.removed) != 0 {
		t.Errorf("unexpected removals for a followee with no cached posts: %v", feedCache.removed)
	}
}

func TestHandler_NotificationEvents(t *testing.T) {
	commentID := int64(7)

	cases := []struct {
		name  string
		event queue.FeedEvent
		check func(t *testing.T, call notifCall)
	}{
		{
			name:  "like",
			event: queue.FeedEvent{Type: queue.EventPostLiked, PostID: 5, ActorID: 1, RecipientID: 2},
			check: func(t *testing.T, call notifCall) {
				if call.userID != 2 || call.actorID != 1 || call.notifType != model.NotificationTypeLike {
					t.Errorf("call = %+v", call)
				}
				if call.postID == nil || *call.postID != 5 {
					t.Errorf("postID = %v, want 5", call.postID)
				}
			},
		},
		{
			name:  "comment",
			event: queue.FeedEvent{Type: queue.EventPostCommented, PostID: 5, CommentID: &commentID, ActorID: 1, RecipientID: 2},
			check: func(t *testing.T, call notifCall) {
				if call.notifType != model.NotificationTypeComment {
					t.Errorf("type = %q, want %q", call.notifType, model.NotificationTypeComment)
				}
				if call.commentID == nil || *call.commentID != commentID {
					t.Errorf("commentID = %v, want %d", call.commentID, commentID)
				}
			},
		},
		{
			name:  "group invite",
			event: queue.FeedEvent{Type: queue.EventGroupInvited, GroupID: 9, ActorID: 1, RecipientID: 3},
			check: func(t *testing.T, call notifCall) {
				if call.userID != 3 || call.notifType != model.NotificationTypeGroupInvite {
					t.Errorf("call = %+v", call)
				}
				if call.groupID == nil || *call.groupID != 9 {
					t.Errorf("groupID = %v, want 9", call.groupID)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifs := &fakeNotifCreator{}
			h := NewHandler(newFakeFeedCache(), &fakeFollowerProvider{}, &fakePostsProvider{})
			h.SetNotificationCreator(notifs)

			if err := h.HandleEvent(context.Background(), tc.event); err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if len(notifs.calls) != 1 {
				t.Fatalf("created %d notifications, want 1", len(notifs.calls))
			}
			tc.check(t, notifs.calls[0])
		})
	}
}

func TestHandler_NotificationEvents_NoCreatorIsNoop(t *testing.T) {
	// Without a notification creator wired, notification events are dropped
	// rather than retried forever by the consumer group.
	h := NewHandler(newFakeFeedCache(), &fakeFollowerProvider{}, &fakePostsProvider{})

	event := queue.FeedEvent{Type: queue.EventPostLiked, PostID: 5, ActorID: 1, RecipientID: 2}
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestHandler_UnknownEventType(t *testing.T) {
	h := NewHandler(newFakeFeedCache(), &fakeFollowerProvider{}, &fakePostsProvider{})

	err := h.HandleEvent(context.Background(), queue.FeedEvent{Type: "mystery"})
	if err == nil {
		t.Fatal("expected an error for an unknown event type")
	}
}
