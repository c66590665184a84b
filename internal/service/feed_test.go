package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"luna/internal/cache"
	"luna/internal/model"
)

// Fixture: user 1 follows users 2 and 3. User 4 is not followed.
// Posts, newest first: p103 by user 3, p102 by user 2, p101 by user 1,
// p104 by user 4 (must never appear in user 1's feed).
var feedFixturePosts = []model.Post{
	{ID: 104, UserID: 4, Tags: []string{"sunset"}, CreatedAt: time.Unix(4000, 0)},
	{ID: 103, UserID: 3, Tags: []string{"sunset"}, CreatedAt: time.Unix(3000, 0)},
	{ID: 102, UserID: 2, CreatedAt: time.Unix(2000, 0)},
	{ID: 101, UserID: 1, Tags: []string{"coffee"}, CreatedAt: time.Unix(1000, 0)},
}

func feedFixtureRepos() (*mockPostRepository, *mockFollowRepository, *mockUserRepository) {
	postsByID := make(map[int64]model.Post)
	for _, p := range feedFixturePosts {
		postsByID[p.ID] = p
	}

	postRepo := &mockPostRepository{
		getByAuthorsFn: func(ctx context.Context, authorIDs []int64, tag *string, cursor *time.Time, limit int) ([]model.Post, error) {
			allowed := make(map[int64]bool)
			for _, id := range authorIDs {
				allowed[id] = true
			}
			var out []model.Post
			for _, p := range feedFixturePosts { // already newest first
				if !allowed[p.UserID] {
					continue
				}
				if tag != nil && !containsTag(p.Tags, *tag) {
					continue
				}
				if cursor != nil && !p.CreatedAt.Before(*cursor) {
					continue
				}
				out = append(out, p)
				if limit > 0 && len(out) == limit {
					break
				}
			}
			return out, nil
		},
		getByIDsFn: func(ctx context.Context, postIDs []int64) ([]model.Post, error) {
			out := make([]model.Post, 0, len(postIDs))
			for _, id := range postIDs {
				if p, ok := postsByID[id]; ok {
					out = append(out, p)
				}
			}
			return out, nil
		},
	}

	followRepo := &mockFollowRepository{
		getFolloweeIDsFn: func(ctx context.Context, userID int64) ([]int64, error) {
			if userID == 1 {
				return []int64{2, 3}, nil
			}
			return nil, nil
		},
		existsFn: func(ctx context.Context, followerID, followeeID int64) (bool, error) {
			return followerID == 1 && (followeeID == 2 || followeeID == 3), nil
		},
	}

	userRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			if id >= 1 && id <= 4 {
				return &model.User{ID: id, Username: "user"}, nil
			}
			return nil, model.ErrUserNotFound
		},
	}

	return postRepo, followRepo, userRepo
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func postIDs(posts []model.FeedPost) []int64 {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func assertIDs(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("post IDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("post IDs = %v, want %v", got, want)
		}
	}
}

// =============================================================================
// HOME FEED TESTS
// =============================================================================

func TestFeedService_GetHomeFeed_AnonymousIsEmpty(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	feed, err := svc.GetHomeFeed(context.Background(), nil, nil, nil, 10)
	if err != nil {
		t.Fatalf("anonymous feed must not error, got: %v", err)
	}
	if len(feed.Posts) != 0 {
		t.Errorf("anonymous feed has %d posts, want 0", len(feed.Posts))
	}
	if feed.HasMore {
		t.Error("anonymous feed must not report more posts")
	}
}

func TestFeedService_GetHomeFeed_SelfAndFolloweesNewestFirst(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	feedCache := newMockFeedCache()
	svc := NewFeedService(feedCache, postRepo, followRepo, userRepo)

	// Cold cache: the service warms it from self + followees then serves.
	postRepo.getFeedPostIDsFn = func(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error) {
		allowed := make(map[int64]bool)
		for _, id := range followeeIDs {
			allowed[id] = true
		}
		var out []cache.PostScore
		for _, p := range feedFixturePosts {
			if allowed[p.UserID] {
				out = append(out, cache.PostScore{PostID: p.ID, Timestamp: p.CreatedAt.Unix()})
			}
		}
		return out, nil
	}

	viewer := int64(1)
	feed, err := svc.GetHomeFeed(context.Background(), &viewer, nil, nil, 10)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// p104 (unfollowed author) is excluded; rest are newest first
	assertIDs(t, postIDs(feed.Posts), 103, 102, 101)
}

func TestFeedService_GetHomeFeed_CacheFailureFallsBackToDB(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	feedCache := newMockFeedCache()
	feedCache.existsFn = func(ctx context.Context, userID int64) (bool, error) {
		return true, nil
	}
	feedCache.getFeedFn = func(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
		return nil, nil, errors.New("redis: connection refused")
	}
	svc := NewFeedService(feedCache, postRepo, followRepo, userRepo)

	viewer := int64(1)
	feed, err := svc.GetHomeFeed(context.Background(), &viewer, nil, nil, 10)
	if err != nil {
		t.Fatalf("cache failure must degrade to DB, got error: %v", err)
	}
	assertIDs(t, postIDs(feed.Posts), 103, 102, 101)
}

func TestFeedService_GetHomeFeed_TagFilterBypassesCache(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	feedCache := newMockFeedCache()
	feedCache.getFeedFn = func(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
		t.Fatal("tag-filtered feed must not read the ID cache")
		return nil, nil, nil
	}
	svc := NewFeedService(feedCache, postRepo, followRepo, userRepo)

	viewer := int64(1)
	tag := "#Sunset" // normalization strips the # and lowercases
	feed, err := svc.GetHomeFeed(context.Background(), &viewer, &tag, nil, 10)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// Only p103 carries the tag among visible authors; p104 has it too but
	// its author is not followed.
	assertIDs(t, postIDs(feed.Posts), 103)
}

func TestFeedService_GetHomeFeed_BlankTagIsEmpty(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(1)
	tag := "#"
	feed, err := svc.GetHomeFeed(context.Background(), &viewer, &tag, nil, 10)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(feed.Posts) != 0 {
		t.Errorf("blank tag feed has %d posts, want 0", len(feed.Posts))
	}
}

func TestFeedService_GetHomeFeed_Pagination(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	feedCache := newMockFeedCache()
	svc := NewFeedService(feedCache, postRepo, followRepo, userRepo)

	// Warm the cache by hand with the visible posts
	ctx := context.Background()
	for _, p := range feedFixturePosts {
		if p.UserID == 4 {
			continue
		}
		if err := feedCache.AddPost(ctx, 1, p.ID, p.CreatedAt.Unix()); err != nil {
			t.Fatal(err)
		}
	}

	viewer := int64(1)
	page1, err := svc.GetHomeFeed(ctx, &viewer, nil, nil, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	assertIDs(t, postIDs(page1.Posts), 103, 102)
	if !page1.HasMore {
		t.Fatal("expected more posts after first page")
	}
	if page1.NextCursor == nil {
		t.Fatal("expected next cursor on first page")
	}

	page2, err := svc.GetHomeFeed(ctx, &viewer, nil, page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	assertIDs(t, postIDs(page2.Posts), 101)
}

func TestFeedService_GetHomeFeed_InvalidCursor(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	feedCache := newMockFeedCache()
	feedCache.feeds[1] = nil // cache exists but empty
	svc := NewFeedService(feedCache, postRepo, followRepo, userRepo)

	viewer := int64(1)
	bad := "not-a-cursor"
	if _, err := svc.GetHomeFeed(context.Background(), &viewer, nil, &bad, 10); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
}

// =============================================================================
// PROFILE FEED TESTS
// =============================================================================

func TestFeedService_GetProfileFeed_VisibleToFollower(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(1) // follows user 3
	feed, err := svc.GetProfileFeed(context.Background(), &viewer, 3, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if feed.Visibility != model.ProfileVisible {
		t.Fatalf("visibility = %q, want %q", feed.Visibility, model.ProfileVisible)
	}
	assertIDs(t, postIDs(feed.Posts), 103)
}

func TestFeedService_GetProfileFeed_OwnProfileAlwaysVisible(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(4) // follows nobody, views themselves
	feed, err := svc.GetProfileFeed(context.Background(), &viewer, 4, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if feed.Visibility != model.ProfileVisible {
		t.Fatalf("visibility = %q, want %q", feed.Visibility, model.ProfileVisible)
	}
	assertIDs(t, postIDs(feed.Posts), 104)
}

func TestFeedService_GetProfileFeed_PrivateForNonFollower(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(1) // does not follow user 4
	feed, err := svc.GetProfileFeed(context.Background(), &viewer, 4, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if feed.Visibility != model.ProfilePrivate {
		t.Fatalf("visibility = %q, want %q", feed.Visibility, model.ProfilePrivate)
	}
	if len(feed.Posts) != 0 {
		t.Error("a private profile must not leak posts")
	}
}

func TestFeedService_GetProfileFeed_PrivateForAnonymous(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	feed, err := svc.GetProfileFeed(context.Background(), nil, 2, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if feed.Visibility != model.ProfilePrivate {
		t.Fatalf("visibility = %q, want %q", feed.Visibility, model.ProfilePrivate)
	}
}

func TestFeedService_GetProfileFeed_UnknownUser(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(1)
	_, err := svc.GetProfileFeed(context.Background(), &viewer, 99, nil)
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("error = %v, want %v", err, model.ErrUserNotFound)
	}
}

func TestFeedService_GetProfileFeed_TagFilter(t *testing.T) {
	postRepo, followRepo, userRepo := feedFixtureRepos()
	svc := NewFeedService(newMockFeedCache(), postRepo, followRepo, userRepo)

	viewer := int64(3)
	tag := "coffee"
	feed, err := svc.GetProfileFeed(context.Background(), &viewer, 3, &tag)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if feed.Visibility != model.ProfileVisible {
		t.Fatalf("visibility = %q, want %q", feed.Visibility, model.ProfileVisible)
	}
	// user 3 has no "coffee" posts: visible but empty, distinct from private
	if len(feed.Posts) != 0 {
		t.Errorf("tag-filtered profile feed has %d posts, want 0", len(feed.Posts))
	}
}
