package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"luna/internal/cache"
	"luna/internal/hashtag"
	"luna/internal/model"
	"luna/internal/repository"
)

const (
	// FeedDefaultLimit is the default number of posts per page
	FeedDefaultLimit = 10

	// FeedMaxLimit is the maximum number of posts per page
	FeedMaxLimit = 50

	// ProfileFeedLimit caps how many posts a profile view returns
	ProfileFeedLimit = 100

	// CacheWarmLimit is max posts to fetch when warming cache
	CacheWarmLimit = 500
)

type FeedService struct {
	feedCache  cache.FeedCache
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		postRepo:   postRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
	}
}

// GetHomeFeed composes the viewer's home feed: posts authored by the viewer
// and everyone they follow, newest first. Anonymous viewers get an empty
// feed, never an error.
//
// Flow for the common (untagged) case:
// 1. Check if cache exists for viewer
// 2. If no cache -> warm it (fetch posts from self+followees, up to 500)
// 3. Get post IDs from cache (using cursor if provided)
// 4. Hydrate: fetch full post details from DB
// 5. Build next cursor from last post
//
// Tag-filtered requests skip the cache and query the database directly:
// the ZSET holds only post IDs, not tags.
func (s *FeedService) GetHomeFeed(ctx context.Context, viewerID *int64, tag *string, cursor *string, limit int) (*model.FeedResponse, error) {
	startTime := time.Now()

	if limit <= 0 {
		limit = FeedDefaultLimit
	}
	if limit > FeedMaxLimit {
		limit = FeedMaxLimit
	}

	if viewerID == nil {
		return &model.FeedResponse{Posts: []model.FeedPost{}}, nil
	}
	userID := *viewerID

	if tag != nil {
		return s.homeFeedByTag(ctx, userID, *tag, cursor, limit)
	}

	// Step 1: Check cache existence
	exists, err := s.feedCache.Exists(ctx, userID)
	if err != nil {
		log.Printf("[FeedService] Cache check failed for user=%d: %v", userID, err)
		// Continue without cache - fall back to DB below
	}

	// Step 2: Warm cache if needed
	if !exists {
		log.Printf("[FeedService] Cache miss for user=%d, warming...", userID)
		if err := s.warmCache(ctx, userID); err != nil {
			log.Printf("[FeedService] Cache warm failed for user=%d: %v", userID, err)
		}
	}

	// Step 3: Get post IDs from cache
	var cursorScore *float64
	if cursor != nil {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, err
		}
		cursorScore = &score
	}

	postIDs, scores, err := s.feedCache.GetFeed(ctx, userID, cursorScore, limit)
	if err != nil {
		// Redis down: serve straight from the database instead of failing.
		log.Printf("[FeedService] GetFeed cache FAILED, falling back to DB: user=%d err=%v", userID, err)
		return s.homeFeedFromDB(ctx, userID, nil, cursor, limit)
	}

	if len(postIDs) == 0 {
		return &model.FeedResponse{Posts: []model.FeedPost{}}, nil
	}

	// Step 4: Hydrate posts from DB
	posts, err := s.hydratePosts(ctx, userID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	// Step 5: Build next cursor and check if there are more posts
	var nextCursor *string
	hasMore := len(posts) == limit
	if hasMore && len(scores) > 0 {
		lastPost := posts[len(posts)-1]
		lastScore := scores[len(scores)-1]
		c := formatFeedCursor(lastScore, lastPost.ID)
		nextCursor = &c
	}

	log.Printf("[FeedService] GetHomeFeed OK: user=%d posts=%d hasMore=%v duration=%v",
		userID, len(posts), hasMore, time.Since(startTime))

	return &model.FeedResponse{
		Posts:      posts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// homeFeedByTag serves a tag-filtered home feed directly from the database.
func (s *FeedService) homeFeedByTag(ctx context.Context, userID int64, tag string, cursor *string, limit int) (*model.FeedResponse, error) {
	normalized := hashtag.Normalize(tag)
	if normalized == "" {
		return &model.FeedResponse{Posts: []model.FeedPost{}}, nil
	}
	return s.homeFeedFromDB(ctx, userID, &normalized, cursor, limit)
}

// homeFeedFromDB composes the home feed without the cache: the author set is
// still exactly self plus followees.
func (s *FeedService) homeFeedFromDB(ctx context.Context, userID int64, tag *string, cursor *string, limit int) (*model.FeedResponse, error) {
	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get followee ids: %w", err)
	}
	authorIDs := append(followeeIDs, userID)

	var cursorTime *time.Time
	if cursor != nil {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, err
		}
		t := time.Unix(int64(score), 0)
		cursorTime = &t
	}

	posts, err := s.postRepo.GetByAuthors(ctx, authorIDs, tag, cursorTime, limit+1)
	if err != nil {
		return nil, fmt.Errorf("get posts by authors: %w", err)
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	postIDs := make([]int64, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}
	feedPosts, err := s.hydratePosts(ctx, userID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	var nextCursor *string
	if hasMore && len(feedPosts) > 0 {
		last := feedPosts[len(feedPosts)-1]
		c := formatFeedCursor(float64(last.CreatedAt.Unix()), last.ID)
		nextCursor = &c
	}

	return &model.FeedResponse{
		Posts:      feedPosts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// GetProfileFeed returns one user's posts as a tagged result. A private
// profile (anonymous viewer, or a viewer who does not follow the owner) is
// reported as such, explicitly distinct from an empty post list. A missing
// profile user is model.ErrUserNotFound, distinct from both.
func (s *FeedService) GetProfileFeed(ctx context.Context, viewerID *int64, profileUserID int64, tag *string) (*model.ProfileFeed, error) {
	if _, err := s.userRepo.GetByID(ctx, profileUserID); err != nil {
		return nil, err
	}

	visible := false
	if viewerID != nil {
		if *viewerID == profileUserID {
			visible = true
		} else {
			follows, err := s.followRepo.Exists(ctx, *viewerID, profileUserID)
			if err != nil {
				return nil, fmt.Errorf("check follow: %w", err)
			}
			visible = follows
		}
	}

	if !visible {
		return &model.ProfileFeed{Visibility: model.ProfilePrivate}, nil
	}

	var normalizedTag *string
	if tag != nil {
		n := hashtag.Normalize(*tag)
		if n == "" {
			return &model.ProfileFeed{Visibility: model.ProfileVisible, Posts: []model.FeedPost{}}, nil
		}
		normalizedTag = &n
	}

	posts, err := s.postRepo.GetByAuthors(ctx, []int64{profileUserID}, normalizedTag, nil, ProfileFeedLimit)
	if err != nil {
		return nil, fmt.Errorf("get profile posts: %w", err)
	}

	postIDs := make([]int64, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}
	feedPosts, err := s.hydratePosts(ctx, *viewerID, postIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	log.Printf("[FeedService] GetProfileFeed OK: viewer=%d profile=%d posts=%d",
		*viewerID, profileUserID, len(feedPosts))

	return &model.ProfileFeed{
		Visibility: model.ProfileVisible,
		Posts:      feedPosts,
	}, nil
}

// warmCache populates the user's feed cache from DB.
func (s *FeedService) warmCache(ctx context.Context, userID int64) error {
	startTime := time.Now()

	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("get followee ids: %w", err)
	}

	// The user's own posts belong in their feed too.
	followeeIDs = append(followeeIDs, userID)

	posts, err := s.postRepo.GetFeedPostIDs(ctx, followeeIDs, CacheWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed post ids: %w", err)
	}

	if len(posts) == 0 {
		log.Printf("[FeedService] No posts to warm for user=%d", userID)
		return nil
	}

	if err := s.feedCache.WarmCache(ctx, userID, posts); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedService] Cache warmed: user=%d posts=%d duration=%v",
		userID, len(posts), time.Since(startTime))

	return nil
}

// hydratePosts fetches full post details and enriches with author info.
func (s *FeedService) hydratePosts(ctx context.Context, viewerID int64, postIDs []int64) ([]model.FeedPost, error) {
	if len(postIDs) == 0 {
		return []model.FeedPost{}, nil
	}

	posts, err := s.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	authorIDSet := make(map[int64]struct{})
	for _, p := range posts {
		authorIDSet[p.UserID] = struct{}{}
	}
	authorIDs := make([]int64, 0, len(authorIDSet))
	for id := range authorIDSet {
		authorIDs = append(authorIDs, id)
	}

	authors := make(map[int64]model.UserSummary)
	for _, authorID := range authorIDs {
		user, err := s.userRepo.GetByID(ctx, authorID)
		if err != nil {
			log.Printf("[FeedService] Failed to get author %d: %v", authorID, err)
			continue
		}
		authors[authorID] = model.UserSummary{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		}
	}

	followStatus, err := s.followRepo.CheckFollows(ctx, viewerID, authorIDs)
	if err != nil {
		log.Printf("[FeedService] Failed to check follows: %v", err)
	}

	likeStatus, err := s.postRepo.CheckLikes(ctx, viewerID, postIDs)
	if err != nil {
		log.Printf("[FeedService] Failed to check likes: %v", err)
	}

	feedPosts := make([]model.FeedPost, len(posts))
	for i, p := range posts {
		author := authors[p.UserID]
		if followStatus != nil {
			author.IsFollowing = followStatus[p.UserID]
		}
		if likeStatus != nil {
			p.IsLiked = likeStatus[p.ID]
		}
		feedPosts[i] = model.FeedPost{
			Post:   p,
			Author: author,
		}
	}

	return feedPosts, nil
}

// parseFeedCursor parses "id:timestamp" format cursor.
// Returns the timestamp (as score) and post ID.
func parseFeedCursor(cursor string) (float64, int64, error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected id:timestamp", model.ErrInvalidCursor)
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad post id", model.ErrInvalidCursor)
	}

	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad timestamp", model.ErrInvalidCursor)
	}

	return score, id, nil
}

// formatFeedCursor creates "id:timestamp" format cursor.
func formatFeedCursor(score float64, id int64) string {
	return fmt.Sprintf("%d:%.0f", id, score)
}
