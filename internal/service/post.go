package service

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"luna/internal/hashtag"
	"luna/internal/model"
	"luna/internal/queue"
	"luna/internal/repository"
)

type PostService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	publisher  queue.Publisher
	db         *sqlx.DB
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	publisher queue.Publisher,
	db *sqlx.DB,
) *PostService {
	return &PostService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		publisher:  publisher,
		db:         db,
	}
}

// canViewAuthor applies the profile visibility rule to any read of an
// author's content: visible only to the author and to followers. Anonymous
// viewers see nothing.
func canViewAuthor(ctx context.Context, followRepo repository.FollowRepository, viewerID *int64, authorID int64) (bool, error) {
	if viewerID == nil {
		return false, nil
	}
	if *viewerID == authorID {
		return true, nil
	}
	return followRepo.Exists(ctx, *viewerID, authorID)
}

// Create creates a new post and publishes an event for fan-out. Hashtags
// are extracted from the caption at write time and stored lowercased, so
// tag-filtered reads are a plain array match.
func (s *PostService) Create(ctx context.Context, userID int64, req model.CreatePostRequest) (*model.Post, error) {
	if len(req.MediaURLs) == 0 {
		return nil, model.ErrNoMediaProvided
	}
	if len(req.MediaURLs) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}
	if req.Caption != nil && utf8.RuneCountInString(*req.Caption) > model.MaxPostCaptionLength {
		return nil, model.ErrCaptionTooLong
	}

	var tags []string
	if req.Caption != nil {
		tags = hashtag.Extract(*req.Caption)
	}

	post, err := s.postRepo.Create(ctx, userID, req.Caption, tags, req.MediaURLs)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	// Publish event for async fan-out
	event := queue.NewPostCreatedEvent(post.ID, userID)
	msgID, err := s.publisher.Publish(ctx, queue.StreamFeed, event)
	if err != nil {
		// Log but don't fail - post is created, fan-out can be retried
		log.Printf("[PostService] Failed to publish PostCreated event: post=%d err=%v", post.ID, err)
	} else {
		log.Printf("[PostService] Published PostCreated: post=%d msgID=%s", post.ID, msgID)
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		post.Author = &model.UserSummary{
			ID:          author.ID,
			Username:    author.Username,
			DisplayName: author.DisplayName,
			AvatarURL:   author.AvatarURL,
		}
	}

	return post, nil
}

// GetByID retrieves a single post with full details. The author's
// visibility rule applies: a hidden post reads as not found, so existence
// is not leaked to non-followers.
func (s *PostService) GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	visible, err := canViewAuthor(ctx, s.followRepo, viewerID, post.UserID)
	if err != nil {
		return nil, fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return nil, model.ErrPostNotFound
	}

	author, err := s.userRepo.GetByID(ctx, post.UserID)
	if err == nil {
		post.Author = &model.UserSummary{
			ID:          author.ID,
			Username:    author.Username,
			DisplayName: author.DisplayName,
			AvatarURL:   author.AvatarURL,
		}
	}

	if viewerID != nil {
		likeStatus, err := s.postRepo.CheckLikes(ctx, *viewerID, []int64{postID})
		if err != nil {
			log.Printf("[PostService] Failed to check like status: %v", err)
		} else {
			post.IsLiked = likeStatus[postID]
		}
	}

	return post, nil
}

// Delete soft-deletes a post and publishes an event to remove it from feeds.
func (s *PostService) Delete(ctx context.Context, postID, userID int64) error {
	err := s.postRepo.Delete(ctx, postID, userID)
	if err != nil {
		return err
	}

	event := queue.NewPostDeletedEvent(postID, userID)
	msgID, err := s.publisher.Publish(ctx, queue.StreamFeed, event)
	if err != nil {
		log.Printf("[PostService] Failed to publish PostDeleted event: post=%d err=%v", postID, err)
	} else {
		log.Printf("[PostService] Published PostDeleted: post=%d msgID=%s", postID, msgID)
	}

	return nil
}

// GetUserPosts retrieves post thumbnails for a user's profile grid, guarded
// by the same visibility rule as the profile feed: the grid is only
// populated for the owner and for followers. An unknown user is an error,
// distinct from a private grid.
func (s *PostService) GetUserPosts(ctx context.Context, userID int64, viewerID *int64, cursor *string, limit int) (*model.ProfileGrid, error) {
	if limit <= 0 {
		limit = 12 // Default for 3x4 grid
	}
	if limit > 36 {
		limit = 36
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	visible, err := canViewAuthor(ctx, s.followRepo, viewerID, userID)
	if err != nil {
		return nil, fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return &model.ProfileGrid{Visibility: model.ProfilePrivate}, nil
	}

	thumbnails, nextCursor, err := s.postRepo.GetUserThumbnails(ctx, userID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("get user thumbnails: %w", err)
	}

	hasMore := len(thumbnails) == limit && nextCursor != nil

	var finalCursor *string
	if hasMore {
		finalCursor = nextCursor
	}

	return &model.ProfileGrid{
		Visibility: model.ProfileVisible,
		Posts:      thumbnails,
		NextCursor: finalCursor,
		HasMore:    hasMore,
	}, nil
}

// Like adds a like to a post. The like row insert and the counter bump share
// one transaction, so concurrent likes from distinct users never lose an
// update: each inserts its own row and the counter increments per commit.
func (s *PostService) Like(ctx context.Context, postID, userID int64) error {
	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return err
	}

	// Liking requires the same visibility as reading the post.
	visible, err := canViewAuthor(ctx, s.followRepo, &userID, authorID)
	if err != nil {
		return fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return model.ErrPostNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Insert like (fails if already liked)
	if err := s.postRepo.Like(ctx, tx, postID, userID); err != nil {
		return err
	}

	if err := s.postRepo.IncrementLikeCount(ctx, tx, postID, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[PostService] User %d liked post %d", userID, postID)

	// Publish notification event (after commit, best-effort)
	if s.publisher != nil && authorID != userID {
		event := queue.NewPostLikedEvent(postID, userID, authorID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[PostService] Failed to publish PostLiked event: %v", err)
		}
	}

	return nil
}

// Unlike removes a like from a post in the same transactional shape as Like.
func (s *PostService) Unlike(ctx context.Context, postID, userID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete like (fails if not liked)
	if err := s.postRepo.Unlike(ctx, tx, postID, userID); err != nil {
		return err
	}

	if err := s.postRepo.IncrementLikeCount(ctx, tx, postID, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[PostService] User %d unliked post %d", userID, postID)
	return nil
}

// GetPostLikers returns the paginated list of users who liked a post. Same
// visibility rule as GetByID: a hidden post reads as not found.
func (s *PostService) GetPostLikers(ctx context.Context, postID int64, viewerID *int64, cursor *string, limit int) (*model.LikersListResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return nil, err
	}

	visible, err := canViewAuthor(ctx, s.followRepo, viewerID, authorID)
	if err != nil {
		return nil, fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return nil, model.ErrPostNotFound
	}

	users, nextCursor, err := s.postRepo.GetPostLikers(ctx, postID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("get post likers: %w", err)
	}

	hasMore := nextCursor != nil

	var finalCursor *string
	if hasMore {
		finalCursor = nextCursor
	}

	return &model.LikersListResponse{
		Users:      users,
		NextCursor: finalCursor,
		HasMore:    hasMore,
	}, nil
}
