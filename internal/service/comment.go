package service

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"luna/internal/model"
	"luna/internal/queue"
	"luna/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	db          *sqlx.DB
	publisher   queue.Publisher
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		followRepo:  followRepo,
		db:          db,
		publisher:   publisher,
	}
}

// Create adds a comment to a post. The insert and the counter bump share a
// transaction. Replies to replies are flattened to one level with an
// @mention prepended, Facebook-style.
func (s *CommentService) Create(ctx context.Context, postID, userID int64, req model.CreateCommentRequest) (*model.Comment, error) {
	if len(req.Content) == 0 {
		return nil, model.ErrContentRequired
	}
	if utf8.RuneCountInString(req.Content) > model.MaxCommentLength {
		return nil, model.ErrContentTooLong
	}

	// Commenting requires the same visibility as reading the post.
	postAuthorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return nil, err
	}
	visible, err := canViewAuthor(ctx, s.followRepo, &userID, postAuthorID)
	if err != nil {
		return nil, fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return nil, model.ErrPostNotFound
	}

	actualParentID := req.ParentCommentID
	if req.ParentCommentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, fmt.Errorf("parent comment does not belong to this post")
		}

		// Parent is itself a reply: flatten to the top-level comment.
		if parent.ParentCommentID != nil {
			actualParentID = parent.ParentCommentID

			parentAuthor, err := s.userRepo.GetByID(ctx, parent.UserID)
			if err == nil {
				req.Content = "@" + parentAuthor.Username + " " + req.Content
			}
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	comment, err := s.commentRepo.Create(ctx, tx, postID, userID, req.Content, actualParentID)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.IncrementCommentCount(ctx, tx, postID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		comment.Author = &model.UserSummary{
			ID:          author.ID,
			Username:    author.Username,
			DisplayName: author.DisplayName,
			AvatarURL:   author.AvatarURL,
		}
	}

	log.Printf("[CommentService] User %d commented on post %d", userID, postID)

	// Publish notification event (after commit, best-effort)
	if s.publisher != nil && postAuthorID != userID {
		event := queue.NewPostCommentedEvent(postID, comment.ID, userID, postAuthorID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			log.Printf("[CommentService] Failed to publish PostCommented event: %v", err)
		}
	}

	return comment, nil
}

// Delete removes a comment and decrements the post counter by the number of
// cascade-deleted rows (the comment plus its replies).
func (s *CommentService) Delete(ctx context.Context, commentID, userID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	postID, deletedCount, err := s.commentRepo.Delete(ctx, tx, commentID, userID)
	if err != nil {
		return err
	}

	if err := s.postRepo.IncrementCommentCount(ctx, tx, postID, -deletedCount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	log.Printf("[CommentService] User %d deleted comment %d from post %d (removed=%d)", userID, commentID, postID, deletedCount)
	return nil
}

// Update updates a comment's content.
func (s *CommentService) Update(ctx context.Context, commentID, userID int64, req model.UpdateCommentRequest) (*model.Comment, error) {
	if len(req.Content) == 0 {
		return nil, model.ErrContentRequired
	}
	if utf8.RuneCountInString(req.Content) > model.MaxCommentLength {
		return nil, model.ErrContentTooLong
	}

	comment, err := s.commentRepo.Update(ctx, commentID, userID, req.Content)
	if err != nil {
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		comment.Author = &model.UserSummary{
			ID:          author.ID,
			Username:    author.Username,
			DisplayName: author.DisplayName,
			AvatarURL:   author.AvatarURL,
		}
	}

	log.Printf("[CommentService] User %d updated comment %d", userID, commentID)
	return comment, nil
}

// GetByPostID returns paginated comments for a post. The post author's
// visibility rule applies, so a hidden post's comments read as not found.
func (s *CommentService) GetByPostID(ctx context.Context, postID int64, viewerID *int64, cursor *string, limit int) (*model.CommentListResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	postAuthorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return nil, err
	}
	visible, err := canViewAuthor(ctx, s.followRepo, viewerID, postAuthorID)
	if err != nil {
		return nil, fmt.Errorf("check visibility: %w", err)
	}
	if !visible {
		return nil, model.ErrPostNotFound
	}

	comments, nextCursor, err := s.commentRepo.GetByPostID(ctx, postID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}

	hasMore := nextCursor != nil

	var finalCursor *string
	if hasMore {
		finalCursor = nextCursor
	}

	return &model.CommentListResponse{
		Comments:   comments,
		NextCursor: finalCursor,
		HasMore:    hasMore,
	}, nil
}
