package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"luna/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a new comment inside the caller's transaction so the
// post's comment counter can be updated atomically alongside it.
func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, postID, userID int64, content string, parentID *int64) (*model.Comment, error) {
	query := `
		INSERT INTO comments (post_id, user_id, content, parent_comment_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, post_id, user_id, content, parent_comment_id, created_at
	`
	var comment model.Comment
	err := tx.GetContext(ctx, &comment, query, postID, userID, content, parentID)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &comment, nil
}

// Update updates a comment's content. Only the owner can update.
func (r *commentRepository) Update(ctx context.Context, commentID, userID int64, content string) (*model.Comment, error) {
	query := `
		UPDATE comments
		SET content = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, post_id, user_id, content, parent_comment_id, created_at
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, content, commentID, userID)
	if err == sql.ErrNoRows {
		// Distinguish "not yours" from "gone"
		var exists bool
		r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID)
		if exists {
			return nil, model.ErrNotCommentOwner
		}
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return &comment, nil
}

// Delete removes a comment and its replies (ON DELETE CASCADE). Returns the
// post ID and total removed row count so the caller can decrement the
// post's comment counter accurately.
func (r *commentRepository) Delete(ctx context.Context, tx *sqlx.Tx, commentID, userID int64) (postID int64, deletedCount int, err error) {
	var comment struct {
		PostID int64 `db:"post_id"`
		UserID int64 `db:"user_id"`
	}
	err = tx.GetContext(ctx, &comment, `
		SELECT post_id, user_id FROM comments WHERE id = $1
	`, commentID)
	if err == sql.ErrNoRows {
		return 0, 0, model.ErrCommentNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get comment: %w", err)
	}

	if comment.UserID != userID {
		return 0, 0, model.ErrNotCommentOwner
	}

	// Count before deleting, the cascade removes the reply rows.
	err = tx.GetContext(ctx, &deletedCount, `
		SELECT COUNT(*) FROM comments
		WHERE id = $1 OR parent_comment_id = $1
	`, commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("count comments to delete: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete comment: %w", err)
	}

	return comment.PostID, deletedCount, nil
}

// GetByPostID returns paginated comments for a post with authors joined.
func (r *commentRepository) GetByPostID(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error) {
	const selectColumns = `
		SELECT c.id, c.post_id, c.user_id, c.content, c.parent_comment_id, c.created_at,
		       u.id as "author.id", u.username as "author.username",
		       u.display_name as "author.display_name", u.avatar_url as "author.avatar_url"
		FROM comments c
		JOIN users u ON u.id = c.user_id
	`

	var query string
	var args []interface{}

	if cursor == nil {
		query = selectColumns + `
			WHERE c.post_id = $1
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $2
		`
		args = []interface{}{postID, limit + 1}
	} else {
		ts, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = selectColumns + `
			WHERE c.post_id = $1 AND (c.created_at, c.id) < ($2, $3)
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $4
		`
		args = []interface{}{postID, ts, id, limit + 1}
	}

	type commentRow struct {
		ID              int64     `db:"id"`
		PostID          int64     `db:"post_id"`
		UserID          int64     `db:"user_id"`
		Content         string    `db:"content"`
		ParentCommentID *int64    `db:"parent_comment_id"`
		CreatedAt       time.Time `db:"created_at"`
		AuthorID        int64     `db:"author.id"`
		AuthorUsername  string    `db:"author.username"`
		AuthorDisplay   *string   `db:"author.display_name"`
		AuthorAvatar    *string   `db:"author.avatar_url"`
	}

	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("get comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = model.Comment{
			ID:              row.ID,
			PostID:          row.PostID,
			UserID:          row.UserID,
			Content:         row.Content,
			ParentCommentID: row.ParentCommentID,
			CreatedAt:       row.CreatedAt,
			Author: &model.UserSummary{
				ID:          row.AuthorID,
				Username:    row.AuthorUsername,
				DisplayName: row.AuthorDisplay,
				AvatarURL:   row.AuthorAvatar,
			},
		}
	}

	var nextCursor *string
	if len(comments) > limit {
		comments = comments[:limit]
		last := comments[len(comments)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		nextCursor = &c
	}

	return comments, nextCursor, nil
}

// GetByID retrieves a single comment.
func (r *commentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	query := `
		SELECT id, post_id, user_id, content, parent_comment_id, created_at
		FROM comments
		WHERE id = $1
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, commentID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}
