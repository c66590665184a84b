package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"luna/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a new notification.
func (r *notificationRepository) Create(ctx context.Context, userID, actorID int64, notifType string, postID, commentID, groupID *int64) error {
	query := `
		INSERT INTO notifications (user_id, actor_id, type, post_id, comment_id, group_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, userID, actorID, notifType, postID, commentID, groupID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetDirectNotifications returns follows and group invites with actor info.
// These are shown individually rather than aggregated.
func (r *notificationRepository) GetDirectNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error) {
	query := `
		SELECT n.id, n.user_id, n.actor_id, n.type, n.post_id, n.comment_id, n.group_id, n.is_read, n.created_at,
		       u.id as "actor.id", u.username as "actor.username",
		       u.display_name as "actor.display_name", u.avatar_url as "actor.avatar_url"
		FROM notifications n
		JOIN users u ON u.id = n.actor_id
		WHERE n.user_id = $1 AND n.type IN ('follow', 'group_invite')
		ORDER BY n.created_at DESC
		LIMIT $2
	`

	type notifRow struct {
		ID             int64     `db:"id"`
		UserID         int64     `db:"user_id"`
		ActorID        int64     `db:"actor_id"`
		Type           string    `db:"type"`
		PostID         *int64    `db:"post_id"`
		CommentID      *int64    `db:"comment_id"`
		GroupID        *int64    `db:"group_id"`
		IsRead         bool      `db:"is_read"`
		CreatedAt      time.Time `db:"created_at"`
		ActorIDJoined  int64     `db:"actor.id"`
		ActorUsername  string    `db:"actor.username"`
		ActorDisplay   *string   `db:"actor.display_name"`
		ActorAvatarURL *string   `db:"actor.avatar_url"`
	}

	var rows []notifRow
	err := r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("get direct notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	unreadCount := 0
	for i, row := range rows {
		if !row.IsRead {
			unreadCount++
		}
		notifications[i] = model.Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			ActorID:   row.ActorID,
			Type:      row.Type,
			PostID:    row.PostID,
			CommentID: row.CommentID,
			GroupID:   row.GroupID,
			IsRead:    row.IsRead,
			CreatedAt: row.CreatedAt,
			Actor: &model.UserSummary{
				ID:          row.ActorIDJoined,
				Username:    row.ActorUsername,
				DisplayName: row.ActorDisplay,
				AvatarURL:   row.ActorAvatarURL,
			},
		}
	}

	return notifications, unreadCount, nil
}

// GetAggregatedNotifications returns likes/comments grouped by post for
// "user1 and 5 others liked your post" display.
func (r *notificationRepository) GetAggregatedNotifications(ctx context.Context, userID int64, limit int) ([]model.AggregatedNotification, int, error) {
	query := `
		SELECT
			n.type,
			n.post_id,
			array_agg(n.actor_id ORDER BY n.created_at DESC) as actor_ids,
			COUNT(*) as total_count,
			MAX(n.created_at) as latest_at,
			bool_and(n.is_read) as is_read
		FROM notifications n
		WHERE n.user_id = $1 AND n.type IN ('like', 'comment')
		GROUP BY n.type, n.post_id
		ORDER BY latest_at DESC
		LIMIT $2
	`

	type aggRow struct {
		Type       string        `db:"type"`
		PostID     *int64        `db:"post_id"`
		ActorIDs   pq.Int64Array `db:"actor_ids"`
		TotalCount int           `db:"total_count"`
		LatestAt   time.Time     `db:"latest_at"`
		IsRead     bool          `db:"is_read"`
	}

	var rows []aggRow
	err := r.db.SelectContext(ctx, &rows, query, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("get aggregated notifications: %w", err)
	}

	if len(rows) == 0 {
		return []model.AggregatedNotification{}, 0, nil
	}

	// Only the first few actors per group are displayed.
	const displayActors = 3

	actorIDSet := make(map[int64]bool)
	unreadCount := 0
	for _, row := range rows {
		for i, id := range row.ActorIDs {
			if i >= displayActors {
				break
			}
			actorIDSet[id] = true
		}
		if !row.IsRead {
			unreadCount += row.TotalCount
		}
	}

	actorIDs := make([]int64, 0, len(actorIDSet))
	for id := range actorIDSet {
		actorIDs = append(actorIDs, id)
	}

	actorMap := make(map[int64]model.UserSummary)
	if len(actorIDs) > 0 {
		userQuery := `
			SELECT id, username, display_name, avatar_url
			FROM users
			WHERE id = ANY($1)
		`
		var users []model.UserSummary
		err = r.db.SelectContext(ctx, &users, userQuery, pq.Array(actorIDs))
		if err != nil {
			return nil, 0, fmt.Errorf("get actors: %w", err)
		}
		for _, u := range users {
			actorMap[u.ID] = u
		}
	}

	result := make([]model.AggregatedNotification, len(rows))
	for i, row := range rows {
		actors := make([]model.UserSummary, 0, displayActors)
		for j, id := range row.ActorIDs {
			if j >= displayActors {
				break
			}
			if actor, ok := actorMap[id]; ok {
				actors = append(actors, actor)
			}
		}

		result[i] = model.AggregatedNotification{
			Type:       row.Type,
			PostID:     row.PostID,
			Actors:     actors,
			TotalCount: row.TotalCount,
			LatestAt:   row.LatestAt,
			IsRead:     row.IsRead,
		}
	}

	return result, unreadCount, nil
}

// MarkAsRead marks specific notifications as read.
func (r *notificationRepository) MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error {
	if len(notificationIDs) == 0 {
		return nil
	}

	query := `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1 AND id = ANY($2)
	`
	_, err := r.db.ExecContext(ctx, query, userID, pq.Array(notificationIDs))
	if err != nil {
		return fmt.Errorf("mark notifications as read: %w", err)
	}
	return nil
}

// MarkAllAsRead marks all notifications for a user as read.
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID int64) error {
	query := `
		UPDATE notifications
		SET is_read = true
		WHERE user_id = $1 AND is_read = false
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications as read: %w", err)
	}
	return nil
}

// GetUnreadCount returns the count of unread notifications.
func (r *notificationRepository) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = false
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("get unread count: %w", err)
	}
	return count, nil
}
