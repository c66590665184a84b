package service

import (
	"context"

	"luna/internal/model"
	"luna/internal/repository"
)

// NotificationService handles in-app notifications. Clients poll the list
// endpoint; likes and comments are aggregated by post, follows and group
// invites are reported individually.
type NotificationService struct {
	notifRepo repository.NotificationRepository
}

func NewNotificationService(notifRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifRepo: notifRepo}
}

// GetNotifications returns the user's notification inbox. Unread count is
// computed from the fetched data, no extra query.
func (s *NotificationService) GetNotifications(ctx context.Context, userID int64, limit int) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	direct, directUnread, err := s.notifRepo.GetDirectNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	aggregated, aggUnread, err := s.notifRepo.GetAggregatedNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Direct:      direct,
		Aggregated:  aggregated,
		UnreadCount: directUnread + aggUnread,
	}, nil
}

// MarkAsRead marks specific notifications as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error {
	return s.notifRepo.MarkAsRead(ctx, userID, notificationIDs)
}

// MarkAllAsRead marks all notifications for a user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.notifRepo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the number of unread notifications for badge display.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifRepo.GetUnreadCount(ctx, userID)
}

// CreateNotification records a notification. Called by the feed worker when
// it consumes like/comment/follow/invite events. Self-notifications are
// dropped silently.
func (s *NotificationService) CreateNotification(
	ctx context.Context,
	userID, actorID int64,
	notifType string,
	postID, commentID, groupID *int64,
) error {
	if userID == actorID {
		return nil
	}
	return s.notifRepo.Create(ctx, userID, actorID, notifType, postID, commentID, groupID)
}
