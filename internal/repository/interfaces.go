package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"luna/internal/cache"
	"luna/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	MarkEmailVerified(ctx context.Context, userID int64) error
	UpdateAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) error
	Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
	IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
	IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	Exists(ctx context.Context, followerID, followeeID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, userID int64, caption *string, tags []string, mediaURLs []string) (*model.Post, error)
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error)
	Delete(ctx context.Context, postID, userID int64) error
	GetUserThumbnails(ctx context.Context, userID int64, cursor *string, limit int) ([]model.PostThumbnail, *string, error)
	// GetByAuthors returns posts authored by any of the given users, newest
	// first, optionally restricted to a tag and to posts older than the
	// cursor time. Stable descending order with ID as tiebreaker.
	GetByAuthors(ctx context.Context, authorIDs []int64, tag *string, cursor *time.Time, limit int) ([]model.Post, error)
	GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error)
	GetFeedPostIDs(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error)
	GetAuthorID(ctx context.Context, postID int64) (int64, error)
	CheckLikes(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	Like(ctx context.Context, tx *sqlx.Tx, postID, userID int64) error
	Unlike(ctx context.Context, tx *sqlx.Tx, postID, userID int64) error
	GetPostLikers(ctx context.Context, postID int64, cursor *string, limit int) ([]model.UserSummary, *string, error)
	IncrementLikeCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
	IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
	Exists(ctx context.Context, postID int64) (bool, error)
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, postID, userID int64, content string, parentID *int64) (*model.Comment, error)
	Update(ctx context.Context, commentID, userID int64, content string) (*model.Comment, error)
	Delete(ctx context.Context, tx *sqlx.Tx, commentID, userID int64) (postID int64, deletedCount int, err error)
	GetByPostID(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error)
	GetByID(ctx context.Context, commentID int64) (*model.Comment, error)
}

type GroupRepository interface {
	Create(ctx context.Context, ownerID int64, name string, description *string) (*model.Group, error)
	GetByID(ctx context.Context, groupID int64) (*model.Group, error)
	GetGroupsForUser(ctx context.Context, userID int64) ([]model.Group, error)
	GetMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	AddMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, role string) (bool, error)
	RemoveMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error
	IncrementMemberCount(ctx context.Context, tx *sqlx.Tx, groupID int64, delta int) error

	CreateInvite(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error)
	GetInviteByID(ctx context.Context, inviteID int64) (*model.GroupInvite, error)
	GetPendingInvitesForUser(ctx context.Context, userID int64) ([]model.GroupInvite, error)
	// DecideInvite flips a pending invite to accepted/declined. Returns
	// model.ErrInviteNotPending if the invite was already decided.
	DecideInvite(ctx context.Context, tx *sqlx.Tx, inviteID int64, status string) error
}

type NotificationRepository interface {
	Create(ctx context.Context, userID, actorID int64, notifType string, postID, commentID, groupID *int64) error
	// GetDirectNotifications returns non-aggregated notifications (follows,
	// group invites) plus their unread count.
	GetDirectNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error)
	// GetAggregatedNotifications returns likes/comments grouped by post plus
	// their unread count.
	GetAggregatedNotifications(ctx context.Context, userID int64, limit int) ([]model.AggregatedNotification, int, error)
	MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error
	MarkAllAsRead(ctx context.Context, userID int64) error
	GetUnreadCount(ctx context.Context, userID int64) (int, error)
}
