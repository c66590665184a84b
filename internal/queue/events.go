package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the feed stream
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"
	EventPostLiked      = "post_liked"
	EventPostCommented  = "post_commented"
	EventGroupInvited   = "group_invited"
)

// Stream names
const (
	StreamFeed = "stream:feed"
)

// Consumer group name for feed workers
const (
	ConsumerGroupFeed = "feed_workers"
)

// FeedEvent represents an event published to the feed stream.
// All feed-related events share this structure.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Post events (PostCreated, PostDeleted, PostLiked, PostCommented)
	PostID   int64 `json:"post_id,omitempty"`
	AuthorID int64 `json:"author_id,omitempty"`

	// Follow events (UserFollowed, UserUnfollowed)
	FollowerID int64 `json:"follower_id,omitempty"`
	FolloweeID int64 `json:"followee_id,omitempty"`

	// Notification events
	ActorID     int64  `json:"actor_id,omitempty"`
	RecipientID int64  `json:"recipient_id,omitempty"`
	CommentID   *int64 `json:"comment_id,omitempty"`
	GroupID     int64  `json:"group_id,omitempty"`
}

// NewPostCreatedEvent creates an event for when a user creates a post.
// Worker fans the post out to all followers' feed caches.
func NewPostCreatedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{
		Type:      EventPostCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewPostDeletedEvent creates an event for when a user deletes a post.
// Worker removes the post from all followers' feed caches.
func NewPostDeletedEvent(postID, authorID int64) FeedEvent {
	return FeedEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewUserFollowedEvent creates an event for when a user follows another.
// Worker backfills recent posts from the followee into the follower's feed
// cache and creates a follow notification.
func NewUserFollowedEvent(followerID, followeeID int64) FeedEvent {
	return FeedEvent{
		Type:       EventUserFollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewUserUnfollowedEvent creates an event for when a user unfollows another.
// Worker removes the followee's posts from the follower's feed cache.
func NewUserUnfollowedEvent(followerID, followeeID int64) FeedEvent {
	return FeedEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewPostLikedEvent creates an event for notifying a post's author of a like.
func NewPostLikedEvent(postID, actorID, recipientID int64) FeedEvent {
	return FeedEvent{
		Type:        EventPostLiked,
		Timestamp:   time.Now().Unix(),
		PostID:      postID,
		ActorID:     actorID,
		RecipientID: recipientID,
	}
}

// NewPostCommentedEvent creates an event for notifying a post's author of a comment.
func NewPostCommentedEvent(postID, commentID, actorID, recipientID int64) FeedEvent {
	return FeedEvent{
		Type:        EventPostCommented,
		Timestamp:   time.Now().Unix(),
		PostID:      postID,
		CommentID:   &commentID,
		ActorID:     actorID,
		RecipientID: recipientID,
	}
}

// NewGroupInvitedEvent creates an event for notifying a user of a group invite.
func NewGroupInvitedEvent(groupID, inviterID, inviteeID int64) FeedEvent {
	return FeedEvent{
		Type:        EventGroupInvited,
		Timestamp:   time.Now().Unix(),
		GroupID:     groupID,
		ActorID:     inviterID,
		RecipientID: inviteeID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so the event is serialized to JSON
// in a "data" field with the type duplicated for quick inspection.
func (e FeedEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFeedEvent parses a FeedEvent from Redis stream message values.
func ParseFeedEvent(values map[string]interface{}) (FeedEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FeedEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FeedEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FeedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
