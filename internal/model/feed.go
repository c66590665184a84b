package model

import "errors"

// ErrInvalidCursor is returned when a pagination cursor cannot be parsed.
var ErrInvalidCursor = errors.New("invalid cursor")

// ProfileVisibility tags the outcome of a profile feed lookup. A private
// profile is a distinct result, never conflated with an empty post list.
type ProfileVisibility string

const (
	// ProfileVisible means the viewer may see the profile's posts.
	ProfileVisible ProfileVisibility = "visible"

	// ProfilePrivate means the viewer is anonymous or does not follow the
	// profile owner. Callers should render a privacy notice, not "no posts".
	ProfilePrivate ProfileVisibility = "private"
)

// ProfileFeed is the tagged result of viewing one user's posts.
// Posts is only populated when Visibility is ProfileVisible.
type ProfileFeed struct {
	Visibility ProfileVisibility `json:"visibility"`
	Posts      []FeedPost        `json:"posts,omitempty"`
}

// ProfileGrid is the tagged thumbnail grid for a profile. It is guarded by
// the same visibility rule as ProfileFeed: thumbnails only when the viewer
// is the owner or a follower.
type ProfileGrid struct {
	Visibility ProfileVisibility `json:"visibility"`
	Posts      []PostThumbnail   `json:"posts,omitempty"`
	NextCursor *string           `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}
