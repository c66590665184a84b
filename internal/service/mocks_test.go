package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"luna/internal/cache"
	"luna/internal/model"
	"luna/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// In unit tests, we don't want to hit a real database. Instead, we create
// mocks that implement the same interfaces but return controlled responses.
//
// Because the services depend on repository INTERFACES (not the concrete
// sqlx implementations), we can swap in these mocks. Each function field
// lets a test define custom behavior; unset fields fall back to a zero-ish
// default.

type mockUserRepository struct {
	createFn              func(ctx context.Context, user *model.User) error
	getByIDFn             func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn       func(ctx context.Context, username string) (*model.User, error)
	getByEmailFn          func(ctx context.Context, email string) (*model.User, error)
	existsByUsernameFn    func(ctx context.Context, username string) (bool, error)
	existsByEmailFn       func(ctx context.Context, email string) (bool, error)
	markEmailVerifiedFn   func(ctx context.Context, userID int64) error
	searchFn              func(ctx context.Context, query string, limit int) ([]model.UserSummary, error)

	// Track calls for assertions
	createCalls       []*model.User
	markVerifiedCalls []int64
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepository) MarkEmailVerified(ctx context.Context, userID int64) error {
	m.markVerifiedCalls = append(m.markVerifiedCalls, userID)
	if m.markEmailVerifiedFn != nil {
		return m.markEmailVerifiedFn(ctx, userID)
	}
	return nil
}

func (m *mockUserRepository) UpdateAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) error {
	return nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockUserRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

func (m *mockUserRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

type mockFollowRepository struct {
	createFn         func(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error)
	deleteFn         func(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	existsFn         func(ctx context.Context, followerID, followeeID int64) (bool, error)
	getFollowersFn   func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	getFollowingFn   func(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	checkFollowsFn   func(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
	getFollowerIDsFn func(ctx context.Context, userID int64) ([]int64, error)
	getFolloweeIDsFn func(ctx context.Context, userID int64) ([]int64, error)
}

func (m *mockFollowRepository) Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, tx, followerID, followeeID)
	}
	return true, nil
}

func (m *mockFollowRepository) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tx, followerID, followeeID)
	}
	return nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, followerID, followeeID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, followerID, followeeID)
	}
	return false, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	if m.getFollowersFn != nil {
		return m.getFollowersFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
	if m.checkFollowsFn != nil {
		return m.checkFollowsFn(ctx, followerID, followeeIDs)
	}
	return map[int64]bool{}, nil
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.getFollowerIDsFn != nil {
		return m.getFollowerIDsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockFollowRepository) GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.getFolloweeIDsFn != nil {
		return m.getFolloweeIDsFn(ctx, userID)
	}
	return nil, nil
}

type mockPostRepository struct {
	createFn               func(ctx context.Context, userID int64, caption *string, tags []string, mediaURLs []string) (*model.Post, error)
	getByIDFn              func(ctx context.Context, postID int64) (*model.Post, error)
	getByIDsFn             func(ctx context.Context, postIDs []int64) ([]model.Post, error)
	deleteFn               func(ctx context.Context, postID, userID int64) error
	getUserThumbnailsFn    func(ctx context.Context, userID int64, cursor *string, limit int) ([]model.PostThumbnail, *string, error)
	getByAuthorsFn         func(ctx context.Context, authorIDs []int64, tag *string, cursor *time.Time, limit int) ([]model.Post, error)
	getRecentPostsByUserFn func(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error)
	getFeedPostIDsFn       func(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error)
	getAuthorIDFn          func(ctx context.Context, postID int64) (int64, error)
	checkLikesFn           func(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	getPostLikersFn        func(ctx context.Context, postID int64, cursor *string, limit int) ([]model.UserSummary, *string, error)
	existsFn               func(ctx context.Context, postID int64) (bool, error)
	likeFn                 func(ctx context.Context, postID, userID int64) error
	unlikeFn               func(ctx context.Context, postID, userID int64) error

	// Track calls for assertions
	likeCalls          []int64 // postIDs
	unlikeCalls        []int64
	likeCountDeltas    []int
	commentCountDeltas []int
}

func (m *mockPostRepository) Create(ctx context.Context, userID int64, caption *string, tags []string, mediaURLs []string) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, caption, tags, mediaURLs)
	}
	return &model.Post{ID: 1, UserID: userID, Caption: caption, Tags: tags}, nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, postIDs)
	}
	return nil, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, postID, userID int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, postID, userID)
	}
	return nil
}

func (m *mockPostRepository) GetUserThumbnails(ctx context.Context, userID int64, cursor *string, limit int) ([]model.PostThumbnail, *string, error) {
	if m.getUserThumbnailsFn != nil {
		return m.getUserThumbnailsFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockPostRepository) GetByAuthors(ctx context.Context, authorIDs []int64, tag *string, cursor *time.Time, limit int) ([]model.Post, error) {
	if m.getByAuthorsFn != nil {
		return m.getByAuthorsFn(ctx, authorIDs, tag, cursor, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) GetRecentPostsByUser(ctx context.Context, userID int64, limit int) ([]cache.PostScore, error) {
	if m.getRecentPostsByUserFn != nil {
		return m.getRecentPostsByUserFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) GetFeedPostIDs(ctx context.Context, followeeIDs []int64, limit int) ([]cache.PostScore, error) {
	if m.getFeedPostIDsFn != nil {
		return m.getFeedPostIDsFn(ctx, followeeIDs, limit)
	}
	return nil, nil
}

func (m *mockPostRepository) GetAuthorID(ctx context.Context, postID int64) (int64, error) {
	if m.getAuthorIDFn != nil {
		return m.getAuthorIDFn(ctx, postID)
	}
	return 0, model.ErrPostNotFound
}

func (m *mockPostRepository) CheckLikes(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	if m.checkLikesFn != nil {
		return m.checkLikesFn(ctx, userID, postIDs)
	}
	return map[int64]bool{}, nil
}

func (m *mockPostRepository) Like(ctx context.Context, tx *sqlx.Tx, postID, userID int64) error {
	if m.likeFn != nil {
		if err := m.likeFn(ctx, postID, userID); err != nil {
			return err
		}
	}
	m.likeCalls = append(m.likeCalls, postID)
	return nil
}

func (m *mockPostRepository) Unlike(ctx context.Context, tx *sqlx.Tx, postID, userID int64) error {
	if m.unlikeFn != nil {
		if err := m.unlikeFn(ctx, postID, userID); err != nil {
			return err
		}
	}
	m.unlikeCalls = append(m.unlikeCalls, postID)
	return nil
}

func (m *mockPostRepository) GetPostLikers(ctx context.Context, postID int64, cursor *string, limit int) ([]model.UserSummary, *string, error) {
	if m.getPostLikersFn != nil {
		return m.getPostLikersFn(ctx, postID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockPostRepository) IncrementLikeCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	m.likeCountDeltas = append(m.likeCountDeltas, delta)
	return nil
}

func (m *mockPostRepository) IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	m.commentCountDeltas = append(m.commentCountDeltas, delta)
	return nil
}

func (m *mockPostRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, postID)
	}
	return false, nil
}

type mockCommentRepository struct {
	createFn      func(ctx context.Context, postID, userID int64, content string, parentID *int64) (*model.Comment, error)
	updateFn      func(ctx context.Context, commentID, userID int64, content string) (*model.Comment, error)
	deleteFn      func(ctx context.Context, commentID, userID int64) (int64, int, error)
	getByPostIDFn func(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error)
	getByIDFn     func(ctx context.Context, commentID int64) (*model.Comment, error)

	// Track calls for assertions
	createdContents []string
}

func (m *mockCommentRepository) Create(ctx context.Context, tx *sqlx.Tx, postID, userID int64, content string, parentID *int64) (*model.Comment, error) {
	m.createdContents = append(m.createdContents, content)
	if m.createFn != nil {
		return m.createFn(ctx, postID, userID, content, parentID)
	}
	return &model.Comment{ID: 1, PostID: postID, UserID: userID, Content: content, ParentCommentID: parentID}, nil
}

func (m *mockCommentRepository) Update(ctx context.Context, commentID, userID int64, content string) (*model.Comment, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, commentID, userID, content)
	}
	return &model.Comment{ID: commentID, UserID: userID, Content: content}, nil
}

func (m *mockCommentRepository) Delete(ctx context.Context, tx *sqlx.Tx, commentID, userID int64) (int64, int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, commentID, userID)
	}
	return 1, 1, nil
}

func (m *mockCommentRepository) GetByPostID(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error) {
	if m.getByPostIDFn != nil {
		return m.getByPostIDFn(ctx, postID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, commentID)
	}
	return nil, model.ErrCommentNotFound
}

type mockGroupRepository struct {
	createFn                   func(ctx context.Context, ownerID int64, name string, description *string) (*model.Group, error)
	getByIDFn                  func(ctx context.Context, groupID int64) (*model.Group, error)
	getGroupsForUserFn         func(ctx context.Context, userID int64) ([]model.Group, error)
	getMembersFn               func(ctx context.Context, groupID int64) ([]model.GroupMember, error)
	isMemberFn                 func(ctx context.Context, groupID, userID int64) (bool, error)
	createInviteFn             func(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error)
	getInviteByIDFn            func(ctx context.Context, inviteID int64) (*model.GroupInvite, error)
	getPendingInvitesForUserFn func(ctx context.Context, userID int64) ([]model.GroupInvite, error)
	decideInviteFn             func(ctx context.Context, tx *sqlx.Tx, inviteID int64, status string) error
}

func (m *mockGroupRepository) Create(ctx context.Context, ownerID int64, name string, description *string) (*model.Group, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, name, description)
	}
	return &model.Group{ID: 1, OwnerID: ownerID, Name: name, Description: description, MemberCount: 1}, nil
}

func (m *mockGroupRepository) GetByID(ctx context.Context, groupID int64) (*model.Group, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, groupID)
	}
	return nil, model.ErrGroupNotFound
}

func (m *mockGroupRepository) GetGroupsForUser(ctx context.Context, userID int64) ([]model.Group, error) {
	if m.getGroupsForUserFn != nil {
		return m.getGroupsForUserFn(ctx, userID)
	}
	return []model.Group{}, nil
}

func (m *mockGroupRepository) GetMembers(ctx context.Context, groupID int64) ([]model.GroupMember, error) {
	if m.getMembersFn != nil {
		return m.getMembersFn(ctx, groupID)
	}
	return []model.GroupMember{}, nil
}

func (m *mockGroupRepository) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	if m.isMemberFn != nil {
		return m.isMemberFn(ctx, groupID, userID)
	}
	return false, nil
}

func (m *mockGroupRepository) AddMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64, role string) (bool, error) {
	return true, nil
}

func (m *mockGroupRepository) RemoveMember(ctx context.Context, tx *sqlx.Tx, groupID, userID int64) error {
	return nil
}

func (m *mockGroupRepository) IncrementMemberCount(ctx context.Context, tx *sqlx.Tx, groupID int64, delta int) error {
	return nil
}

func (m *mockGroupRepository) CreateInvite(ctx context.Context, groupID, inviterID, inviteeID int64) (*model.GroupInvite, error) {
	if m.createInviteFn != nil {
		return m.createInviteFn(ctx, groupID, inviterID, inviteeID)
	}
	return &model.GroupInvite{ID: 1, GroupID: groupID, InviterID: inviterID, InviteeID: inviteeID, Status: model.InviteStatusPending}, nil
}

func (m *mockGroupRepository) GetInviteByID(ctx context.Context, inviteID int64) (*model.GroupInvite, error) {
	if m.getInviteByIDFn != nil {
		return m.getInviteByIDFn(ctx, inviteID)
	}
	return nil, model.ErrInviteNotFound
}

func (m *mockGroupRepository) GetPendingInvitesForUser(ctx context.Context, userID int64) ([]model.GroupInvite, error) {
	if m.getPendingInvitesForUserFn != nil {
		return m.getPendingInvitesForUserFn(ctx, userID)
	}
	return []model.GroupInvite{}, nil
}

func (m *mockGroupRepository) DecideInvite(ctx context.Context, tx *sqlx.Tx, inviteID int64, status string) error {
	if m.decideInviteFn != nil {
		return m.decideInviteFn(ctx, tx, inviteID, status)
	}
	return nil
}

// =============================================================================
// MOCK CACHE / MAILER
// =============================================================================

// mockFeedCache is an in-memory FeedCache. Entries are kept sorted newest
// first so GetFeed mirrors the ZSET's descending order.
type mockFeedCache struct {
	feeds map[int64][]cache.PostScore

	existsFn  func(ctx context.Context, userID int64) (bool, error)
	getFeedFn func(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error)
}

func newMockFeedCache() *mockFeedCache {
	return &mockFeedCache{feeds: make(map[int64][]cache.PostScore)}
}

func (m *mockFeedCache) AddPost(ctx context.Context, userID, postID int64, timestamp int64) error {
	m.feeds[userID] = append(m.feeds[userID], cache.PostScore{PostID: postID, Timestamp: timestamp})
	m.sortFeed(userID)
	return nil
}

func (m *mockFeedCache) RemovePost(ctx context.Context, userID, postID int64) error {
	entries := m.feeds[userID]
	kept := entries[:0]
	for _, e := range entries {
		if e.PostID != postID {
			kept = append(kept, e)
		}
	}
	m.feeds[userID] = kept
	return nil
}

func (m *mockFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, userID, cursorScore, limit)
	}

	var ids []int64
	var scores []float64
	for _, e := range m.feeds[userID] {
		if cursorScore != nil && float64(e.Timestamp) >= *cursorScore {
			continue
		}
		ids = append(ids, e.PostID)
		scores = append(scores, float64(e.Timestamp))
		if len(ids) == limit {
			break
		}
	}
	return ids, scores, nil
}

func (m *mockFeedCache) WarmCache(ctx context.Context, userID int64, posts []cache.PostScore) error {
	m.feeds[userID] = append([]cache.PostScore{}, posts...)
	m.sortFeed(userID)
	return nil
}

func (m *mockFeedCache) RemoveAuthorPosts(ctx context.Context, userID int64, postIDs []int64) error {
	for _, id := range postIDs {
		if err := m.RemovePost(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userID)
	}
	_, ok := m.feeds[userID]
	return ok, nil
}

func (m *mockFeedCache) sortFeed(userID int64) {
	entries := m.feeds[userID]
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Timestamp > entries[j-1].Timestamp; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// mockOTPStore simulates the Redis OTP store with a single live code per email.
type mockOTPStore struct {
	codes map[string]string

	setFn    func(ctx context.Context, email, code string, ttl time.Duration) error
	verifyFn func(ctx context.Context, email, code string) error
}

func newMockOTPStore() *mockOTPStore {
	return &mockOTPStore{codes: make(map[string]string)}
}

func (m *mockOTPStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, email, code, ttl)
	}
	m.codes[email] = code
	return nil
}

func (m *mockOTPStore) Verify(ctx context.Context, email, code string) error {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, email, code)
	}
	stored, ok := m.codes[email]
	if !ok {
		return model.ErrOTPExpired
	}
	if stored != code {
		return model.ErrInvalidOTP
	}
	delete(m.codes, email)
	return nil
}

// mockPublisher records published events instead of hitting Redis Streams.
type mockPublisher struct {
	events []queue.FeedEvent
	failFn func(stream string, event queue.FeedEvent) error
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.FeedEvent) (string, error) {
	if m.failFn != nil {
		if err := m.failFn(stream, event); err != nil {
			return "", err
		}
	}
	m.events = append(m.events, event)
	return "0-0", nil
}

// =============================================================================
// FAKE SQL DRIVER
// =============================================================================
//
// The services open transactions themselves and hand the *sqlx.Tx to the
// repositories. The repositories are mocked here, so the transaction never
// reaches a database; this driver just lets BeginTxx/Commit/Rollback
// succeed so the transactional code paths run in unit tests.

type nopDriver struct{}

func (nopDriver) Open(name string) (driver.Conn, error) { return nopConn{}, nil }

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("nop driver does not execute statements")
}
func (nopConn) Close() error              { return nil }
func (nopConn) Begin() (driver.Tx, error) { return nopTx{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

var registerNopDriver sync.Once

// newTestDB returns a *sqlx.DB whose transactions are no-ops.
func newTestDB() *sqlx.DB {
	registerNopDriver.Do(func() {
		sql.Register("nop", nopDriver{})
	})
	db, err := sql.Open("nop", "")
	if err != nil {
		panic(err)
	}
	return sqlx.NewDb(db, "postgres")
}

// mockMailer records sent codes instead of talking SMTP.
type mockMailer struct {
	sent   map[string]string // email -> last code
	sendFn func(to, code string) error
}

func newMockMailer() *mockMailer {
	return &mockMailer{sent: make(map[string]string)}
}

func (m *mockMailer) SendOTP(to, code string) error {
	if m.sendFn != nil {
		return m.sendFn(to, code)
	}
	m.sent[to] = code
	return nil
}
