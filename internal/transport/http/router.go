package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"luna/internal/handler"
	"luna/internal/httputil"
	authmw "luna/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	FeedHandler         *handler.FeedHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	GroupHandler        *handler.GroupHandler
	NotificationHandler *handler.NotificationHandler
	MediaHandler        *handler.MediaHandler
	JWTSecret           string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Brute-force protection on credential and OTP endpoints
	authLimiter := authmw.NewRateLimiter(10, time.Minute, 5)

	optionalAuth := authmw.OptionalAuthMiddleware(cfg.JWTSecret)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.With(authLimiter.Limit).Post("/register", cfg.AuthHandler.Register)
		r.With(authLimiter.Limit).Post("/login", cfg.AuthHandler.Login)
		r.With(authLimiter.Limit).Post("/verify", cfg.AuthHandler.VerifyEmail)
		r.With(authLimiter.Limit).Post("/resend-otp", cfg.AuthHandler.ResendOTP)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	// Home feed works for anonymous viewers too (they get an empty feed)
	r.With(optionalAuth).Get("/feed", cfg.FeedHandler.GetHomeFeed)
	r.With(optionalAuth).Get("/tags/{tag}/posts", cfg.FeedHandler.GetTagPosts)

	// Public user endpoints with optional authentication
	r.Route("/users", func(r chi.Router) {
		r.With(optionalAuth).Get("/search", cfg.UserHandler.Search)
		r.With(optionalAuth).Get("/{id}", cfg.UserHandler.GetProfile)
		r.With(optionalAuth).Get("/{id}/feed", cfg.FeedHandler.GetProfileFeed)
		r.With(optionalAuth).Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
		r.With(optionalAuth).Get("/{id}/following", cfg.FollowHandler.GetFollowing)
		r.With(optionalAuth).Get("/{id}/posts", cfg.PostHandler.GetUserPosts)
	})

	// Public post endpoints with optional authentication
	r.With(optionalAuth).Get("/posts/{id}", cfg.PostHandler.GetByID)
	r.With(optionalAuth).Get("/posts/{id}/comments", cfg.CommentHandler.GetByPostID)

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		// Current user endpoints
		r.Get("/me", cfg.AuthHandler.Me)

		// Auth actions that require authentication
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/logout-all", cfg.AuthHandler.LogoutAll)

		// Follow/unfollow actions require authentication
		r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
		r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)

		// Post endpoints
		r.Post("/posts", cfg.PostHandler.Create)
		r.Delete("/posts/{id}", cfg.PostHandler.Delete)
		r.Post("/posts/{id}/like", cfg.PostHandler.Like)
		r.Delete("/posts/{id}/like", cfg.PostHandler.Unlike)
		r.Get("/posts/{id}/likes", cfg.PostHandler.GetPostLikers)
		r.Post("/posts/{id}/comments", cfg.CommentHandler.Create)

		// Comment endpoints
		r.Patch("/comments/{id}", cfg.CommentHandler.Update)
		r.Delete("/comments/{id}", cfg.CommentHandler.Delete)

		// Group endpoints
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", cfg.GroupHandler.Create)
			r.Get("/", cfg.GroupHandler.ListMine)
			r.Get("/{id}", cfg.GroupHandler.GetByID)
			r.Get("/{id}/members", cfg.GroupHandler.GetMembers)
			r.Post("/{id}/invites", cfg.GroupHandler.Invite)
			r.Post("/{id}/leave", cfg.GroupHandler.Leave)
		})

		// Invite endpoints
		r.Route("/invites", func(r chi.Router) {
			r.Get("/", cfg.GroupHandler.ListMyInvites)
			r.Post("/{id}/accept", cfg.GroupHandler.AcceptInvite)
			r.Post("/{id}/decline", cfg.GroupHandler.DeclineInvite)
		})

		// Notification endpoints
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Post("/read", cfg.NotificationHandler.MarkRead)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
		})

		// Media endpoints (direct-to-R2 uploads)
		r.Post("/media/avatar", cfg.MediaHandler.UploadAvatar)
		r.Post("/media/posts/presign", cfg.MediaHandler.PresignPostUpload)
		r.Post("/media/posts/presign/batch", cfg.MediaHandler.PresignPostUploadBatch)
	})

	return r
}
