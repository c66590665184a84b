package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"luna/internal/httputil"
	"luna/internal/model"
	"luna/internal/service"
	"luna/internal/transport/http/middleware"
)

type FeedHandler struct {
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// GetHomeFeed handles GET /feed?tag=...&cursor=...&limit=...
// Anonymous viewers get an empty feed, never an error.
func (h *FeedHandler) GetHomeFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetOptionalUserID(r.Context())

	var tag *string
	if t := r.URL.Query().Get("tag"); t != "" {
		tag = &t
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	limit := service.FeedDefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid limit")
			return
		}
		limit = parsed
	}

	feed, err := h.feedService.GetHomeFeed(r.Context(), viewerID, tag, cursor, limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor")
			return
		}
		httputil.WriteInternalError(w, "Failed to get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}

// GetTagPosts handles GET /tags/{tag}/posts. It is the home feed narrowed
// to one tag: results stay scoped to the viewer's follow graph, so private
// profiles never leak through a tag page. Anonymous viewers get an empty list.
func (h *FeedHandler) GetTagPosts(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetOptionalUserID(r.Context())

	tag := chi.URLParam(r, "tag")

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	limit := service.FeedDefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid limit")
			return
		}
		limit = parsed
	}

	feed, err := h.feedService.GetHomeFeed(r.Context(), viewerID, &tag, cursor, limit)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCursor) {
			httputil.WriteBadRequest(w, "Invalid cursor")
			return
		}
		httputil.WriteInternalError(w, "Failed to get tag posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}

// GetProfileFeed handles GET /users/{id}/feed?tag=...
// The response carries a visibility tag: a private profile is not the
// same thing as a profile with no posts.
func (h *FeedHandler) GetProfileFeed(w http.ResponseWriter, r *http.Request) {
	profileUserID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	viewerID := middleware.GetOptionalUserID(r.Context())

	var tag *string
	if t := r.URL.Query().Get("tag"); t != "" {
		tag = &t
	}

	feed, err := h.feedService.GetProfileFeed(r.Context(), viewerID, profileUserID, tag)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		httputil.WriteInternalError(w, "Failed to get profile feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}
