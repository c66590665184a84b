package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"luna/internal/httputil"
	"luna/internal/model"
	"luna/internal/service"
	"luna/internal/transport/http/middleware"
)

type MediaHandler struct {
	mediaService *service.MediaService
	userService  *service.UserService
}

func NewMediaHandler(mediaService *service.MediaService, userService *service.UserService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService, userService: userService}
}

// UploadAvatar handles POST /media/avatar
// Replaces the authenticated user's avatar with the uploaded image.
func (h *MediaHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, model.MaxAvatarSizeBytes+1024*1024)
	if err := r.ParseMultipartForm(model.MaxAvatarSizeBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		if strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Avatar exceeds 5MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteBadRequest(w, "avatar file is required")
		return
	}
	defer file.Close()

	upload, err := h.mediaService.UploadAvatar(r.Context(), file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Avatar exceeds 5MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			httputil.WriteInternalError(w, "Failed to upload avatar")
		}
		return
	}

	user, err := h.userService.UpdateAvatar(r.Context(), userID, upload.URL, upload.Key)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to update avatar")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// PresignPostUpload handles POST /media/presign
// The client uploads bytes directly to R2 and then references the
// returned public URL when creating a post.
func (h *MediaHandler) PresignPostUpload(w http.ResponseWriter, r *http.Request) {
	var req model.PresignPostUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.ContentType == "" {
		httputil.WriteBadRequest(w, "content_type is required")
		return
	}
	if req.FileSize > model.MaxPostMediaSize {
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Media exceeds 10MB limit")
		return
	}

	resp, err := h.mediaService.PresignPostUpload(r.Context(), req.ContentType)
	if err != nil {
		if errors.Is(err, model.ErrInvalidImageType) {
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
			return
		}
		httputil.WriteInternalError(w, "Failed to presign upload")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// PresignPostUploadBatch handles POST /media/presign-batch
// One presigned URL per media item, all-or-nothing validation.
func (h *MediaHandler) PresignPostUploadBatch(w http.ResponseWriter, r *http.Request) {
	var req model.PresignPostUploadBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if len(req.Items) == 0 {
		httputil.WriteBadRequest(w, "items is required")
		return
	}
	if len(req.Items) > model.MaxPostMediaCount {
		httputil.WriteBadRequest(w, "A post can have at most 10 media items")
		return
	}

	for _, item := range req.Items {
		if !model.IsAllowedImageType(item.ContentType) {
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
			return
		}
		if item.FileSize > model.MaxPostMediaSize {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Media exceeds 10MB limit")
			return
		}
	}

	resp := model.PresignPostUploadBatchResponse{
		Items: make([]model.PresignPostUploadResponse, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		presigned, err := h.mediaService.PresignPostUpload(r.Context(), item.ContentType)
		if err != nil {
			httputil.WriteInternalError(w, "Failed to presign uploads")
			return
		}
		resp.Items = append(resp.Items, *presigned)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
