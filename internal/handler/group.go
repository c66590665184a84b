package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"luna/internal/httputil"
	"luna/internal/model"
	"luna/internal/service"
	"luna/internal/transport/http/middleware"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// Create handles POST /groups
// The creator becomes the owner and sole member.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req model.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	group, err := h.groupService.Create(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrGroupNameRequired):
			httputil.WriteBadRequest(w, "Group name is required")
		case errors.Is(err, model.ErrGroupNameTooLong):
			httputil.WriteBadRequest(w, "Group name or description too long")
		default:
			httputil.WriteInternalError(w, "Failed to create group")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, group)
}

// GetByID handles GET /groups/{id}
func (h *GroupHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid group ID")
		return
	}

	group, err := h.groupService.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, model.ErrGroupNotFound) {
			httputil.WriteNotFound(w, "Group not found")
			return
		}
		httputil.WriteInternalError(w, "Failed to get group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, group)
}

// ListMine handles GET /groups
// Lists the groups the authenticated user belongs to.
func (h *GroupHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	groups, err := h.groupService.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to list groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
	})
}

// GetMembers handles GET /groups/{id}/members
// Member roster is visible to members only.
func (h *GroupHandler) GetMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid group ID")
		return
	}

	members, err := h.groupService.GetMembers(r.Context(), groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrGroupNotFound):
			httputil.WriteNotFound(w, "Group not found")
		case errors.Is(err, model.ErrNotGroupMember):
			httputil.WriteForbidden(w, "Only members can view the member list")
		default:
			httputil.WriteInternalError(w, "Failed to get members")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
	})
}

// Invite handles POST /groups/{id}/invites
func (h *GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	inviterID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid group ID")
		return
	}

	var req model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	invite, err := h.groupService.Invite(r.Context(), groupID, inviterID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotInviteSelf):
			httputil.WriteBadRequest(w, "Cannot invite yourself")
		case errors.Is(err, model.ErrGroupNotFound):
			httputil.WriteNotFound(w, "Group not found")
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		case errors.Is(err, model.ErrNotGroupMember):
			httputil.WriteForbidden(w, "Only members can invite")
		case errors.Is(err, model.ErrAlreadyGroupMember):
			httputil.WriteConflict(w, "User is already a member")
		case errors.Is(err, model.ErrInviteAlreadySent):
			httputil.WriteConflict(w, "An invite is already pending for this user")
		default:
			httputil.WriteInternalError(w, "Failed to send invite")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, invite)
}

// ListMyInvites handles GET /invites
// Lists pending invites addressed to the authenticated user.
func (h *GroupHandler) ListMyInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	invites, err := h.groupService.ListInvitesForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to list invites")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"invites": invites,
	})
}

// AcceptInvite handles POST /invites/{id}/accept
func (h *GroupHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	h.decideInvite(w, r, h.groupService.AcceptInvite, "Invite accepted")
}

// DeclineInvite handles POST /invites/{id}/decline
func (h *GroupHandler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	h.decideInvite(w, r, h.groupService.DeclineInvite, "Invite declined")
}

func (h *GroupHandler) decideInvite(
	w http.ResponseWriter,
	r *http.Request,
	decide func(ctx context.Context, inviteID, userID int64) error,
	message string,
) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	inviteID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid invite ID")
		return
	}

	if err := decide(r.Context(), inviteID, userID); err != nil {
		switch {
		case errors.Is(err, model.ErrInviteNotFound):
			httputil.WriteNotFound(w, "Invite not found")
		case errors.Is(err, model.ErrNotInvitee):
			httputil.WriteForbidden(w, "This invite is not addressed to you")
		case errors.Is(err, model.ErrInviteNotPending):
			httputil.WriteConflict(w, "Invite has already been decided")
		default:
			httputil.WriteInternalError(w, "Failed to update invite")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": message,
	})
}

// Leave handles POST /groups/{id}/leave
// An owner cannot leave while other members remain.
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid group ID")
		return
	}

	if err := h.groupService.Leave(r.Context(), groupID, userID); err != nil {
		switch {
		case errors.Is(err, model.ErrGroupNotFound):
			httputil.WriteNotFound(w, "Group not found")
		case errors.Is(err, model.ErrNotGroupMember):
			httputil.WriteConflict(w, "You are not a member of this group")
		case errors.Is(err, model.ErrOwnerCannotLeave):
			httputil.WriteConflict(w, "Transfer ownership or remove members before leaving")
		default:
			httputil.WriteInternalError(w, "Failed to leave group")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Left group",
	})
}
