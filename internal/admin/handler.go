package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/hakangoksu/user-management/internal/auth"
	"github.com/hakangoksu/user-management/internal/httputil"
	"github.com/hakangoksu/user-management/internal/logging"
)

// Handler contains HTTP handlers for the moderation surface
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// BulkRequest carries the selected user ids for a bulk action
type BulkRequest struct {
	UserIDs []string `json:"user_ids"`
}

// ActionResponse is the common shape for moderation action results.
// Redirect tells the UI the caller's own session was terminated.
type ActionResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Affected int    `json:"affected,omitempty"`
	Redirect bool   `json:"redirect,omitempty"`
}

// ListUsers returns all users for the admin table
// @Summary      List users
// @Description  All users ordered by last login time, falling back to registration time.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} user.User
// @Failure      401 {object} httputil.ErrorResponse "Unauthorized"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		logger.Error("failed to list users", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, users, http.StatusOK)
}

// BlockUsers blocks the selected users
// @Summary      Block users
// @Description  Block every selected user. Selecting yourself terminates your own session.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body BulkRequest true "Selected user ids"
// @Success      200 {object} ActionResponse
// @Failure      400 {object} ActionResponse "No users selected"
// @Router       /admin/users/block [post]
func (h *Handler) BlockUsers(w http.ResponseWriter, r *http.Request) {
	h.bulkAction(w, r, "blocked", h.service.BlockUsers)
}

// UnblockUsers unblocks the selected users
// @Summary      Unblock users
// @Description  Unblock every selected user that is currently blocked.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body BulkRequest true "Selected user ids"
// @Success      200 {object} ActionResponse
// @Failure      400 {object} ActionResponse "No users selected"
// @Router       /admin/users/unblock [post]
func (h *Handler) UnblockUsers(w http.ResponseWriter, r *http.Request) {
	h.bulkAction(w, r, "unblocked", h.service.UnblockUsers)
}

// DeleteUsers deletes the selected users
// @Summary      Delete users
// @Description  Hard-delete every selected user. Selecting yourself terminates your own session.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body BulkRequest true "Selected user ids"
// @Success      200 {object} ActionResponse
// @Failure      400 {object} ActionResponse "No users selected"
// @Router       /admin/users/delete [post]
func (h *Handler) DeleteUsers(w http.ResponseWriter, r *http.Request) {
	h.bulkAction(w, r, "deleted", h.service.DeleteUsers)
}

// PurgeUnverified deletes all unverified users
// @Summary      Delete unverified users
// @Description  Delete every user that has not confirmed their email.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ActionResponse
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /admin/users/purge-unverified [post]
func (h *Handler) PurgeUnverified(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actorID, _ := auth.GetUserIDFromContext(r.Context())

	count, err := h.service.PurgeUnverified(r.Context(), actorID)
	if err != nil {
		logger.Error("failed to purge unverified users", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete unverified users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ActionResponse{
		Success:  true,
		Message:  fmt.Sprintf("%d unverified user(s) deleted successfully", count),
		Affected: count,
	}, http.StatusOK)
}

// bulkAction runs one of the bulk service operations and renders the
// common response shape.
func (h *Handler) bulkAction(
	w http.ResponseWriter,
	r *http.Request,
	verb string,
	op func(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error),
) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid bulk action request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if len(req.UserIDs) == 0 {
		httputil.RespondJSON(w, ActionResponse{
			Success: false,
			Message: "No users selected",
		}, http.StatusBadRequest)
		return
	}

	// Malformed ids are treated like ids that resolve to nothing: skipped
	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			logger.Warn("skipping malformed user id", "user_id", raw)
			continue
		}
		ids = append(ids, id)
	}

	// A non-empty selection of ids that all failed to parse is not a
	// NoSelection case; it just affects nobody.
	if len(ids) == 0 {
		httputil.RespondJSON(w, ActionResponse{
			Success: true,
			Message: fmt.Sprintf("0 user(s) %s successfully", verb),
		}, http.StatusOK)
		return
	}

	actorID, _ := auth.GetUserIDFromContext(r.Context())

	result, err := op(r.Context(), actorID, ids)
	if err != nil {
		if errors.Is(err, ErrNoSelection) {
			httputil.RespondJSON(w, ActionResponse{
				Success: false,
				Message: "No users selected",
			}, http.StatusBadRequest)
			return
		}
		logger.Error("bulk action failed", "action", verb, "error", err.Error())
		httputil.RespondErrorWithCode(w, fmt.Sprintf("failed to %s users", verbToInfinitive(verb)), httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, ActionResponse{
		Success:  true,
		Message:  fmt.Sprintf("%d user(s) %s successfully", result.Affected, verb),
		Affected: result.Affected,
		Redirect: result.Redirect,
	}, http.StatusOK)
}

func verbToInfinitive(verb string) string {
	switch verb {
	case "blocked":
		return "block"
	case "unblocked":
		return "unblock"
	case "deleted":
		return "delete"
	}
	return verb
}
