package admin

import (
	"errors"
	"net/http"

	"github.com/hakangoksu/user-management/internal/auth"
	"github.com/hakangoksu/user-management/internal/httputil"
	"github.com/hakangoksu/user-management/internal/logging"
	"github.com/hakangoksu/user-management/internal/user"
)

// SessionGate re-checks the authenticated principal before every
// moderation action. A session token stays valid for its lifetime, so
// without this an admin blocked or deleted by a colleague could keep
// moderating until their token expired. The gate re-fetches the backing
// record and force-terminates the session if it is gone or blocked.
//
// Unauthenticated requests pass through untouched; rejecting those is the
// authentication middleware's job.
func (s *Service) SessionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		logger := logging.GetLoggerFromContext(r.Context())

		u, err := s.users.GetByID(r.Context(), userID)
		if err != nil && !errors.Is(err, user.ErrNotFound) {
			logger.Error("session gate: failed to load principal", "error", err.Error())
			httputil.RespondErrorWithCode(w, "internal error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		if errors.Is(err, user.ErrNotFound) || u.IsBlocked {
			logger.Warn("session gate: principal no longer valid", "user_id", userID)

			if revokeErr := s.sessions.RevokeAll(r.Context(), userID); revokeErr != nil {
				logger.Error("session gate: failed to revoke sessions", "error", revokeErr.Error())
			}
			auth.ClearAuthCookies(w)

			httputil.RespondJSON(w, ActionResponse{
				Success:  false,
				Message:  "Your session is no longer valid.",
				Redirect: true,
			}, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
