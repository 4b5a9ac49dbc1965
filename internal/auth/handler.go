package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hakangoksu/user-management/internal/httputil"
	"github.com/hakangoksu/user-management/internal/logging"
	"github.com/hakangoksu/user-management/internal/ratelimit"
	"github.com/hakangoksu/user-management/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	rateLimiter  *ratelimit.Limiter
	logger       *logging.Logger
	isProduction bool
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, logger *logging.Logger, isProduction bool) *Handler {
	return &Handler{
		service:      service,
		rateLimiter:  rateLimiter,
		logger:       logger,
		isProduction: isProduction,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
	ReturnURL  string `json:"return_url,omitempty"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Status string    `json:"status"`
}

// RegisterResponse represents the registration response
type RegisterResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message"`
}

// LoginResponse represents a successful login for non-cookie clients
type LoginResponse struct {
	AccessToken  string       `json:"access_token,omitempty"`
	SessionToken string       `json:"session_token,omitempty"`
	User         UserResponse `json:"user"`
	ReturnURL    string       `json:"return_url,omitempty"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:     u.ID,
		Name:   u.Username,
		Email:  u.Email,
		Status: string(u.Status),
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account. A verification email is sent; the account stays unverified until the link is followed.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration form"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "register")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for register", "ip", ip)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "register"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	newUser, err := h.service.Register(r.Context(), RegisterInput{
		Username:        req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			httputil.RespondErrorWithCode(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrUsernameRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeNameRequired, http.StatusBadRequest)
		case errors.Is(err, ErrEmailRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeEmailRequired, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordRequired):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordRequired, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordMismatch):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordMismatch, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	httputil.RespondJSON(w, RegisterResponse{
		User:    toUserResponse(newUser),
		Message: "Registration successful! A verification email has been sent.",
	}, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password. Browsers get HttpOnly cookies; API clients get tokens in the body.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Blocked or unverified account"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, "login")
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded for login", "ip", ip)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, "login"); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			httputil.RespondErrorWithCode(w, "Invalid login attempt.", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountBlocked):
			logger.Warn("login failed: account blocked")
			httputil.RespondErrorWithCode(w, "Your account has been blocked.", httputil.CodeAccountBlocked, http.StatusForbidden)
		case errors.Is(err, ErrEmailNotConfirmed):
			logger.Warn("login failed: email not verified")
			httputil.RespondErrorWithCode(w, "Please verify your email address before logging in. Check your inbox.", httputil.CodeEmailNotVerified, http.StatusForbidden)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user logged in successfully", "user_id", result.User.ID)

	returnURL := sanitizeReturnURL(req.ReturnURL)

	if ShouldUseCookies(r) {
		SetAuthCookies(w, result.AccessToken, result.SessionToken, h.isProduction,
			h.service.accessDuration, sessionTTL(h.service, req.RememberMe))
		// Don't return tokens in response body when using cookies
		httputil.RespondJSON(w, LoginResponse{
			User:      toUserResponse(result.User),
			ReturnURL: returnURL,
		}, http.StatusOK)
		return
	}

	httputil.RespondJSON(w, LoginResponse{
		AccessToken:  result.AccessToken,
		SessionToken: result.SessionToken,
		User:         toUserResponse(result.User),
		ReturnURL:    returnURL,
	}, http.StatusOK)
}

// VerifyEmail handles the email verification callback
// @Summary      Verify email address
// @Description  Confirm an account from the emailed link. Failures carry no detail about why the token was rejected.
// @Tags         auth
// @Produce      json
// @Param        uid   query string true "User identifier"
// @Param        token query string true "Verification token"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Verification failed"
// @Router       /auth/verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	uid := r.URL.Query().Get("uid")
	token := r.URL.Query().Get("token")

	userID, err := uuid.Parse(uid)
	if err != nil || token == "" {
		logger.Warn("email verification failed: bad callback parameters")
		httputil.RespondErrorWithCode(w, "Email verification failed.", httputil.CodeVerificationFailed, http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), userID, token); err != nil {
		// Missing user and bad token look identical to the caller
		if errors.Is(err, user.ErrNotFound) || errors.Is(err, ErrVerificationFailed) {
			logger.Warn("email verification failed", "user_id", userID)
			httputil.RespondErrorWithCode(w, "Email verification failed.", httputil.CodeVerificationFailed, http.StatusBadRequest)
			return
		}
		logger.Error("email verification failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to verify email", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("email verified successfully", "user_id", userID)

	httputil.RespondJSON(w, map[string]string{
		"message": "Email verified successfully! You can now login.",
	}, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the current session and clear auth cookies
// @Tags         auth
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	sessionToken, err := GetSessionTokenFromCookie(r)
	if err != nil {
		// Fall back to the token carried in the access token's claims, if any
		sessionToken, _ = GetSessionTokenFromContext(r.Context())
	}

	if err := h.service.Logout(r.Context(), sessionToken); err != nil {
		logger.Warn("failed to revoke session on logout", "error", err.Error())
		// Continue - still clear cookies
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully")

	httputil.RespondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

func sessionTTL(s *Service, rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberMeDur
	}
	return s.sessionDuration
}

// sanitizeReturnURL only allows local paths; anything absolute is dropped
// so login can never redirect off-site.
func sanitizeReturnURL(returnURL string) string {
	if returnURL == "" {
		return ""
	}
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") {
		return ""
	}
	return returnURL
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (behind proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip := r.RemoteAddr
	// RemoteAddr format is "IP:port", extract just the IP
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
