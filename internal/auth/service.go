package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hakangoksu/user-management/internal/logging"
	"github.com/hakangoksu/user-management/internal/user"
)

// verificationTokenTTL bounds how long a confirmation link stays valid.
const verificationTokenTTL = 24 * time.Hour

// Notifier sends the verification email. Best effort: the service calls it
// on a goroutine and only logs failures.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, toEmail, username, callbackURL string) error
}

// Service handles authentication business logic
type Service struct {
	users           user.Store
	sessions        SessionStore
	tokens          TokenService
	notifier        Notifier
	logger          *logging.Logger
	baseURL         string
	accessDuration  time.Duration
	sessionDuration time.Duration
	rememberMeDur   time.Duration
	sendTimeout     time.Duration
	now             func() time.Time
}

func NewService(
	users user.Store,
	sessions SessionStore,
	tokens TokenService,
	notifier Notifier,
	logger *logging.Logger,
	baseURL string,
	accessDuration time.Duration,
	sessionDuration time.Duration,
	rememberMeDuration time.Duration,
	sendTimeout time.Duration,
) *Service {
	return &Service{
		users:           users,
		sessions:        sessions,
		tokens:          tokens,
		notifier:        notifier,
		logger:          logger,
		baseURL:         baseURL,
		accessDuration:  accessDuration,
		sessionDuration: sessionDuration,
		rememberMeDur:   rememberMeDuration,
		sendTimeout:     sendTimeout,
		now:             time.Now,
	}
}

// WithClock overrides the clock, useful in tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.now = clock
	}
	return s
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates a new unverified user and fires the verification email.
// The email send is fire-and-forget: its outcome never reaches the caller.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*user.User, error) {
	if input.Username == "" {
		return nil, ErrUsernameRequired
	}
	if input.Email == "" {
		return nil, ErrEmailRequired
	}
	if len(input.Email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if input.Password == "" {
		return nil, ErrPasswordRequired
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	now := s.now()
	tokenHash := hashToken(verificationToken)
	newUser := &user.User{
		Username:                input.Username,
		Email:                   input.Email,
		PasswordHash:            passwordHash,
		EmailConfirmed:          false,
		IsBlocked:               false,
		Status:                  user.StatusUnverified,
		EmailVerificationToken:  &tokenHash,
		EmailVerificationSentAt: &now,
		RegistrationTime:        now,
	}

	created, err := s.users.Create(ctx, newUser)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	callbackURL := fmt.Sprintf("%s/auth/verify-email?uid=%s&token=%s",
		s.baseURL, created.ID, verificationToken)

	// Send verification email in a goroutine (non-blocking). A fresh
	// context with its own timeout keeps the send alive after the request
	// returns and bounds how long a stuck SMTP server can hold it.
	go func() {
		emailCtx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()
		if err := s.notifier.SendVerificationEmail(emailCtx, created.Email, created.Username, callbackURL); err != nil {
			s.logger.Warn("failed to send verification email", "email", created.Email, "error", err)
		}
	}()

	return created, nil
}

// LoginResult carries the issued credentials for a successful sign-in.
type LoginResult struct {
	User         *user.User
	AccessToken  string
	SessionToken string
}

// Login authenticates a user and establishes a session.
//
// Checks run in a fixed order: unknown user, blocked, unconfirmed email,
// then password. A blocked or unconfirmed account is reported as such
// before the password is ever checked, matching the observed behavior of
// the moderation surface this backs.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existing.IsBlocked {
		return nil, ErrAccountBlocked
	}

	if !existing.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}

	if !verifyPassword(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	loginTime := s.now()
	if err := s.users.SetLastLogin(ctx, existing.ID, loginTime); err != nil {
		return nil, fmt.Errorf("failed to record login time: %w", err)
	}
	existing.LastLoginTime = &loginTime

	sessionTTL := s.sessionDuration
	if rememberMe {
		sessionTTL = s.rememberMeDur
	}

	sessionToken, err := s.sessions.Create(ctx, existing.ID, sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, err := s.tokens.CreateToken(existing.ID, existing.Email, sessionToken, s.accessDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &LoginResult{
		User:         existing,
		AccessToken:  accessToken,
		SessionToken: sessionToken,
	}, nil
}

// VerifyEmail confirms a user's email address from the callback link.
//
// A missing user is reported as user.ErrNotFound with no state change. Any
// problem with the token itself collapses into ErrVerificationFailed so the
// caller learns nothing about why a token was rejected. Confirmation never
// unblocks: a blocked user stays blocked.
func (s *Service) VerifyEmail(ctx context.Context, userID uuid.UUID, token string) error {
	existing, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.ErrNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existing.EmailVerificationToken == nil || existing.EmailVerificationSentAt == nil {
		return ErrVerificationFailed
	}
	if s.now().After(existing.EmailVerificationSentAt.Add(verificationTokenTTL)) {
		return ErrVerificationFailed
	}
	if subtle.ConstantTimeCompare([]byte(*existing.EmailVerificationToken), []byte(hashToken(token))) != 1 {
		return ErrVerificationFailed
	}

	existing.ConfirmEmail()
	existing.EmailVerificationToken = nil
	existing.EmailVerificationSentAt = nil

	if err := s.users.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	return nil
}

// Logout revokes the session backing the caller's credentials.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
