package auth

import (
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakangoksu/user-management/internal/logging"
	"github.com/hakangoksu/user-management/internal/user"
)

// memStore is an in-memory user.Store.
type memStore struct {
	users map[uuid.UUID]*user.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*user.User)}
}

func (s *memStore) Create(ctx context.Context, u *user.User) (*user.User, error) {
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, user.ErrDuplicateEmail
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	s.users[u.ID] = &cp
	return u, nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memStore) List(ctx context.Context) ([]*user.User, error) {
	out := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) Update(ctx context.Context, u *user.User) error {
	stored, ok := s.users[u.ID]
	if !ok {
		return user.ErrNotFound
	}
	stored.EmailConfirmed = u.EmailConfirmed
	stored.IsBlocked = u.IsBlocked
	stored.Status = u.Status
	stored.EmailVerificationToken = u.EmailVerificationToken
	stored.EmailVerificationSentAt = u.EmailVerificationSentAt
	return nil
}

func (s *memStore) SetLastLogin(ctx context.Context, id uuid.UUID, t time.Time) error {
	stored, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	stored.LastLoginTime = &t
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) PurgeUnverified(ctx context.Context) (int, error) {
	count := 0
	for id, u := range s.users {
		if u.Status == user.StatusUnverified {
			delete(s.users, id)
			count++
		}
	}
	return count, nil
}

// memSessionStore is an in-memory SessionStore.
type memSessionStore struct {
	sessions map[string]uuid.UUID
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]uuid.UUID)}
}

func (s *memSessionStore) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	token, err := generateRandomToken()
	if err != nil {
		return "", err
	}
	s.sessions[token] = userID
	return token, nil
}

func (s *memSessionStore) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	userID, ok := s.sessions[token]
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	return userID, nil
}

func (s *memSessionStore) Revoke(ctx context.Context, token string) error {
	if _, ok := s.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *memSessionStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	for token, id := range s.sessions {
		if id == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

// sentEmail records one Notifier call.
type sentEmail struct {
	to          string
	username    string
	callbackURL string
}

// mockNotifier delivers each send on a channel so tests can wait for the
// fire-and-forget goroutine.
type mockNotifier struct {
	sent chan sentEmail
	err  error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(chan sentEmail, 1)}
}

func (m *mockNotifier) SendVerificationEmail(ctx context.Context, toEmail, username, callbackURL string) error {
	m.sent <- sentEmail{to: toEmail, username: username, callbackURL: callbackURL}
	return m.err
}

func (m *mockNotifier) wait(t *testing.T) sentEmail {
	t.Helper()
	select {
	case e := <-m.sent:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for verification email")
		return sentEmail{}
	}
}

type serviceFixture struct {
	service  *Service
	store    *memStore
	sessions *memSessionStore
	notifier *mockNotifier
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	key := bytes.Repeat([]byte{0x42}, 32)
	tokens, err := NewPasetoService(key)
	require.NoError(t, err)

	store := newMemStore()
	sessions := newMemSessionStore()
	notifier := newMockNotifier()

	service := NewService(
		store,
		sessions,
		tokens,
		notifier,
		logging.NewLogger(true),
		"http://localhost:8080",
		15*time.Minute,
		2*time.Hour,
		14*24*time.Hour,
		5*time.Second,
	)

	return &serviceFixture{
		service:  service,
		store:    store,
		sessions: sessions,
		notifier: notifier,
	}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "alex",
		Email:           "alex@example.com",
		Password:        "correct horse battery staple",
		ConfirmPassword: "correct horse battery staple",
	}
}

func TestRegister(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "alex", created.Username)
	assert.Equal(t, user.StatusUnverified, created.Status)
	assert.False(t, created.EmailConfirmed)
	assert.False(t, created.IsBlocked)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, "correct horse battery staple", created.PasswordHash)

	sent := f.notifier.wait(t)
	assert.Equal(t, "alex@example.com", sent.to)
	assert.Equal(t, "alex", sent.username)
	assert.Contains(t, sent.callbackURL, "http://localhost:8080/auth/verify-email?uid="+created.ID.String())
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"missing username", func(in *RegisterInput) { in.Username = "" }, ErrUsernameRequired},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, ErrEmailRequired},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrInvalidEmailFormat},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, ErrPasswordRequired},
		{"password mismatch", func(in *RegisterInput) { in.ConfirmPassword = "different" }, ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			input := validRegistration()
			tt.mutate(&input)

			_, err := f.service.Register(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.store.users)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	f.notifier.wait(t)

	_, err = f.service.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
	assert.Len(t, f.store.users, 1)
}

// verificationToken pulls the raw token out of the emailed callback URL.
func verificationToken(t *testing.T, callbackURL string) (uuid.UUID, string) {
	t.Helper()
	u, err := url.Parse(callbackURL)
	require.NoError(t, err)
	uid, err := uuid.Parse(u.Query().Get("uid"))
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return uid, token
}

func TestVerifyEmail(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	uid, token := verificationToken(t, f.notifier.wait(t).callbackURL)
	assert.Equal(t, created.ID, uid)

	require.NoError(t, f.service.VerifyEmail(context.Background(), uid, token))

	got, err := f.store.GetByID(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, got.EmailConfirmed)
	assert.Equal(t, user.StatusActive, got.Status)
	assert.Nil(t, got.EmailVerificationToken)
	assert.Nil(t, got.EmailVerificationSentAt)
}

func TestVerifyEmailBadToken(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	f.notifier.wait(t)

	err = f.service.VerifyEmail(context.Background(), created.ID, "wrong-token")
	assert.ErrorIs(t, err, ErrVerificationFailed)

	got, err := f.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.EmailConfirmed)
	assert.Equal(t, user.StatusUnverified, got.Status)
}

func TestVerifyEmailUnknownUser(t *testing.T) {
	f := newServiceFixture(t)

	err := f.service.VerifyEmail(context.Background(), uuid.New(), "whatever")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	uid, token := verificationToken(t, f.notifier.wait(t).callbackURL)

	f.service.WithClock(func() time.Time { return time.Now().Add(25 * time.Hour) })

	err = f.service.VerifyEmail(context.Background(), uid, token)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyEmailDoesNotUnblock(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	uid, token := verificationToken(t, f.notifier.wait(t).callbackURL)

	stored := f.store.users[created.ID]
	stored.Block()

	require.NoError(t, f.service.VerifyEmail(context.Background(), uid, token))

	got, err := f.store.GetByID(context.Background(), uid)
	require.NoError(t, err)
	assert.True(t, got.EmailConfirmed)
	assert.True(t, got.IsBlocked)
	assert.Equal(t, user.StatusBlocked, got.Status)
}

// registerAndConfirm registers the standard test user and walks the email
// confirmation, returning the stored user.
func registerAndConfirm(t *testing.T, f *serviceFixture) *user.User {
	t.Helper()
	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	uid, token := verificationToken(t, f.notifier.wait(t).callbackURL)
	require.NoError(t, f.service.VerifyEmail(context.Background(), uid, token))
	return f.store.users[created.ID]
}

func TestLogin(t *testing.T) {
	f := newServiceFixture(t)
	registerAndConfirm(t, f)

	res, err := f.service.Login(context.Background(), "alex@example.com", "correct horse battery staple", false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.SessionToken)
	require.NotNil(t, res.User.LastLoginTime)

	// The session backs the access token
	sessionUserID, err := f.sessions.Validate(context.Background(), res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, sessionUserID)

	// Last login is persisted, not just set on the returned copy
	stored, err := f.store.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginTime)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Login(context.Background(), "nobody@example.com", "whatever", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newServiceFixture(t)
	registerAndConfirm(t, f)

	_, err := f.service.Login(context.Background(), "alex@example.com", "wrong password", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnconfirmedEmail(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	f.notifier.wait(t)

	// Reported before the password is checked: even the right password
	// yields the unconfirmed error
	_, err = f.service.Login(context.Background(), "alex@example.com", "correct horse battery staple", false)
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)
}

func TestLoginBlockedUser(t *testing.T) {
	f := newServiceFixture(t)
	stored := registerAndConfirm(t, f)
	stored.Block()

	// Blocked wins over a wrong password: the blocked state is reported
	// without the password ever being checked
	_, err := f.service.Login(context.Background(), "alex@example.com", "wrong password", false)
	assert.ErrorIs(t, err, ErrAccountBlocked)

	_, err = f.service.Login(context.Background(), "alex@example.com", "correct horse battery staple", false)
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestLoginBlockedBeforeUnconfirmed(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	f.notifier.wait(t)
	f.store.users[created.ID].Block()

	// Blocked and unconfirmed at once: blocked is reported
	_, err = f.service.Login(context.Background(), "alex@example.com", "correct horse battery staple", false)
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestLogout(t *testing.T) {
	f := newServiceFixture(t)
	registerAndConfirm(t, f)

	res, err := f.service.Login(context.Background(), "alex@example.com", "correct horse battery staple", false)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(), res.SessionToken))

	_, err = f.sessions.Validate(context.Background(), res.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Logging out an already revoked session is not an error
	assert.NoError(t, f.service.Logout(context.Background(), res.SessionToken))
	assert.NoError(t, f.service.Logout(context.Background(), ""))
}
