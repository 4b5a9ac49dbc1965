package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore manages server-side sessions. Sessions are opaque random
// tokens stored hashed with a TTL; revoking removes them immediately, which
// is what force sign-out relies on.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error)
	Validate(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// RedisSessionStore is the Redis-backed SessionStore.
type RedisSessionStore struct {
	client *redis.Client
}

var _ SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// getSessionKey generates the Redis key for a session
func getSessionKey(tokenHash string) string {
	return fmt.Sprintf("session:%s", tokenHash)
}

// getUserSessionsKey generates the Redis key for a user's session set
func getUserSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_sessions:%s", userID.String())
}

// Create stores a new session for the user and returns the opaque token.
func (s *RedisSessionStore) Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	token, err := generateRandomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	tokenHash := hashToken(token)
	sessionKey := getSessionKey(tokenHash)
	userSessionsKey := getUserSessionsKey(userID)

	expiresAt := time.Now().Add(ttl)

	pipe := s.client.Pipeline()

	pipe.HSet(ctx, sessionKey, map[string]interface{}{
		"user_id":    userID.String(),
		"expires_at": expiresAt.Unix(),
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, sessionKey, ttl)

	// Track the session in the user's set so RevokeAll can find it. The
	// set's TTL is pushed out to the longest-lived session.
	pipe.SAdd(ctx, userSessionsKey, tokenHash)
	pipe.Expire(ctx, userSessionsKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Validate checks that the session exists and has not expired, returning
// the owning user id.
func (s *RedisSessionStore) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	tokenHash := hashToken(token)
	sessionKey := getSessionKey(tokenHash)

	data, err := s.client.HGetAll(ctx, sessionKey).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(data) == 0 {
		return uuid.Nil, ErrSessionNotFound
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	var expiresAtUnix int64
	fmt.Sscanf(data["expires_at"], "%d", &expiresAtUnix)
	if time.Now().After(time.Unix(expiresAtUnix, 0)) {
		return uuid.Nil, ErrSessionNotFound
	}

	return userID, nil
}

// Revoke terminates a single session.
func (s *RedisSessionStore) Revoke(ctx context.Context, token string) error {
	tokenHash := hashToken(token)
	sessionKey := getSessionKey(tokenHash)

	data, err := s.client.HGetAll(ctx, sessionKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if len(data) == 0 {
		return ErrSessionNotFound
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionKey)
	if userID, err := uuid.Parse(data["user_id"]); err == nil {
		pipe.SRem(ctx, getUserSessionsKey(userID), tokenHash)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// RevokeAll terminates every session belonging to the user.
func (s *RedisSessionStore) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	userSessionsKey := getUserSessionsKey(userID)

	tokenHashes, err := s.client.SMembers(ctx, userSessionsKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	if len(tokenHashes) == 0 {
		return nil // No sessions to revoke
	}

	pipe := s.client.Pipeline()
	for _, tokenHash := range tokenHashes {
		pipe.Del(ctx, getSessionKey(tokenHash))
	}
	pipe.Del(ctx, userSessionsKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to revoke all user sessions: %w", err)
	}

	return nil
}
