package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBlocked     = errors.New("account has been blocked")
	ErrEmailNotConfirmed  = errors.New("email not verified, please check your inbox")

	ErrUsernameRequired   = errors.New("name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordMismatch   = errors.New("passwords do not match")

	// ErrVerificationFailed deliberately carries no detail about why a
	// confirmation token was rejected.
	ErrVerificationFailed = errors.New("email verification failed")

	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token has expired")
)
