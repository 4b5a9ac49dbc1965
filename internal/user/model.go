package user

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusActive     Status = "active"
	StatusBlocked    Status = "blocked"
)

// ComputeStatus derives the lifecycle status from the two flags that drive
// it. Blocked wins over everything; an unblocked user is active once the
// email is confirmed.
func ComputeStatus(isBlocked, emailConfirmed bool) Status {
	switch {
	case isBlocked:
		return StatusBlocked
	case emailConfirmed:
		return StatusActive
	default:
		return StatusUnverified
	}
}

// User is the domain model for an account.
type User struct {
	ID                      uuid.UUID  `json:"id"`
	Username                string     `json:"username"`
	Email                   string     `json:"email"`
	PasswordHash            string     `json:"-"` // Never expose password hash in JSON
	EmailConfirmed          bool       `json:"email_confirmed"`
	IsBlocked               bool       `json:"is_blocked"`
	Status                  Status     `json:"status"`
	EmailVerificationToken  *string    `json:"-"`
	EmailVerificationSentAt *time.Time `json:"-"`
	RegistrationTime        time.Time  `json:"registration_time"`
	LastLoginTime           *time.Time `json:"last_login_time"`
}

// Block marks the user blocked. Status follows unconditionally.
func (u *User) Block() {
	u.IsBlocked = true
	u.Status = StatusBlocked
}

// Unblock clears the blocked flag and recomputes status from the
// confirmation flag.
func (u *User) Unblock() {
	u.IsBlocked = false
	u.Status = ComputeStatus(u.IsBlocked, u.EmailConfirmed)
}

// ConfirmEmail flips the confirmation flag. Confirmation never unblocks:
// a blocked user stays blocked and becomes active only after an unblock.
func (u *User) ConfirmEmail() {
	u.EmailConfirmed = true
	u.Status = ComputeStatus(u.IsBlocked, u.EmailConfirmed)
}

// CanAuthenticate reports whether the account may sign in at all.
func (u *User) CanAuthenticate() bool {
	return !u.IsBlocked && u.EmailConfirmed
}

// LastSeen returns the ordering timestamp for listings: last login when
// known, otherwise the registration time.
func (u *User) LastSeen() time.Time {
	if u.LastLoginTime != nil {
		return *u.LastLoginTime
	}
	return u.RegistrationTime
}
