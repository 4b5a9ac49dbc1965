package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table model. Status is stored, not derived at read
// time: every mutating operation keeps it consistent with is_blocked and
// email_confirmed.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                      uuid.UUID  `bun:"id,pk,nullzero,type:uuid,default:gen_random_uuid()"`
	Username                string     `bun:"username,notnull"`
	Email                   string     `bun:"email,notnull,unique"`
	PasswordHash            string     `bun:"password_hash,notnull"`
	EmailConfirmed          bool       `bun:"email_confirmed,notnull,default:false"`
	IsBlocked               bool       `bun:"is_blocked,notnull,default:false"`
	Status                  string     `bun:"status,notnull,default:'unverified'"`
	EmailVerificationToken  *string    `bun:"email_verification_token"`
	EmailVerificationSentAt *time.Time `bun:"email_verification_sent_at"`
	RegistrationTime        time.Time  `bun:"registration_time,notnull,default:current_timestamp"`
	LastLoginTime           *time.Time `bun:"last_login_time"`
}
