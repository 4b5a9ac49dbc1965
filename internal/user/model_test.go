package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name           string
		isBlocked      bool
		emailConfirmed bool
		want           Status
	}{
		{"new account", false, false, StatusUnverified},
		{"confirmed account", false, true, StatusActive},
		{"blocked before confirming", true, false, StatusBlocked},
		{"blocked after confirming", true, true, StatusBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatus(tt.isBlocked, tt.emailConfirmed))
		})
	}
}

// checkStatusInvariants asserts the stored status is consistent with the
// flags that drive it.
func checkStatusInvariants(t *testing.T, u *User) {
	t.Helper()
	if u.IsBlocked {
		require.Equal(t, StatusBlocked, u.Status)
		return
	}
	if u.EmailConfirmed {
		require.Equal(t, StatusActive, u.Status)
		return
	}
	require.Equal(t, StatusUnverified, u.Status)
}

func TestBlockUnblock(t *testing.T) {
	u := &User{Status: StatusUnverified}

	u.Block()
	assert.True(t, u.IsBlocked)
	checkStatusInvariants(t, u)

	// Blocking an already blocked user changes nothing
	u.Block()
	assert.Equal(t, StatusBlocked, u.Status)

	u.Unblock()
	assert.False(t, u.IsBlocked)
	assert.Equal(t, StatusUnverified, u.Status)
	checkStatusInvariants(t, u)
}

func TestUnblockConfirmedUserBecomesActive(t *testing.T) {
	u := &User{EmailConfirmed: true}
	u.Block()
	u.Unblock()
	assert.Equal(t, StatusActive, u.Status)
	checkStatusInvariants(t, u)
}

func TestConfirmEmailNeverUnblocks(t *testing.T) {
	u := &User{Status: StatusUnverified}
	u.Block()

	u.ConfirmEmail()
	assert.True(t, u.EmailConfirmed)
	assert.Equal(t, StatusBlocked, u.Status)
	checkStatusInvariants(t, u)

	// The confirmation shows through once the block is lifted
	u.Unblock()
	assert.Equal(t, StatusActive, u.Status)
}

func TestConfirmEmailActivates(t *testing.T) {
	u := &User{Status: StatusUnverified}
	u.ConfirmEmail()
	assert.Equal(t, StatusActive, u.Status)
	checkStatusInvariants(t, u)
}

func TestCanAuthenticate(t *testing.T) {
	u := &User{}
	assert.False(t, u.CanAuthenticate())

	u.ConfirmEmail()
	assert.True(t, u.CanAuthenticate())

	u.Block()
	assert.False(t, u.CanAuthenticate())
}

func TestLastSeen(t *testing.T) {
	registered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	u := &User{RegistrationTime: registered}

	assert.Equal(t, registered, u.LastSeen())

	login := registered.Add(48 * time.Hour)
	u.LastLoginTime = &login
	assert.Equal(t, login, u.LastSeen())
}
