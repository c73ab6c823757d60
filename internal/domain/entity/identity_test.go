package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeIdentityProviderClaimsWin(t *testing.T) {
	session := &Session{
		UserID: "user-1",
		Claims: SessionClaims{
			Email:     "fresh@example.com",
			Name:      "Fresh Name",
			AvatarURL: "https://img/fresh.png",
		},
	}
	profile := &Profile{
		UserID:      "user-1",
		Email:       "stored@example.com",
		DisplayName: "Stored Name",
		AvatarURL:   "https://img/stored.png",
		Role:        RoleAdmin,
		Enabled:     true,
	}

	identity := MergeIdentity(session, profile)

	assert.Equal(t, "fresh@example.com", identity.Email)
	assert.Equal(t, "Fresh Name", identity.DisplayName)
	assert.Equal(t, "https://img/fresh.png", identity.AvatarURL)
	assert.Equal(t, RoleAdmin, identity.Role)
}

func TestMergeIdentityFallsBackToProfileFields(t *testing.T) {
	session := &Session{UserID: "user-1"}
	profile := &Profile{
		UserID:      "user-1",
		Email:       "stored@example.com",
		DisplayName: "Stored Name",
		AvatarURL:   "https://img/stored.png",
		Role:        RoleUser,
		Enabled:     true,
	}

	identity := MergeIdentity(session, profile)

	assert.Equal(t, "stored@example.com", identity.Email)
	assert.Equal(t, "Stored Name", identity.DisplayName)
	assert.Equal(t, "https://img/stored.png", identity.AvatarURL)
}

func TestMergeIdentityEmptyRoleDefaultsToUser(t *testing.T) {
	identity := MergeIdentity(&Session{UserID: "user-1"}, &Profile{UserID: "user-1", Enabled: true})

	assert.Equal(t, RoleUser, identity.Role)
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := &Session{ExpiresAt: now.Add(30 * time.Second)}

	assert.True(t, session.ExpiresWithin(now, time.Minute))
	assert.False(t, session.ExpiresWithin(now, 10*time.Second))
}

func TestSessionStateRole(t *testing.T) {
	authenticated := SessionState{
		Phase:    PhaseAuthenticated,
		Identity: &ResolvedIdentity{Role: RoleAdmin},
	}
	assert.Equal(t, RoleAdmin, authenticated.Role())

	assert.Equal(t, Role(""), SessionState{Phase: PhaseInitializing}.Role())
	assert.Equal(t, Role(""), SessionState{Phase: PhaseUnauthenticated}.Role())
	// Authenticated phase without an identity is not a valid published state.
	assert.False(t, SessionState{Phase: PhaseAuthenticated}.IsAuthenticated())
}
