package entity

import "time"

// Session is the time-bounded proof of authentication issued by the identity
// provider. It is owned exclusively by the session manager for its lifetime:
// created on sign-in or startup recovery, replaced wholesale on every provider
// refresh, destroyed on sign-out, disablement, or unrecoverable refresh failure.
type Session struct {
	UserID       string        // Opaque identity-provider user id.
	AccessToken  string        // Bearer token for downstream calls.
	RefreshToken string        // Token used to obtain a replacement session.
	ExpiresAt    time.Time     // When the access token expires.
	Claims       SessionClaims // Provider-supplied identity hints, read-only.
}

// SessionClaims holds the provider-supplied identity fields. For OAuth-sourced
// identities the provider is considered fresher than the stored profile, so
// these values take precedence when the merged identity is built.
type SessionClaims struct {
	Email     string
	Name      string
	AvatarURL string
}

// ExpiresWithin reports whether the session expires before now+window.
func (s *Session) ExpiresWithin(now time.Time, window time.Duration) bool {
	return s.ExpiresAt.Sub(now) < window
}
