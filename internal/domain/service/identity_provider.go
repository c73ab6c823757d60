// Package service defines the interfaces for external domain services
// consumed by the application layer.
package service

import (
	"context"
	"errors"

	"passport/internal/domain/entity"
)

// Domain-specific errors for the identity provider boundary.
var (
	// ErrNoSession is returned when the provider holds no current session.
	ErrNoSession = errors.New("no current session")
	// ErrSignInFailed is returned when the provider rejects the credentials.
	ErrSignInFailed = errors.New("sign-in rejected by identity provider")
	// ErrRefreshFailed is returned when the provider cannot refresh the session.
	ErrRefreshFailed = errors.New("session refresh failed")
)

// SessionEvent identifies a session-change notification from the provider.
type SessionEvent string

const (
	// EventSignedIn is emitted when a new session is established.
	EventSignedIn SessionEvent = "SIGNED_IN"
	// EventSignedOut is emitted when the provider ends the session.
	EventSignedOut SessionEvent = "SIGNED_OUT"
	// EventTokenRefreshed is emitted when the provider rotates the tokens.
	EventTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
)

// SessionListener receives provider session-change notifications. The session
// argument is nil for EventSignedOut.
type SessionListener func(event SessionEvent, session *entity.Session)

// IdentityProvider is the narrow port to the external service that owns
// credentials and issues, refreshes, and revokes sessions.
type IdentityProvider interface {
	// CurrentSession returns the session the provider currently holds,
	// or ErrNoSession.
	CurrentSession(ctx context.Context) (*entity.Session, error)

	// Refresh exchanges the refresh token for a replacement session.
	Refresh(ctx context.Context) (*entity.Session, error)

	// SignInWithPassword establishes a session from credentials.
	SignInWithPassword(ctx context.Context, email, password string) (*entity.Session, error)

	// RedirectURL builds the third-party sign-in redirect URL for the named
	// provider. The return path re-enters session recovery.
	RedirectURL(provider, returnTo string) (string, error)

	// AdoptSession verifies and installs a token pair obtained out of band,
	// such as the tokens handed back on the third-party redirect callback.
	AdoptSession(ctx context.Context, accessToken, refreshToken string) (*entity.Session, error)

	// SignOut revokes the current session with the provider.
	SignOut(ctx context.Context) error

	// Subscribe registers a listener for session-change notifications and
	// returns a function that removes it.
	Subscribe(listener SessionListener) (unsubscribe func())
}
