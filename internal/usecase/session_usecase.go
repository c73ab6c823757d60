// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"

	"passport/internal/domain/entity"
)

// SessionUsecase is the published session API: a single coherent, always
// current view of who is logged in, with what role, enabled or not, plus the
// operations that change it. All state transitions funnel through the one
// implementation; consumers never mutate session state directly.
type SessionUsecase interface {
	// Start enters the Initializing phase and begins session recovery. The
	// phase is bounded by the configured init timeout: the published state
	// always leaves Initializing within that window, even if the underlying
	// provider calls hang.
	Start(ctx context.Context) error

	// Close tears the subsystem down. Late-arriving asynchronous results
	// (profile fetches, reconciliation, health checks) are suppressed after
	// Close returns.
	Close()

	// State returns the currently published session state.
	State() entity.SessionState

	// IsAuthenticated reports whether a merged identity is published.
	IsAuthenticated() bool

	// Role returns the published role, or the empty string when no identity
	// is published.
	Role() entity.Role

	// IsAdmin reports whether the published role satisfies admin.
	IsAdmin() bool

	// IsSuperAdmin reports whether the published role is super_admin, or the
	// identity email is on the configured allow-list. Advisory only.
	IsSuperAdmin() bool

	// CheckRole reports whether the published role satisfies the required
	// tier. Fails closed outside of the Authenticated phase. Advisory for UI
	// gating only.
	CheckRole(required entity.Role) bool

	// WasDisabled reports whether the last terminal transition was caused by
	// a disabled account, available for messaging while the externally
	// observable state reads as signed out.
	WasDisabled() bool

	// SignInWithPassword establishes a session from credentials and drives
	// profile resolution. On failure a notification is surfaced and no state
	// change occurs.
	SignInWithPassword(ctx context.Context, input *SignInInput) error

	// SignInWithProvider signs out any stale local session, then returns the
	// third-party redirect URL to hand off navigation to. The redirect return
	// path re-enters resolution through CompleteRedirectSignIn.
	SignInWithProvider(ctx context.Context, provider string) (string, error)

	// CompleteRedirectSignIn adopts the token pair handed back on the
	// third-party redirect callback and drives the same resolution path as a
	// password sign-in.
	CompleteRedirectSignIn(ctx context.Context, input *RedirectCallbackInput) error

	// SignOut revokes the session with the identity provider, then forces the
	// Unauthenticated state regardless of the revocation outcome.
	SignOut(ctx context.Context) error
}

// --- Input DTOs ---

// SignInInput defines the credentials for a password sign-in.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RedirectCallbackInput carries the token pair handed back on the third-party
// redirect callback.
type RedirectCallbackInput struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SessionView is the read model returned to HTTP consumers.
type SessionView struct {
	Phase           string `json:"phase"`
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          string `json:"user_id,omitempty"`
	Email           string `json:"email,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	Role            string `json:"role,omitempty"`
	Disabled        bool   `json:"disabled,omitempty"`
}
