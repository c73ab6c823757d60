package middleware

import (
	"passport/internal/domain/entity"
	domainerrors "passport/internal/domain/errors"
	"passport/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SessionMiddleware gates routes on the published session state. The checks
// read the locally published state; the backend remains the authority and
// re-validates every call it receives.
type SessionMiddleware struct {
	session usecase.SessionUsecase
}

// NewSessionMiddleware creates a new session guard middleware
func NewSessionMiddleware(session usecase.SessionUsecase) *SessionMiddleware {
	return &SessionMiddleware{session: session}
}

// RequireAuthenticated rejects requests while no identity is published.
func (m *SessionMiddleware) RequireAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.session.IsAuthenticated() {
			return domainerrors.ErrNotAuthenticated
		}

		return next(c)
	}
}

// RequireRole rejects requests unless the published role satisfies the
// required tier. Fails closed during Initializing.
func (m *SessionMiddleware) RequireRole(required entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.session.IsAuthenticated() {
				return domainerrors.ErrNotAuthenticated
			}
			if !m.session.CheckRole(required) {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}
