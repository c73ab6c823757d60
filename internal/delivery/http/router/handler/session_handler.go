// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"passport/internal/delivery/http/response"
	"passport/internal/domain/entity"
	"passport/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SessionHandler holds dependencies for session-related handlers.
type SessionHandler struct {
	session usecase.SessionUsecase
	logger  *slog.Logger
}

// NewSessionHandler is the constructor for SessionHandler, injected by Fx.
func NewSessionHandler(session usecase.SessionUsecase, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: session,
		logger:  logger,
	}
}

// GetSession returns the currently published session state.
func (h *SessionHandler) GetSession(c echo.Context) error {
	view := toSessionView(h.session.State(), h.session.WasDisabled())

	return response.Success(c, http.StatusOK, view, "")
}

// SignIn handles the password sign-in request.
func (h *SessionHandler) SignIn(c echo.Context) error {
	var input *usecase.SignInInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid sign-in input")
	}
	if err := c.Validate(input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.session.SignInWithPassword(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	view := toSessionView(h.session.State(), h.session.WasDisabled())

	return response.Success(c, http.StatusOK, view, "Sign-in successful")
}

// SignInWithProvider returns the third-party redirect URL for the named provider.
func (h *SessionHandler) SignInWithProvider(c echo.Context) error {
	provider := c.Param("provider")

	url, err := h.session.SignInWithProvider(c.Request().Context(), provider)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"redirect_url": url}, "")
}

// SessionCallback adopts the token pair handed back by the third-party
// redirect flow and returns the resulting session view.
func (h *SessionHandler) SessionCallback(c echo.Context) error {
	var input *usecase.RedirectCallbackInput
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid callback input")
	}
	if err := c.Validate(input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.session.CompleteRedirectSignIn(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	view := toSessionView(h.session.State(), h.session.WasDisabled())

	return response.Success(c, http.StatusOK, view, "Sign-in successful")
}

// SignOut handles the sign-out request.
func (h *SessionHandler) SignOut(c echo.Context) error {
	if err := h.session.SignOut(c.Request().Context()); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Signed out")
}

// toSessionView maps the published state to the HTTP read model.
func toSessionView(state entity.SessionState, disabled bool) usecase.SessionView {
	view := usecase.SessionView{
		Phase:           string(state.Phase),
		IsAuthenticated: state.IsAuthenticated(),
		Disabled:        disabled,
	}

	if state.Identity != nil {
		view.UserID = state.Identity.UserID
		view.Email = state.Identity.Email
		view.DisplayName = state.Identity.DisplayName
		view.AvatarURL = state.Identity.AvatarURL
		view.Role = state.Identity.Role.String()
	}

	return view
}
