// Package identity implements the identity-provider port against a
// GoTrue-compatible REST API.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"passport/config"
	"passport/internal/domain/entity"
	"passport/internal/domain/service"

	"github.com/pkg/errors"
)

const defaultRequestTimeout = 10 * time.Second

var _ service.IdentityProvider = (*Client)(nil)

// Client talks to the identity provider's REST endpoints and holds the
// current token pair. It is the only component that touches raw tokens;
// everything above works with entity.Session values.
type Client struct {
	baseURL    string
	apiKey     string
	returnURL  string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	session   *entity.Session
	listeners map[int]service.SessionListener
	nextID    int
}

// NewClient is the constructor for Client.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	identityCfg := cfg.Identity
	if identityCfg == nil || identityCfg.BaseURL == "" {
		return nil, errors.New("identity provider base URL must be provided")
	}

	timeout := identityCfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(identityCfg.BaseURL, "/"),
		apiKey:     identityCfg.APIKey,
		returnURL:  identityCfg.RedirectReturnURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		listeners:  make(map[int]service.SessionListener),
	}, nil
}

// tokenResponse is the provider's token grant payload.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// CurrentSession validates the held token pair against the provider and
// returns the session. ErrNoSession means there is verifiably no session;
// transport failures are returned as-is so callers can tell the two apart.
func (c *Client) CurrentSession(ctx context.Context) (*entity.Session, error) {
	held := c.heldSession()
	if held == nil {
		return nil, service.ErrNoSession
	}

	user, status, err := c.fetchUser(ctx, held.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify session with provider")
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.clearSession()

		return nil, service.ErrNoSession
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("provider returned unexpected status %d", status)
	}

	held.UserID = user.ID
	held.Claims = claimsFromUser(user)

	c.mu.Lock()
	if c.session != nil {
		c.session.Claims = held.Claims
	}
	c.mu.Unlock()

	return held, nil
}

// Refresh exchanges the refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) (*entity.Session, error) {
	held := c.heldSession()
	if held == nil {
		return nil, service.ErrNoSession
	}

	payload := map[string]string{"refresh_token": held.RefreshToken}
	token, status, err := c.postToken(ctx, "refresh_token", payload)
	if err != nil {
		return nil, errors.Wrap(service.ErrRefreshFailed, err.Error())
	}
	if status != http.StatusOK {
		c.logger.Warn("Token refresh rejected", slog.Int("status", status))

		return nil, errors.Wrapf(service.ErrRefreshFailed, "provider returned status %d", status)
	}

	session := c.sessionFromToken(token)
	c.storeSession(session)
	c.emit(service.EventTokenRefreshed, session)

	return session, nil
}

// SignInWithPassword performs the password grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*entity.Session, error) {
	payload := map[string]string{"email": email, "password": password}
	token, status, err := c.postToken(ctx, "password", payload)
	if err != nil {
		return nil, errors.Wrap(err, "password grant request failed")
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, errors.Wrap(service.ErrSignInFailed, "credentials rejected")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("provider returned unexpected status %d", status)
	}

	session := c.sessionFromToken(token)
	c.storeSession(session)
	c.emit(service.EventSignedIn, session)

	return session, nil
}

// RedirectURL builds the third-party authorization hand-off URL. It makes no
// network call; the provider drives the flow after navigation.
func (c *Client) RedirectURL(provider, returnTo string) (string, error) {
	if provider == "" {
		return "", errors.New("provider name must not be empty")
	}

	query := url.Values{}
	query.Set("provider", provider)
	if returnTo == "" {
		returnTo = c.returnURL
	}
	if returnTo != "" {
		query.Set("redirect_to", returnTo)
	}

	return fmt.Sprintf("%s/authorize?%s", c.baseURL, query.Encode()), nil
}

// SignOut revokes the session with the provider and drops the held tokens.
// The local tokens are dropped even when revocation fails.
func (c *Client) SignOut(ctx context.Context) error {
	held := c.heldSession()
	if held == nil {
		return nil
	}

	defer func() {
		c.clearSession()
		c.emit(service.EventSignedOut, nil)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build logout request")
	}
	c.setHeaders(req, held.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "logout request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.Errorf("provider returned status %d on logout", resp.StatusCode)
	}

	return nil
}

// Subscribe registers a session-change listener and returns its
// unsubscribe function.
func (c *Client) Subscribe(listener service.SessionListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = listener

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// AdoptSession verifies a token pair obtained out of band, such as tokens
// parsed from a redirect callback fragment, and installs it as the current
// session. Rejected tokens are reported as ErrSignInFailed so the caller can
// tell a bad callback apart from an unreachable provider.
func (c *Client) AdoptSession(ctx context.Context, accessToken, refreshToken string) (*entity.Session, error) {
	user, status, err := c.fetchUser(ctx, accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify adopted tokens")
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, errors.Wrap(service.ErrSignInFailed, "adopted tokens rejected")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("provider returned unexpected status %d", status)
	}

	session := &entity.Session{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessTokenExpiry(accessToken),
		Claims:       claimsFromUser(user),
	}
	c.storeSession(session)
	c.emit(service.EventSignedIn, session)

	return session, nil
}

// --- internals ---

func (c *Client) postToken(ctx context.Context, grantType string, payload map[string]string) (*tokenResponse, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to encode token request")
	}

	endpoint := fmt.Sprintf("%s/token?grant_type=%s", c.baseURL, url.QueryEscape(grantType))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build token request")
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "token request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logProviderError(resp.Body, resp.StatusCode)

		return nil, resp.StatusCode, nil
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to decode token response")
	}

	return &token, resp.StatusCode, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*userResponse, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user", nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build user request")
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "user request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, resp.StatusCode, errors.Wrap(err, "failed to decode user response")
	}

	return &user, resp.StatusCode, nil
}

func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

func (c *Client) sessionFromToken(token *tokenResponse) *entity.Session {
	expiresAt := accessTokenExpiry(token.AccessToken)
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &entity.Session{
		UserID:       token.User.ID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
		Claims:       claimsFromUser(&token.User),
	}
}

func claimsFromUser(user *userResponse) entity.SessionClaims {
	name := user.UserMetadata.FullName
	if name == "" {
		name = user.UserMetadata.Name
	}

	return entity.SessionClaims{
		Email:     user.Email,
		Name:      name,
		AvatarURL: user.UserMetadata.AvatarURL,
	}
}

func (c *Client) heldSession() *entity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	session := *c.session

	return &session
}

func (c *Client) storeSession(session *entity.Session) {
	c.mu.Lock()
	copied := *session
	c.session = &copied
	c.mu.Unlock()
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Client) emit(event service.SessionEvent, session *entity.Session) {
	c.mu.Lock()
	listeners := make([]service.SessionListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		var copied *entity.Session
		if session != nil {
			s := *session
			copied = &s
		}
		l(event, copied)
	}
}

func (c *Client) logProviderError(body io.Reader, status int) {
	var provErr errorResponse
	if err := json.NewDecoder(body).Decode(&provErr); err != nil {
		c.logger.Warn("Provider request rejected", slog.Int("status", status))

		return
	}

	message := provErr.ErrorDescription
	if message == "" {
		message = provErr.Message
	}
	if message == "" {
		message = provErr.Error
	}

	c.logger.Warn("Provider request rejected",
		slog.Int("status", status),
		slog.String("message", message))
}
