package impl

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"passport/config"
	"passport/internal/domain/entity"
	domainerrors "passport/internal/domain/errors"
	"passport/internal/domain/repository"
	"passport/internal/domain/service"
	"passport/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// sessionManager implements the SessionUsecase interface. It is the single
// owner of mutable session state: provider events, health-monitor ticks, and
// explicit API calls are concurrent entry points that all funnel through the
// transition mutex, so no observer ever sees a half-updated identity.
type sessionManager struct {
	provider   service.IdentityProvider
	resolver   *profileResolver
	roleCache  repository.RoleCacheRepository
	notifier   service.Notifier
	reconciler *metadataReconciler
	cfg        *config.SessionConfig
	clk        clock
	logger     *slog.Logger

	// superAdmins is the UI-convenience email allow-list kept alongside the
	// stored role. Real authorization belongs to server-side policy.
	superAdmins map[string]struct{}

	// transitionMu serializes whole transition routines, I/O included.
	transitionMu sync.Mutex

	// mu guards the published state and lifecycle flags.
	mu       sync.RWMutex
	state    entity.SessionState
	session  *entity.Session
	disabled bool
	started  bool
	closed   bool

	// gen counts direct transitions. A resolution carries the gen current
	// when its session was obtained; if a sign-out bumps gen while the
	// resolution is in flight, its result is dropped instead of published.
	gen uint64

	// resolvedToken is the access token of the last resolution that ran.
	// The provider echoes grants the manager itself initiated as events;
	// matching tokens are not resolved a second time.
	resolvedToken string

	// revocations counts provider sign-outs the manager itself is issuing,
	// so the echoed SIGNED_OUT event is not treated as an external one.
	revocations int

	runCtx      context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// SessionManagerParams holds dependencies for the session manager, injected by Fx.
type SessionManagerParams struct {
	fx.In

	Provider  service.IdentityProvider
	Profiles  repository.ProfileRepository
	RoleCache repository.RoleCacheRepository
	Notifier  service.Notifier
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSessionManager is the constructor for sessionManager.
func NewSessionManager(params SessionManagerParams) usecase.SessionUsecase {
	sessionCfg := params.Config.Session
	if sessionCfg == nil {
		sessionCfg = &config.SessionConfig{}
	}

	clk := systemClock{}

	superAdmins := make(map[string]struct{}, len(sessionCfg.SuperAdminEmails))
	for _, email := range sessionCfg.SuperAdminEmails {
		superAdmins[strings.ToLower(email)] = struct{}{}
	}

	return &sessionManager{
		provider:    params.Provider,
		resolver:    newProfileResolver(params.Profiles, sessionCfg, clk, params.Logger),
		roleCache:   params.RoleCache,
		notifier:    params.Notifier,
		reconciler:  newMetadataReconciler(params.Profiles, params.Logger),
		cfg:         sessionCfg,
		clk:         clk,
		logger:      params.Logger,
		superAdmins: superAdmins,
		state:       entity.SessionState{Phase: entity.PhaseInitializing},
	}
}

// Start enters the Initializing phase and begins session recovery.
func (m *sessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return errors.New("session manager is closed")
	}
	if m.started {
		m.mu.Unlock()

		return errors.New("session manager already started")
	}
	m.started = true
	m.state = entity.SessionState{Phase: entity.PhaseInitializing}
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	unsubscribe := m.provider.Subscribe(m.onProviderEvent)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	m.spawn(m.recoverSession)
	m.spawn(newHealthMonitor(m).run)

	m.logger.Info("Session manager started",
		slog.Duration("init_timeout", m.cfg.InitTimeout),
		slog.Duration("health_interval", m.cfg.HealthCheckInterval))

	return nil
}

// Close tears the subsystem down and suppresses late asynchronous results.
func (m *sessionManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return
	}
	m.closed = true
	cancel := m.cancel
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.logger.Info("Session manager closed")
}

// spawn runs fn on a tracked goroutine bound to the manager's run context.
// It refuses to launch after Close, which is the mount guard: no late task
// can mutate state once the subsystem has been torn down.
func (m *sessionManager) spawn(fn func(ctx context.Context)) {
	m.mu.Lock()
	if m.closed || m.runCtx == nil {
		m.mu.Unlock()

		return
	}
	m.wg.Add(1)
	ctx := m.runCtx
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
}

// recoverSession recovers any existing provider session at startup. The whole
// routine is bounded by the global init timeout so the published state never
// remains Initializing indefinitely, even if the provider hangs.
func (m *sessionManager) recoverSession(ctx context.Context) {
	gen := m.generation()

	initCtx, cancel := context.WithTimeout(ctx, m.cfg.InitTimeout)
	defer cancel()

	session, err := m.provider.CurrentSession(initCtx)
	switch {
	case err == nil:
		m.resolveAndPublish(initCtx, session, gen)
	case errors.Is(err, service.ErrNoSession):
		m.toUnauthenticated("no existing session")
	default:
		m.logger.Warn("Session recovery failed", slog.Any("error", err))
		m.toUnauthenticated("session recovery failed")
	}
}

// resolveAndPublish runs the profile resolution outcome mapping for a session
// and publishes the resulting terminal state. It is the single transition
// routine shared by startup recovery, sign-in, provider events, and refresh.
// gen is the transition generation current when session was obtained; a
// sign-out that lands while the resolution is in flight invalidates it.
func (m *sessionManager) resolveAndPublish(ctx context.Context, session *entity.Session, gen uint64) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()

		return
	}
	if session.AccessToken != "" && m.resolvedToken == session.AccessToken {
		// The provider echoes grants the manager itself initiated; this
		// token pair is already resolved.
		m.mu.Unlock()

		return
	}
	m.resolvedToken = session.AccessToken
	m.mu.Unlock()

	profile, err := m.resolver.Resolve(ctx, session.UserID)

	if m.generation() != gen {
		m.logger.Info("Dropping resolution superseded by sign-out",
			slog.String("user_id", session.UserID))

		return
	}

	if err != nil {
		m.logger.Warn("Profile resolution exhausted, using fallback role",
			slog.String("user_id", session.UserID),
			slog.Any("error", err))
		profile = m.fallbackProfile(ctx, session.UserID)
	} else {
		// Cache only successfully fetched roles, never fallback guesses.
		if cacheErr := m.roleCache.Set(ctx, session.UserID, profile.Role); cacheErr != nil {
			m.logger.Warn("Role cache write failed",
				slog.String("user_id", session.UserID),
				slog.Any("error", cacheErr))
		}

		if !profile.Enabled {
			m.handleDisabled(ctx, session, gen)

			return
		}
	}

	identity := entity.MergeIdentity(session, profile)
	if !m.publishAuthenticated(session, &identity, gen) {
		return
	}

	snapshot := *session
	profileSnapshot := *profile
	m.spawn(func(taskCtx context.Context) {
		m.reconciler.reconcile(taskCtx, &snapshot, &profileSnapshot)
	})
}

// roleCacheReadTimeout bounds the cache read in the fallback path. The read
// runs detached from the resolution context: exhaustion may have consumed the
// whole init budget, and the cache is local.
const roleCacheReadTimeout = 2 * time.Second

// fallbackProfile builds the degraded profile used when resolution exhausts
// its retry budget: last cached role if one exists, otherwise the default
// user role. The account stays enabled so the user keeps working with
// last-known privileges instead of being logged out because the profile
// store was briefly unreachable.
func (m *sessionManager) fallbackProfile(ctx context.Context, userID string) *entity.Profile {
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), roleCacheReadTimeout)
	defer cancel()

	cached, err := m.roleCache.Get(cacheCtx, userID)
	if err == nil && cached.Role != "" {
		m.logger.Info("Using cached role fallback",
			slog.String("user_id", userID),
			slog.String("role", cached.Role.String()),
			slog.Time("cached_at", cached.CachedAt))

		return &entity.Profile{UserID: userID, Role: cached.Role, Enabled: true}
	}
	if err != nil && !errors.Is(err, repository.ErrRoleNotCached) {
		m.logger.Warn("Role cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return &entity.Profile{UserID: userID, Role: entity.RoleUser, Enabled: true}
}

// handleDisabled is the terminal path for enabled=false profiles: revoke the
// provider session, surface a notice, and publish the Disabled phase. The
// externally observable state is equivalent to signed out.
func (m *sessionManager) handleDisabled(ctx context.Context, session *entity.Session, gen uint64) {
	if err := m.revokeProviderSession(ctx); err != nil {
		m.logger.Warn("Provider sign-out failed for disabled account",
			slog.String("user_id", session.UserID),
			slog.Any("error", err))
	}

	m.notify(service.Notice{
		Severity: service.SeverityError,
		Title:    "帳號已停用",
		Body:     domainerrors.ErrAccountDisabled.Message(),
	})

	m.mu.Lock()
	if !m.closed && m.gen == gen {
		m.session = nil
		m.disabled = true
		m.state = entity.SessionState{Phase: entity.PhaseDisabled}
	}
	m.mu.Unlock()

	m.logger.Info("Account disabled, session revoked", slog.String("user_id", session.UserID))
}

// publishAuthenticated installs the merged identity and reports whether it was
// actually published; a stale generation means a sign-out won the race.
func (m *sessionManager) publishAuthenticated(session *entity.Session, identity *entity.ResolvedIdentity, gen uint64) bool {
	m.mu.Lock()
	dropped := m.closed || m.gen != gen
	if !dropped {
		m.session = session
		m.disabled = false
		m.state = entity.SessionState{Phase: entity.PhaseAuthenticated, Identity: identity}
	}
	m.mu.Unlock()

	if dropped {
		m.logger.Info("Dropping resolution superseded by sign-out",
			slog.String("user_id", identity.UserID))

		return false
	}

	m.logger.Info("Session authenticated",
		slog.String("user_id", identity.UserID),
		slog.String("role", identity.Role.String()))

	return true
}

func (m *sessionManager) toUnauthenticated(reason string) {
	m.mu.Lock()
	if !m.closed {
		m.session = nil
		m.disabled = false
		m.gen++
		m.resolvedToken = ""
		m.state = entity.SessionState{Phase: entity.PhaseUnauthenticated}
	}
	m.mu.Unlock()

	m.logger.Info("Session cleared", slog.String("reason", reason))
}

// onProviderEvent consumes identity-provider session-change notifications.
func (m *sessionManager) onProviderEvent(event service.SessionEvent, session *entity.Session) {
	switch event {
	case service.EventSignedOut:
		if m.selfRevoking() {
			// Echo of a revocation the manager itself issued; the
			// initiating routine publishes the terminal state.
			return
		}
		m.toUnauthenticated("provider signed out")
	case service.EventSignedIn, service.EventTokenRefreshed:
		if session == nil {
			return
		}
		gen := m.generation()
		snapshot := *session
		m.spawn(func(ctx context.Context) {
			eventCtx, cancel := context.WithTimeout(ctx, m.cfg.InitTimeout)
			defer cancel()
			m.resolveAndPublish(eventCtx, &snapshot, gen)
		})
	}
}

// --- Published read API ---

func (m *sessionManager) State() entity.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.state
	if state.Identity != nil {
		identity := *state.Identity
		state.Identity = &identity
	}

	return state
}

func (m *sessionManager) IsAuthenticated() bool {
	return m.State().IsAuthenticated()
}

func (m *sessionManager) Role() entity.Role {
	return m.State().Role()
}

func (m *sessionManager) IsAdmin() bool {
	return m.CheckRole(entity.RoleAdmin)
}

func (m *sessionManager) IsSuperAdmin() bool {
	return m.CheckRole(entity.RoleSuperAdmin)
}

// CheckRole is a pure function over the published state. It fails closed
// whenever the phase is not Authenticated, including mid-Initializing.
func (m *sessionManager) CheckRole(required entity.Role) bool {
	state := m.State()
	if !state.IsAuthenticated() {
		return false
	}

	if m.allowListed(state.Identity.Email) {
		// Allow-listed emails act as super_admin for UI gating only.
		return true
	}

	return state.Identity.Role.Satisfies(required)
}

func (m *sessionManager) WasDisabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.disabled
}

func (m *sessionManager) allowListed(email string) bool {
	if email == "" {
		return false
	}
	_, ok := m.superAdmins[strings.ToLower(email)]

	return ok
}

// --- Published operations ---

// SignInWithPassword delegates to the identity provider; on success it drives
// the shared resolution path, on failure it surfaces a notification and makes
// no state change.
func (m *sessionManager) SignInWithPassword(ctx context.Context, input *usecase.SignInInput) error {
	session, err := m.provider.SignInWithPassword(ctx, input.Email, input.Password)
	if err != nil {
		m.logger.Warn("Password sign-in failed", slog.String("email", input.Email), slog.Any("error", err))
		m.notify(service.Notice{
			Severity: service.SeverityError,
			Title:    "登入失敗",
			Body:     domainerrors.ErrInvalidCredentials.Message(),
		})

		if errors.Is(err, service.ErrSignInFailed) {
			return errors.Wrap(domainerrors.ErrInvalidCredentials, "sign-in rejected")
		}

		return errors.Wrap(domainerrors.ErrProviderUnavailable, err.Error())
	}

	m.resolveAndPublish(ctx, session, m.generation())

	if m.WasDisabled() {
		return errors.Wrap(domainerrors.ErrAccountDisabled, "account is disabled")
	}

	return nil
}

// SignInWithProvider clears any stale local session first so sessions are
// never mixed across providers, then hands back the redirect URL. The
// redirect return path re-enters resolution through CompleteRedirectSignIn.
func (m *sessionManager) SignInWithProvider(ctx context.Context, provider string) (string, error) {
	if err := m.revokeProviderSession(ctx); err != nil {
		m.logger.Warn("Stale session sign-out failed before redirect", slog.Any("error", err))
	}
	m.toUnauthenticated("redirect sign-in handoff")

	url, err := m.provider.RedirectURL(provider, "")
	if err != nil {
		return "", errors.Wrap(domainerrors.ErrProviderUnavailable, err.Error())
	}

	return url, nil
}

// CompleteRedirectSignIn finishes the third-party flow: the token pair handed
// back on the callback is verified and adopted, then runs through the same
// resolution path as a password sign-in.
func (m *sessionManager) CompleteRedirectSignIn(ctx context.Context, input *usecase.RedirectCallbackInput) error {
	session, err := m.provider.AdoptSession(ctx, input.AccessToken, input.RefreshToken)
	if err != nil {
		m.logger.Warn("Redirect callback token adoption failed", slog.Any("error", err))
		m.notify(service.Notice{
			Severity: service.SeverityError,
			Title:    "登入失敗",
			Body:     domainerrors.ErrInvalidCredentials.Message(),
		})

		if errors.Is(err, service.ErrSignInFailed) {
			return errors.Wrap(domainerrors.ErrInvalidCredentials, "callback tokens rejected")
		}

		return errors.Wrap(domainerrors.ErrProviderUnavailable, err.Error())
	}

	m.resolveAndPublish(ctx, session, m.generation())

	if m.WasDisabled() {
		return errors.Wrap(domainerrors.ErrAccountDisabled, "account is disabled")
	}

	return nil
}

// SignOut revokes the session with the provider, then forces the local
// Unauthenticated state regardless of the revocation outcome: local state
// must never remain logged in after the user asked to leave. It does not
// wait on in-flight resolutions; the generation bump invalidates them.
func (m *sessionManager) SignOut(ctx context.Context) error {
	if err := m.revokeProviderSession(ctx); err != nil {
		m.logger.Warn("Provider session revocation failed", slog.Any("error", err))
	}
	m.toUnauthenticated("explicit sign-out")

	return nil
}

// --- helpers ---

func (m *sessionManager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.gen
}

// revokeProviderSession revokes the provider session on behalf of a
// transition routine. The SIGNED_OUT event the provider echoes back during
// the call is suppressed; the caller publishes the terminal state itself.
func (m *sessionManager) revokeProviderSession(ctx context.Context) error {
	m.mu.Lock()
	m.revocations++
	m.mu.Unlock()

	err := m.provider.SignOut(ctx)

	m.mu.Lock()
	m.revocations--
	m.mu.Unlock()

	return err
}

func (m *sessionManager) selfRevoking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.revocations > 0
}

func (m *sessionManager) currentSession() *entity.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil
	}
	session := *m.session

	return &session
}

// notify delivers a user-visible notice through the sink without ever letting
// a delivery failure affect session state.
func (m *sessionManager) notify(notice service.Notice) {
	m.spawn(func(ctx context.Context) {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		if err := m.notifier.Notify(notifyCtx, notice); err != nil {
			m.logger.Warn("Notification delivery failed",
				slog.String("title", notice.Title),
				slog.Any("error", err))
		}
	})
}
