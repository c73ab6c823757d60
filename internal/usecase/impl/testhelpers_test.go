package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"passport/config"
	"passport/internal/domain/entity"
	"passport/internal/domain/repository"
	"passport/internal/domain/service"
	"passport/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessionConfig() *config.SessionConfig {
	cfg := &config.SessionConfig{
		ResolveAttempts:     3,
		ResolveTimeout:      time.Second,
		ResolveRetryDelay:   time.Millisecond,
		InitTimeout:         time.Second,
		HealthCheckInterval: time.Hour, // ticks driven manually in tests
		RefreshWindow:       time.Minute,
	}

	return cfg
}

func signInInput(userID string) *usecase.SignInInput {
	return &usecase.SignInInput{
		Email:    userID + "@example.com",
		Password: "secret",
	}
}

func testSession(userID string) *entity.Session {
	return &entity.Session{
		UserID:       userID,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		Claims:       entity.SessionClaims{Email: userID + "@example.com"},
	}
}

// manualClock returns a fixed time and records sleeps without waiting.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()

	return nil
}

func (c *manualClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.sleeps)
}

// fakeProvider is a scriptable IdentityProvider.
type fakeProvider struct {
	mu sync.Mutex

	currentSession *entity.Session
	currentErr     error
	currentGate    chan struct{} // CurrentSession blocks on this when set
	refreshSession *entity.Session
	refreshErr     error
	signInSession  *entity.Session
	signInErr      error
	emitOnSignIn   bool // echo the grant as a SIGNED_IN event, like the real client
	adoptSession   *entity.Session
	adoptErr       error
	redirectURL    string
	redirectErr    error
	signOutErr     error

	signOutCalls int
	refreshCalls int

	listeners []service.SessionListener
}

func (p *fakeProvider) CurrentSession(ctx context.Context) (*entity.Session, error) {
	p.mu.Lock()
	gate := p.currentGate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.currentSession == nil {
		return nil, service.ErrNoSession
	}
	session := *p.currentSession

	return &session, nil
}

func (p *fakeProvider) Refresh(_ context.Context) (*entity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshCalls++
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	session := *p.refreshSession

	return &session, nil
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, _, _ string) (*entity.Session, error) {
	p.mu.Lock()
	if p.signInErr != nil {
		err := p.signInErr
		p.mu.Unlock()

		return nil, err
	}
	session := *p.signInSession
	echo := p.emitOnSignIn
	p.mu.Unlock()

	if echo {
		p.emit(service.EventSignedIn, &session)
	}

	return &session, nil
}

func (p *fakeProvider) AdoptSession(_ context.Context, _, _ string) (*entity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adoptErr != nil {
		return nil, p.adoptErr
	}
	session := *p.adoptSession

	return &session, nil
}

func (p *fakeProvider) RedirectURL(_, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.redirectErr != nil {
		return "", p.redirectErr
	}

	return p.redirectURL, nil
}

func (p *fakeProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signOutCalls++
	p.currentSession = nil

	return p.signOutErr
}

func (p *fakeProvider) Subscribe(listener service.SessionListener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = append(p.listeners, listener)
	idx := len(p.listeners) - 1

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listeners[idx] = nil
	}
}

func (p *fakeProvider) emit(event service.SessionEvent, session *entity.Session) {
	p.mu.Lock()
	listeners := make([]service.SessionListener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(event, session)
		}
	}
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.signOutCalls
}

// fakeProfiles serves profiles from a map, optionally failing the first N
// FindByUserID calls or blocking each call on a gate channel.
type fakeProfiles struct {
	mu sync.Mutex

	profiles  map[string]*entity.Profile
	findErr   error
	failFirst int
	findCalls int
	findGate  chan struct{}

	updates   []entity.DisplayFields
	updateErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*entity.Profile)}
}

func (f *fakeProfiles) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	f.mu.Lock()
	f.findCalls++
	calls := f.findCalls
	gate := f.findGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if calls <= f.failFirst {
		return nil, f.findErr
	}
	if f.findErr != nil && f.failFirst == 0 {
		return nil, f.findErr
	}

	profile, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *profile

	return &copied, nil
}

func (f *fakeProfiles) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.findGate = gate
}

func (f *fakeProfiles) UpdateDisplayFields(_ context.Context, _ string, fields entity.DisplayFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, fields)

	return nil
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.findCalls
}

func (f *fakeProfiles) recordedUpdates() []entity.DisplayFields {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]entity.DisplayFields, len(f.updates))
	copy(out, f.updates)

	return out
}

// fakeRoleCache is an in-memory RoleCacheRepository. honorCtx makes reads
// fail on dead contexts the way the blob-backed implementation does.
type fakeRoleCache struct {
	mu sync.Mutex

	roles    map[string]entity.Role
	getErr   error
	setErr   error
	honorCtx bool
	sets     int
}

func newFakeRoleCache() *fakeRoleCache {
	return &fakeRoleCache{roles: make(map[string]entity.Role)}
}

func (c *fakeRoleCache) Get(ctx context.Context, userID string) (*entity.CachedRole, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.honorCtx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if c.getErr != nil {
		return nil, c.getErr
	}
	role, ok := c.roles[userID]
	if !ok {
		return nil, repository.ErrRoleNotCached
	}

	return &entity.CachedRole{Role: role, CachedAt: time.Now()}, nil
}

func (c *fakeRoleCache) Set(_ context.Context, userID string, role entity.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return c.setErr
	}
	c.roles[userID] = role
	c.sets++

	return nil
}

func (c *fakeRoleCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sets
}

// fakeNotifier records delivered notices.
type fakeNotifier struct {
	mu      sync.Mutex
	notices []service.Notice
}

func (n *fakeNotifier) Notify(_ context.Context, notice service.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notices = append(n.notices, notice)

	return nil
}

func (n *fakeNotifier) recorded() []service.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]service.Notice, len(n.notices))
	copy(out, n.notices)

	return out
}

// managerFixture wires a sessionManager against the fakes with a manual clock.
type managerFixture struct {
	mgr       *sessionManager
	provider  *fakeProvider
	profiles  *fakeProfiles
	roleCache *fakeRoleCache
	notifier  *fakeNotifier
	clk       *manualClock
	cfg       *config.SessionConfig
}

func newManagerFixture() *managerFixture {
	f := &managerFixture{
		provider:  &fakeProvider{},
		profiles:  newFakeProfiles(),
		roleCache: newFakeRoleCache(),
		notifier:  &fakeNotifier{},
		clk:       newManualClock(),
		cfg:       testSessionConfig(),
	}

	logger := testLogger()
	f.mgr = &sessionManager{
		provider:    f.provider,
		resolver:    newProfileResolver(f.profiles, f.cfg, f.clk, logger),
		roleCache:   f.roleCache,
		notifier:    f.notifier,
		reconciler:  newMetadataReconciler(f.profiles, logger),
		cfg:         f.cfg,
		clk:         f.clk,
		logger:      logger,
		superAdmins: map[string]struct{}{},
		state:       entity.SessionState{Phase: entity.PhaseInitializing},
	}

	return f
}

// start runs Start and waits for the published phase to leave Initializing.
func (f *managerFixture) start(t interface {
	Helper()
	Fatalf(format string, args ...any)
}) {
	t.Helper()

	if err := f.mgr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.waitPhaseLeft(t, entity.PhaseInitializing)
}

func (f *managerFixture) waitPhaseLeft(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, phase entity.SessionPhase) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.mgr.State().Phase != phase {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("phase never left %s", phase)
}

func (f *managerFixture) waitPhase(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, phase entity.SessionPhase) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.mgr.State().Phase == phase {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("phase never reached %s, got %s", phase, f.mgr.State().Phase)
}
