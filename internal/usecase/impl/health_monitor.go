package impl

import (
	"context"
	"log/slog"
	"time"

	"passport/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	healthProbeTimeout = 10 * time.Second
	notifyTimeout      = 5 * time.Second
)

// healthMonitor periodically verifies that the session the manager believes
// it holds still matches the provider's, and refreshes tokens that are about
// to expire so they never lapse mid-use.
type healthMonitor struct {
	mgr *sessionManager
}

func newHealthMonitor(mgr *sessionManager) *healthMonitor {
	return &healthMonitor{mgr: mgr}
}

func (h *healthMonitor) run(ctx context.Context) {
	interval := h.mgr.cfg.HealthCheckInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

// check runs one health probe. Only transport-verified facts cause state
// transitions; a probe that merely failed to reach the provider changes
// nothing, so flaky networks cannot log anyone out.
func (h *healthMonitor) check(ctx context.Context) {
	mgr := h.mgr
	if !mgr.IsAuthenticated() {
		return
	}

	held := mgr.currentSession()
	if held == nil {
		return
	}

	gen := mgr.generation()

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	current, err := mgr.provider.CurrentSession(probeCtx)
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			mgr.logger.Info("Health check found no provider session")
			mgr.toUnauthenticated("session expired")

			return
		}

		mgr.logger.Warn("Health check probe failed", slog.Any("error", err))

		return
	}

	if current.UserID != held.UserID {
		// Another principal took over the underlying credentials store.
		// Drop local state rather than operating with the wrong identity.
		mgr.logger.Warn("Session user changed underneath the manager",
			slog.String("held_user_id", held.UserID),
			slog.String("current_user_id", current.UserID))
		mgr.toUnauthenticated("session user mismatch")

		return
	}

	if !current.ExpiresWithin(mgr.clk.Now(), mgr.cfg.RefreshWindow) {
		return
	}

	refreshed, err := mgr.provider.Refresh(probeCtx)
	if err != nil {
		mgr.logger.Warn("Proactive token refresh failed", slog.Any("error", err))
		h.forceSignOut(probeCtx)

		return
	}

	mgr.logger.Info("Token refreshed proactively",
		slog.String("user_id", refreshed.UserID),
		slog.Time("expires_at", refreshed.ExpiresAt))
	mgr.resolveAndPublish(ctx, refreshed, gen)
}

// forceSignOut handles an unrefreshable session: revoke it, tell the user,
// and drop to Unauthenticated.
func (h *healthMonitor) forceSignOut(ctx context.Context) {
	mgr := h.mgr

	if err := mgr.revokeProviderSession(ctx); err != nil {
		mgr.logger.Warn("Sign-out after failed refresh also failed", slog.Any("error", err))
	}

	mgr.notify(service.Notice{
		Severity: service.SeverityError,
		Title:    "登入已過期",
		Body:     "無法更新您的登入狀態，請重新登入",
	})

	mgr.toUnauthenticated("token refresh failed")
}
