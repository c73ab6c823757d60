package impl

import (
	"context"
	"log/slog"
	"time"

	"passport/config"
	deliverycontext "passport/internal/delivery/context"
	"passport/internal/domain/entity"
	"passport/internal/domain/repository"

	"github.com/pkg/errors"
)

// profileResolver fetches the durable profile for a user id with a bounded
// retry budget. Each attempt races the profile store against a fixed
// per-attempt timeout; attempts run sequentially with a constant delay in
// between. Exhaustion returns an error, never a panic or a hang: the caller
// owns the cache-fallback decision, which keeps retry policy and fallback
// policy independently testable.
type profileResolver struct {
	profiles       repository.ProfileRepository
	attempts       int
	attemptTimeout time.Duration
	retryDelay     time.Duration
	clk            clock
	logger         *slog.Logger
}

func newProfileResolver(profiles repository.ProfileRepository, cfg *config.SessionConfig, clk clock, logger *slog.Logger) *profileResolver {
	return &profileResolver{
		profiles:       profiles,
		attempts:       cfg.ResolveAttempts,
		attemptTimeout: cfg.ResolveTimeout,
		retryDelay:     cfg.ResolveRetryDelay,
		clk:            clk,
		logger:         logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the resolver's logger.
func (r *profileResolver) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, r.logger)
}

// Resolve fetches the profile for userID, retrying transient failures up to
// the attempt budget. A timed-out attempt counts as a failed attempt, not as
// a separate error class.
func (r *profileResolver) Resolve(ctx context.Context, userID string) (*entity.Profile, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			if err := r.clk.Sleep(ctx, r.retryDelay); err != nil {
				return nil, errors.Wrap(err, "profile resolution aborted")
			}
		}

		profile, err := r.fetchOnce(ctx, userID)
		if err == nil {
			r.log(ctx).Debug("Profile resolved",
				slog.String("user_id", userID),
				slog.Int("attempt", attempt))

			return profile, nil
		}
		lastErr = err

		r.log(ctx).Warn("Profile fetch attempt failed",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
			slog.Int("budget", r.attempts),
			slog.Any("error", err))

		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "profile resolution aborted")
		}
	}

	return nil, errors.Wrapf(lastErr, "profile resolution exhausted after %d attempts", r.attempts)
}

// fetchOnce performs a single attempt bounded by the per-attempt timeout.
func (r *profileResolver) fetchOnce(ctx context.Context, userID string) (*entity.Profile, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	profile, err := r.profiles.FindByUserID(attemptCtx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch profile")
	}

	return profile, nil
}
