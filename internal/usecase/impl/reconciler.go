package impl

import (
	"context"
	"log/slog"
	"time"

	"passport/internal/domain/entity"
	"passport/internal/domain/repository"
)

const reconcileTimeout = 10 * time.Second

// metadataReconciler keeps the stored profile's display fields aligned with
// what the identity provider asserts about the user. It runs after the
// session state has already been published, so a slow or failing profile
// store can never delay sign-in. Role and enabled are never written here.
type metadataReconciler struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

func newMetadataReconciler(profiles repository.ProfileRepository, logger *slog.Logger) *metadataReconciler {
	return &metadataReconciler{profiles: profiles, logger: logger}
}

func (r *metadataReconciler) reconcile(ctx context.Context, session *entity.Session, profile *entity.Profile) {
	fields := diffDisplayFields(session, profile)
	if fields.Empty() {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	if err := r.profiles.UpdateDisplayFields(updateCtx, session.UserID, fields); err != nil {
		r.logger.Warn("Display metadata reconciliation failed",
			slog.String("user_id", session.UserID),
			slog.Any("error", err))

		return
	}

	r.logger.Debug("Display metadata reconciled", slog.String("user_id", session.UserID))
}

// diffDisplayFields selects only fields where the provider asserts a
// non-empty value that differs from the stored one. Empty provider claims
// never clobber stored data.
func diffDisplayFields(session *entity.Session, profile *entity.Profile) entity.DisplayFields {
	var fields entity.DisplayFields

	if name := session.Claims.Name; name != "" && name != profile.DisplayName {
		fields.DisplayName = &name
	}
	if avatar := session.Claims.AvatarURL; avatar != "" && avatar != profile.AvatarURL {
		fields.AvatarURL = &avatar
	}

	return fields
}
