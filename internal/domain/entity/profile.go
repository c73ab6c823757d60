package entity

import "time"

// Profile is the durable per-user record held by the profile store.
// It carries the authorization role, the enabled flag, and display metadata.
type Profile struct {
	UserID      string    // Opaque identity-provider user id, primary correlation key.
	Email       string    // Contact email as stored in the profile.
	DisplayName string    // Display name as stored in the profile.
	AvatarURL   string    // Avatar URL as stored in the profile.
	Role        Role      // Authorization tier.
	Enabled     bool      // Whether the account may hold a session.
	CreatedAt   time.Time // Timestamp of when the profile row was created.
	UpdatedAt   time.Time // Timestamp of the last modification.
}

// DisplayFields is the subset of profile columns the metadata reconciler is
// allowed to correct from identity-provider hints.
type DisplayFields struct {
	DisplayName *string
	AvatarURL   *string
}

// Empty reports whether no correction is pending.
func (f DisplayFields) Empty() bool {
	return f.DisplayName == nil && f.AvatarURL == nil
}
