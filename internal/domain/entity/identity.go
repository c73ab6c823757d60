package entity

// ResolvedIdentity is the merged, application-facing view of the signed-in
// user: identity-provider claims layered over the stored profile. It is
// rebuilt every time a session is established or refreshed and published
// atomically, consumers never observe a partially merged identity.
type ResolvedIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
	Role        Role // Never empty, falls back to a cached role or RoleUser.
	Enabled     bool
}

// MergeIdentity builds the published identity from a session and the profile
// resolution outcome. Provider display fields win over stored profile fields
// when present.
func MergeIdentity(session *Session, profile *Profile) ResolvedIdentity {
	identity := ResolvedIdentity{
		UserID:  session.UserID,
		Email:   session.Claims.Email,
		Role:    profile.Role,
		Enabled: profile.Enabled,
	}
	if identity.Email == "" {
		identity.Email = profile.Email
	}

	identity.DisplayName = session.Claims.Name
	if identity.DisplayName == "" {
		identity.DisplayName = profile.DisplayName
	}

	identity.AvatarURL = session.Claims.AvatarURL
	if identity.AvatarURL == "" {
		identity.AvatarURL = profile.AvatarURL
	}

	if identity.Role == "" {
		identity.Role = RoleUser
	}

	return identity
}
