package impl

import (
	"context"
	"testing"

	"passport/internal/domain/entity"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffDisplayFields(t *testing.T) {
	tests := []struct {
		name    string
		claims  entity.SessionClaims
		profile entity.Profile
		want    entity.DisplayFields
	}{
		{
			name:    "no provider claims changes nothing",
			claims:  entity.SessionClaims{},
			profile: entity.Profile{DisplayName: "Stored", AvatarURL: "https://img/a.png"},
			want:    entity.DisplayFields{},
		},
		{
			name:    "matching values change nothing",
			claims:  entity.SessionClaims{Name: "Stored", AvatarURL: "https://img/a.png"},
			profile: entity.Profile{DisplayName: "Stored", AvatarURL: "https://img/a.png"},
			want:    entity.DisplayFields{},
		},
		{
			name:    "differing name is selected",
			claims:  entity.SessionClaims{Name: "Fresh"},
			profile: entity.Profile{DisplayName: "Stored"},
			want:    entity.DisplayFields{DisplayName: strPtr("Fresh")},
		},
		{
			name:    "differing avatar is selected",
			claims:  entity.SessionClaims{AvatarURL: "https://img/new.png"},
			profile: entity.Profile{AvatarURL: "https://img/old.png"},
			want:    entity.DisplayFields{AvatarURL: strPtr("https://img/new.png")},
		},
		{
			name:    "empty claim never clobbers stored value",
			claims:  entity.SessionClaims{Name: ""},
			profile: entity.Profile{DisplayName: "Stored"},
			want:    entity.DisplayFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := testSession("user-1")
			session.Claims = tt.claims

			got := diffDisplayFields(session, &tt.profile)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileWritesOnlyWhenFieldsDiffer(t *testing.T) {
	profiles := newFakeProfiles()
	r := newMetadataReconciler(profiles, testLogger())

	session := testSession("user-1")
	session.Claims.Name = "Fresh"
	profile := &entity.Profile{UserID: "user-1", DisplayName: "Stored"}

	r.reconcile(context.Background(), session, profile)

	updates := profiles.recordedUpdates()
	require.Len(t, updates, 1)
	require.NotNil(t, updates[0].DisplayName)
	assert.Equal(t, "Fresh", *updates[0].DisplayName)
	assert.Nil(t, updates[0].AvatarURL)
}

func TestReconcileSkipsWhenNothingChanged(t *testing.T) {
	profiles := newFakeProfiles()
	r := newMetadataReconciler(profiles, testLogger())

	session := testSession("user-1")
	session.Claims.Name = "Same"
	profile := &entity.Profile{UserID: "user-1", DisplayName: "Same"}

	r.reconcile(context.Background(), session, profile)

	assert.Empty(t, profiles.recordedUpdates())
}

func TestReconcileSwallowsStoreErrors(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.updateErr = errors.New("store down")
	r := newMetadataReconciler(profiles, testLogger())

	session := testSession("user-1")
	session.Claims.Name = "Fresh"
	profile := &entity.Profile{UserID: "user-1", DisplayName: "Stored"}

	// Must not panic or propagate, reconciliation is best effort.
	r.reconcile(context.Background(), session, profile)

	assert.Empty(t, profiles.recordedUpdates())
}

func strPtr(s string) *string {
	return &s
}
