package postgres

import (
	"context"
	"time"

	"passport/internal/domain/entity"
	"passport/internal/domain/repository"
	"passport/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// profileRepository implements the domain ProfileRepository interface using GORM.
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository is the constructor for profileRepository.
// It returns the repository as a domain repository interface, adhering to dependency inversion.
func NewProfileRepository(db *gorm.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

// FindByUserID retrieves a single profile by the identity provider's user id.
func (repo *profileRepository) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	var profileM model.ProfileModel
	err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profileM).Error

	if err != nil {
		// If the error is 'record not found', return a domain-specific error.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProfileNotFound
		}

		return nil, errors.Wrap(err, "failed to find profile by user id")
	}

	// Map the persistence model back to a pure domain entity before returning.
	return toProfileDomain(&profileM), nil
}

// UpdateDisplayFields writes only the provided display columns. Role and
// enabled are authorization data owned by backend administration and are
// never part of the update set here.
func (repo *profileRepository) UpdateDisplayFields(ctx context.Context, userID string, fields entity.DisplayFields) error {
	if fields.Empty() {
		return nil
	}

	updates := map[string]any{"updated_at": time.Now()}
	if fields.DisplayName != nil {
		updates["display_name"] = *fields.DisplayName
	}
	if fields.AvatarURL != nil {
		updates["avatar_url"] = *fields.AvatarURL
	}

	result := repo.db.WithContext(ctx).
		Model(&model.ProfileModel{}).
		Where("user_id = ?", userID).
		Updates(updates)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update profile display fields")
	}
	if result.RowsAffected == 0 {
		return repository.ErrProfileNotFound
	}

	return nil
}

// toProfileDomain maps the persistence model to the pure domain entity.
func toProfileDomain(profileM *model.ProfileModel) *entity.Profile {
	return &entity.Profile{
		UserID:      profileM.UserID,
		Email:       profileM.Email,
		DisplayName: profileM.DisplayName,
		AvatarURL:   profileM.AvatarURL,
		Role:        entity.Role(profileM.Role),
		Enabled:     profileM.Enabled,
		CreatedAt:   profileM.CreatedAt,
		UpdatedAt:   profileM.UpdatedAt,
	}
}
