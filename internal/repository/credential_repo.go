package repository

import (
	"context"
	"errors"

	"github.com/clubops/notify-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepository interface {
	Get(ctx context.Context, key string) (*domain.CredentialSet, error)
	Save(ctx context.Context, c *domain.CredentialSet) error
	UpdateTokens(ctx context.Context, key, accessToken, refreshToken string) error
	ListWithRefreshToken(ctx context.Context) ([]domain.CredentialSet, error)
}

type GormCredentialRepo struct {
	db *gorm.DB
}

func NewGormCredentialRepo(db *gorm.DB) *GormCredentialRepo {
	return &GormCredentialRepo{db: db}
}

func (r *GormCredentialRepo) Get(ctx context.Context, key string) (*domain.CredentialSet, error) {
	var model CredentialSetModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return credentialModelToDomain(&model), nil
}

// Save upserts the full credential set; last write wins.
func (r *GormCredentialRepo) Save(ctx context.Context, c *domain.CredentialSet) error {
	model := credentialModelFromDomain(c)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"app_id", "secret", "access_token", "refresh_token", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}
	if c != nil {
		*c = *credentialModelToDomain(model)
	}
	return nil
}

// UpdateTokens overwrites the token pair in one statement so concurrent
// readers never observe a half-renewed pair.
func (r *GormCredentialRepo) UpdateTokens(ctx context.Context, key, accessToken, refreshToken string) error {
	result := r.db.WithContext(ctx).
		Model(&CredentialSetModel{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormCredentialRepo) ListWithRefreshToken(ctx context.Context) ([]domain.CredentialSet, error) {
	var models []CredentialSetModel
	err := r.db.WithContext(ctx).
		Where("refresh_token <> ''").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sets := make([]domain.CredentialSet, 0, len(models))
	for i := range models {
		sets = append(sets, *credentialModelToDomain(&models[i]))
	}
	return sets, nil
}
