package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"gorm.io/gorm"
)

type CampaignRepository interface {
	Create(ctx context.Context, b *domain.CampaignBatch) error
	GetByID(ctx context.Context, id string) (*domain.CampaignBatch, error)
	List(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error)
	GetDuePending(ctx context.Context, now time.Time, limit int) ([]domain.CampaignBatch, error)
	MarkRunning(ctx context.Context, id string) (bool, error)
	MarkDone(ctx context.Context, id string, totalSuccess int) (bool, error)
	Cancel(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, at time.Time) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) Create(ctx context.Context, b *domain.CampaignBatch) error {
	model := campaignModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *campaignModelToDomain(model)
	}
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.CampaignBatch, error) {
	var model CampaignBatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) List(ctx context.Context, status *domain.CampaignStatus) ([]domain.CampaignBatch, error) {
	query := r.db.WithContext(ctx).Model(&CampaignBatchModel{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var models []CampaignBatchModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	batches := make([]domain.CampaignBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *campaignModelToDomain(&models[i]))
	}
	return batches, nil
}

func (r *GormCampaignRepo) GetDuePending(ctx context.Context, now time.Time, limit int) ([]domain.CampaignBatch, error) {
	var models []CampaignBatchModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)", domain.CampaignPending, now).
		Order("scheduled_at ASC NULLS FIRST").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.CampaignBatch, 0, len(models))
	for i := range models {
		batches = append(batches, *campaignModelToDomain(&models[i]))
	}
	return batches, nil
}

// MarkRunning transitions Pending to Running. Returns false without error
// when another expansion already claimed the batch.
func (r *GormCampaignRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignBatchModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignPending).
		Updates(map[string]any{
			"status":       domain.CampaignRunning,
			"update_count": gorm.Expr("update_count + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkDone transitions Running to Done and records the delivered count.
// Returns false when the batch is not running anymore (e.g. cancelled).
func (r *GormCampaignRepo) MarkDone(ctx context.Context, id string, totalSuccess int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignBatchModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignRunning).
		Updates(map[string]any{
			"status":        domain.CampaignDone,
			"total_success": totalSuccess,
			"update_count":  gorm.Expr("update_count + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormCampaignRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignBatchModel{}).
		Where("id = ? AND status IN ?", id, []domain.CampaignStatus{domain.CampaignPending, domain.CampaignRunning}).
		Updates(map[string]any{
			"status":       domain.CampaignCancelled,
			"update_count": gorm.Expr("update_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Reschedule moves a pending batch's process time, retaining the previous
// schedule for audit.
func (r *GormCampaignRepo) Reschedule(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignBatchModel{}).
		Where("id = ? AND status = ?", id, domain.CampaignPending).
		Updates(map[string]any{
			"prev_scheduled_at": gorm.Expr("scheduled_at"),
			"scheduled_at":      at,
			"update_count":      gorm.Expr("update_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
