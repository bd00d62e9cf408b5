package repository

import (
	"context"
	"errors"

	"github.com/clubops/notify-engine/internal/domain"
	"gorm.io/gorm"
)

type BindingRepository interface {
	Create(ctx context.Context, b *domain.TemplateBinding) error
	GetByID(ctx context.Context, id string) (*domain.TemplateBinding, error)
	GetEnabledByTrigger(ctx context.Context, trigger string) (*domain.TemplateBinding, error)
	List(ctx context.Context) ([]domain.TemplateBinding, error)
	Update(ctx context.Context, b *domain.TemplateBinding) error
	Delete(ctx context.Context, id string) error
}

type GormBindingRepo struct {
	db *gorm.DB
}

func NewGormBindingRepo(db *gorm.DB) *GormBindingRepo {
	return &GormBindingRepo{db: db}
}

func (r *GormBindingRepo) Create(ctx context.Context, b *domain.TemplateBinding) error {
	model := bindingModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if b != nil {
		*b = *bindingModelToDomain(model)
	}
	return nil
}

func (r *GormBindingRepo) GetByID(ctx context.Context, id string) (*domain.TemplateBinding, error) {
	var model TemplateBindingModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bindingModelToDomain(&model), nil
}

func (r *GormBindingRepo) GetEnabledByTrigger(ctx context.Context, trigger string) (*domain.TemplateBinding, error) {
	var model TemplateBindingModel
	err := r.db.WithContext(ctx).
		Where("trigger = ? AND enabled = ?", trigger, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bindingModelToDomain(&model), nil
}

func (r *GormBindingRepo) List(ctx context.Context) ([]domain.TemplateBinding, error) {
	var models []TemplateBindingModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	bindings := make([]domain.TemplateBinding, 0, len(models))
	for i := range models {
		bindings = append(bindings, *bindingModelToDomain(&models[i]))
	}
	return bindings, nil
}

func (r *GormBindingRepo) Update(ctx context.Context, b *domain.TemplateBinding) error {
	model := bindingModelFromDomain(b)
	result := r.db.WithContext(ctx).
		Model(&TemplateBindingModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"trigger":       model.Trigger,
			"enabled":       model.Enabled,
			"condition":     model.Condition,
			"channel":       model.Channel,
			"routing_rules": model.RoutingRules,
			"template_code": model.TemplateCode,
			"template_key":  model.TemplateKey,
			"params":        model.Params,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBindingRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&TemplateBindingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
