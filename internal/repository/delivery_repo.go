package repository

import (
	"context"
	"errors"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusCount is one row of a per-batch status breakdown.
type StatusCount struct {
	Status domain.DeliveryStatus `gorm:"column:status"`
	Count  int                   `gorm:"column:count"`
}

// SentInfo carries provider metadata captured on a successful submission.
type SentInfo struct {
	ProviderMessageID string
	TelcoID           string
	ChannelID         string
	RoutingRuleUsed   string
	TemplateCodeUsed  string
	Charged           bool
	ProcessedAt       time.Time
}

type DeliveryRepository interface {
	CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	GetByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error)
	GetLatestByBatchRecipient(ctx context.Context, batchID, recipient string) (*domain.DeliveryRecord, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error)
	LockForSending(ctx context.Context, id string) (*domain.DeliveryRecord, error)
	MarkSent(ctx context.Context, id string, info SentInfo) error
	MarkFailed(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	UpdateForRetry(ctx context.Context, id string, nextRetryAt time.Time) error
	ScheduleRepublish(ctx context.Context, id string, nextRetryAt time.Time) error
	ClearNextRetryAt(ctx context.Context, id string) error
	GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryRecord, error)
	CancelQueuedByBatch(ctx context.Context, batchID string) (int64, error)
	GetBatchStatusCounts(ctx context.Context, batchID string) ([]StatusCount, error)
	ApplyReceipt(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

// CreateBatch inserts records in chunks, skipping rows that already exist
// for the same (batch, recipient) pair so batch expansion is retry-safe.
func (r *GormDeliveryRepo) CreateBatch(ctx context.Context, records []*domain.DeliveryRecord) error {
	models := make([]DeliveryRecordModel, 0, len(records))
	for _, record := range records {
		model := deliveryModelFromDomain(record)
		if model != nil {
			models = append(models, *model)
		}
	}

	if len(models) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_id"}, {Name: "recipient"}},
			DoNothing: true,
		}).
		CreateInBatches(&models, 100).Error
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	var model DeliveryRecordModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) GetByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DeliveryRecord, error) {
	var model DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMsgID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) GetLatestByBatchRecipient(ctx context.Context, batchID, recipient string) (*domain.DeliveryRecord, error) {
	var model DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND recipient = ?", batchID, recipient).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.DeliveryRecord, error) {
	var models []DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}
	return records, nil
}

// LockForSending claims a queued record for dispatch by moving it to the
// sending state. The compare-and-swap on status guarantees at most one
// consumer wins a redelivered message. A nil record without error means the
// record already left the queue and the message should be acked without work.
func (r *GormDeliveryRepo) LockForSending(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	claim := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryQueued).
		Update("status", domain.DeliverySending)
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).
			Model(&DeliveryRecordModel{}).
			Where("id = ?", id).
			Count(&exists).Error; err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, domain.ErrNotFound
		}
		return nil, nil
	}

	var model DeliveryRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) MarkSent(ctx context.Context, id string, info SentInfo) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              domain.DeliverySent,
			"provider_message_id": info.ProviderMessageID,
			"telco_id":            info.TelcoID,
			"channel_id":          info.ChannelID,
			"routing_rule_used":   info.RoutingRuleUsed,
			"template_code_used":  info.TemplateCodeUsed,
			"charged":             info.Charged,
			"processed_at":        info.ProcessedAt,
			"next_retry_at":       nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDeliveryRepo) MarkFailed(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.DeliveryFailed,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCancelled resolves a record that was claimed for sending before its
// batch cancellation landed. The worker saw the cancellation, so nothing
// went out to the provider.
func (r *GormDeliveryRepo) MarkCancelled(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.DeliveryCancelled,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateForRetry re-queues a record after a failed provider attempt and
// consumes one unit of the retry budget.
func (r *GormDeliveryRepo) UpdateForRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.DeliveryQueued,
			"next_retry_at": nextRetryAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ScheduleRepublish hands a still-queued record to the retry scanner after
// a broker publish failure. The provider was never attempted, so the retry
// budget stays untouched.
func (r *GormDeliveryRepo) ScheduleRepublish(ctx context.Context, id string, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryQueued).
		Update("next_retry_at", nextRetryAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearNextRetryAt removes the retry marker once a record has been
// re-enqueued, so the next scan does not publish it again.
func (r *GormDeliveryRepo) ClearNextRetryAt(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("id = ?", id).
		Update("next_retry_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDeliveryRepo) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryRecord, error) {
	var models []DeliveryRecordModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", domain.DeliveryQueued, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.DeliveryRecord, 0, len(models))
	for i := range models {
		records = append(records, *deliveryModelToDomain(&models[i]))
	}
	return records, nil
}

// CancelQueuedByBatch cancels records that never left the queue. Records
// already sent, delivered, or failed are deliberately untouched.
func (r *GormDeliveryRepo) CancelQueuedByBatch(ctx context.Context, batchID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Where("batch_id = ? AND status = ?", batchID, domain.DeliveryQueued).
		Updates(map[string]any{
			"status":        domain.DeliveryCancelled,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormDeliveryRepo) GetBatchStatusCounts(ctx context.Context, batchID string) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&DeliveryRecordModel{}).
		Select("status, COUNT(*) as count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ApplyReceipt applies one provider receipt to a record inside a single
// transaction: the receipt event row deduplicates on (record, receipt id),
// and the record row is locked so concurrent duplicate receipts cannot lose
// counter updates. Returns false when the receipt was already applied.
func (r *GormDeliveryRepo) ApplyReceipt(ctx context.Context, recordID string, receipt domain.Receipt) (bool, error) {
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := ReceiptEventModel{
			ID:         uuid.NewString(),
			RecordID:   recordID,
			ReceiptID:  receipt.ReceiptID,
			StatusCode: receipt.StatusCode,
		}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}, {Name: "receipt_id"}},
			DoNothing: true,
		}).Create(&event)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			// Duplicate receipt; nothing to change.
			return nil
		}

		var model DeliveryRecordModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", recordID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"report_count": gorm.Expr("report_count + 1"),
			"reported_at":  receipt.ReportedAt,
		}
		// A cancelled record never had a live handoff; keep its status but
		// still count the report.
		if model.Status != domain.DeliveryCancelled {
			updates["status"] = receipt.Outcome()
		}
		if receipt.TelcoID != "" {
			updates["telco_id"] = receipt.TelcoID
		}
		if receipt.ChannelID != "" {
			updates["channel_id"] = receipt.ChannelID
		}

		if err := tx.Model(&DeliveryRecordModel{}).
			Where("id = ?", recordID).
			Updates(updates).Error; err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}
