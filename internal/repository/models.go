package repository

import (
	"encoding/json"
	"time"

	"github.com/clubops/notify-engine/internal/domain"
)

// TemplateBindingModel is the persistence model for template_bindings.
type TemplateBindingModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Trigger      string         `gorm:"type:varchar(100);not null"`
	Enabled      bool           `gorm:"not null;default:true"`
	Condition    string         `gorm:"type:text"`
	Channel      domain.Channel `gorm:"type:varchar(10);not null"`
	RoutingRules string         `gorm:"type:jsonb;not null;default:'[]'"`
	TemplateCode string         `gorm:"type:varchar(100)"`
	TemplateKey  string         `gorm:"type:varchar(255)"`
	Params       string         `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (TemplateBindingModel) TableName() string {
	return "template_bindings"
}

// CampaignBatchModel is the persistence model for campaign_batches.
type CampaignBatchModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	Name            string                `gorm:"type:varchar(255);not null"`
	BindingID       string                `gorm:"type:uuid;not null"`
	RoutingRule     string                `gorm:"type:varchar(100)"`
	Recipients      string                `gorm:"type:jsonb;not null;default:'[]'"`
	ScheduledAt     *time.Time            `gorm:"type:timestamptz"`
	PrevScheduledAt *time.Time            `gorm:"type:timestamptz"`
	Status          domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	Total           int                   `gorm:"not null;default:0"`
	TotalSuccess    int                   `gorm:"not null;default:0"`
	UpdateCount     int                   `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CampaignBatchModel) TableName() string {
	return "campaign_batches"
}

// DeliveryRecordModel is the persistence model for delivery_records.
type DeliveryRecordModel struct {
	ID                string                `gorm:"type:uuid;primaryKey"`
	BatchID           string                `gorm:"type:uuid;not null"`
	Recipient         string                `gorm:"type:varchar(100);not null"`
	Params            string                `gorm:"type:jsonb;not null;default:'{}'"`
	TelcoID           string                `gorm:"type:varchar(50)"`
	ChannelID         string                `gorm:"type:varchar(100)"`
	ProviderMessageID string                `gorm:"type:varchar(255)"`
	RoutingRuleUsed   string                `gorm:"type:varchar(100)"`
	TemplateCodeUsed  string                `gorm:"type:varchar(100)"`
	Status            domain.DeliveryStatus `gorm:"not null;default:0"`
	RetryCount        int                   `gorm:"not null;default:0"`
	ReportCount       int                   `gorm:"not null;default:0"`
	MaxRetries        int                   `gorm:"not null;default:5"`
	Charged           bool                  `gorm:"not null;default:false"`
	NextRetryAt       *time.Time
	ScheduledAt       *time.Time `gorm:"type:timestamptz"`
	ProcessedAt       *time.Time `gorm:"type:timestamptz"`
	ReportedAt        *time.Time `gorm:"type:timestamptz"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (DeliveryRecordModel) TableName() string {
	return "delivery_records"
}

// ReceiptEventModel deduplicates provider receipts per delivery record.
type ReceiptEventModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	RecordID   string `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_events_record_receipt"`
	ReceiptID  string `gorm:"type:varchar(255);not null;uniqueIndex:idx_receipt_events_record_receipt"`
	StatusCode int    `gorm:"not null"`
	CreatedAt  time.Time
}

func (ReceiptEventModel) TableName() string {
	return "receipt_events"
}

// CredentialSetModel is the persistence model for credential_sets.
type CredentialSetModel struct {
	Key          string `gorm:"type:varchar(100);primaryKey"`
	AppID        string `gorm:"type:varchar(255);not null"`
	Secret       string `gorm:"type:varchar(255);not null"`
	AccessToken  string `gorm:"type:text"`
	RefreshToken string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (CredentialSetModel) TableName() string {
	return "credential_sets"
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalStringMap(data string) map[string]string {
	if data == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalParams(data string) []domain.ParamBinding {
	if data == "" {
		return nil
	}
	var out []domain.ParamBinding
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil
	}
	return out
}

func bindingModelFromDomain(b *domain.TemplateBinding) *TemplateBindingModel {
	if b == nil {
		return nil
	}

	return &TemplateBindingModel{
		ID:           b.ID,
		Trigger:      b.Trigger,
		Enabled:      b.Enabled,
		Condition:    b.Condition,
		Channel:      b.Channel,
		RoutingRules: marshalJSON(b.RoutingRules),
		TemplateCode: b.TemplateCode,
		TemplateKey:  b.TemplateKey,
		Params:       marshalJSON(b.Params),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func bindingModelToDomain(m *TemplateBindingModel) *domain.TemplateBinding {
	if m == nil {
		return nil
	}

	return &domain.TemplateBinding{
		ID:           m.ID,
		Trigger:      m.Trigger,
		Enabled:      m.Enabled,
		Condition:    m.Condition,
		Channel:      m.Channel,
		RoutingRules: unmarshalStrings(m.RoutingRules),
		TemplateCode: m.TemplateCode,
		TemplateKey:  m.TemplateKey,
		Params:       unmarshalParams(m.Params),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func campaignModelFromDomain(b *domain.CampaignBatch) *CampaignBatchModel {
	if b == nil {
		return nil
	}

	return &CampaignBatchModel{
		ID:              b.ID,
		Name:            b.Name,
		BindingID:       b.BindingID,
		RoutingRule:     b.RoutingRule,
		Recipients:      marshalJSON(b.Recipients),
		ScheduledAt:     b.ScheduledAt,
		PrevScheduledAt: b.PrevScheduledAt,
		Status:          b.Status,
		Total:           b.Total,
		TotalSuccess:    b.TotalSuccess,
		UpdateCount:     b.UpdateCount,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignBatchModel) *domain.CampaignBatch {
	if m == nil {
		return nil
	}

	return &domain.CampaignBatch{
		ID:              m.ID,
		Name:            m.Name,
		BindingID:       m.BindingID,
		RoutingRule:     m.RoutingRule,
		Recipients:      unmarshalStrings(m.Recipients),
		ScheduledAt:     m.ScheduledAt,
		PrevScheduledAt: m.PrevScheduledAt,
		Status:          m.Status,
		Total:           m.Total,
		TotalSuccess:    m.TotalSuccess,
		UpdateCount:     m.UpdateCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func deliveryModelFromDomain(r *domain.DeliveryRecord) *DeliveryRecordModel {
	if r == nil {
		return nil
	}

	return &DeliveryRecordModel{
		ID:                r.ID,
		BatchID:           r.BatchID,
		Recipient:         r.Recipient,
		Params:            marshalJSON(r.Params),
		TelcoID:           r.TelcoID,
		ChannelID:         r.ChannelID,
		ProviderMessageID: r.ProviderMessageID,
		RoutingRuleUsed:   r.RoutingRuleUsed,
		TemplateCodeUsed:  r.TemplateCodeUsed,
		Status:            r.Status,
		RetryCount:        r.RetryCount,
		ReportCount:       r.ReportCount,
		MaxRetries:        r.MaxRetries,
		Charged:           r.Charged,
		NextRetryAt:       r.NextRetryAt,
		ScheduledAt:       r.ScheduledAt,
		ProcessedAt:       r.ProcessedAt,
		ReportedAt:        r.ReportedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryRecordModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		ID:                m.ID,
		BatchID:           m.BatchID,
		Recipient:         m.Recipient,
		Params:            unmarshalStringMap(m.Params),
		TelcoID:           m.TelcoID,
		ChannelID:         m.ChannelID,
		ProviderMessageID: m.ProviderMessageID,
		RoutingRuleUsed:   m.RoutingRuleUsed,
		TemplateCodeUsed:  m.TemplateCodeUsed,
		Status:            m.Status,
		RetryCount:        m.RetryCount,
		ReportCount:       m.ReportCount,
		MaxRetries:        m.MaxRetries,
		Charged:           m.Charged,
		NextRetryAt:       m.NextRetryAt,
		ScheduledAt:       m.ScheduledAt,
		ProcessedAt:       m.ProcessedAt,
		ReportedAt:        m.ReportedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func credentialModelFromDomain(c *domain.CredentialSet) *CredentialSetModel {
	if c == nil {
		return nil
	}

	return &CredentialSetModel{
		Key:          c.Key,
		AppID:        c.AppID,
		Secret:       c.Secret,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func credentialModelToDomain(m *CredentialSetModel) *domain.CredentialSet {
	if m == nil {
		return nil
	}

	return &domain.CredentialSet{
		Key:          m.Key,
		AppID:        m.AppID,
		Secret:       m.Secret,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
