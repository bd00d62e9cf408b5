package domain

import (
	"fmt"
	"time"
)

// DeliveryStatus is the provider-facing state of one recipient's message.
// Values are small integers because the provider reports them numerically.
type DeliveryStatus int

const (
	DeliveryQueued    DeliveryStatus = 0
	DeliverySent      DeliveryStatus = 1
	DeliveryDelivered DeliveryStatus = 2
	DeliveryFailed    DeliveryStatus = 3
	DeliveryCancelled DeliveryStatus = 4

	// DeliverySending is the internal in-flight claim a worker takes on a
	// queued record before calling the provider. Exactly one worker can
	// hold it; the provider never reports this value.
	DeliverySending DeliveryStatus = 5
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryQueued:
		return "queued"
	case DeliverySent:
		return "sent"
	case DeliveryDelivered:
		return "delivered"
	case DeliveryFailed:
		return "failed"
	case DeliveryCancelled:
		return "cancelled"
	case DeliverySending:
		return "sending"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryQueued, DeliverySent, DeliveryDelivered, DeliveryFailed, DeliveryCancelled, DeliverySending:
		return true
	}
	return false
}

// IsTerminal reports whether the record has left the dispatch pipeline.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryFailed, DeliveryCancelled:
		return true
	}
	return false
}

// DeliveryRecord is one recipient's row within a campaign batch. The Params
// snapshot is frozen at expansion time and never recomputed; reprocessing a
// record reuses it as-is.
type DeliveryRecord struct {
	ID                string
	BatchID           string
	Recipient         string
	Params            map[string]string
	TelcoID           string
	ChannelID         string
	ProviderMessageID string
	RoutingRuleUsed   string
	TemplateCodeUsed  string
	Status            DeliveryStatus
	RetryCount        int
	ReportCount       int
	MaxRetries        int
	Charged           bool
	NextRetryAt       *time.Time
	ScheduledAt       *time.Time
	ProcessedAt       *time.Time
	ReportedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r *DeliveryRecord) Validate() error {
	if r.BatchID == "" {
		return fmt.Errorf("%w: batch id is required", ErrValidation)
	}
	if r.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %d", ErrValidation, r.Status)
	}
	if r.RetryCount < 0 || r.ReportCount < 0 {
		return fmt.Errorf("%w: negative counters", ErrValidation)
	}
	return nil
}

// Receipt is an asynchronous delivery callback from the provider. ReceiptID
// identifies one report event and drives duplicate suppression; providers
// may legitimately report the same record several times with distinct ids.
type Receipt struct {
	ReceiptID         string
	ProviderMessageID string
	BatchID           string
	Recipient         string
	StatusCode        int
	TelcoID           string
	ChannelID         string
	ReportedAt        time.Time
}

// Outcome maps the provider's numeric receipt code onto a delivery status:
// 0 accepted by the telco, 1 delivered to the handset, anything else is a
// provider failure code.
func (r Receipt) Outcome() DeliveryStatus {
	switch r.StatusCode {
	case 0:
		return DeliverySent
	case 1:
		return DeliveryDelivered
	default:
		return DeliveryFailed
	}
}
