package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign batch.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "PENDING"
	CampaignRunning   CampaignStatus = "RUNNING"
	CampaignDone      CampaignStatus = "DONE"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignPending, CampaignRunning, CampaignDone, CampaignCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignDone || s == CampaignCancelled
}

// CanTransition reports whether moving to next is a legal lifecycle step.
// Pending may start running or be cancelled; running may finish or be
// cancelled; Done and Cancelled are terminal.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	switch s {
	case CampaignPending:
		return next == CampaignRunning || next == CampaignCancelled
	case CampaignRunning:
		return next == CampaignDone || next == CampaignCancelled
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// CampaignBatch is a named, schedulable group of recipients for one dispatch
// of a template binding.
type CampaignBatch struct {
	ID              string
	Name            string
	BindingID       string
	RoutingRule     string
	Recipients      []string
	ScheduledAt     *time.Time
	PrevScheduledAt *time.Time
	Status          CampaignStatus
	Total           int
	TotalSuccess    int
	UpdateCount     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b *CampaignBatch) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: campaign name is required", ErrValidation)
	}
	if strings.TrimSpace(b.BindingID) == "" {
		return fmt.Errorf("%w: binding id is required", ErrValidation)
	}
	if len(b.Recipients) == 0 {
		return fmt.Errorf("%w: campaign requires at least one recipient", ErrValidation)
	}
	for i, recipient := range b.Recipients {
		if strings.TrimSpace(recipient) == "" {
			return fmt.Errorf("%w: recipient %d is empty", ErrValidation, i)
		}
	}
	if b.TotalSuccess > b.Total {
		return fmt.Errorf("%w: total success %d exceeds total %d", ErrValidation, b.TotalSuccess, b.Total)
	}
	return nil
}
