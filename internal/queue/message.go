package queue

import (
	"fmt"
	"strings"

	"github.com/clubops/notify-engine/internal/domain"
)

// DispatchMessage is the broker payload for one delivery record submission.
type DispatchMessage struct {
	RecordID      string         `json:"recordId"`
	BatchID       string         `json:"batchId"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Channel       domain.Channel `json:"channel"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.RecordID) == "" {
		return fmt.Errorf("recordId is required")
	}
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	return nil
}
