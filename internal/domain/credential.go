package domain

import (
	"fmt"
	"strings"
	"time"
)

// CredentialSet holds one external account's OAuth material. Access and
// refresh tokens are independently empty during initial setup.
type CredentialSet struct {
	Key          string
	AppID        string
	Secret       string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *CredentialSet) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("%w: credential key is required", ErrValidation)
	}
	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("%w: app id is required", ErrValidation)
	}
	return nil
}
