package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel selects how a template is addressed at the provider.
type Channel string

const (
	// ChannelRouted sends through a routing rule plus template code pair.
	ChannelRouted Channel = "ROUTED"
	// ChannelDirect addresses a recipient through a single opaque template key.
	ChannelDirect Channel = "DIRECT"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelRouted, ChannelDirect:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// ParamBinding declares how one template parameter is filled at dispatch
// time: from a logical record source when present, otherwise from the
// default value, otherwise empty string.
type ParamBinding struct {
	Name         string `json:"name"`
	DefaultValue string `json:"defaultValue"`
	SourceTable  string `json:"sourceTable"`
	SourceColumn string `json:"sourceColumn"`
}

// TemplateBinding maps a trigger name to a provider channel, template, and
// an ordered list of parameter bindings.
type TemplateBinding struct {
	ID           string
	Trigger      string
	Enabled      bool
	Condition    string
	Channel      Channel
	RoutingRules []string
	TemplateCode string
	TemplateKey  string
	Params       []ParamBinding
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b *TemplateBinding) Validate() error {
	if strings.TrimSpace(b.Trigger) == "" {
		return fmt.Errorf("%w: trigger is required", ErrValidation)
	}
	if !b.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, b.Channel)
	}

	switch b.Channel {
	case ChannelRouted:
		if len(b.RoutingRules) == 0 {
			return fmt.Errorf("%w: routed binding requires at least one routing rule", ErrValidation)
		}
		for i, rule := range b.RoutingRules {
			if strings.TrimSpace(rule) == "" {
				return fmt.Errorf("%w: routing rule %d is empty", ErrValidation, i)
			}
		}
		if strings.TrimSpace(b.TemplateCode) == "" {
			return fmt.Errorf("%w: routed binding requires a template code", ErrValidation)
		}
	case ChannelDirect:
		if strings.TrimSpace(b.TemplateKey) == "" {
			return fmt.Errorf("%w: direct binding requires a template key", ErrValidation)
		}
	}

	seen := make(map[string]struct{}, len(b.Params))
	for _, param := range b.Params {
		name := strings.TrimSpace(param.Name)
		if name == "" {
			return fmt.Errorf("%w: parameter name is required", ErrValidation)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate parameter name %q", ErrValidation, name)
		}
		seen[name] = struct{}{}
	}

	return nil
}
