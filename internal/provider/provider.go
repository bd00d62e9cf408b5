package provider

import "context"

// SendRequest is the provider-facing submission for one recipient.
type SendRequest struct {
	RoutingRule  string
	TemplateCode string
	TemplateKey  string
	Recipient    string
	Params       map[string]string
}

// SendResponse stores provider call metadata for audit and persistence.
type SendResponse struct {
	StatusCode int
	Body       string
	MessageID  string
	TelcoID    string
	ChannelID  string
	Charged    bool
}

// TokenPair is the result of a refresh-token exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Client is the outbound messaging gateway port.
type Client interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
	RefreshToken(ctx context.Context, appID, secret, refreshToken string) (*TokenPair, error)
}

// TokenSource supplies the current access token for authenticated calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
