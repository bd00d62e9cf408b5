package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGatewayTimeout = 10 * time.Second

	sendPath    = "/v1/messages"
	refreshPath = "/v1/oauth/token"

	// Provider body codes. Zero is success; the rest are the documented
	// failure codes this engine reacts to specifically.
	codeOK               = 0
	codeRouteUnavailable = 114
	codeThrottled        = 429
)

type sendRequestBody struct {
	RoutingRule  string            `json:"routing_rule,omitempty"`
	TemplateCode string            `json:"template_code,omitempty"`
	TemplateKey  string            `json:"template_key,omitempty"`
	Recipient    string            `json:"recipient"`
	Params       map[string]string `json:"params"`
}

type sendResponseBody struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Data    struct {
		MsgID     string `json:"msg_id"`
		TelcoID   string `json:"telco_id"`
		ChannelID string `json:"channel_id"`
		Charged   bool   `json:"charged"`
	} `json:"data"`
}

type refreshRequestBody struct {
	AppID        string `json:"app_id"`
	Secret       string `json:"secret"`
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type"`
}

type refreshResponseBody struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Data    struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"data"`
}

// Gateway talks to the messaging provider's HTTP API.
type Gateway struct {
	client  *resty.Client
	baseURL string
	tokens  TokenSource
}

func NewGateway(baseURL string, tokens TokenSource) (*Gateway, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewGatewayWithClient(baseURL, tokens, client)
}

func NewGatewayWithClient(baseURL string, tokens TokenSource, client *resty.Client) (*Gateway, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("provider base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &Gateway{
		client:  client,
		baseURL: trimmedURL,
		tokens:  tokens,
	}, nil
}

func (g *Gateway) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, fmt.Errorf("recipient is required")
	}

	token := ""
	if g.tokens != nil {
		var err error
		token, err = g.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load access token: %w", err)
		}
	}

	body := sendRequestBody{
		RoutingRule:  req.RoutingRule,
		TemplateCode: req.TemplateCode,
		TemplateKey:  req.TemplateKey,
		Recipient:    req.Recipient,
		Params:       req.Params,
	}
	if body.Params == nil {
		body.Params = map[string]string{}
	}

	var parsed sendResponseBody
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("access_token", token).
		SetBody(body).
		SetResult(&parsed).
		Post(g.baseURL + sendPath)
	if err != nil {
		return nil, &Error{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("provider returned status %d", statusCode),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if parsed.Error != codeOK {
		return nil, &Error{
			StatusCode:    statusCode,
			ProviderCode:  parsed.Error,
			Message:       providerErrorMessage(parsed.Error, parsed.Message),
			Transient:     parsed.Error == codeThrottled,
			RouteUnusable: parsed.Error == codeRouteUnavailable,
		}
	}

	return &SendResponse{
		StatusCode: statusCode,
		Body:       responseBody,
		MessageID:  parsed.Data.MsgID,
		TelcoID:    parsed.Data.TelcoID,
		ChannelID:  parsed.Data.ChannelID,
		Charged:    parsed.Data.Charged,
	}, nil
}

func (g *Gateway) RefreshToken(ctx context.Context, appID, secret, refreshToken string) (*TokenPair, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	body := refreshRequestBody{
		AppID:        appID,
		Secret:       secret,
		RefreshToken: refreshToken,
		GrantType:    "refresh_token",
	}

	var parsed refreshResponseBody
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&parsed).
		Post(g.baseURL + refreshPath)
	if err != nil {
		return nil, &Error{
			Message:   "token refresh request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("token refresh returned status %d", statusCode),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	if parsed.Error != codeOK {
		return nil, &Error{
			StatusCode:   statusCode,
			ProviderCode: parsed.Error,
			Message:      providerErrorMessage(parsed.Error, parsed.Message),
		}
	}

	if parsed.Data.AccessToken == "" || parsed.Data.RefreshToken == "" {
		return nil, &Error{
			StatusCode: statusCode,
			Message:    "token refresh returned an incomplete token pair",
		}
	}

	return &TokenPair{
		AccessToken:  parsed.Data.AccessToken,
		RefreshToken: parsed.Data.RefreshToken,
	}, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(code int, message string) string {
	base := fmt.Sprintf("provider returned code %d", code)
	if strings.TrimSpace(message) == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, message)
}
