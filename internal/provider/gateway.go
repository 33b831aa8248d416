package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vallegrande/notification-engine/internal/domain"
)

const defaultGatewayTimeout = 10 * time.Second

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type whatsAppRequest struct {
	To      string `json:"to"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// HTTPGateway delivers one channel through a JSON HTTP gateway (local SMS modem gateway,
// WhatsApp sender, SMTP relay).
type HTTPGateway struct {
	client       *resty.Client
	endpoint     string
	channel      domain.Channel
	providerName string
}

func NewHTTPGateway(channel domain.Channel, endpoint string, apiKey string) (*HTTPGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)
	if key := strings.TrimSpace(apiKey); key != "" {
		client.SetAuthToken(key)
	}

	return NewHTTPGatewayWithClient(channel, endpoint, client)
}

func NewHTTPGatewayWithClient(channel domain.Channel, endpoint string, client *resty.Client) (*HTTPGateway, error) {
	if !channel.IsValid() || channel == domain.ChannelInApp {
		return nil, fmt.Errorf("unsupported gateway channel %q", channel)
	}
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("%s gateway endpoint is required", strings.ToLower(channel.String()))
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid %s gateway endpoint: %w", strings.ToLower(channel.String()), err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPGateway{
		client:       client,
		endpoint:     trimmedEndpoint,
		channel:      channel,
		providerName: channel.ProviderName(),
	}, nil
}

func (g *HTTPGateway) Send(ctx context.Context, notification domain.Notification) (*ProviderResponse, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}
	if notification.Channel != g.channel {
		return nil, Permanent(fmt.Sprintf("%s gateway cannot send %s notifications", g.channel, notification.Channel), nil)
	}
	if strings.TrimSpace(notification.Recipient) == "" {
		return nil, Permanent("recipient is required", nil)
	}
	if err := notification.ValidateContent(); err != nil {
		return nil, Permanent("invalid content", err)
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Notification-ID", notification.ID).
		SetHeader("X-Correlation-ID", notification.CorrelationID).
		SetBody(g.requestBody(notification)).
		Post(g.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, Transient("gateway returned empty response", nil)
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			ProviderName: g.providerName,
			StatusCode:   statusCode,
			Body:         responseBody,
			MessageID:    gatewayMessageID(response),
		}, nil
	}

	return nil, FromStatus(statusCode, responseBody)
}

func (g *HTTPGateway) requestBody(n domain.Notification) any {
	switch g.channel {
	case domain.ChannelWhatsApp:
		return whatsAppRequest{To: n.Recipient, Type: "text", Message: n.Message}
	case domain.ChannelEmail:
		return emailRequest{To: n.Recipient, Subject: n.Subject, Body: n.Message}
	default:
		return smsRequest{To: n.Recipient, Message: n.Message}
	}
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	var body gatewayResponse
	if err := json.Unmarshal(response.Body(), &body); err == nil {
		if id := strings.TrimSpace(body.MessageID); id != "" {
			return id
		}
		if id := strings.TrimSpace(body.ID); id != "" {
			return id
		}
	}

	for _, key := range []string{"X-Request-ID", "X-Message-ID", "X-Correlation-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
