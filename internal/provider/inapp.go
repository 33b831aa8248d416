package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// InAppProvider completes IN_APP notifications immediately. The stored notification is the
// in-app message; clients list it and acknowledge it through the read endpoint.
type InAppProvider struct{}

func NewInAppProvider() *InAppProvider {
	return &InAppProvider{}
}

func (p *InAppProvider) Send(_ context.Context, notification domain.Notification) (*ProviderResponse, error) {
	if notification.Channel != domain.ChannelInApp {
		return nil, Permanent("in-app provider cannot send "+notification.Channel.String()+" notifications", nil)
	}
	if strings.TrimSpace(notification.Recipient) == "" {
		return nil, Permanent("recipient is required", nil)
	}
	if err := notification.ValidateContent(); err != nil {
		return nil, Permanent("invalid content", err)
	}

	return &ProviderResponse{
		ProviderName: domain.ChannelInApp.ProviderName(),
		StatusCode:   http.StatusCreated,
		MessageID:    notification.ID,
	}, nil
}
