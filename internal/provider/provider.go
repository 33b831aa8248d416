package provider

import (
	"context"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// Provider is the outbound delivery port for one channel.
type Provider interface {
	Send(ctx context.Context, notification domain.Notification) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata for audit and persistence.
type ProviderResponse struct {
	ProviderName string
	StatusCode   int
	Body         string
	MessageID    string
}

// Registry maps each channel to the provider that delivers it.
type Registry map[domain.Channel]Provider

// Channels lists the channels with a registered provider in default order.
func (r Registry) Channels() []domain.Channel {
	channels := make([]domain.Channel, 0, len(r))
	for _, channel := range domain.DefaultChannelOrder {
		if _, ok := r[channel]; ok {
			channels = append(channels, channel)
		}
	}
	return channels
}
