package domain

import (
	"fmt"
	"strings"
)

// Channel represents the delivery channel.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
	ChannelInApp    Channel = "IN_APP"
)

type channelCapability struct {
	requiresPhone    bool
	requiresEmail    bool
	requiresInternet bool
	providerName     string
}

var channelCapabilities = map[Channel]channelCapability{
	ChannelSMS:      {requiresPhone: true, providerName: "LOCAL_SMS_GATEWAY"},
	ChannelWhatsApp: {requiresPhone: true, requiresInternet: true, providerName: "OWN_WHATSAPP_NUMBER"},
	ChannelEmail:    {requiresEmail: true, requiresInternet: true, providerName: "SMTP_SERVER"},
	ChannelInApp:    {requiresInternet: true, providerName: "IN_APP"},
}

// DefaultChannelOrder favors low-connectivity channels first.
var DefaultChannelOrder = []Channel{
	ChannelSMS,
	ChannelWhatsApp,
	ChannelEmail,
	ChannelInApp,
}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	_, ok := channelCapabilities[c]
	return ok
}

func (c Channel) RequiresPhone() bool { return channelCapabilities[c].requiresPhone }

func (c Channel) RequiresEmail() bool { return channelCapabilities[c].requiresEmail }

func (c Channel) RequiresInternet() bool { return channelCapabilities[c].requiresInternet }

// ProviderName is the default provider recorded when a send on this channel succeeds.
func (c Channel) ProviderName() string { return channelCapabilities[c].providerName }

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// ContactAddress returns the preference contact datum the channel delivers to.
// IN_APP addresses the user directly.
func (c Channel) ContactAddress(pref NotificationPreference) string {
	switch {
	case c == ChannelInApp:
		return strings.TrimSpace(pref.UserID)
	case c == ChannelWhatsApp:
		return strings.TrimSpace(pref.WhatsAppNumber)
	case c.RequiresPhone():
		return strings.TrimSpace(pref.PhoneNumber)
	case c.RequiresEmail():
		return strings.TrimSpace(pref.Email)
	}
	return ""
}
