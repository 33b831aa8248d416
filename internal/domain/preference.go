package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// TimeOfDay is a wall-clock time without date or zone, stored as minutes after midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid time of day %q, expected HH:MM", ErrValidation, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants; it panics on malformed input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall-clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int { return int(t) / 60 }

func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) IsValid() bool { return t >= 0 && t < minutesPerDay }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ChannelPreference is the channel list a user accepts for one notification category.
type ChannelPreference struct {
	EnabledChannels []Channel `json:"enabledChannels"`
	PrimaryChannel  Channel   `json:"primaryChannel,omitempty"`
}

// Allows reports whether channel is listed for the category.
func (c ChannelPreference) Allows(channel Channel) bool {
	for _, enabled := range c.EnabledChannels {
		if enabled == channel {
			return true
		}
	}
	return false
}

// Ordered returns the enabled channels with the primary channel first.
func (c ChannelPreference) Ordered() []Channel {
	ordered := make([]Channel, 0, len(c.EnabledChannels))
	if c.PrimaryChannel != "" && c.Allows(c.PrimaryChannel) {
		ordered = append(ordered, c.PrimaryChannel)
	}
	for _, channel := range c.EnabledChannels {
		if channel == c.PrimaryChannel {
			continue
		}
		ordered = append(ordered, channel)
	}
	return ordered
}

func (c ChannelPreference) Validate() error {
	seen := make(map[Channel]struct{}, len(c.EnabledChannels))
	for _, channel := range c.EnabledChannels {
		if !channel.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, channel)
		}
		if _, dup := seen[channel]; dup {
			return fmt.Errorf("%w: duplicate channel %q", ErrValidation, channel)
		}
		seen[channel] = struct{}{}
	}
	if c.PrimaryChannel != "" && !c.Allows(c.PrimaryChannel) {
		return fmt.Errorf("%w: primaryChannel %s is not in enabledChannels", ErrValidation, c.PrimaryChannel)
	}
	return nil
}

// NotificationPreference holds one user's delivery settings. Stores upsert it by user id.
type NotificationPreference struct {
	UserID     string
	Categories map[NotificationType]ChannelPreference

	EnableSMS      bool
	EnableWhatsApp bool
	EnableEmail    bool
	EnableInApp    bool

	PhoneNumber    string
	WhatsAppNumber string
	Email          string

	QuietHoursStart *TimeOfDay
	QuietHoursEnd   *TimeOfDay
	Timezone        string

	UpdatedAt time.Time
}

// DefaultPreference is used when a user has never stored preferences.
func DefaultPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:         userID,
		Categories:     map[NotificationType]ChannelPreference{},
		EnableSMS:      true,
		EnableWhatsApp: true,
		EnableEmail:    true,
		EnableInApp:    true,
	}
}

// ChannelEnabled reports the global toggle for channel.
func (p NotificationPreference) ChannelEnabled(channel Channel) bool {
	switch channel {
	case ChannelSMS:
		return p.EnableSMS
	case ChannelWhatsApp:
		return p.EnableWhatsApp
	case ChannelEmail:
		return p.EnableEmail
	case ChannelInApp:
		return p.EnableInApp
	}
	return false
}

// HasQuietHours reports whether a non-empty quiet window is configured.
func (p NotificationPreference) HasQuietHours() bool {
	return p.QuietHoursStart != nil && p.QuietHoursEnd != nil && *p.QuietHoursStart != *p.QuietHoursEnd
}

func (p NotificationPreference) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	for category, channels := range p.Categories {
		if !category.IsValid() {
			return fmt.Errorf("%w: invalid notification category %q", ErrValidation, category)
		}
		if err := channels.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", category, err)
		}
	}
	if (p.QuietHoursStart == nil) != (p.QuietHoursEnd == nil) {
		return fmt.Errorf("%w: quietHoursStart and quietHoursEnd must be set together", ErrValidation)
	}
	if p.QuietHoursStart != nil && (!p.QuietHoursStart.IsValid() || !p.QuietHoursEnd.IsValid()) {
		return fmt.Errorf("%w: quiet hours out of range", ErrValidation)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("%w: invalid timezone %q", ErrValidation, p.Timezone)
		}
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, p.Email)
	}
	return nil
}
