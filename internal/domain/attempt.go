package domain

import "time"

// NotificationAttempt records a single provider call for a notification.
type NotificationAttempt struct {
	ID             string
	NotificationID string
	AttemptNumber  int
	Channel        Channel
	ProviderName   string
	StatusCode     *int
	ResponseBody   *string
	Error          *string
	CreatedAt      time.Time
}
