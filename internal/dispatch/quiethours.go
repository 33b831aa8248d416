package dispatch

import (
	"time"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// QuietHoursGate decides whether a non-urgent notification must wait for the user's quiet
// window to end.
type QuietHoursGate struct {
	defaultLocation *time.Location
}

// NewQuietHoursGate evaluates quiet hours in loc when a preference carries no timezone.
func NewQuietHoursGate(loc *time.Location) *QuietHoursGate {
	if loc == nil {
		loc = time.UTC
	}
	return &QuietHoursGate{defaultLocation: loc}
}

// DeferUntil returns the end of the current quiet window and true when delivery at now
// must be deferred.
func (g *QuietHoursGate) DeferUntil(now time.Time, pref domain.NotificationPreference, urgent bool) (time.Time, bool) {
	if urgent || !pref.HasQuietHours() {
		return time.Time{}, false
	}

	local := now.In(g.location(pref))
	start, end := *pref.QuietHoursStart, *pref.QuietHoursEnd
	if !inWindow(domain.TimeOfDayOf(local), start, end) {
		return time.Time{}, false
	}

	until := time.Date(local.Year(), local.Month(), local.Day(), end.Hour(), end.Minute(), 0, 0, local.Location())
	if !until.After(local) {
		until = until.AddDate(0, 0, 1)
	}
	return until, true
}

func (g *QuietHoursGate) location(pref domain.NotificationPreference) *time.Location {
	if pref.Timezone == "" {
		return g.defaultLocation
	}
	loc, err := time.LoadLocation(pref.Timezone)
	if err != nil {
		return g.defaultLocation
	}
	return loc
}

// inWindow reports whether tod lies in [start, end), wrapping past midnight when end < start.
func inWindow(tod, start, end domain.TimeOfDay) bool {
	if start == end {
		return false
	}
	if start < end {
		return tod >= start && tod < end
	}
	return tod >= start || tod < end
}
